package notifications

import (
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/214WANGCAN/adventurer-backend/database"
	"github.com/214WANGCAN/adventurer-backend/middleware"
	"github.com/214WANGCAN/adventurer-backend/models"
	"github.com/214WANGCAN/adventurer-backend/utils"

	"gorm.io/gorm"
)

const (
	broadcastChunk   = 500
	notifInsertBatch = 100
	defaultBccBatch  = 80
	bccBatchThrottle = 500 * time.Millisecond
)

func bccBatchSize() int {
	if s := os.Getenv("BROADCAST_BCC_BATCH"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			return v
		}
	}
	return defaultBccBatch
}

type broadcastRequest struct {
	Message    string `json:"message" validate:"required"`
	TargetRole string `json:"target_role"`
	SendEmail  bool   `json:"send_email"`
}

// POST /v1/admin/broadcast
//
// Admin-only system announcement. The request is acknowledged with 202 and
// the fan-out runs in the background: notification rows are bulk-inserted per
// chunk and emails, when requested, go out in BCC batches with a throttle so
// the relay is never hammered.
func BroadcastHandler(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}
	switch req.TargetRole {
	case "", models.RoleStudent, models.RoleTeacher, models.RoleAdmin:
	default:
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "无效的目标角色"})
		return
	}

	go runBroadcast(req)

	utils.WriteJSON(w, http.StatusAccepted, utils.APIResponse{Success: true, Message: "公告已开始发送"})
}

func runBroadcast(req broadcastRequest) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[broadcast] panic: %v", rec)
		}
	}()

	query := database.DB.Model(&models.User{}).Where("is_active = ?", true)
	if req.TargetRole != "" {
		query = query.Where("role = ?", req.TargetRole)
	}

	var stored, emailed int
	var emails []string
	var chunk []models.User
	err := query.FindInBatches(&chunk, broadcastChunk, func(tx *gorm.DB, batch int) error {
		rows := make([]models.Notification, 0, len(chunk))
		for i := range chunk {
			rows = append(rows, models.Notification{
				UserID:  chunk[i].ID,
				Type:    models.NotifySystem,
				Message: req.Message,
			})
			if req.SendEmail && chunk[i].Email != "" {
				emails = append(emails, chunk[i].Email)
			}
		}
		if err := tx.Session(&gorm.Session{NewDB: true}).CreateInBatches(rows, notifInsertBatch).Error; err != nil {
			return err
		}
		stored += len(rows)
		return nil
	}).Error
	if err != nil {
		log.Printf("[broadcast] user scan failed after %d rows: %v", stored, err)
		return
	}

	if req.SendEmail && os.Getenv("SMTP_HOST") != "" {
		n := models.Notification{Type: models.NotifySystem, Message: req.Message}
		html, text := utils.RenderNotificationEmail(&n)
		subject := utils.SubjectFor(models.NotifySystem)
		batchSize := bccBatchSize()
		for start := 0; start < len(emails); start += batchSize {
			end := start + batchSize
			if end > len(emails) {
				end = len(emails)
			}
			err := utils.SendMail(utils.Mail{
				Bcc:      emails[start:end],
				Subject:  subject,
				TextBody: text,
				HTMLBody: html,
			})
			if err != nil {
				log.Printf("[broadcast] email batch %d-%d failed: %v", start, end, err)
			} else {
				emailed += end - start
			}
			time.Sleep(bccBatchThrottle)
		}
	}

	log.Printf("[broadcast] done: %d notifications stored, %d emails sent", stored, emailed)
}
