package tasks

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/214WANGCAN/adventurer-backend/database"
	"github.com/214WANGCAN/adventurer-backend/middleware"
	"github.com/214WANGCAN/adventurer-backend/models"
	"github.com/214WANGCAN/adventurer-backend/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type cancelRequestBody struct {
	Summary string `json:"summary" validate:"required"`
	Detail  string `json:"detail" validate:"required"`
}

// runRequestCancel files a pending cancel request. The unique index on
// (task, requester, type, pending) is the dedup guard: a second unresolved
// ask from the same requester fails on insert, not on a racy pre-check.
func runRequestCancel(db *gorm.DB, actor *models.User, taskID uint, summary, detail string) ([]note, error) {
	var notes []note
	err := db.Transaction(func(tx *gorm.DB) error {
		task, err := loadTaskForUpdate(tx, taskID)
		if err != nil {
			return err
		}
		participant, err := isParticipant(tx, task.ID, actor.ID)
		if err != nil {
			return err
		}
		if err := CanRequestCancel(task, actor.ID, participant); err != nil {
			return err
		}

		req := models.NewPendingRequest(task.ID, actor.ID, models.RequestTypeCancel)
		req.Summary = utils.PtrString(summary)
		req.Detail = utils.PtrString(detail)
		if err := tx.Create(&req).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicatePending
			}
			return err
		}

		task.CancelRequested = true
		if err := tx.Save(task).Error; err != nil {
			return err
		}

		var publisher models.User
		if err := tx.First(&publisher, task.PublisherID).Error; err == nil {
			notes = append(notes, note{
				user:      &publisher,
				notifType: models.NotifyCancelRequest,
				// fields joined with ♪ so the frontend can split them apart
				message:       fmt.Sprintf("%s♪%s♪%s♪%s", actor.DisplayName(), task.Title, summary, detail),
				taskID:        &task.ID,
				relatedUserID: &actor.ID,
			})
		}
		return nil
	})
	return notes, err
}

// POST /v1/tasks/{taskid}/cancel
func RequestCancelHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	taskID, ok := taskIDFromRequest(r)
	if !ok {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "无效的任务编号"})
		return
	}
	var body cancelRequestBody
	if err := middleware.ValidateJSON(w, r, &body); err != nil {
		return
	}

	notes, err := runRequestCancel(database.DB, actor, taskID, body.Summary, body.Detail)
	if err != nil {
		writeRuleError(w, err)
		return
	}
	flushNotes(notes)
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "取消申请已提交，请等待审核"})
}

// POST /v1/tasks/{taskid}/urge-approval
//
// Any accepted participant may urge the publisher to review completion.
// Deduplicated the same way as cancel requests.
func UrgeApprovalHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	taskID, ok := taskIDFromRequest(r)
	if !ok {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "无效的任务编号"})
		return
	}

	var notes []note
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		task, err := loadTaskForUpdate(tx, taskID)
		if err != nil {
			return err
		}
		participant, err := isParticipant(tx, task.ID, actor.ID)
		if err != nil {
			return err
		}
		if err := CanUrgeCompletion(task, participant); err != nil {
			return err
		}

		req := models.NewPendingRequest(task.ID, actor.ID, models.RequestTypeCompletion)
		if err := tx.Create(&req).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicatePending
			}
			return err
		}

		var publisher models.User
		if err := tx.First(&publisher, task.PublisherID).Error; err == nil {
			notes = append(notes, note{
				user:          &publisher,
				notifType:     models.NotifyCompletionRequest,
				message:       fmt.Sprintf("%s 请求你审核任务《%s》的完成情况", actor.DisplayName(), task.Title),
				taskID:        &task.ID,
				relatedUserID: &actor.ID,
			})
		}
		return nil
	})
	if err != nil {
		writeRuleError(w, err)
		return
	}
	flushNotes(notes)
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "已通知老师尽快审核"})
}

// runApproveCancel approves every pending cancel request of the task and
// resets it to its pre-application state. Approval is task-scoped, not
// requester-scoped.
func runApproveCancel(db *gorm.DB, actorID, taskID uint) error {
	return db.Transaction(func(tx *gorm.DB) error {
		task, err := loadTaskForUpdate(tx, taskID)
		if err != nil {
			return err
		}
		if task.PublisherID != actorID {
			return ErrNotEligible
		}
		pending, err := hasPendingCancel(tx, task.ID)
		if err != nil {
			return err
		}
		if !pending {
			return ErrNonePending
		}

		err = tx.Model(&models.TaskRequest{}).
			Where("task_id = ? AND type = ? AND status = ?", task.ID, models.RequestTypeCancel, models.RequestStatusPending).
			Updates(map[string]interface{}{"status": models.RequestStatusApproved, "pending": nil}).Error
		if err != nil {
			return err
		}

		ResetForCancel(task)
		if err := tx.Model(task).Association("AcceptedBy").Clear(); err != nil {
			return err
		}
		if err := tx.Model(task).Association("InvitedUsers").Clear(); err != nil {
			return err
		}
		return tx.Save(task).Error
	})
}

// POST /v1/tasks/{taskid}/approve-cancel
func ApproveCancelHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	taskID, ok := taskIDFromRequest(r)
	if !ok {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "无效的任务编号"})
		return
	}

	if err := runApproveCancel(database.DB, actor.ID, taskID); err != nil {
		writeRuleError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "任务取消申请已批准，任务已重置为未被接取"})
}

type rejectRequestBody struct {
	RequesterID *uint `json:"requester_id,omitempty"`
}

// rejectPendingRequests marks matching pending rows rejected and returns the
// affected requesters for notification.
func rejectPendingRequests(tx *gorm.DB, taskID uint, reqType string, requesterID *uint) ([]models.User, error) {
	query := tx.Where("task_id = ? AND type = ? AND status = ?", taskID, reqType, models.RequestStatusPending)
	if requesterID != nil {
		query = query.Where("requester_id = ?", *requesterID)
	}
	var pending []models.TaskRequest
	if err := query.Find(&pending).Error; err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return nil, ErrNonePending
	}
	ids := make([]uint, 0, len(pending))
	requesterIDs := make([]uint, 0, len(pending))
	for _, p := range pending {
		ids = append(ids, p.ID)
		requesterIDs = append(requesterIDs, p.RequesterID)
	}
	err := tx.Model(&models.TaskRequest{}).Where("id IN ?", ids).
		Updates(map[string]interface{}{"status": models.RequestStatusRejected, "pending": nil}).Error
	if err != nil {
		return nil, err
	}
	var requesters []models.User
	if err := tx.Where("id IN ?", requesterIDs).Find(&requesters).Error; err != nil {
		return nil, err
	}
	return requesters, nil
}

// POST /v1/tasks/{taskid}/reject-cancel
//
// Optionally scoped to one requester; the projection may stay true when
// other requesters still have pending cancels.
func RejectCancelHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	taskID, ok := taskIDFromRequest(r)
	if !ok {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "无效的任务编号"})
		return
	}
	var body rejectRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "Invalid JSON body"})
		return
	}

	var notes []note
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		task, err := loadTaskForUpdate(tx, taskID)
		if err != nil {
			return err
		}
		if task.PublisherID != actor.ID {
			return ErrNotEligible
		}
		requesters, err := rejectPendingRequests(tx, task.ID, models.RequestTypeCancel, body.RequesterID)
		if err != nil {
			return err
		}
		stillPending, err := hasPendingCancel(tx, task.ID)
		if err != nil {
			return err
		}
		task.CancelRequested = stillPending
		if err := tx.Save(task).Error; err != nil {
			return err
		}
		for i := range requesters {
			requester := requesters[i]
			notes = append(notes, note{
				user:          &requester,
				notifType:     models.NotifyTaskUpdate,
				message:       fmt.Sprintf("你对任务《%s》的取消申请已被拒绝", task.Title),
				taskID:        &task.ID,
				relatedUserID: &actor.ID,
			})
		}
		return nil
	})
	if err != nil {
		writeRuleError(w, err)
		return
	}
	flushNotes(notes)
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "取消申请已拒绝"})
}

// runApproveComplete flips the task to completed and settles solo rewards in
// the same transaction. Completion is terminal and idempotent: re-approving
// an already completed task reports alreadyDone and credits nothing.
func runApproveComplete(db *gorm.DB, actorID, taskID uint) (notes []note, alreadyDone bool, err error) {
	err = db.Transaction(func(tx *gorm.DB) error {
		task, err := loadTaskForUpdate(tx, taskID)
		if err != nil {
			return err
		}
		if task.PublisherID != actorID {
			return ErrNotEligible
		}
		if task.IsCompleted {
			alreadyDone = true
			return nil
		}

		task.IsCompleted = true

		// Participant rows are locked too: concurrent completions of other
		// tasks sharing a member serialize here instead of overwriting each
		// other's ledger writes.
		var participants []models.User
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).Preload("Title").
			Joins("JOIN task_participants tp ON tp.user_id = users.id").
			Where("tp.task_id = ?", task.ID).
			Find(&participants).Error
		if err != nil {
			return err
		}

		reward := TaskReward(task)
		if task.TaskType == models.TaskTypeSolo {
			for i := range participants {
				student := &participants[i]
				leveledUp := CreditBalances(student, reward)
				err := tx.Model(&models.User{}).Where("id = ?", student.ID).
					Updates(map[string]interface{}{
						"experience":     student.Experience,
						"tokens":         student.Tokens,
						"volunteer_time": student.VolunteerTime,
						"level":          student.Level,
					}).Error
				if err != nil {
					return err
				}
				notes = append(notes, note{
					user:      student,
					notifType: models.NotifyCompleted,
					message: fmt.Sprintf("任务《%s》已完成，获得经验 %d、代币 %d、志愿时长 %.2f",
						task.Title, reward.Experience, reward.Tokens, reward.VolunteerTime),
					taskID: &task.ID,
				})
				if leveledUp {
					notes = append(notes, note{
						user:      student,
						notifType: models.NotifyLevelUp,
						message:   fmt.Sprintf("恭喜你升级到 %s！", student.Level),
					})
				}
			}
		} else {
			// Team reward settlement is pending a product decision; members
			// are only notified of completion.
			for i := range participants {
				member := participants[i]
				notes = append(notes, note{
					user:      &member,
					notifType: models.NotifyCompleted,
					message:   fmt.Sprintf("任务《%s》已完成", task.Title),
					taskID:    &task.ID,
				})
			}
		}

		err = tx.Model(&models.TaskRequest{}).
			Where("task_id = ? AND type = ? AND status = ?", task.ID, models.RequestTypeCompletion, models.RequestStatusPending).
			Updates(map[string]interface{}{"status": models.RequestStatusApproved, "pending": nil}).Error
		if err != nil {
			return err
		}

		stillPending, err := hasPendingCancel(tx, task.ID)
		if err != nil {
			return err
		}
		task.CancelRequested = stillPending
		return tx.Save(task).Error
	})
	return notes, alreadyDone, err
}

// POST /v1/tasks/{taskid}/complete
func ApproveCompleteHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	taskID, ok := taskIDFromRequest(r)
	if !ok {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "无效的任务编号"})
		return
	}

	notes, alreadyDone, err := runApproveComplete(database.DB, actor.ID, taskID)
	if err != nil {
		writeRuleError(w, err)
		return
	}
	if alreadyDone {
		utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
			Success: true,
			Message: "任务已完成，无需重复操作",
			Data:    map[string]interface{}{"already_completed": true},
		})
		return
	}
	flushNotes(notes)
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "任务已完成"})
}

// POST /v1/tasks/{taskid}/reject-complete
//
// Rejects pending completion urges without touching the completion state.
func RejectCompleteHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	taskID, ok := taskIDFromRequest(r)
	if !ok {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "无效的任务编号"})
		return
	}
	var body rejectRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "Invalid JSON body"})
		return
	}

	var notes []note
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		task, err := loadTaskForUpdate(tx, taskID)
		if err != nil {
			return err
		}
		if task.PublisherID != actor.ID {
			return ErrNotEligible
		}
		requesters, err := rejectPendingRequests(tx, task.ID, models.RequestTypeCompletion, body.RequesterID)
		if err != nil {
			return err
		}
		for i := range requesters {
			requester := requesters[i]
			notes = append(notes, note{
				user:          &requester,
				notifType:     models.NotifyTaskUpdate,
				message:       fmt.Sprintf("你对任务《%s》的催审申请已被拒绝", task.Title),
				taskID:        &task.ID,
				relatedUserID: &actor.ID,
			})
		}
		return nil
	})
	if err != nil {
		writeRuleError(w, err)
		return
	}
	flushNotes(notes)
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "催审申请已拒绝"})
}
