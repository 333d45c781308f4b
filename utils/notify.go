package utils

import (
	"bytes"
	"fmt"
	"html/template"
	"log"
	"os"

	"github.com/214WANGCAN/adventurer-backend/database"
	"github.com/214WANGCAN/adventurer-backend/models"
)

var notifySubjects = map[string]string{
	models.NotifyInvite:            "组队邀请",
	models.NotifySystem:            "系统公告",
	models.NotifyLevelUp:           "等级提升通知",
	models.NotifyTaskUpdate:        "任务状态变更",
	models.NotifyCancelRequest:     "取消任务请求",
	models.NotifyCompleted:         "任务已完成",
	models.NotifyCompletionRequest: "确认完成任务请求",
}

// SubjectFor maps a notification type to its email subject line.
func SubjectFor(notifType string) string {
	base, ok := notifySubjects[notifType]
	if !ok {
		base = "通知"
	}
	return "[冒险者工会] " + base
}

func SiteURL() string {
	if v := os.Getenv("SITE_URL"); v != "" {
		return v
	}
	return "https://example.com"
}

// TaskURL builds the frontend link for a related task, empty when nil.
func TaskURL(taskID *uint) string {
	if taskID == nil {
		return ""
	}
	return fmt.Sprintf("%s/tasks/%d/", SiteURL(), *taskID)
}

var notifyEmailTmpl = template.Must(template.New("notification").Parse(`<!DOCTYPE html>
<html>
<body style="margin:0;padding:24px;background:#F4F7FE;font-family:Arial,Helvetica,sans-serif;">
  <div style="max-width:560px;margin:0 auto;background:#FFFFFF;border-radius:8px;padding:24px;">
    <h2 style="color:#2B2C57;margin-top:0;">{{.Subject}}</h2>
    <p style="color:#2B2C57;white-space:pre-line;">{{.Message}}</p>
    {{if .TaskURL}}<p><a href="{{.TaskURL}}" style="display:inline-block;background:#2B2C57;color:#FFFFFF;padding:10px 18px;border-radius:6px;text-decoration:none;">查看任务</a></p>{{end}}
    <p style="font-size:12px;color:#8a8fb3;">冒险者工会 · <a href="{{.SiteURL}}" style="color:#8a8fb3;">{{.SiteURL}}</a></p>
  </div>
</body>
</html>`))

// RenderNotificationEmail produces the themed HTML body plus a plain-text
// fallback with the key links appended.
func RenderNotificationEmail(n *models.Notification) (html string, text string) {
	taskURL := TaskURL(n.RelatedTaskID)
	var buf bytes.Buffer
	err := notifyEmailTmpl.Execute(&buf, map[string]string{
		"Subject": SubjectFor(n.Type),
		"Message": n.Message,
		"TaskURL": taskURL,
		"SiteURL": SiteURL(),
	})
	if err != nil {
		log.Printf("[notify] template render failed: %v", err)
	}
	text = n.Message
	if taskURL != "" {
		text += "\n\n查看任务：" + taskURL
	}
	text += "\n访问网站：" + SiteURL()
	return buf.String(), text
}

// CreateNotification stores a notification row and, when the recipient has an
// email address, dispatches the email from a goroutine. Delivery is best
// effort: failures are logged and never surfaced to the caller, so a slow or
// broken relay cannot fail the transition that triggered the notification.
func CreateNotification(user *models.User, notifType, message string, taskID, relatedUserID *uint) {
	if user == nil {
		return
	}
	n := models.Notification{
		UserID:        user.ID,
		Type:          notifType,
		Message:       message,
		RelatedTaskID: taskID,
		RelatedUserID: relatedUserID,
	}
	if err := database.DB.Create(&n).Error; err != nil {
		log.Printf("[notify] failed to store notification for user %d: %v", user.ID, err)
		return
	}
	if user.Email == "" || os.Getenv("SMTP_HOST") == "" {
		return
	}
	email := user.Email
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("[notify] panic while emailing %s: %v", email, rec)
			}
		}()
		html, text := RenderNotificationEmail(&n)
		err := SendMail(Mail{
			To:       []string{email},
			Subject:  SubjectFor(n.Type),
			TextBody: text,
			HTMLBody: html,
		})
		if err != nil {
			log.Printf("[notify] email to %s failed: %v", email, err)
		}
	}()
}
