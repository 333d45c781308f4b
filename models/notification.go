package models

import "time"

const (
	NotifyInvite            = "invite"
	NotifySystem            = "system"
	NotifyLevelUp           = "level_up"
	NotifyTaskUpdate        = "task_update"
	NotifyCancelRequest     = "cancel_request"
	NotifyCompleted         = "completed"
	NotifyCompletionRequest = "completion_request"
)

type Notification struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	UserID  uint   `gorm:"not null;index" json:"user_id"`
	User    User   `json:"-"`
	Type    string `gorm:"size:20;not null" json:"type"`
	Message string `gorm:"type:text" json:"message"`
	IsRead  bool   `gorm:"default:false" json:"is_read"`

	RelatedTaskID *uint `json:"related_task_id,omitempty"`
	RelatedTask   *Task `json:"-"`
	RelatedUserID *uint `json:"related_user_id,omitempty"`
	RelatedUser   *User `gorm:"foreignKey:RelatedUserID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
}
