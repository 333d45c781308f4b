package models

import "time"

const (
	TaskTypeSolo = "solo"
	TaskTypeTeam = "team"
)

type Task struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Title       string `gorm:"size:100;not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`
	TaskType    string `gorm:"type:enum('solo','team');not null" json:"task_type"`

	PublisherID uint `gorm:"not null;index" json:"publisher_id"`
	Publisher   User `json:"-"`

	MaximumUsers  uint   `gorm:"not null;default:1" json:"maximum_users"`
	RequiredLevel string `gorm:"size:10;default:'F'" json:"required_level"`

	ExperienceReward    uint    `gorm:"default:0" json:"experience_reward"`
	TokenReward         uint    `gorm:"default:0" json:"token_reward"`
	VolunteerTimeReward float64 `gorm:"default:0" json:"volunteer_time_reward"`

	Image    *string   `gorm:"size:255" json:"image,omitempty"`
	Deadline time.Time `gorm:"not null" json:"deadline"`

	AcceptedBy   []User `gorm:"many2many:task_participants" json:"-"`
	InvitedUsers []User `gorm:"many2many:task_invites" json:"-"`

	LeaderID *uint `json:"leader_id,omitempty"`
	Leader   *User `json:"-"`

	IsCompleted bool `gorm:"default:false" json:"is_completed"`
	IsExpired   bool `gorm:"default:false" json:"is_expired"`
	IsAccepted  bool `gorm:"default:false" json:"is_accepted"`
	IsStarted   bool `gorm:"default:false" json:"is_started"`

	// Projection over pending cancel TaskRequests, resynced after every
	// request mutation. Never trusted as independent state.
	CancelRequested bool `gorm:"default:false" json:"cancel_requested"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	RequestTypeCompletion = "completion"
	RequestTypeCancel     = "cancel"

	RequestStatusPending  = "pending"
	RequestStatusApproved = "approved"
	RequestStatusRejected = "rejected"
)

// TaskRequest is a participant-initiated ask (cancel or completion urge)
// awaiting publisher adjudication.
//
// The dedup invariant (at most one pending row per task/requester/type) is
// enforced by the composite unique index below. MySQL has no partial unique
// indexes, so Pending carries 1 while the row is pending and NULL once it is
// resolved; NULL values never collide inside a unique index, which leaves
// resolved history rows unconstrained.
type TaskRequest struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	TaskID      uint   `gorm:"not null;uniqueIndex:uniq_pending_request" json:"task_id"`
	RequesterID uint   `gorm:"not null;uniqueIndex:uniq_pending_request" json:"requester_id"`
	Requester   User   `json:"-"`
	Type        string `gorm:"size:20;not null;uniqueIndex:uniq_pending_request" json:"type"`
	Status      string `gorm:"type:enum('pending','approved','rejected');default:'pending'" json:"status"`
	Pending     *bool  `gorm:"uniqueIndex:uniq_pending_request" json:"-"`

	Summary *string `gorm:"size:255" json:"summary,omitempty"`
	Detail  *string `gorm:"type:text" json:"detail,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewPendingRequest builds a pending TaskRequest with the dedup marker set.
func NewPendingRequest(taskID, requesterID uint, reqType string) TaskRequest {
	pending := true
	return TaskRequest{
		TaskID:      taskID,
		RequesterID: requesterID,
		Type:        reqType,
		Status:      RequestStatusPending,
		Pending:     &pending,
	}
}
