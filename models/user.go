package models

import "time"

const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

// UserTitle is an honorary rank that replaces the level label for
// high-experience users.
type UserTitle struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"size:50;not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`
}

type User struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Username string `gorm:"size:50;uniqueIndex;not null" json:"username"`
	Email    string `gorm:"size:100" json:"email"`
	Password string `gorm:"size:255;not null" json:"-"`
	Role     string `gorm:"type:enum('student','teacher','admin');default:'student'" json:"role"`

	Nickname string  `gorm:"size:50" json:"nickname"`
	Realname string  `gorm:"size:50;default:'none'" json:"realname"`
	Avatar   string  `gorm:"size:255;default:'none'" json:"avatar"`
	Bio      *string `gorm:"type:text" json:"bio,omitempty"`

	Experience    uint    `gorm:"default:0" json:"experience"`
	Tokens        uint    `gorm:"default:0" json:"tokens"`
	VolunteerTime float64 `gorm:"default:0" json:"volunteer_time"`
	CreditScore   uint    `gorm:"default:100" json:"credit_score"`
	Level         string  `gorm:"size:10;default:'F'" json:"level"`

	TitleID *uint      `json:"-"`
	Title   *UserTitle `json:"title,omitempty"`

	// Six digit public handle used for invitations instead of the DB id.
	Identifier string `gorm:"size:6;uniqueIndex;not null" json:"identifier"`

	IsActive bool `gorm:"default:true" json:"is_active"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

func (User) TableName() string {
	return "users"
}

// DisplayName prefers the nickname and falls back to the username.
func (u *User) DisplayName() string {
	if u.Nickname != "" {
		return u.Nickname
	}
	return u.Username
}
