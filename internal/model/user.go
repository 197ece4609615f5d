package model

import "time"

// Role decides what a user may see and whom they may assign work to.
type Role string

const (
	RoleEmployee Role = "employee"
	RoleManager  Role = "manager"
)

// Team values mirror the three delivery teams.
const (
	TeamSoftware = "software"
	TeamQA       = "qa"
	TeamDevOps   = "devops"
)

// User stores Telegram user metadata plus company role.
type User struct {
	ID         uint  `gorm:"primaryKey"`
	TelegramID int64 `gorm:"uniqueIndex"`
	FirstName  string
	LastName   string
	Username   string `gorm:"index"`
	Role       Role   `gorm:"default:employee"`
	Team       string
	Title      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (u User) IsManager() bool {
	return u.Role == RoleManager
}

// DisplayName prefers the full name and falls back to @username.
func (u User) DisplayName() string {
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name == "" && u.Username != "" {
		return "@" + u.Username
	}
	if name == "" {
		return "user"
	}
	return name
}
