package model

import (
	"strings"
	"time"
)

// Priority of a task.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// ParsePriority accepts the canonical names and their first letter.
func ParsePriority(raw string) (Priority, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "high", "h":
		return PriorityHigh, true
	case "medium", "m":
		return PriorityMedium, true
	case "low", "l":
		return PriorityLow, true
	}
	return "", false
}

// Status is the lifecycle state of a task.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusPaused     Status = "paused"
	StatusDone       Status = "done"
	StatusCancelled  Status = "cancelled"
)

// OpenStatuses still carry remaining work.
var OpenStatuses = []Status{StatusNotStarted, StatusInProgress, StatusPaused}

func (s Status) IsOpen() bool {
	for _, open := range OpenStatuses {
		if s == open {
			return true
		}
	}
	return false
}

func ParseStatus(raw string) (Status, bool) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	switch s {
	case StatusNotStarted, StatusInProgress, StatusPaused, StatusDone, StatusCancelled:
		return s, true
	}
	return "", false
}

const (
	MinSize = 1
	MaxSize = 5
)

// Task is a unit of planned work assigned to one user with optional partners.
type Task struct {
	ID           uint `gorm:"primaryKey"`
	Title        string
	Description  string
	Priority     Priority `gorm:"index"`
	Status       Status   `gorm:"index;default:not_started"`
	Size         int
	StartDate    time.Time
	DueDate      time.Time `gorm:"index"`
	CreatedByID  uint      `gorm:"index"`
	CreatedBy    User      `gorm:"foreignKey:CreatedByID"`
	AssigneeID   uint      `gorm:"index"`
	Assignee     User      `gorm:"foreignKey:AssigneeID"`
	Partners     []User    `gorm:"many2many:task_partners;"`
	Informees    []User    `gorm:"many2many:task_informees;"`
	PlannedHours float64   `gorm:"type:decimal(6,2)"`
	SpentHours   float64   `gorm:"type:decimal(6,2);default:0"`
	Roadmap      []RoadmapItem
	WorkLogs     []WorkLog
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RemainingHours is planned minus spent effort; may be negative.
func (t Task) RemainingHours() float64 {
	return t.PlannedHours - t.SpentHours
}
