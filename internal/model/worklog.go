package model

import "time"

// WorkLog records effort a user spent on a task on a given day.
type WorkLog struct {
	ID          uint `gorm:"primaryKey"`
	TaskID      uint `gorm:"index"`
	UserID      uint `gorm:"index"`
	User        User
	Hours       float64 `gorm:"type:decimal(5,2)"`
	Date        time.Time
	Description string
	CreatedAt   time.Time
}
