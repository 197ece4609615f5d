package model

// RoadmapItem is one ordered step of a task's plan.
type RoadmapItem struct {
	ID             uint `gorm:"primaryKey"`
	TaskID         uint `gorm:"index"`
	Position       int
	Description    string
	IsCompleted    bool     `gorm:"default:false"`
	EstimatedHours *float64 `gorm:"type:decimal(5,2)"`
}
