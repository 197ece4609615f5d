package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"task-tracker/internal/model"
)

// WorkLogRepository stores effort entries and keeps Task.SpentHours in sync.
type WorkLogRepository struct {
	db *gorm.DB
}

func NewWorkLogRepository(db *gorm.DB) *WorkLogRepository {
	return &WorkLogRepository{db: db}
}

// Create inserts the log and recomputes the task's spent hours from all of
// its logs. The new total is returned.
func (r *WorkLogRepository) Create(ctx context.Context, entry *model.WorkLog) (float64, error) {
	var spent float64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("User").Create(entry).Error; err != nil {
			return fmt.Errorf("create work log: %w", err)
		}
		if err := tx.Model(&model.WorkLog{}).Where("task_id = ?", entry.TaskID).
			Select("COALESCE(SUM(hours), 0)").Scan(&spent).Error; err != nil {
			return fmt.Errorf("sum work logs: %w", err)
		}
		if err := tx.Model(&model.Task{}).Where("id = ?", entry.TaskID).
			Update("spent_hours", spent).Error; err != nil {
			return fmt.Errorf("update spent hours: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return spent, nil
}
