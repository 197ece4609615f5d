package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"task-tracker/internal/model"
)

// RoadmapRepository manages the ordered steps of a task.
type RoadmapRepository struct {
	db *gorm.DB
}

func NewRoadmapRepository(db *gorm.DB) *RoadmapRepository {
	return &RoadmapRepository{db: db}
}

// Append adds a step after the last existing one.
func (r *RoadmapRepository) Append(ctx context.Context, item *model.RoadmapItem) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var last int
		if err := tx.Model(&model.RoadmapItem{}).Where("task_id = ?", item.TaskID).
			Select("COALESCE(MAX(position), 0)").Scan(&last).Error; err != nil {
			return fmt.Errorf("find last roadmap step: %w", err)
		}
		item.Position = last + 1
		if err := tx.Create(item).Error; err != nil {
			return fmt.Errorf("create roadmap step: %w", err)
		}
		return nil
	})
}

func (r *RoadmapRepository) ListByTask(ctx context.Context, taskID uint) ([]model.RoadmapItem, error) {
	var items []model.RoadmapItem
	if err := r.db.WithContext(ctx).Where("task_id = ?", taskID).Order("position ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// Complete marks the step at position done.
func (r *RoadmapRepository) Complete(ctx context.Context, taskID uint, position int) (*model.RoadmapItem, error) {
	var item model.RoadmapItem
	db := r.db.WithContext(ctx)
	if err := db.Where("task_id = ? AND position = ?", taskID, position).First(&item).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&item).Update("is_completed", true).Error; err != nil {
		return nil, fmt.Errorf("complete roadmap step: %w", err)
	}
	item.IsCompleted = true
	return &item, nil
}
