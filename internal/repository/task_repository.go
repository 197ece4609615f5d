package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"task-tracker/internal/model"
)

// TaskRepository handles CRUD for tasks.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Create stores the task together with its partner and informee links.
func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	if err := r.db.WithContext(ctx).Omit("Assignee", "CreatedBy").Create(task).Error; err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// FindByID loads a task with people, roadmap and work logs.
func (r *TaskRepository) FindByID(ctx context.Context, taskID uint) (*model.Task, error) {
	var task model.Task
	err := r.db.WithContext(ctx).
		Preload("Assignee").
		Preload("CreatedBy").
		Preload("Partners").
		Preload("Informees").
		Preload("Roadmap", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("WorkLogs", func(db *gorm.DB) *gorm.DB { return db.Order("date DESC, created_at DESC") }).
		Preload("WorkLogs.User").
		First(&task, taskID).Error
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// AssignedTasks returns tasks assigned to userID in one of statuses.
func (r *TaskRepository) AssignedTasks(ctx context.Context, userID uint, statuses []model.Status) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).
		Where("assignee_id = ? AND status IN ?", userID, statusStrings(statuses)).
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list assigned tasks: %w", err)
	}
	return tasks, nil
}

// PartnerTasks returns tasks where userID is a partner, in one of statuses.
func (r *TaskRepository) PartnerTasks(ctx context.Context, userID uint, statuses []model.Status) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).
		Joins("JOIN task_partners ON task_partners.task_id = tasks.id").
		Where("task_partners.user_id = ? AND tasks.status IN ?", userID, statusStrings(statuses)).
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list partner tasks: %w", err)
	}
	return tasks, nil
}

// ListAssigned returns every task assigned to userID, nearest due date first.
func (r *TaskRepository) ListAssigned(ctx context.Context, userID uint) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).Where("assignee_id = ?", userID).
		Order("due_date ASC, id ASC").
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListAll returns every task with its assignee, nearest due date first.
func (r *TaskRepository) ListAll(ctx context.Context) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).Preload("Assignee").
		Order("due_date ASC, id ASC").
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *TaskRepository) UpdateStatus(ctx context.Context, task *model.Task, status model.Status) error {
	if err := r.db.WithContext(ctx).Model(&model.Task{}).Where("id = ?", task.ID).
		Update("status", status).Error; err != nil {
		return fmt.Errorf("update task status: %w", err)
	}
	task.Status = status
	return nil
}

// Delete removes a task with its roadmap, logs and membership links.
func (r *TaskRepository) Delete(ctx context.Context, taskID uint) error {
	task := model.Task{ID: taskID}
	if err := r.db.WithContext(ctx).Select(clause.Associations).Delete(&task).Error; err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

func statusStrings(statuses []model.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
