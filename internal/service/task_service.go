package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"task-tracker/internal/model"
	"task-tracker/internal/repository"
	"task-tracker/internal/workload"
)

var (
	ErrForbidden    = errors.New("not allowed")
	ErrInvalidInput = errors.New("invalid input")
)

const maxHoursPerLog = 24

// TaskInput represents data required to create a task.
type TaskInput struct {
	Title        string
	Description  string
	Priority     model.Priority
	Size         int
	StartDate    time.Time
	DueDate      time.Time
	PlannedHours float64
	// Assignee is a username; empty means the actor.
	Assignee  string
	Partners  []string
	Informees []string
}

// TaskService wraps task-related business logic.
type TaskService struct {
	taskRepo    *repository.TaskRepository
	userRepo    *repository.UserRepository
	roadmapRepo *repository.RoadmapRepository
	workLogRepo *repository.WorkLogRepository
	notifier    ChangeNotifier
}

func NewTaskService(
	taskRepo *repository.TaskRepository,
	userRepo *repository.UserRepository,
	roadmapRepo *repository.RoadmapRepository,
	workLogRepo *repository.WorkLogRepository,
	notifier ChangeNotifier,
) *TaskService {
	return &TaskService{
		taskRepo:    taskRepo,
		userRepo:    userRepo,
		roadmapRepo: roadmapRepo,
		workLogRepo: workLogRepo,
		notifier:    notifier,
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func (in TaskInput) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return invalid("title is required")
	}
	if _, ok := model.ParsePriority(string(in.Priority)); !ok {
		return invalid("priority must be high, medium or low")
	}
	if in.Size < model.MinSize || in.Size > model.MaxSize {
		return invalid("size must be between %d and %d", model.MinSize, model.MaxSize)
	}
	if in.PlannedHours < 0 {
		return invalid("planned hours must not be negative")
	}
	if in.StartDate.IsZero() || in.DueDate.IsZero() {
		return invalid("start and due dates are required")
	}
	if workload.Date(in.DueDate).Before(workload.Date(in.StartDate)) {
		return invalid("due date is before start date")
	}
	return nil
}

// CreateTask stores a new task. Employees can only assign work to themselves.
func (s *TaskService) CreateTask(ctx context.Context, actor *model.User, input TaskInput) (*model.Task, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	priority, _ := model.ParsePriority(string(input.Priority))

	assigneeID := actor.ID
	if name := strings.TrimPrefix(strings.TrimSpace(input.Assignee), "@"); name != "" && !strings.EqualFold(name, actor.Username) {
		if !actor.IsManager() {
			return nil, fmt.Errorf("%w: only managers can assign tasks to others", ErrForbidden)
		}
		users, err := s.resolveUsers(ctx, []string{name})
		if err != nil {
			return nil, err
		}
		assigneeID = users[0].ID
	}

	partners, err := s.resolveUsers(ctx, input.Partners)
	if err != nil {
		return nil, err
	}
	informees, err := s.resolveUsers(ctx, input.Informees)
	if err != nil {
		return nil, err
	}

	task := model.Task{
		Title:        strings.TrimSpace(input.Title),
		Description:  strings.TrimSpace(input.Description),
		Priority:     priority,
		Status:       model.StatusNotStarted,
		Size:         input.Size,
		StartDate:    workload.Date(input.StartDate),
		DueDate:      workload.Date(input.DueDate),
		CreatedByID:  actor.ID,
		AssigneeID:   assigneeID,
		Partners:     partners,
		Informees:    informees,
		PlannedHours: input.PlannedHours,
	}

	if err := s.taskRepo.Create(ctx, &task); err != nil {
		return nil, err
	}

	return s.reloadAndNotify(ctx, actor, task.ID, "task created")
}

func (s *TaskService) resolveUsers(ctx context.Context, names []string) ([]model.User, error) {
	users, missing, err := s.userRepo.FindByUsernames(ctx, names)
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		return nil, invalid("unknown users: %s", strings.Join(missing, ", "))
	}
	return users, nil
}

// GetTask returns a fully loaded task if actor may see it.
func (s *TaskService) GetTask(ctx context.Context, actor *model.User, taskID uint) (*model.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !canView(actor, task) {
		return nil, ErrForbidden
	}
	return task, nil
}

// ListForUser is the employee dashboard: tasks assigned to actor.
func (s *TaskService) ListForUser(ctx context.Context, actor *model.User) ([]model.Task, error) {
	return s.taskRepo.ListAssigned(ctx, actor.ID)
}

// ListAll is the manager dashboard.
func (s *TaskService) ListAll(ctx context.Context, actor *model.User) ([]model.Task, error) {
	if !actor.IsManager() {
		return nil, ErrForbidden
	}
	return s.taskRepo.ListAll(ctx)
}

func (s *TaskService) UpdateStatus(ctx context.Context, actor *model.User, taskID uint, status model.Status) (*model.Task, error) {
	task, err := s.editable(ctx, actor, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status == status {
		return task, nil
	}
	previous := task.Status
	if err := s.taskRepo.UpdateStatus(ctx, task, status); err != nil {
		return nil, err
	}
	s.notify(actor, *task, fmt.Sprintf("status %s → %s", previous, status))
	return task, nil
}

// DeleteTask removes a task. Only its creator, its assignee or a manager may
// do this.
func (s *TaskService) DeleteTask(ctx context.Context, actor *model.User, taskID uint) (*model.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !actor.IsManager() && task.CreatedByID != actor.ID && task.AssigneeID != actor.ID {
		return nil, ErrForbidden
	}
	if err := s.taskRepo.Delete(ctx, taskID); err != nil {
		return nil, err
	}
	s.notify(actor, *task, "task deleted")
	return task, nil
}

// LogWork records effort and moves a not-started task to in progress.
func (s *TaskService) LogWork(ctx context.Context, actor *model.User, taskID uint, hours float64, date time.Time, description string) (*model.Task, error) {
	if hours <= 0 || hours > maxHoursPerLog {
		return nil, invalid("hours must be between 0 and %d", maxHoursPerLog)
	}
	task, err := s.editable(ctx, actor, taskID)
	if err != nil {
		return nil, err
	}

	entry := model.WorkLog{
		TaskID:      task.ID,
		UserID:      actor.ID,
		Hours:       hours,
		Date:        workload.Date(date),
		Description: strings.TrimSpace(description),
	}
	spent, err := s.workLogRepo.Create(ctx, &entry)
	if err != nil {
		return nil, err
	}
	task.SpentHours = spent

	if task.Status == model.StatusNotStarted {
		if err := s.taskRepo.UpdateStatus(ctx, task, model.StatusInProgress); err != nil {
			return nil, err
		}
	}
	s.notify(actor, *task, fmt.Sprintf("%.2fh logged, %.2f/%.2fh spent", hours, spent, task.PlannedHours))
	return task, nil
}

func (s *TaskService) AddRoadmapStep(ctx context.Context, actor *model.User, taskID uint, description string, estimated *float64) (*model.RoadmapItem, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, invalid("step description is required")
	}
	if estimated != nil && *estimated < 0 {
		return nil, invalid("estimated hours must not be negative")
	}
	task, err := s.editable(ctx, actor, taskID)
	if err != nil {
		return nil, err
	}
	item := model.RoadmapItem{TaskID: task.ID, Description: description, EstimatedHours: estimated}
	if err := s.roadmapRepo.Append(ctx, &item); err != nil {
		return nil, err
	}
	s.notify(actor, *task, fmt.Sprintf("roadmap step %d added: %s", item.Position, description))
	return &item, nil
}

// StepProgress is a completed roadmap step and where the roadmap stands.
type StepProgress struct {
	Item  model.RoadmapItem
	Done  int
	Total int
}

func (s *TaskService) CompleteRoadmapStep(ctx context.Context, actor *model.User, taskID uint, position int) (*StepProgress, error) {
	task, err := s.editable(ctx, actor, taskID)
	if err != nil {
		return nil, err
	}
	item, err := s.roadmapRepo.Complete(ctx, task.ID, position)
	if err != nil {
		return nil, err
	}
	items, err := s.roadmapRepo.ListByTask(ctx, task.ID)
	if err != nil {
		return nil, err
	}
	progress := &StepProgress{Item: *item, Total: len(items)}
	for _, it := range items {
		if it.IsCompleted {
			progress.Done++
		}
	}
	s.notify(actor, *task, fmt.Sprintf("roadmap step %d done (%d/%d): %s", item.Position, progress.Done, progress.Total, item.Description))
	return progress, nil
}

func (s *TaskService) editable(ctx context.Context, actor *model.User, taskID uint) (*model.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !canEdit(actor, task) {
		return nil, ErrForbidden
	}
	return task, nil
}

func (s *TaskService) reloadAndNotify(ctx context.Context, actor *model.User, taskID uint, change string) (*model.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	s.notify(actor, *task, change)
	return task, nil
}

func (s *TaskService) notify(actor *model.User, task model.Task, change string) {
	if s.notifier == nil {
		return
	}
	s.notifier.TaskChanged(*actor, task, change)
}

func isMember(user *model.User, task *model.Task) bool {
	if task.AssigneeID == user.ID || task.CreatedByID == user.ID {
		return true
	}
	for _, p := range task.Partners {
		if p.ID == user.ID {
			return true
		}
	}
	return false
}

func canEdit(user *model.User, task *model.Task) bool {
	return user.IsManager() || isMember(user, task)
}

func canView(user *model.User, task *model.Task) bool {
	if canEdit(user, task) {
		return true
	}
	for _, u := range task.Informees {
		if u.ID == user.ID {
			return true
		}
	}
	return false
}
