package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"task-tracker/internal/model"
	"task-tracker/internal/repository"
)

type recordedChange struct {
	actor  uint
	task   uint
	change string
}

type fakeNotifier struct {
	mu      sync.Mutex
	changes []recordedChange
}

func (f *fakeNotifier) TaskChanged(actor model.User, task model.Task, change string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changes = append(f.changes, recordedChange{actor: actor.ID, task: task.ID, change: change})
}

func (f *fakeNotifier) last() recordedChange {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.changes) == 0 {
		return recordedChange{}
	}
	return f.changes[len(f.changes)-1]
}

type testEnv struct {
	users    *repository.UserRepository
	tasks    *repository.TaskRepository
	svc      *TaskService
	notifier *fakeNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := repository.NewDB(":memory:", zerolog.Nop())
	if err != nil {
		t.Fatalf("NewDB error: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	env := &testEnv{
		users:    repository.NewUserRepository(db),
		tasks:    repository.NewTaskRepository(db),
		notifier: &fakeNotifier{},
	}
	env.svc = NewTaskService(env.tasks, env.users, repository.NewRoadmapRepository(db), repository.NewWorkLogRepository(db), env.notifier)
	return env
}

func (e *testEnv) user(t *testing.T, telegramID int64, username string, role model.Role) *model.User {
	t.Helper()
	u, err := e.users.UpsertFromTelegram(context.Background(), repository.TelegramProfile{
		TelegramID: telegramID,
		Username:   username,
		Role:       role,
	})
	if err != nil {
		t.Fatalf("UpsertFromTelegram error: %v", err)
	}
	return u
}

var baseDay = time.Date(2026, time.April, 6, 0, 0, 0, 0, time.UTC)

func input(title string) TaskInput {
	return TaskInput{
		Title:        title,
		Priority:     model.PriorityHigh,
		Size:         3,
		StartDate:    baseDay,
		DueDate:      baseDay.AddDate(0, 0, 4),
		PlannedHours: 10,
	}
}

func TestCreateTaskValidation(t *testing.T) {
	env := newTestEnv(t)
	me := env.user(t, 1, "me", model.RoleEmployee)

	tests := []struct {
		name   string
		mutate func(*TaskInput)
	}{
		{name: "empty title", mutate: func(in *TaskInput) { in.Title = "  " }},
		{name: "bad priority", mutate: func(in *TaskInput) { in.Priority = "urgent" }},
		{name: "size too big", mutate: func(in *TaskInput) { in.Size = 6 }},
		{name: "negative hours", mutate: func(in *TaskInput) { in.PlannedHours = -1 }},
		{name: "due before start", mutate: func(in *TaskInput) { in.DueDate = baseDay.AddDate(0, 0, -1) }},
		{name: "unknown partner", mutate: func(in *TaskInput) { in.Partners = []string{"ghost"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := input("task")
			tt.mutate(&in)
			if _, err := env.svc.CreateTask(context.Background(), me, in); !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("err = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestCreateTaskAssignment(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	employee := env.user(t, 1, "emp", model.RoleEmployee)
	manager := env.user(t, 2, "boss", model.RoleManager)
	partner := env.user(t, 3, "pal", model.RoleEmployee)

	in := input("not yours to give")
	in.Assignee = "pal"
	if _, err := env.svc.CreateTask(ctx, employee, in); !errors.Is(err, ErrForbidden) {
		t.Fatalf("employee assigning others err = %v, want ErrForbidden", err)
	}

	in = input("delegated")
	in.Assignee = "@emp"
	in.Partners = []string{"pal"}
	in.Informees = []string{"boss"}
	task, err := env.svc.CreateTask(ctx, manager, in)
	if err != nil {
		t.Fatalf("CreateTask error: %v", err)
	}
	if task.AssigneeID != employee.ID || task.CreatedByID != manager.ID {
		t.Fatalf("assignee/creator = %d/%d, want %d/%d", task.AssigneeID, task.CreatedByID, employee.ID, manager.ID)
	}
	if len(task.Partners) != 1 || task.Partners[0].ID != partner.ID {
		t.Fatalf("partners = %+v, want pal", task.Partners)
	}
	if task.Status != model.StatusNotStarted {
		t.Fatalf("Status = %s, want not_started", task.Status)
	}
	if got := env.notifier.last(); got.task != task.ID || got.change != "task created" {
		t.Fatalf("last change = %+v, want task created", got)
	}
}

func TestLogWorkStartsTask(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	me := env.user(t, 1, "me", model.RoleEmployee)
	stranger := env.user(t, 2, "stranger", model.RoleEmployee)

	task, err := env.svc.CreateTask(ctx, me, input("log me"))
	if err != nil {
		t.Fatalf("CreateTask error: %v", err)
	}

	if _, err := env.svc.LogWork(ctx, me, task.ID, 0, baseDay, ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("zero hours err = %v, want ErrInvalidInput", err)
	}
	if _, err := env.svc.LogWork(ctx, stranger, task.ID, 1, baseDay, ""); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger err = %v, want ErrForbidden", err)
	}

	updated, err := env.svc.LogWork(ctx, me, task.ID, 2.5, baseDay, "analysis")
	if err != nil {
		t.Fatalf("LogWork error: %v", err)
	}
	if updated.SpentHours != 2.5 || updated.Status != model.StatusInProgress {
		t.Fatalf("task = %.2f/%s, want 2.50/in_progress", updated.SpentHours, updated.Status)
	}
	if !strings.Contains(env.notifier.last().change, "2.50h logged") {
		t.Fatalf("last change = %q", env.notifier.last().change)
	}
}

func TestStatusDeleteAndVisibility(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	creator := env.user(t, 1, "creator", model.RoleEmployee)
	partner := env.user(t, 2, "partner", model.RoleEmployee)
	stranger := env.user(t, 3, "stranger", model.RoleEmployee)

	in := input("shared")
	in.Partners = []string{"partner"}
	task, err := env.svc.CreateTask(ctx, creator, in)
	if err != nil {
		t.Fatalf("CreateTask error: %v", err)
	}

	if _, err := env.svc.GetTask(ctx, stranger, task.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger GetTask err = %v, want ErrForbidden", err)
	}
	updated, err := env.svc.UpdateStatus(ctx, partner, task.ID, model.StatusPaused)
	if err != nil {
		t.Fatalf("UpdateStatus error: %v", err)
	}
	if updated.Status != model.StatusPaused {
		t.Fatalf("Status = %s, want paused", updated.Status)
	}
	if _, err := env.svc.DeleteTask(ctx, partner, task.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("partner DeleteTask err = %v, want ErrForbidden", err)
	}
	if _, err := env.svc.DeleteTask(ctx, creator, task.ID); err != nil {
		t.Fatalf("DeleteTask error: %v", err)
	}
	if _, err := env.svc.GetTask(ctx, creator, task.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("GetTask after delete err = %v, want ErrRecordNotFound", err)
	}
	if _, err := env.svc.ListAll(ctx, creator); !errors.Is(err, ErrForbidden) {
		t.Fatalf("employee ListAll err = %v, want ErrForbidden", err)
	}
}

func TestRoadmapSteps(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	me := env.user(t, 1, "me", model.RoleEmployee)
	task, err := env.svc.CreateTask(ctx, me, input("plan"))
	if err != nil {
		t.Fatalf("CreateTask error: %v", err)
	}

	est := 2.0
	step, err := env.svc.AddRoadmapStep(ctx, me, task.ID, "design", &est)
	if err != nil {
		t.Fatalf("AddRoadmapStep error: %v", err)
	}
	if step.Position != 1 {
		t.Fatalf("Position = %d, want 1", step.Position)
	}
	if _, err := env.svc.AddRoadmapStep(ctx, me, task.ID, " ", nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("empty step err = %v, want ErrInvalidInput", err)
	}
	if _, err := env.svc.AddRoadmapStep(ctx, me, task.ID, "build", nil); err != nil {
		t.Fatalf("AddRoadmapStep error: %v", err)
	}
	done, err := env.svc.CompleteRoadmapStep(ctx, me, task.ID, 1)
	if err != nil {
		t.Fatalf("CompleteRoadmapStep error: %v", err)
	}
	if !done.Item.IsCompleted || done.Item.Description != "design" {
		t.Fatalf("step = %+v, want design completed", done.Item)
	}
	if done.Done != 1 || done.Total != 2 {
		t.Fatalf("progress = %d/%d, want 1/2", done.Done, done.Total)
	}
	again, err := env.svc.CompleteRoadmapStep(ctx, me, task.ID, 2)
	if err != nil {
		t.Fatalf("CompleteRoadmapStep error: %v", err)
	}
	if again.Done != 2 || again.Total != 2 {
		t.Fatalf("progress = %d/%d, want 2/2", again.Done, again.Total)
	}
}
