package service

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"task-tracker/internal/model"
	"task-tracker/internal/repository"
	"task-tracker/internal/workload"
)

const outlookDays = 7

// ReminderService builds human-readable summaries for periodic notifications.
type ReminderService struct {
	taskRepo    *repository.TaskRepository
	workloadSvc *WorkloadService
}

func NewReminderService(taskRepo *repository.TaskRepository, workloadSvc *WorkloadService) *ReminderService {
	return &ReminderService{taskRepo: taskRepo, workloadSvc: workloadSvc}
}

// DailySummary lists the user's open tasks and the planned hours for the
// coming week.
func (s *ReminderService) DailySummary(ctx context.Context, user model.User, now time.Time) (string, error) {
	assigned, err := s.taskRepo.AssignedTasks(ctx, user.ID, model.OpenStatuses)
	if err != nil {
		return "", err
	}
	partnered, err := s.taskRepo.PartnerTasks(ctx, user.ID, model.OpenStatuses)
	if err != nil {
		return "", err
	}
	tasks := workload.Select(assigned, partnered)
	sort.SliceStable(tasks, func(i, j int) bool {
		if !tasks[i].DueDate.Equal(tasks[j].DueDate) {
			return tasks[i].DueDate.Before(tasks[j].DueDate)
		}
		return tasks[i].ID < tasks[j].ID
	})

	today := workload.Date(now)
	series, strategy, err := s.workloadSvc.ComputeOn(ctx, user, "", now, today, today.AddDate(0, 0, outlookDays-1))
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	builder.WriteString("📋 <b>Daily report</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n\n", now.Format("02.01.2006")))

	builder.WriteString("🔥 <b>Open tasks</b>\n")
	if len(tasks) == 0 {
		builder.WriteString("— nothing open\n")
	} else {
		for _, task := range tasks {
			builder.WriteString(formatTaskLine(task, user.ID, today))
		}
	}

	builder.WriteString(fmt.Sprintf("\n📊 <b>Workload</b> <i>(%s)</i>\n", strategy))
	if len(series.Data) > 0 {
		builder.WriteString(fmt.Sprintf("Today: <b>%.2fh</b>\n", series.Data[0]))
	}
	builder.WriteString(fmt.Sprintf("Next %d days: %.2fh\n", outlookDays, series.Total()))
	for i, label := range series.Labels {
		builder.WriteString(fmt.Sprintf("<code>%s %6.2f</code>\n", label, series.Data[i]))
	}

	return strings.TrimSpace(builder.String()), nil
}

func formatTaskLine(task model.Task, userID uint, today time.Time) string {
	var sb strings.Builder

	due := workload.Date(task.DueDate)
	icon := "🟢"
	switch {
	case due.Before(today):
		icon = "⚠️"
	case due.Sub(today) <= 48*time.Hour:
		icon = "⏳"
	}

	sb.WriteString(fmt.Sprintf("%s <b>#%d</b> %s", icon, task.ID, html.EscapeString(strings.TrimSpace(task.Title))))
	if task.AssigneeID != userID {
		sb.WriteString(" <i>(partner)</i>")
	}

	remaining := task.RemainingHours()
	if remaining < 0 {
		remaining = 0
	}
	if due.Before(today) {
		sb.WriteString(fmt.Sprintf("\n   ⏰ due %s — <b>overdue</b>", due.Format("2006-01-02")))
	} else {
		daysLeft := int(due.Sub(today).Hours()/24) + 1
		sb.WriteString(fmt.Sprintf("\n   ⏰ due %s · %d day(s) left", due.Format("2006-01-02"), daysLeft))
	}
	sb.WriteString(fmt.Sprintf(" · %.2fh remaining", remaining))

	sb.WriteByte('\n')
	return sb.String()
}
