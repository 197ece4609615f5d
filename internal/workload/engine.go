package workload

import (
	"context"
	"fmt"
	"math"
	"time"

	"task-tracker/internal/model"
)

const (
	// DefaultWindowDays is the span shown when the caller gives no end date.
	DefaultWindowDays = 15
	// MaxWindowDays bounds a projected series.
	MaxWindowDays = 366

	labelLayout = "02 Jan"
)

// TaskSource fetches the two candidate sets a user's workload is built from.
type TaskSource interface {
	AssignedTasks(ctx context.Context, userID uint, statuses []model.Status) ([]model.Task, error)
	PartnerTasks(ctx context.Context, userID uint, statuses []model.Status) ([]model.Task, error)
}

// Daily maps a calendar day (UTC midnight) to planned hours.
type Daily map[time.Time]float64

// Window is an inclusive range of days. Zero fields take defaults.
type Window struct {
	Start time.Time
	End   time.Time
}

// Series is the chart-ready projection of a Daily map.
type Series struct {
	Labels []string  `json:"labels"`
	Data   []float64 `json:"data"`
}

// Total sums the projected values.
func (s Series) Total() float64 {
	var total float64
	for _, v := range s.Data {
		total += v
	}
	return total
}

// Request describes one workload computation.
type Request struct {
	UserID   uint
	Strategy Strategy
	Today    time.Time
	Window   Window
}

// Date truncates t to its calendar day at UTC midnight, keeping the
// year/month/day as seen in t's own location.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

const secondsPerDay = 24 * 60 * 60

// daysBetween counts calendar days from from to to. It works on Unix seconds
// because time.Duration saturates after about 292 years.
func daysBetween(from, to time.Time) int {
	return int((Date(to).Unix() - Date(from).Unix()) / secondsPerDay)
}

// Compute fetches the user's open tasks and projects their distributed
// workload onto the requested window.
func Compute(ctx context.Context, src TaskSource, req Request) (Series, error) {
	assigned, err := src.AssignedTasks(ctx, req.UserID, model.OpenStatuses)
	if err != nil {
		return Series{}, fmt.Errorf("fetch assigned tasks: %w", err)
	}
	partnered, err := src.PartnerTasks(ctx, req.UserID, model.OpenStatuses)
	if err != nil {
		return Series{}, fmt.Errorf("fetch partner tasks: %w", err)
	}
	tasks := Select(assigned, partnered)
	daily := Distribute(tasks, req.Strategy, req.Today)
	return Project(daily, req.Today, req.Window), nil
}

// Select unions both candidate sets by task ID and drops tasks that are no
// longer open.
func Select(assigned, partnered []model.Task) []model.Task {
	seen := make(map[uint]struct{}, len(assigned)+len(partnered))
	out := make([]model.Task, 0, len(assigned)+len(partnered))
	for _, set := range [][]model.Task{assigned, partnered} {
		for _, task := range set {
			if !task.Status.IsOpen() {
				continue
			}
			if _, dup := seen[task.ID]; dup {
				continue
			}
			seen[task.ID] = struct{}{}
			out = append(out, task)
		}
	}
	return out
}

// Distribute allocates every task's remaining hours from today onwards and
// sums them per day. Tasks whose window already closed land on today.
func Distribute(tasks []model.Task, strategy Strategy, today time.Time) Daily {
	today = Date(today)
	daily := make(Daily)
	for _, task := range tasks {
		remaining := task.RemainingHours()
		if remaining <= 0 {
			continue
		}

		start := Date(task.StartDate)
		if start.Before(today) {
			start = today
		}
		days := daysBetween(start, task.DueDate) + 1
		if days <= 0 {
			daily[today] += remaining
			continue
		}

		for i, hours := range strategy.Allocate(remaining, days, task) {
			daily[start.AddDate(0, 0, i)] += hours
		}
	}
	return daily
}

// Project slices daily onto the window, filling gaps with zero and rounding
// to two decimals.
func Project(daily Daily, today time.Time, w Window) Series {
	start := Date(today)
	if !w.Start.IsZero() {
		start = Date(w.Start)
	}
	end := start.AddDate(0, 0, DefaultWindowDays-1)
	if !w.End.IsZero() {
		end = Date(w.End)
	}

	n := daysBetween(start, end) + 1
	if n > MaxWindowDays {
		n = MaxWindowDays
	}
	if n < 1 {
		n = 1
	}

	series := Series{
		Labels: make([]string, 0, n),
		Data:   make([]float64, 0, n),
	}
	for i := 0; i < n; i++ {
		day := start.AddDate(0, 0, i)
		series.Labels = append(series.Labels, day.Format(labelLayout))
		series.Data = append(series.Data, round2(daily[day]))
	}
	return series
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
