package service

import (
	"context"
	"sync"
	"time"

	"task-tracker/internal/model"
	"task-tracker/internal/workload"
)

// WorkloadService computes per-day workload charts with configurable defaults.
type WorkloadService struct {
	src workload.TaskSource
	now func() time.Time

	mu         sync.RWMutex
	strategy   workload.Strategy
	windowDays int
}

func NewWorkloadService(src workload.TaskSource, defaultStrategy string, windowDays int) *WorkloadService {
	s := &WorkloadService{src: src, now: time.Now}
	s.SetDefaults(defaultStrategy, windowDays)
	return s
}

// SetDefaults replaces the strategy and window length used when a request
// leaves them out.
func (s *WorkloadService) SetDefaults(strategy string, windowDays int) {
	if windowDays <= 0 {
		windowDays = workload.DefaultWindowDays
	}
	s.mu.Lock()
	s.strategy = workload.ParseStrategy(strategy)
	s.windowDays = windowDays
	s.mu.Unlock()
}

func (s *WorkloadService) Defaults() (workload.Strategy, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.strategy, s.windowDays
}

// Compute returns the chart series for user. An empty strategy uses the
// default; zero dates use today and the default window length.
func (s *WorkloadService) Compute(ctx context.Context, user model.User, strategy string, from, to time.Time) (workload.Series, workload.Strategy, error) {
	return s.ComputeOn(ctx, user, strategy, s.now(), from, to)
}

// ComputeOn is Compute with an explicit current day.
func (s *WorkloadService) ComputeOn(ctx context.Context, user model.User, strategy string, now, from, to time.Time) (workload.Series, workload.Strategy, error) {
	def, windowDays := s.Defaults()
	chosen := def
	if strategy != "" {
		chosen = workload.ParseStrategy(strategy)
	}

	today := workload.Date(now)
	if from.IsZero() {
		from = today
	}
	if to.IsZero() {
		to = workload.Date(from).AddDate(0, 0, windowDays-1)
	}

	series, err := workload.Compute(ctx, s.src, workload.Request{
		UserID:   user.ID,
		Strategy: chosen,
		Today:    today,
		Window:   workload.Window{Start: from, End: to},
	})
	return series, chosen, err
}
