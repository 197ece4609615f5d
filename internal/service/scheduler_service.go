package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const reportJobTimeout = 30 * time.Second

// ReportSchedule is either a daily HH:MM time or a fixed interval.
type ReportSchedule struct {
	DailyAt  string
	Interval time.Duration
}

// Spec renders the schedule for cron: a six-field spec with seconds for a
// daily time, an "@every" descriptor for an interval.
func (r ReportSchedule) Spec() (string, error) {
	if r.DailyAt != "" {
		return buildDailySpec(r.DailyAt)
	}
	return buildIntervalSpec(r.Interval)
}

// SchedulerService wraps cron-based jobs.
type SchedulerService struct {
	cron *cron.Cron
	log  zerolog.Logger

	mu       sync.Mutex
	reportID cron.EntryID
	spec     string
}

func NewSchedulerService(loc *time.Location, log zerolog.Logger) *SchedulerService {
	return &SchedulerService{
		cron: cron.New(cron.WithLocation(loc), cron.WithSeconds()),
		log:  log,
	}
}

func (s *SchedulerService) Start() {
	s.cron.Start()
}

func (s *SchedulerService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// ScheduleReports installs job under schedule, replacing the previous report
// job. An unchanged schedule is a no-op.
func (s *SchedulerService) ScheduleReports(schedule ReportSchedule, job func(ctx context.Context) error) error {
	spec, err := schedule.Spec()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reportID != 0 && s.spec == spec {
		return nil
	}

	id, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), reportJobTimeout)
		defer cancel()
		started := time.Now()
		if err := job(ctx); err != nil {
			s.log.Error().Err(err).Msg("report job failed")
			return
		}
		s.log.Info().Dur("took", time.Since(started)).Msg("reports sent")
	})
	if err != nil {
		return fmt.Errorf("schedule reports %q: %w", spec, err)
	}
	if s.reportID != 0 {
		s.cron.Remove(s.reportID)
	}
	s.reportID = id
	s.spec = spec
	s.log.Info().Str("spec", spec).Msg("report schedule set")
	return nil
}

// Next returns the next activation of the report job.
func (s *SchedulerService) Next() (time.Time, bool) {
	s.mu.Lock()
	id := s.reportID
	s.mu.Unlock()
	if id == 0 {
		return time.Time{}, false
	}
	entry := s.cron.Entry(id)
	if !entry.Valid() {
		return time.Time{}, false
	}
	return entry.Next, true
}

func buildIntervalSpec(interval time.Duration) (string, error) {
	if interval <= 0 {
		return "", fmt.Errorf("interval must be positive")
	}
	seconds := int(interval.Seconds())
	if seconds <= 0 {
		seconds = 1
	}
	return fmt.Sprintf("@every %ds", seconds), nil
}

func buildDailySpec(timeStr string) (string, error) {
	parts := strings.Split(timeStr, ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid time %q, expected HH:MM", timeStr)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("invalid hour in %q", timeStr)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid minute in %q", timeStr)
	}
	// cron format: second minute hour dom month dow
	return fmt.Sprintf("0 %d %d * * *", minute, hour), nil
}
