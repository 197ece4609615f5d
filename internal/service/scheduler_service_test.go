package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestReportScheduleSpec(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		schedule ReportSchedule
		want     string
		wantErr  bool
	}{
		{name: "daily", schedule: ReportSchedule{DailyAt: "09:05"}, want: "0 5 9 * * *"},
		{name: "daily wins over interval", schedule: ReportSchedule{DailyAt: "18:30", Interval: time.Hour}, want: "0 30 18 * * *"},
		{name: "interval", schedule: ReportSchedule{Interval: 5 * time.Hour}, want: "@every 18000s"},
		{name: "bad hour", schedule: ReportSchedule{DailyAt: "24:00"}, wantErr: true},
		{name: "bad format", schedule: ReportSchedule{DailyAt: "9am"}, wantErr: true},
		{name: "no interval", schedule: ReportSchedule{}, wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := tt.schedule.Spec()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Spec() = %q, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Spec() error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("Spec() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestScheduleReportsReplacesJob(t *testing.T) {
	t.Parallel()
	s := NewSchedulerService(time.UTC, zerolog.Nop())
	job := func(context.Context) error { return nil }

	if err := s.ScheduleReports(ReportSchedule{Interval: time.Hour}, job); err != nil {
		t.Fatalf("ScheduleReports error: %v", err)
	}
	first := s.reportID
	if err := s.ScheduleReports(ReportSchedule{Interval: time.Hour}, job); err != nil {
		t.Fatalf("ScheduleReports error: %v", err)
	}
	if s.reportID != first {
		t.Fatalf("unchanged schedule re-registered: %d != %d", s.reportID, first)
	}
	if err := s.ScheduleReports(ReportSchedule{DailyAt: "08:00"}, job); err != nil {
		t.Fatalf("ScheduleReports error: %v", err)
	}
	if s.reportID == first {
		t.Fatal("schedule change kept the old entry")
	}
	if n := len(s.cron.Entries()); n != 1 {
		t.Fatalf("entries = %d, want 1", n)
	}
	if err := s.ScheduleReports(ReportSchedule{DailyAt: "99:00"}, job); err == nil {
		t.Fatal("expected error for invalid time")
	}
}
