package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func setEnv(t *testing.T, kv map[string]string) {
	t.Helper()
	for _, key := range []string{
		"TELEGRAM_TOKEN", "DATABASE_URL", "REPORT_INTERVAL_HOURS", "REPORT_TIME",
		"LOG_LEVEL", "LOG_FORMAT", "WORKLOAD_STRATEGY", "WORKLOAD_WINDOW_DAYS",
		"MANAGER_IDS", "NOTIFY_RATE_PER_SEC", "CONFIG_FILE",
	} {
		t.Setenv(key, kv[key])
	}
}

func TestLoadDefaults(t *testing.T) {
	setEnv(t, map[string]string{"TELEGRAM_TOKEN": "token"})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.DatabaseURL != "task_tracker.db" {
		t.Fatalf("DatabaseURL = %q, want task_tracker.db", cfg.DatabaseURL)
	}
	if cfg.ReportInterval != 5*time.Hour {
		t.Fatalf("ReportInterval = %v, want 5h", cfg.ReportInterval)
	}
	if cfg.WorkloadStrategy != "balanced" || cfg.WorkloadWindowDays != 15 {
		t.Fatalf("workload = %s/%d, want balanced/15", cfg.WorkloadStrategy, cfg.WorkloadWindowDays)
	}
	if cfg.NotifyRatePerSec != 5 {
		t.Fatalf("NotifyRatePerSec = %d, want 5", cfg.NotifyRatePerSec)
	}
}

func TestLoadRequiresToken(t *testing.T) {
	setEnv(t, nil)
	if _, err := Load(); err == nil {
		t.Fatal("expected error without TELEGRAM_TOKEN")
	}
}

func TestLoadManagerIDs(t *testing.T) {
	setEnv(t, map[string]string{"TELEGRAM_TOKEN": "token", "MANAGER_IDS": "10, 20,,30"})
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(cfg.ManagerIDs) != 3 || !cfg.IsManager(20) || cfg.IsManager(40) {
		t.Fatalf("ManagerIDs = %v", cfg.ManagerIDs)
	}

	setEnv(t, map[string]string{"TELEGRAM_TOKEN": "token", "MANAGER_IDS": "10,abc"})
	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid manager id")
	}
}

func TestLoadAppliesYAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracker.yaml")
	data := `
report_interval_hours: 3
report_time: "09:30"
workload:
  strategy: deadline_weighted
  window_days: 30
manager_ids: [42]
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	setEnv(t, map[string]string{
		"TELEGRAM_TOKEN":    "token",
		"WORKLOAD_STRATEGY": "size_weighted",
		"LOG_LEVEL":         "debug",
		"CONFIG_FILE":       path,
	})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.ReportInterval != 3*time.Hour || cfg.ReportTime != "09:30" {
		t.Fatalf("report = %v/%q, want 3h/09:30", cfg.ReportInterval, cfg.ReportTime)
	}
	if cfg.WorkloadStrategy != "deadline_weighted" || cfg.WorkloadWindowDays != 30 {
		t.Fatalf("workload = %s/%d, want deadline_weighted/30", cfg.WorkloadStrategy, cfg.WorkloadWindowDays)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("LogLevel = %q, want env value kept", cfg.LogLevel)
	}
	if !cfg.IsManager(42) {
		t.Fatalf("ManagerIDs = %v, want [42]", cfg.ManagerIDs)
	}
}

func TestApplyFileRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("workload: [unclosed"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := ApplyFile(Config{}, path); err == nil {
		t.Fatal("expected yaml error")
	}
}

func TestWatchReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracker.yaml")
	if err := os.WriteFile(path, []byte("workload:\n  strategy: balanced\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, Config{ConfigFile: path}, zerolog.Nop(), func(cfg Config) { got <- cfg })
	}()

	// give the watcher a moment to register before writing.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("workload:\n  strategy: priority_weighted\n"), 0o600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case cfg := <-got:
		if cfg.WorkloadStrategy != "priority_weighted" {
			t.Fatalf("WorkloadStrategy = %q, want priority_weighted", cfg.WorkloadStrategy)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload within 5s")
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Watch error: %v", err)
	}
}
