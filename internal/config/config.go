package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	yaml "go.yaml.in/yaml/v3"
)

// Config keeps runtime settings for the tracker.
type Config struct {
	TelegramToken      string
	DatabaseURL        string
	ReportInterval     time.Duration
	ReportTime         string
	LogLevel           string
	LogFormat          string
	WorkloadStrategy   string
	WorkloadWindowDays int
	ManagerIDs         []int64
	NotifyRatePerSec   int
	ConfigFile         string
}

// fileConfig is the YAML overlay. Absent keys keep the environment value.
type fileConfig struct {
	DatabaseURL         *string `yaml:"database_url"`
	ReportIntervalHours *int    `yaml:"report_interval_hours"`
	ReportTime          *string `yaml:"report_time"`
	LogLevel            *string `yaml:"log_level"`
	Workload            struct {
		Strategy   *string `yaml:"strategy"`
		WindowDays *int    `yaml:"window_days"`
	} `yaml:"workload"`
	ManagerIDs       []int64 `yaml:"manager_ids"`
	NotifyRatePerSec *int    `yaml:"notify_rate_per_sec"`
}

// Load reads configuration from environment variables with sane defaults,
// then applies CONFIG_FILE on top when set.
func Load() (Config, error) {
	cfg := Config{
		TelegramToken:      strings.TrimSpace(os.Getenv("TELEGRAM_TOKEN")),
		DatabaseURL:        strings.TrimSpace(os.Getenv("DATABASE_URL")),
		ReportInterval:     parseInterval(strings.TrimSpace(os.Getenv("REPORT_INTERVAL_HOURS"))),
		ReportTime:         strings.TrimSpace(os.Getenv("REPORT_TIME")),
		LogLevel:           strings.TrimSpace(os.Getenv("LOG_LEVEL")),
		LogFormat:          strings.TrimSpace(os.Getenv("LOG_FORMAT")),
		WorkloadStrategy:   strings.TrimSpace(os.Getenv("WORKLOAD_STRATEGY")),
		WorkloadWindowDays: parsePositiveInt(os.Getenv("WORKLOAD_WINDOW_DAYS")),
		NotifyRatePerSec:   parsePositiveInt(os.Getenv("NOTIFY_RATE_PER_SEC")),
		ConfigFile:         strings.TrimSpace(os.Getenv("CONFIG_FILE")),
	}

	ids, err := parseIDs(os.Getenv("MANAGER_IDS"))
	if err != nil {
		return cfg, fmt.Errorf("MANAGER_IDS: %w", err)
	}
	cfg.ManagerIDs = ids

	if cfg.ConfigFile != "" {
		cfg, err = ApplyFile(cfg, cfg.ConfigFile)
		if err != nil {
			return cfg, err
		}
	}

	applyDefaults(&cfg)

	if cfg.TelegramToken == "" {
		return cfg, fmt.Errorf("TELEGRAM_TOKEN is required")
	}

	return cfg, nil
}

// ApplyFile overlays the YAML file at path onto base.
func ApplyFile(base Config, path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return base, fmt.Errorf("yaml unmarshal %s: %w", path, err)
	}

	cfg := base
	if fc.DatabaseURL != nil {
		cfg.DatabaseURL = strings.TrimSpace(*fc.DatabaseURL)
	}
	if fc.ReportIntervalHours != nil && *fc.ReportIntervalHours > 0 {
		cfg.ReportInterval = time.Duration(*fc.ReportIntervalHours) * time.Hour
	}
	if fc.ReportTime != nil {
		cfg.ReportTime = strings.TrimSpace(*fc.ReportTime)
	}
	if fc.LogLevel != nil {
		cfg.LogLevel = strings.TrimSpace(*fc.LogLevel)
	}
	if fc.Workload.Strategy != nil {
		cfg.WorkloadStrategy = strings.TrimSpace(*fc.Workload.Strategy)
	}
	if fc.Workload.WindowDays != nil && *fc.Workload.WindowDays > 0 {
		cfg.WorkloadWindowDays = *fc.Workload.WindowDays
	}
	if fc.ManagerIDs != nil {
		cfg.ManagerIDs = append([]int64(nil), fc.ManagerIDs...)
	}
	if fc.NotifyRatePerSec != nil && *fc.NotifyRatePerSec > 0 {
		cfg.NotifyRatePerSec = *fc.NotifyRatePerSec
	}
	applyDefaults(&cfg)
	return cfg, nil
}

// IsManager reports whether the Telegram ID is listed as a manager.
func (c Config) IsManager(telegramID int64) bool {
	for _, id := range c.ManagerIDs {
		if id == telegramID {
			return true
		}
	}
	return false
}

func applyDefaults(cfg *Config) {
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "task_tracker.db"
	}
	if cfg.ReportInterval == 0 {
		cfg.ReportInterval = 5 * time.Hour
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "console"
	}
	if cfg.WorkloadStrategy == "" {
		cfg.WorkloadStrategy = "balanced"
	}
	if cfg.WorkloadWindowDays == 0 {
		cfg.WorkloadWindowDays = 15
	}
	if cfg.NotifyRatePerSec == 0 {
		cfg.NotifyRatePerSec = 5
	}
}

func parseInterval(raw string) time.Duration {
	if raw == "" {
		return 0
	}
	hours, err := time.ParseDuration(raw + "h")
	if err != nil || hours <= 0 {
		return 0
	}
	return hours
}

func parsePositiveInt(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

func parseIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
