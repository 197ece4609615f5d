package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"task-tracker/internal/bot"
	"task-tracker/internal/config"
	"task-tracker/internal/logx"
	"task-tracker/internal/repository"
	"task-tracker/internal/service"
)

const notifyQueueSize = 256

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logx.New(cfg.LogLevel, cfg.LogFormat)

	db, err := repository.NewDB(cfg.DatabaseURL, logx.Component(log, "db"))
	if err != nil {
		log.Fatal().Err(err).Str("dsn", cfg.DatabaseURL).Msg("open database")
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	userRepo := repository.NewUserRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	roadmapRepo := repository.NewRoadmapRepository(db)
	workLogRepo := repository.NewWorkLogRepository(db)

	notifier := service.NewNotificationService(cfg.NotifyRatePerSec, notifyQueueSize, logx.Component(log, "notify"))
	taskSvc := service.NewTaskService(taskRepo, userRepo, roadmapRepo, workLogRepo, notifier)
	workloadSvc := service.NewWorkloadService(taskRepo, cfg.WorkloadStrategy, cfg.WorkloadWindowDays)
	reminderSvc := service.NewReminderService(taskRepo, workloadSvc)

	telegramBot, err := bot.New(cfg, logx.Component(log, "bot"), userRepo, taskSvc, workloadSvc, reminderSvc)
	if err != nil {
		log.Fatal().Err(err).Msg("create bot")
	}
	notifier.SetSender(telegramBot)
	notifier.Start(ctx)

	scheduler := service.NewSchedulerService(time.Local, logx.Component(log, "scheduler"))
	reschedule := func(c config.Config) error {
		return scheduler.ScheduleReports(service.ReportSchedule{DailyAt: c.ReportTime, Interval: c.ReportInterval}, telegramBot.SendDailyReports)
	}
	if err := reschedule(cfg); err != nil {
		log.Fatal().Err(err).Msg("schedule reports")
	}
	telegramBot.OnReschedule(reschedule)
	scheduler.Start()
	defer scheduler.Stop()
	if next, ok := scheduler.Next(); ok {
		log.Info().Time("next", next).Msg("first report")
	}

	go func() {
		err := config.Watch(ctx, cfg, logx.Component(log, "config"), func(next config.Config) {
			telegramBot.ApplyConfig(next)
			workloadSvc.SetDefaults(next.WorkloadStrategy, next.WorkloadWindowDays)
			notifier.SetRate(next.NotifyRatePerSec)
			if err := reschedule(next); err != nil {
				log.Warn().Err(err).Msg("reschedule reports")
			}
			lvl := logx.SetLevel(next.LogLevel)
			log.Info().Stringer("level", lvl).Msg("configuration applied")
		})
		if err != nil {
			log.Warn().Err(err).Str("path", cfg.ConfigFile).Msg("config watch stopped")
		}
	}()

	log.Info().Str("strategy", cfg.WorkloadStrategy).Int("window_days", cfg.WorkloadWindowDays).Msg("task tracker started")
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("bot stopped with error")
	}
	stop()
	notifier.Wait()
	log.Info().Msg("shutdown complete")
}
