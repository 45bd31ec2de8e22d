package main

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"clearfocus/internal/config"
	"clearfocus/internal/extraction"
	"clearfocus/internal/logging"
	"clearfocus/internal/metrics"
	"clearfocus/internal/repository"
	"clearfocus/internal/service"
)

// app holds the wired object graph shared by every subcommand.
type app struct {
	cfg     config.Config
	log     *zap.Logger
	db      *gorm.DB
	metrics *metrics.Metrics

	users *repository.UserRepository

	calendar *service.Calendar
	settings *service.SettingsService
	intake   *service.IntakeService
	scorer   *service.ScorerService
	decider  *service.DeciderService
	focus    *service.FocusService
	tasks    *service.TaskService
	activity *service.ActivityService
	digest   *service.DigestService
	jobs     *service.JobService
}

func newApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("timezone: %w", err)
	}

	db, err := repository.NewDB(cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}
	extractor, err := extraction.New(cfg.Extraction, log)
	if err != nil {
		return nil, fmt.Errorf("extraction: %w", err)
	}

	a := &app{
		cfg:      cfg,
		log:      log,
		db:       db,
		metrics:  metrics.New(),
		users:    repository.NewUserRepository(db),
		calendar: service.NewCalendar(loc),
	}

	taskRepo := repository.NewTaskRepository(db)
	focusRepo := repository.NewFocusRepository(db)

	a.settings = service.NewSettingsService(repository.NewSettingsRepository(db))
	a.intake = service.NewIntakeService(repository.NewDumpRepository(db), extractor, a.calendar, a.metrics, log)
	a.scorer = service.NewScorerService(taskRepo, a.calendar, a.metrics, log)
	a.decider = service.NewDeciderService(taskRepo, focusRepo, a.settings, a.calendar, a.metrics, log)
	a.focus = service.NewFocusService(focusRepo, taskRepo, a.intake, a.scorer, a.decider, a.calendar, log)
	a.tasks = service.NewTaskService(taskRepo, log)
	a.activity = service.NewActivityService(repository.NewActivityRepository(db), a.calendar, a.metrics, log)
	a.digest = service.NewDigestService(a.focus, a.calendar)
	a.jobs = service.NewJobService(a.users, a.intake, a.scorer, a.decider, a.metrics, log)
	return a, nil
}

func (a *app) close() {
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = logging.Sync(a.log)
}
