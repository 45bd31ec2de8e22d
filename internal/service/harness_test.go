package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"clearfocus/internal/config"
	"clearfocus/internal/extraction"
	"clearfocus/internal/metrics"
	"clearfocus/internal/model"
	"clearfocus/internal/repository"
)

type stubExtractor struct {
	fn func(text, currentDate string) ([]extraction.Candidate, error)
}

func (s stubExtractor) Extract(_ context.Context, text, currentDate string) ([]extraction.Candidate, error) {
	return s.fn(text, currentDate)
}

type harness struct {
	now  time.Time
	db   *gorm.DB
	logs *observer.ObservedLogs

	users      *repository.UserRepository
	tasks      *repository.TaskRepository
	focusRepo  *repository.FocusRepository
	activities *repository.ActivityRepository
	dumps      *repository.DumpRepository

	calendar  *Calendar
	extractor *stubExtractor
	settings  *SettingsService
	scorer    *ScorerService
	decider   *DeciderService
	activity  *ActivityService
	intake    *IntakeService
	focus     *FocusService
	taskSvc   *TaskService
	jobs      *JobService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	core, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(core)

	db, err := repository.NewDB(config.DatabaseConfig{
		Driver: "sqlite",
		URL:    filepath.Join(t.TempDir(), "service.db"),
	}, log)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	h := &harness{
		now:  time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC),
		db:   db,
		logs: logs,
	}
	h.calendar = NewCalendarWithClock(time.UTC, func() time.Time { return h.now })
	h.extractor = &stubExtractor{fn: func(text, _ string) ([]extraction.Candidate, error) {
		return []extraction.Candidate{{Text: text, Pressure: 0.5, Leverage: 0.5}}, nil
	}}

	m := metrics.New()
	h.users = repository.NewUserRepository(db)
	h.tasks = repository.NewTaskRepository(db)
	h.focusRepo = repository.NewFocusRepository(db)
	h.activities = repository.NewActivityRepository(db)
	h.dumps = repository.NewDumpRepository(db)

	h.settings = NewSettingsService(repository.NewSettingsRepository(db))
	h.scorer = NewScorerService(h.tasks, h.calendar, m, log)
	h.decider = NewDeciderService(h.tasks, h.focusRepo, h.settings, h.calendar, m, log)
	h.activity = NewActivityService(h.activities, h.calendar, m, log)
	h.intake = NewIntakeService(h.dumps, h.extractor, h.calendar, m, log)
	h.focus = NewFocusService(h.focusRepo, h.tasks, h.intake, h.scorer, h.decider, h.calendar, log)
	h.taskSvc = NewTaskService(h.tasks, log)
	h.jobs = NewJobService(h.users, h.intake, h.scorer, h.decider, m, log)
	return h
}

type taskOpts struct {
	pressure, leverage, neglect float64
	scheduled                   string
	status                      model.TaskStatus
	createdAgo, seenAgo         time.Duration
}

func (h *harness) addTask(t *testing.T, userID uint, id string, opts taskOpts) model.Task {
	t.Helper()
	status := opts.status
	if status == "" {
		status = model.TaskOpen
	}
	task := model.Task{
		ID:            id,
		UserID:        userID,
		CanonicalText: "task " + id,
		CreatedAt:     h.now.Add(-opts.createdAgo),
		LastSeenAt:    h.now.Add(-opts.seenAgo),
		RepeatCount:   1,
		PressureScore: opts.pressure,
		LeverageScore: opts.leverage,
		NeglectScore:  opts.neglect,
		Status:        status,
	}
	if opts.scheduled != "" {
		date := opts.scheduled
		task.ScheduledDate = &date
	}
	require.NoError(t, h.tasks.Create(context.Background(), &task))
	return task
}

func (h *harness) getTask(t *testing.T, id string) model.Task {
	t.Helper()
	var task model.Task
	require.NoError(t, h.db.Where("id = ?", id).First(&task).Error)
	return task
}

func (h *harness) focusCount(t *testing.T, userID uint) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.db.Model(&model.DailyFocus{}).Where("user_id = ?", userID).Count(&n).Error)
	return n
}

func days(n float64) time.Duration {
	return time.Duration(n * 24 * float64(time.Hour))
}

// failUpdatesFor makes every UPDATE whose WHERE clause binds id fail.
func (h *harness) failUpdatesFor(t *testing.T, id string) {
	t.Helper()
	err := h.db.Callback().Update().Before("gorm:update").Register("test:fail_"+id, func(tx *gorm.DB) {
		c, ok := tx.Statement.Clauses["WHERE"]
		if !ok {
			return
		}
		where, ok := c.Expression.(clause.Where)
		if !ok {
			return
		}
		for _, expr := range where.Exprs {
			e, ok := expr.(clause.Expr)
			if !ok {
				continue
			}
			for _, v := range e.Vars {
				if s, ok := v.(string); ok && s == id {
					_ = tx.AddError(errors.New("injected failure"))
					return
				}
			}
		}
	})
	require.NoError(t, err)
}
