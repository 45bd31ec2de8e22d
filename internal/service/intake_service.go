package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"clearfocus/internal/extraction"
	"clearfocus/internal/metrics"
	"clearfocus/internal/model"
	"clearfocus/internal/repository"
)

const (
	fallbackTextRunes = 200
	fallbackScore     = 0.5
	maxDumpRunes      = 20000
)

// IntakeResult counts what one processing run did for a user.
type IntakeResult struct {
	Processed int
	Created   int
	Fallbacks int
	Failed    int
}

// IntakeService stores dumps and turns them into tasks.
type IntakeService struct {
	dumps     *repository.DumpRepository
	extractor extraction.Extractor
	calendar  *Calendar
	metrics   *metrics.Metrics
	log       *zap.Logger
}

func NewIntakeService(
	dumps *repository.DumpRepository,
	extractor extraction.Extractor,
	calendar *Calendar,
	m *metrics.Metrics,
	log *zap.Logger,
) *IntakeService {
	return &IntakeService{
		dumps:     dumps,
		extractor: extractor,
		calendar:  calendar,
		metrics:   m,
		log:       log.Named("intake"),
	}
}

// Submit stores a new dump for later processing.
func (s *IntakeService) Submit(ctx context.Context, userID uint, content string) (*model.DumpEntry, error) {
	if strings.TrimSpace(content) == "" {
		return nil, invalidf("content is required")
	}
	if utf8.RuneCountInString(content) > maxDumpRunes {
		return nil, invalidf("content longer than %d characters", maxDumpRunes)
	}
	dump := &model.DumpEntry{
		UserID:    userID,
		Content:   content,
		CreatedAt: s.calendar.Now(),
	}
	if err := s.dumps.Create(ctx, dump); err != nil {
		return nil, err
	}
	return dump, nil
}

func (s *IntakeService) ListDumps(ctx context.Context, userID uint, limit int) ([]model.DumpEntry, error) {
	return s.dumps.ListByUser(ctx, userID, limit)
}

// ProcessUser extracts tasks from every pending dump of the user, oldest
// first. A dump that cannot be stored is logged and left pending for the
// next run; only listing the dumps fails the call.
func (s *IntakeService) ProcessUser(ctx context.Context, userID uint) (IntakeResult, error) {
	var res IntakeResult

	pending, err := s.dumps.ListUnprocessed(ctx, userID)
	if err != nil {
		return res, fmt.Errorf("process user %d: %w", userID, err)
	}

	for _, dump := range pending {
		created, fallback, err := s.processDump(ctx, dump)
		switch {
		case errors.Is(err, repository.ErrDumpProcessed):
			continue
		case err != nil:
			res.Failed++
			s.log.Warn("dump processing failed",
				zap.Uint("user_id", userID),
				zap.String("dump_id", dump.ID),
				zap.Error(err))
			continue
		}
		res.Processed++
		res.Created += created
		if fallback {
			res.Fallbacks++
		}
	}
	return res, nil
}

func (s *IntakeService) processDump(ctx context.Context, dump model.DumpEntry) (int, bool, error) {
	today := s.calendar.Today()
	now := s.calendar.Now()

	var tasks []model.Task
	fallback := false

	candidates, err := s.extractor.Extract(ctx, dump.Content, today)
	if err != nil {
		if ctx.Err() != nil {
			return 0, false, ctx.Err()
		}
		s.log.Warn("extraction failed, storing fallback task",
			zap.Uint("user_id", dump.UserID),
			zap.String("dump_id", dump.ID),
			zap.Error(err))
		tasks = []model.Task{FallbackTask(dump, now)}
		fallback = true
	} else {
		tasks = TasksFromCandidates(dump.UserID, candidates, now)
	}

	if err := s.dumps.Complete(ctx, dump.ID, tasks); err != nil {
		return 0, false, err
	}

	s.metrics.TasksExtracted.Add(float64(len(tasks)))
	if fallback {
		s.metrics.IntakeFallbacks.Inc()
	}
	return len(tasks), fallback, nil
}

// TasksFromCandidates converts extractor output into new open tasks. Blank
// candidates are dropped, scores clamped to [0,1] and dates that are not
// YYYY-MM-DD ignored.
func TasksFromCandidates(userID uint, candidates []extraction.Candidate, now time.Time) []model.Task {
	tasks := make([]model.Task, 0, len(candidates))
	for _, c := range candidates {
		text := strings.TrimSpace(c.Text)
		if text == "" {
			continue
		}
		task := newTask(userID, truncateRunes(text, maxTaskTextRunes), now)
		task.PressureScore = clampUnit(c.Pressure)
		task.LeverageScore = clampUnit(c.Leverage)
		if c.ScheduledDate != nil {
			if _, err := time.Parse(model.DateLayout, *c.ScheduledDate); err == nil {
				date := *c.ScheduledDate
				task.ScheduledDate = &date
			}
		}
		tasks = append(tasks, task)
	}
	return tasks
}

// FallbackTask keeps a dump visible as one task when extraction fails.
func FallbackTask(dump model.DumpEntry, now time.Time) model.Task {
	task := newTask(dump.UserID, truncateRunes(strings.TrimSpace(dump.Content), fallbackTextRunes), now)
	task.PressureScore = fallbackScore
	task.LeverageScore = fallbackScore
	return task
}

func newTask(userID uint, text string, now time.Time) model.Task {
	return model.Task{
		UserID:        userID,
		CanonicalText: text,
		CreatedAt:     now,
		LastSeenAt:    now,
		RepeatCount:   1,
		Status:        model.TaskOpen,
	}
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func clampUnit(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
