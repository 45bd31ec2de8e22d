package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"clearfocus/internal/metrics"
	"clearfocus/internal/model"
	"clearfocus/internal/repository"
)

const (
	weightPressure      = 0.4
	weightLeverage      = 0.35
	weightNeglect       = 0.25
	scheduledTodayBonus = 1.0
)

// Priority ranks a candidate for today's slots. A task pinned to today gets a
// flat bonus that puts it ahead of any unpinned task with ordinary scores.
func Priority(task model.Task, today string) float64 {
	p := weightPressure*task.PressureScore +
		weightLeverage*task.LeverageScore +
		weightNeglect*task.NeglectScore
	if task.ScheduledOn(today) {
		p += scheduledTodayBonus
	}
	return p
}

// Selection is the outcome of ranking one user's candidates.
type Selection struct {
	Top     []model.Task
	Avoided *model.Task
}

// Select takes the n highest-priority candidates as the top slots and the
// most neglected of the rest as the avoided task. Ties fall back to task id
// order so the result is reproducible.
func Select(candidates []model.Task, today string, n int) Selection {
	n = clampCount(n)

	ranked := make([]model.Task, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		pi, pj := Priority(ranked[i], today), Priority(ranked[j], today)
		if pi != pj {
			return pi > pj
		}
		return ranked[i].ID < ranked[j].ID
	})

	if n > len(ranked) {
		n = len(ranked)
	}
	sel := Selection{Top: ranked[:n]}

	for i := n; i < len(ranked); i++ {
		t := ranked[i]
		if sel.Avoided == nil ||
			t.NeglectScore > sel.Avoided.NeglectScore ||
			(t.NeglectScore == sel.Avoided.NeglectScore && t.ID < sel.Avoided.ID) {
			sel.Avoided = &ranked[i]
		}
	}
	return sel
}

// DecideResult reports what a Decide call did. Focus is nil when the user had
// no eligible task.
type DecideResult struct {
	Outcome string
	Focus   *model.DailyFocus
}

// DeciderService produces the DailyFocus of a user for today.
type DeciderService struct {
	tasks    *repository.TaskRepository
	focus    *repository.FocusRepository
	settings *SettingsService
	calendar *Calendar
	metrics  *metrics.Metrics
	log      *zap.Logger
}

func NewDeciderService(
	tasks *repository.TaskRepository,
	focus *repository.FocusRepository,
	settings *SettingsService,
	calendar *Calendar,
	m *metrics.Metrics,
	log *zap.Logger,
) *DeciderService {
	return &DeciderService{
		tasks:    tasks,
		focus:    focus,
		settings: settings,
		calendar: calendar,
		metrics:  m,
		log:      log.Named("decider"),
	}
}

// Decide generates today's focus. Without force an existing record is left
// untouched. With force the record is replaced wholesale, or removed when no
// task is eligible any more.
func (s *DeciderService) Decide(ctx context.Context, userID uint, force bool) (DecideResult, error) {
	today := s.calendar.Today()

	if !force {
		existing, err := s.focus.Find(ctx, userID, today)
		switch {
		case err == nil:
			return s.done(userID, metrics.OutcomeExists, existing), nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return DecideResult{}, fmt.Errorf("load daily focus: %w", err)
		}
	}

	settings, err := s.settings.Resolve(ctx, userID)
	if err != nil {
		return DecideResult{}, fmt.Errorf("resolve settings: %w", err)
	}

	candidates, err := s.tasks.ListEligible(ctx, userID, today)
	if err != nil {
		return DecideResult{}, err
	}
	if len(candidates) == 0 {
		if force {
			if err := s.focus.Delete(ctx, userID, today); err != nil {
				return DecideResult{}, err
			}
		}
		return s.done(userID, metrics.OutcomeEmpty, nil), nil
	}

	sel := Select(candidates, today, settings.Count)
	focus := &model.DailyFocus{
		UserID:         userID,
		Date:           today,
		DailyDirective: settings.Directive,
	}
	ids := make([]string, 0, len(sel.Top))
	for _, t := range sel.Top {
		ids = append(ids, t.ID)
	}
	focus.SetSlots(ids)
	if sel.Avoided != nil {
		avoided := sel.Avoided.ID
		focus.AvoidedTask = &avoided
	}

	outcome := metrics.OutcomeCreated
	if force {
		if err := s.focus.Replace(ctx, focus); err != nil {
			return DecideResult{}, err
		}
		outcome = metrics.OutcomeReplaced
	} else {
		created, err := s.focus.Insert(ctx, focus)
		if err != nil {
			return DecideResult{}, err
		}
		if !created {
			// Another writer won the race for (user, today); its record stands.
			existing, err := s.focus.Find(ctx, userID, today)
			if err != nil {
				return DecideResult{}, fmt.Errorf("load daily focus: %w", err)
			}
			return s.done(userID, metrics.OutcomeAbsorbed, existing), nil
		}
	}

	if err := s.tasks.MarkSeen(ctx, userID, focus.ReferencedIDs(), s.calendar.Now()); err != nil {
		s.log.Warn("mark focus tasks seen failed", zap.Uint("user_id", userID), zap.Error(err))
	}
	return s.done(userID, outcome, focus), nil
}

func (s *DeciderService) done(userID uint, outcome string, focus *model.DailyFocus) DecideResult {
	s.metrics.FocusGenerations.WithLabelValues(outcome).Inc()
	s.log.Debug("daily focus", zap.Uint("user_id", userID), zap.String("outcome", outcome))
	return DecideResult{Outcome: outcome, Focus: focus}
}
