package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"clearfocus/internal/model"
	"clearfocus/internal/repository"
)

// FocusView is a DailyFocus with its slot references resolved. A slot whose
// task is archived or gone reads as nil.
type FocusView struct {
	Date           string      `json:"date"`
	TopTask1       *model.Task `json:"topTask1"`
	TopTask2       *model.Task `json:"topTask2"`
	TopTask3       *model.Task `json:"topTask3"`
	TopTask4       *model.Task `json:"topTask4"`
	TopTask5       *model.Task `json:"topTask5"`
	AvoidedTask    *model.Task `json:"avoidedTask"`
	DailyDirective string      `json:"dailyDirective"`
	Accepted       bool        `json:"accepted"`
	OverrideUsed   bool        `json:"overrideUsed"`
}

// Top returns the resolved slots in order, nil entries included.
func (v FocusView) Top() []*model.Task {
	return []*model.Task{v.TopTask1, v.TopTask2, v.TopTask3, v.TopTask4, v.TopTask5}
}

// FocusService is the read and refocus entry point for today's focus.
type FocusService struct {
	focus    *repository.FocusRepository
	tasks    *repository.TaskRepository
	intake   *IntakeService
	scorer   *ScorerService
	decider  *DeciderService
	calendar *Calendar
	log      *zap.Logger
}

func NewFocusService(
	focus *repository.FocusRepository,
	tasks *repository.TaskRepository,
	intake *IntakeService,
	scorer *ScorerService,
	decider *DeciderService,
	calendar *Calendar,
	log *zap.Logger,
) *FocusService {
	return &FocusService{
		focus:    focus,
		tasks:    tasks,
		intake:   intake,
		scorer:   scorer,
		decider:  decider,
		calendar: calendar,
		log:      log.Named("focus"),
	}
}

// Today returns today's focus, generating it first when none exists yet. A
// nil view means the user has no eligible task.
func (s *FocusService) Today(ctx context.Context, userID uint) (*FocusView, error) {
	today := s.calendar.Today()

	focus, err := s.focus.Find(ctx, userID, today)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if _, err := s.decider.Decide(ctx, userID, false); err != nil {
			return nil, fmt.Errorf("generate daily focus: %w", err)
		}
		focus, err = s.focus.Find(ctx, userID, today)
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("load daily focus: %w", err)
	}
	return s.resolve(ctx, focus)
}

// Refocus processes pending dumps, rescores and regenerates today's focus,
// strictly in that order, then returns the fresh view.
func (s *FocusService) Refocus(ctx context.Context, userID uint) (*FocusView, error) {
	intake, err := s.intake.ProcessUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	scored, err := s.scorer.ScoreUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	res, err := s.decider.Decide(ctx, userID, true)
	if err != nil {
		return nil, err
	}

	s.log.Info("refocus",
		zap.Uint("user_id", userID),
		zap.Int("dumps", intake.Processed),
		zap.Int("new_tasks", intake.Created),
		zap.Int("scored", scored.Scored),
		zap.String("outcome", res.Outcome))

	if res.Focus == nil {
		return nil, nil
	}
	return s.resolve(ctx, res.Focus)
}

func (s *FocusService) resolve(ctx context.Context, focus *model.DailyFocus) (*FocusView, error) {
	found, err := s.tasks.FindActiveByIDs(ctx, focus.UserID, focus.ReferencedIDs())
	if err != nil {
		return nil, err
	}
	lookup := func(id *string) *model.Task {
		if id == nil {
			return nil
		}
		t, ok := found[*id]
		if !ok {
			return nil
		}
		return &t
	}

	slots := focus.Slots()
	return &FocusView{
		Date:           focus.Date,
		TopTask1:       lookup(slots[0]),
		TopTask2:       lookup(slots[1]),
		TopTask3:       lookup(slots[2]),
		TopTask4:       lookup(slots[3]),
		TopTask5:       lookup(slots[4]),
		AvoidedTask:    lookup(focus.AvoidedTask),
		DailyDirective: focus.DailyDirective,
		Accepted:       focus.Accepted,
		OverrideUsed:   focus.OverrideUsed,
	}, nil
}
