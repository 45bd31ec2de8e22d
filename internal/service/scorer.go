package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"clearfocus/internal/metrics"
	"clearfocus/internal/model"
	"clearfocus/internal/repository"
)

const (
	neglectAgeWeight  = 0.1
	neglectSeenWeight = 0.05
)

// Neglect is the time-decay score of a task at now. It grows without bound
// and never goes below zero. A zero lastSeenAt counts as seen now, and
// timestamps ahead of now count as now.
func Neglect(task model.Task, now time.Time) float64 {
	lastSeen := task.LastSeenAt
	if lastSeen.IsZero() {
		lastSeen = now
	}
	ageDays := math.Max(0, now.Sub(task.CreatedAt).Hours()/24)
	sinceSeenDays := math.Max(0, now.Sub(lastSeen).Hours()/24)
	return neglectAgeWeight*ageDays + neglectSeenWeight*sinceSeenDays
}

// ScoreResult counts the outcome of one scoring run.
type ScoreResult struct {
	Scored int
	Failed int
}

// ScorerService recomputes neglect scores. A task that fails to update is
// logged and skipped; the remaining tasks are still scored.
type ScorerService struct {
	tasks    *repository.TaskRepository
	calendar *Calendar
	metrics  *metrics.Metrics
	log      *zap.Logger
}

func NewScorerService(tasks *repository.TaskRepository, calendar *Calendar, m *metrics.Metrics, log *zap.Logger) *ScorerService {
	return &ScorerService{tasks: tasks, calendar: calendar, metrics: m, log: log.Named("scorer")}
}

// ScoreUser updates neglectScore on every open task of the user. Only
// listing the tasks can fail the call as a whole.
func (s *ScorerService) ScoreUser(ctx context.Context, userID uint) (ScoreResult, error) {
	var res ScoreResult

	tasks, err := s.tasks.ListOpen(ctx, userID)
	if err != nil {
		return res, fmt.Errorf("score user %d: %w", userID, err)
	}

	now := s.calendar.Now()
	for _, task := range tasks {
		score := Neglect(task, now)
		if err := s.tasks.UpdateNeglect(ctx, userID, task.ID, score); err != nil {
			res.Failed++
			s.metrics.ScoringFailures.Inc()
			s.log.Warn("neglect update failed",
				zap.Uint("user_id", userID),
				zap.String("task_id", task.ID),
				zap.Error(err))
			continue
		}
		res.Scored++
		s.metrics.TasksScored.Inc()
	}

	s.log.Debug("scored tasks", zap.Uint("user_id", userID), zap.Int("scored", res.Scored), zap.Int("failed", res.Failed))
	return res, nil
}
