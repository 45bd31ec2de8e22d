package service

import (
	"context"

	"go.uber.org/zap"

	"clearfocus/internal/metrics"
	"clearfocus/internal/model"
	"clearfocus/internal/repository"
)

// ActivityUndo reverses the last done of a task. It is accepted as an
// activity type but never written to the log.
const ActivityUndo = "undo"

// ActivityService applies user interactions to tasks.
type ActivityService struct {
	repo     *repository.ActivityRepository
	calendar *Calendar
	metrics  *metrics.Metrics
	log      *zap.Logger
}

func NewActivityService(repo *repository.ActivityRepository, calendar *Calendar, m *metrics.Metrics, log *zap.Logger) *ActivityService {
	return &ActivityService{repo: repo, calendar: calendar, metrics: m, log: log.Named("activity")}
}

// Apply records touched or done, or undoes the last done. Every type
// refreshes lastSeenAt. Tasks that are missing, archived or owned by another
// user yield ErrNotFound.
func (s *ActivityService) Apply(ctx context.Context, userID uint, taskID, kind string) error {
	now := s.calendar.Now()

	var err error
	switch kind {
	case string(model.ActivityTouched):
		err = s.repo.Record(ctx, s.entry(userID, taskID, model.ActivityTouched), nil)
	case string(model.ActivityDone):
		status := model.TaskDone
		err = s.repo.Record(ctx, s.entry(userID, taskID, model.ActivityDone), &status)
	case ActivityUndo:
		var removed bool
		removed, err = s.repo.Undo(ctx, userID, taskID, now)
		if err == nil && !removed {
			s.log.Debug("undo without done entry", zap.Uint("user_id", userID), zap.String("task_id", taskID))
		}
	default:
		return invalidf("unknown activity type %q", kind)
	}
	if err != nil {
		return notFound(err)
	}

	s.metrics.Activities.WithLabelValues(kind).Inc()
	s.log.Info("task activity", zap.Uint("user_id", userID), zap.String("task_id", taskID), zap.String("type", kind))
	return nil
}

func (s *ActivityService) entry(userID uint, taskID string, kind model.ActivityType) *model.TaskActivity {
	return &model.TaskActivity{
		TaskID:       taskID,
		UserID:       userID,
		Date:         s.calendar.Today(),
		ActivityType: kind,
		Timestamp:    s.calendar.Now(),
	}
}
