package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"clearfocus/internal/metrics"
	"clearfocus/internal/model"
	"clearfocus/internal/repository"
)

// Job names used in logs and metrics.
const (
	JobIntake = "intake"
	JobScore  = "score"
	JobDecide = "decide"
	JobDaily  = "daily"
)

// BatchResult summarizes a job run over all users.
type BatchResult struct {
	Users  int
	Failed int
}

// JobService runs the pipeline steps for every known user. A failing user
// is logged, counted and skipped.
type JobService struct {
	users   *repository.UserRepository
	intake  *IntakeService
	scorer  *ScorerService
	decider *DeciderService
	metrics *metrics.Metrics
	log     *zap.Logger
}

func NewJobService(
	users *repository.UserRepository,
	intake *IntakeService,
	scorer *ScorerService,
	decider *DeciderService,
	m *metrics.Metrics,
	log *zap.Logger,
) *JobService {
	return &JobService{
		users:   users,
		intake:  intake,
		scorer:  scorer,
		decider: decider,
		metrics: m,
		log:     log.Named("jobs"),
	}
}

// RunIntake processes pending dumps of every user.
func (s *JobService) RunIntake(ctx context.Context) (BatchResult, error) {
	return s.forEachUser(ctx, JobIntake, func(ctx context.Context, user model.User) error {
		_, err := s.intake.ProcessUser(ctx, user.ID)
		return err
	})
}

// RunScoring recomputes neglect for every user.
func (s *JobService) RunScoring(ctx context.Context) (BatchResult, error) {
	return s.forEachUser(ctx, JobScore, func(ctx context.Context, user model.User) error {
		_, err := s.scorer.ScoreUser(ctx, user.ID)
		return err
	})
}

// RunDecide generates today's focus for every user.
func (s *JobService) RunDecide(ctx context.Context, force bool) (BatchResult, error) {
	return s.forEachUser(ctx, JobDecide, func(ctx context.Context, user model.User) error {
		_, err := s.decider.Decide(ctx, user.ID, force)
		return err
	})
}

// RunIntakeAndScoring is the periodic job: fresh dumps become scored tasks.
func (s *JobService) RunIntakeAndScoring(ctx context.Context) (BatchResult, error) {
	return s.forEachUser(ctx, JobIntake, func(ctx context.Context, user model.User) error {
		if _, err := s.intake.ProcessUser(ctx, user.ID); err != nil {
			return err
		}
		_, err := s.scorer.ScoreUser(ctx, user.ID)
		return err
	})
}

// RunDailyCycle runs intake, scoring and non-forced focus generation per user.
func (s *JobService) RunDailyCycle(ctx context.Context) (BatchResult, error) {
	return s.forEachUser(ctx, JobDaily, func(ctx context.Context, user model.User) error {
		if _, err := s.intake.ProcessUser(ctx, user.ID); err != nil {
			return err
		}
		if _, err := s.scorer.ScoreUser(ctx, user.ID); err != nil {
			return err
		}
		_, err := s.decider.Decide(ctx, user.ID, false)
		return err
	})
}

func (s *JobService) forEachUser(ctx context.Context, job string, fn func(context.Context, model.User) error) (BatchResult, error) {
	started := time.Now()
	defer func() {
		s.metrics.JobDuration.WithLabelValues(job).Observe(time.Since(started).Seconds())
	}()

	var res BatchResult
	users, err := s.users.ListAll(ctx)
	if err != nil {
		return res, fmt.Errorf("list users: %w", err)
	}

	for _, user := range users {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		res.Users++
		if err := s.runOne(ctx, user, fn); err != nil {
			res.Failed++
			s.metrics.JobUserFailures.WithLabelValues(job).Inc()
			s.log.Warn("job failed for user",
				zap.String("job", job),
				zap.Uint("user_id", user.ID),
				zap.Error(err))
		}
	}

	s.log.Info("job finished",
		zap.String("job", job),
		zap.Int("users", res.Users),
		zap.Int("failed", res.Failed),
		zap.Duration("took", time.Since(started)))
	return res, nil
}

func (s *JobService) runOne(ctx context.Context, user model.User, fn func(context.Context, model.User) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx, user)
}
