package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"clearfocus/internal/model"
	"clearfocus/internal/repository"
)

const maxTaskTextRunes = 500

// TaskService wraps the user-facing task operations that are not activities.
type TaskService struct {
	taskRepo *repository.TaskRepository
	log      *zap.Logger
}

func NewTaskService(taskRepo *repository.TaskRepository, log *zap.Logger) *TaskService {
	return &TaskService{taskRepo: taskRepo, log: log.Named("tasks")}
}

// List returns the user's open and done tasks.
func (s *TaskService) List(ctx context.Context, userID uint) ([]model.Task, error) {
	return s.taskRepo.ListVisible(ctx, userID)
}

// ListOpen returns the tasks still waiting to be done.
func (s *TaskService) ListOpen(ctx context.Context, userID uint) ([]model.Task, error) {
	return s.taskRepo.ListOpen(ctx, userID)
}

func (s *TaskService) Get(ctx context.Context, userID uint, taskID string) (*model.Task, error) {
	task, err := s.taskRepo.FindActive(ctx, userID, taskID)
	if err != nil {
		return nil, notFound(err)
	}
	return task, nil
}

// Edit rewrites the text of a task the user owns.
func (s *TaskService) Edit(ctx context.Context, userID uint, taskID, text string) (*model.Task, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, invalidf("text is required")
	}
	if utf8.RuneCountInString(text) > maxTaskTextRunes {
		return nil, invalidf("text longer than %d characters", maxTaskTextRunes)
	}
	if err := s.taskRepo.UpdateText(ctx, userID, taskID, text); err != nil {
		return nil, notFound(err)
	}
	return s.Get(ctx, userID, taskID)
}

// Archive removes a task from scoring, selection and focus slots for good.
func (s *TaskService) Archive(ctx context.Context, userID uint, taskID string) error {
	if err := s.taskRepo.Archive(ctx, userID, taskID); err != nil {
		return notFound(err)
	}
	s.log.Info("task archived", zap.Uint("user_id", userID), zap.String("task_id", taskID))
	return nil
}
