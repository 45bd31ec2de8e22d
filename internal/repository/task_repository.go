package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"clearfocus/internal/model"
)

// TaskRepository handles CRUD for tasks. Every query is scoped by user id.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// ListOpen returns every open task of the user.
func (r *TaskRepository) ListOpen(ctx context.Context, userID uint) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, model.TaskOpen).
		Order("created_at ASC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list open tasks: %w", err)
	}
	return tasks, nil
}

// ListEligible returns open tasks that are unscheduled or scheduled on or before today.
// Dates are stored as YYYY-MM-DD so lexical order matches calendar order.
func (r *TaskRepository) ListEligible(ctx context.Context, userID uint, today string) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, model.TaskOpen).
		Where("(scheduled_date IS NULL OR scheduled_date <= ?)", today).
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list eligible tasks: %w", err)
	}
	return tasks, nil
}

// ListVisible returns the user's non-archived tasks, open ones first, newest first within a status.
func (r *TaskRepository) ListVisible(ctx context.Context, userID uint) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND status <> ?", userID, model.TaskArchived).
		Order("CASE WHEN status = 'open' THEN 0 ELSE 1 END, created_at DESC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// FindActiveByIDs loads the non-archived tasks among ids. Missing, foreign and
// archived ids are simply absent from the result.
func (r *TaskRepository) FindActiveByIDs(ctx context.Context, userID uint, ids []string) (map[string]model.Task, error) {
	found := make(map[string]model.Task, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	var tasks []model.Task
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND id IN ? AND status <> ?", userID, ids, model.TaskArchived).
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("find tasks: %w", err)
	}
	for _, t := range tasks {
		found[t.ID] = t
	}
	return found, nil
}

// FindActive returns a non-archived task owned by the user or gorm.ErrRecordNotFound.
func (r *TaskRepository) FindActive(ctx context.Context, userID uint, taskID string) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND id = ? AND status <> ?", userID, taskID, model.TaskArchived).
		First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// UpdateNeglect stores a recomputed neglect score on a task the user owns.
func (r *TaskRepository) UpdateNeglect(ctx context.Context, userID uint, taskID string, score float64) error {
	res := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("user_id = ? AND id = ?", userID, taskID).
		Update("neglect_score", score)
	if res.Error != nil {
		return fmt.Errorf("update neglect: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkSeen refreshes lastSeenAt on the given tasks.
func (r *TaskRepository) MarkSeen(ctx context.Context, userID uint, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("user_id = ? AND id IN ?", userID, ids).
		Update("last_seen_at", at).Error; err != nil {
		return fmt.Errorf("mark tasks seen: %w", err)
	}
	return nil
}

// UpdateText rewrites the label of a non-archived task. It returns
// gorm.ErrRecordNotFound when nothing matched.
func (r *TaskRepository) UpdateText(ctx context.Context, userID uint, taskID, text string) error {
	res := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("user_id = ? AND id = ? AND status <> ?", userID, taskID, model.TaskArchived).
		Update("canonical_text", text)
	if res.Error != nil {
		return fmt.Errorf("update task text: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Archive soft-deletes a task. Archiving twice reports gorm.ErrRecordNotFound.
func (r *TaskRepository) Archive(ctx context.Context, userID uint, taskID string) error {
	res := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("user_id = ? AND id = ? AND status <> ?", userID, taskID, model.TaskArchived).
		Update("status", model.TaskArchived)
	if res.Error != nil {
		return fmt.Errorf("archive task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
