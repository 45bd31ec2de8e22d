package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"clearfocus/internal/model"
)

// SettingsRepository manages per-user key/value settings.
type SettingsRepository struct {
	db *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get returns the stored value and whether the key exists.
func (r *SettingsRepository) Get(ctx context.Context, userID uint, key string) (string, bool, error) {
	var setting model.Setting
	err := r.db.WithContext(ctx).
		Where(map[string]interface{}{"user_id": userID, "key": key}).
		First(&setting).Error
	switch {
	case err == nil:
		return setting.Value, true, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return "", false, nil
	default:
		return "", false, fmt.Errorf("find setting: %w", err)
	}
}

func (r *SettingsRepository) ListByUser(ctx context.Context, userID uint) ([]model.Setting, error) {
	var settings []model.Setting
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id ASC").Find(&settings).Error; err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	return settings, nil
}

// Upsert stores value under key, overwriting any previous value.
func (r *SettingsRepository) Upsert(ctx context.Context, userID uint, key, value string) error {
	setting := model.Setting{UserID: userID, Key: key, Value: value}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&setting).Error
	if err != nil {
		return fmt.Errorf("upsert setting: %w", err)
	}
	return nil
}

// Delete removes key so readers fall back to the default.
func (r *SettingsRepository) Delete(ctx context.Context, userID uint, key string) error {
	if err := r.db.WithContext(ctx).
		Where(map[string]interface{}{"user_id": userID, "key": key}).
		Delete(&model.Setting{}).Error; err != nil {
		return fmt.Errorf("delete setting: %w", err)
	}
	return nil
}
