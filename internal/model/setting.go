package model

import "time"

// Setting is a per-user key/value pair. Only a few keys are interpreted;
// the rest are stored as given.
type Setting struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    uint   `gorm:"not null;uniqueIndex:idx_user_setting_key"`
	Key       string `gorm:"size:64;not null;uniqueIndex:idx_user_setting_key"`
	Value     string `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
