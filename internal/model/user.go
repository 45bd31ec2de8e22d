package model

import "time"

// User owns tasks, dumps and settings. A user comes from the web signup
// (email + password) or from first contact with the Telegram bot.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Email        *string   `gorm:"uniqueIndex" json:"email,omitempty"`
	PasswordHash string    `json:"-"`
	TelegramID   *int64    `gorm:"uniqueIndex" json:"-"`
	FirstName    string    `json:"firstName,omitempty"`
	Username     string    `json:"username,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"-"`
}
