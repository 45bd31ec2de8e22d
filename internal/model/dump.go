package model

import "time"

// DumpEntry is a block of free text waiting to be turned into tasks.
type DumpEntry struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"userId"`
	Content   string    `gorm:"not null" json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	Processed bool      `gorm:"index;default:false" json:"processed"`
}
