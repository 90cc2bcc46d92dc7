package model

import "time"

// UploadSlot is an issued presigned upload that hasn't been finalized yet.
// The file listing never reads this table.
type UploadSlot struct {
	ID          string    `gorm:"primaryKey"` // fid the file will get once finalized
	UserID      string    `gorm:"not null;index"`
	StorageKey  string    `gorm:"not null;uniqueIndex"`
	Name        string    `gorm:"not null"`
	Path        string    `gorm:"not null"`
	ContentType string    `gorm:"not null"`
	Size        int64     `gorm:"not null"`
	ExpiresAt   time.Time `gorm:"not null;index"`
	CreatedAt   time.Time
}

func (s UploadSlot) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
