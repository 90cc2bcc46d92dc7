package model

import "time"

type User struct {
	ID           string    `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"not null" json:"name"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`

	Files []File `gorm:"foreignKey:UserID" json:"-"`
	Stats Stats  `gorm:"foreignKey:UserID" json:"-"`
}
