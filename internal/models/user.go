package models

import (
	"time"
)

type User struct {
	ID                uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	WalletAddress     string    `gorm:"uniqueIndex:uk_wallet;size:42;not null" json:"wallet_address"`
	Username          string    `gorm:"size:50;not null" json:"username"`
	ProfilePictureURL string    `gorm:"size:255" json:"profile_picture_url"`
	TotalPoints       int64     `gorm:"not null;default:0" json:"total_points"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
