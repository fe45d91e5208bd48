package models

import (
	"time"
)

type NotificationType string

const (
	NotificationSupportReceived NotificationType = "SUPPORT_RECEIVED"
	NotificationReviewLiked     NotificationType = "REVIEW_LIKED"
)

type Notification struct {
	ID            uint             `gorm:"primaryKey;autoIncrement" json:"id"`
	RecipientID   uint             `gorm:"not null;index" json:"recipient_id"`
	TriggeredByID uint             `gorm:"not null" json:"triggered_by_id"`
	Type          NotificationType `gorm:"size:30;not null" json:"type"`
	Message       string           `gorm:"size:255" json:"message"`
	EntityID      uint             `json:"entity_id"`
	IsRead        bool             `gorm:"not null;default:false;index" json:"is_read"`
	CreatedAt     time.Time        `gorm:"autoCreateTime" json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}
