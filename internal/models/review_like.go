package models

import (
	"time"
)

// ReviewLike is unique per (review, user); the composite index is what
// makes concurrent replays collapse to a single row.
type ReviewLike struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ReviewID  uint      `gorm:"uniqueIndex:uk_review_user,priority:1;not null" json:"review_id"`
	UserID    uint      `gorm:"uniqueIndex:uk_review_user,priority:2;not null" json:"user_id"`
	TxHash    *string   `gorm:"uniqueIndex:uk_like_tx;size:66" json:"tx_hash"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (ReviewLike) TableName() string {
	return "review_likes"
}
