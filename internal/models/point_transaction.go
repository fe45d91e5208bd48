package models

import (
	"time"
)

type ActionType string

const (
	ActionCheckin              ActionType = "CHECKIN"
	ActionReviewSubmit         ActionType = "REVIEW_SUBMIT"
	ActionSupportSpend         ActionType = "SUPPORT_SPEND"
	ActionUniqueSupporterBonus ActionType = "REVIEW_UNIQUE_SUPPORTER_BONUS"
	ActionFollowX              ActionType = "FOLLOW_X"
	ActionFollowDiscord        ActionType = "FOLLOW_DISCORD"
	ActionFollowTelegram       ActionType = "FOLLOW_TELEGRAM"
	ActionInvite               ActionType = "INVITE"
	ActionInvited              ActionType = "INVITED"
)

// PointTransaction is append-only. User.TotalPoints is a cached running
// sum maintained in the same transaction as each insert; this table is
// the source of truth for every dedup check.
type PointTransaction struct {
	ID         uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     uint       `gorm:"not null;index:idx_user_type,priority:1" json:"user_id"`
	ActionType ActionType `gorm:"size:40;not null;index:idx_user_type,priority:2" json:"action_type"`
	Points     int64      `gorm:"not null" json:"points"`
	CreatedAt  time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
}

func (PointTransaction) TableName() string {
	return "point_transactions"
}
