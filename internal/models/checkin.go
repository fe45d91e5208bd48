package models

import (
	"time"
)

// CheckIn is one row per user per UTC calendar day. CheckinDate is the
// day in YYYY-MM-DD form; the composite unique index doubles as the
// race-proof guard for the daily reward.
type CheckIn struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      uint      `gorm:"uniqueIndex:uk_user_day,priority:1;not null" json:"user_id"`
	CheckinDate string    `gorm:"uniqueIndex:uk_user_day,priority:2;size:10;not null" json:"checkin_date"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (CheckIn) TableName() string {
	return "checkins"
}

// CheckinDay formats t as the UTC day key used by CheckIn rows.
func CheckinDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
