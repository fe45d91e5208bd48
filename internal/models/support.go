package models

import (
	"time"
)

// Support is a payment from a user to a review's author. Amount is in
// whole business units, never raw token subunits. TxHash is the replay
// guard for the Supported event.
type Support struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ReviewID    uint      `gorm:"not null;index" json:"review_id"`
	SupporterID uint      `gorm:"not null;index" json:"supporter_id"`
	Amount      int64     `gorm:"not null" json:"amount"`
	TxHash      *string   `gorm:"uniqueIndex:uk_support_tx;size:66" json:"tx_hash"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`

	Review    Review `gorm:"foreignKey:ReviewID" json:"review,omitempty"`
	Supporter User   `gorm:"foreignKey:SupporterID" json:"supporter,omitempty"`
}

func (Support) TableName() string {
	return "supports"
}
