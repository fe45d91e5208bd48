package models

import (
	"time"
)

// Review mirrors an on-chain review. NumericID is the contract-assigned
// review id and is immutable once set. CreatedAt carries the on-chain
// timestamp, not the ingestion time.
type Review struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	NumericID  int64     `gorm:"uniqueIndex:uk_numeric_id;not null" json:"numeric_id"`
	ReviewerID uint      `gorm:"not null;index" json:"reviewer_id"`
	MovieID    uint      `gorm:"not null;index" json:"movie_id"`
	Comment    string    `gorm:"type:text" json:"comment"`
	Rating     int       `gorm:"not null" json:"rating"`
	TxHash     *string   `gorm:"uniqueIndex:uk_review_tx;size:66" json:"tx_hash"`
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`

	Reviewer User  `gorm:"foreignKey:ReviewerID" json:"reviewer,omitempty"`
	Movie    Movie `gorm:"foreignKey:MovieID" json:"movie,omitempty"`
}

func (Review) TableName() string {
	return "reviews"
}
