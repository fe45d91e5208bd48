package models

import (
	"time"
)

// ListenerCheckpoint records the last block the listener fully scanned
// for a contract. Best effort: losing it only widens the next backfill,
// reconciliation stays idempotent either way.
type ListenerCheckpoint struct {
	ID              uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ContractAddress string    `gorm:"uniqueIndex:uk_contract;size:42;not null" json:"contract_address"`
	BlockNumber     int64     `gorm:"not null" json:"block_number"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ListenerCheckpoint) TableName() string {
	return "listener_checkpoints"
}
