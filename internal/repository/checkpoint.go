package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/frombarmars/flickshare-sub000/internal/models"
)

type CheckpointRepository struct {
	db *gorm.DB
}

func NewCheckpointRepository(db *gorm.DB) *CheckpointRepository {
	return &CheckpointRepository{db: db}
}

// GetLastProcessed returns 0 when no checkpoint exists; the listener
// then falls back to the configured start block.
func (r *CheckpointRepository) GetLastProcessed(ctx context.Context, contractAddress string) (int64, error) {
	var cp models.ListenerCheckpoint
	err := r.db.WithContext(ctx).
		Where("contract_address = ?", contractAddress).
		First(&cp).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	return cp.BlockNumber, err
}

// Advance moves the checkpoint forward, never backward. Best effort:
// reconciliation tolerates re-scanning on a stale checkpoint.
func (r *CheckpointRepository) Advance(ctx context.Context, contractAddress string, blockNumber int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.ListenerCheckpoint
		err := tx.Where("contract_address = ?", contractAddress).First(&existing).Error

		if errors.Is(err, gorm.ErrRecordNotFound) {
			cp := &models.ListenerCheckpoint{
				ContractAddress: contractAddress,
				BlockNumber:     blockNumber,
			}
			return tx.Create(cp).Error
		}
		if err != nil {
			return err
		}

		if blockNumber <= existing.BlockNumber {
			return nil
		}
		return tx.Model(&existing).Update("block_number", blockNumber).Error
	})
}
