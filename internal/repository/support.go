package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/frombarmars/flickshare-sub000/internal/models"
)

type SupportRepository struct {
	db *gorm.DB
}

func NewSupportRepository(db *gorm.DB) *SupportRepository {
	return &SupportRepository{db: db}
}

func (r *SupportRepository) ExistsByTxHash(ctx context.Context, txHash string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Support{}).
		Where("tx_hash = ?", txHash).
		Count(&count).Error
	return count > 0, err
}

// Create inserts a support row. A duplicate tx hash means another
// handler already recorded this event; reported as created=false.
func (r *SupportRepository) Create(ctx context.Context, support *models.Support) (bool, error) {
	err := r.db.WithContext(ctx).Create(support).Error
	if err != nil {
		if isDuplicateKey(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// CountBySupporter returns how many supports a user has made on one
// review, the guard for the unique-supporter bonus.
func (r *SupportRepository) CountBySupporter(ctx context.Context, reviewID, supporterID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Support{}).
		Where("review_id = ? AND supporter_id = ?", reviewID, supporterID).
		Count(&count).Error
	return count, err
}
