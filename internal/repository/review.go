package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/frombarmars/flickshare-sub000/internal/models"
)

type ReviewRepository struct {
	db *gorm.DB
}

func NewReviewRepository(db *gorm.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// GetByNumericID looks a review up by its on-chain id. nil, nil when the
// review has not been reconciled yet; callers treat that as a soft skip.
func (r *ReviewRepository) GetByNumericID(ctx context.Context, numericID int64) (*models.Review, error) {
	var review models.Review
	err := r.db.WithContext(ctx).
		Where("numeric_id = ?", numericID).
		First(&review).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &review, nil
}

// CreateIfAbsent inserts the review unless its numeric id is already
// present. Returns true when this call created the row.
func (r *ReviewRepository) CreateIfAbsent(ctx context.Context, review *models.Review) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "numeric_id"}},
			DoNothing: true,
		}).
		Create(review)

	if result.Error != nil {
		if isDuplicateKey(result.Error) {
			return false, nil
		}
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
