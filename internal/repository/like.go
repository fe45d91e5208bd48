package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/frombarmars/flickshare-sub000/internal/models"
)

type LikeRepository struct {
	db *gorm.DB
}

func NewLikeRepository(db *gorm.DB) *LikeRepository {
	return &LikeRepository{db: db}
}

func (r *LikeRepository) Exists(ctx context.Context, reviewID, userID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ReviewLike{}).
		Where("review_id = ? AND user_id = ?", reviewID, userID).
		Count(&count).Error
	return count > 0, err
}

// Create inserts a like. The (review, user) unique index absorbs
// concurrent replays; created=false means the pair already existed.
func (r *LikeRepository) Create(ctx context.Context, like *models.ReviewLike) (bool, error) {
	err := r.db.WithContext(ctx).Create(like).Error
	if err != nil {
		if isDuplicateKey(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
