package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/frombarmars/flickshare-sub000/internal/models"
)

type CheckinRepository struct {
	db *gorm.DB
}

func NewCheckinRepository(db *gorm.DB) *CheckinRepository {
	return &CheckinRepository{db: db}
}

// CreateForDay records a check-in for one UTC day. created=false when
// the (user, day) row already exists, from either delivery path.
func (r *CheckinRepository) CreateForDay(ctx context.Context, userID uint, day string) (bool, error) {
	checkin := &models.CheckIn{UserID: userID, CheckinDate: day}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(checkin)

	if result.Error != nil {
		if isDuplicateKey(result.Error) {
			return false, nil
		}
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *CheckinRepository) ExistsForDay(ctx context.Context, userID uint, day string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CheckIn{}).
		Where("user_id = ? AND checkin_date = ?", userID, day).
		Count(&count).Error
	return count > 0, err
}
