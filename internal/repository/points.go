package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/frombarmars/flickshare-sub000/internal/models"
	apperrors "github.com/frombarmars/flickshare-sub000/pkg/errors"
)

type PointsRepository struct {
	db *gorm.DB
}

func NewPointsRepository(db *gorm.DB) *PointsRepository {
	return &PointsRepository{db: db}
}

// AwardRequest is one ledger award attempt. Day is set (UTC YYYY-MM-DD)
// only for the daily check-in action.
type AwardRequest struct {
	UserID     uint
	ActionType models.ActionType
	Points     int64
	Once       bool
	Day        string
}

// Award runs the dedup checks, the ledger insert and the running-total
// increment as one transaction. The user row is locked first, so
// concurrent awards for the same user serialize and the check phase
// cannot go stale. Returns ok=false with a reason when a dedup rule
// blocked the award; that is a normal outcome, not an error.
func (r *PointsRepository) Award(ctx context.Context, req AwardRequest) (ok bool, reason string, err error) {
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// lock the user row so concurrent awards for one user serialize
		// and the dedup checks below cannot go stale; sqlite has no row
		// locks but serializes writers globally
		q := tx
		if tx.Dialector.Name() != "sqlite" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var user models.User
		if lockErr := q.First(&user, req.UserID).Error; lockErr != nil {
			return apperrors.New(apperrors.ErrLedger, "user not found for award", lockErr)
		}

		if req.Day != "" {
			dayStart, parseErr := time.ParseInLocation("2006-01-02", req.Day, time.UTC)
			if parseErr != nil {
				return apperrors.New(apperrors.ErrLedger, "invalid check-in day "+req.Day, parseErr)
			}

			var count int64
			if countErr := tx.Model(&models.PointTransaction{}).
				Where("user_id = ? AND action_type = ? AND created_at >= ?",
					req.UserID, req.ActionType, dayStart).
				Count(&count).Error; countErr != nil {
				return countErr
			}
			if count > 0 {
				reason = "already checked in today"
				return nil
			}

			// domain record; tolerate the row the event pipeline may
			// have created for the same day
			checkin := &models.CheckIn{UserID: req.UserID, CheckinDate: req.Day}
			if createErr := tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(checkin).Error; createErr != nil && !isDuplicateKey(createErr) {
				return createErr
			}
		} else if req.Once {
			var count int64
			if countErr := tx.Model(&models.PointTransaction{}).
				Where("user_id = ? AND action_type = ?", req.UserID, req.ActionType).
				Count(&count).Error; countErr != nil {
				return countErr
			}
			if count > 0 {
				reason = "already awarded"
				return nil
			}
		}

		txn := &models.PointTransaction{
			UserID:     req.UserID,
			ActionType: req.ActionType,
			Points:     req.Points,
		}
		if insertErr := tx.Create(txn).Error; insertErr != nil {
			return insertErr
		}

		result := tx.Model(&models.User{}).
			Where("id = ?", req.UserID).
			UpdateColumn("total_points", gorm.Expr("total_points + ?", req.Points))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return apperrors.New(apperrors.ErrLedger, "total points increment hit no row", nil)
		}

		ok = true
		return nil
	})

	if err != nil {
		return false, "", err
	}
	return ok, reason, nil
}

// HistoryByUser returns recent ledger rows, newest first.
func (r *PointsRepository) HistoryByUser(ctx context.Context, userID uint, offset, limit int) ([]models.PointTransaction, error) {
	var txns []models.PointTransaction
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&txns).Error
	return txns, err
}

// SumByUser recomputes a user's total from the ledger. Not used on the
// hot path; reconciliation audits only.
func (r *PointsRepository) SumByUser(ctx context.Context, userID uint) (int64, error) {
	var total *int64
	err := r.db.WithContext(ctx).
		Model(&models.PointTransaction{}).
		Where("user_id = ?", userID).
		Select("SUM(points)").
		Scan(&total).Error
	if err != nil || total == nil {
		return 0, err
	}
	return *total, nil
}
