package service

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/frombarmars/flickshare-sub000/internal/blockchain"
	"github.com/frombarmars/flickshare-sub000/internal/models"
	"github.com/frombarmars/flickshare-sub000/internal/repository"
)

const (
	walletReviewer  = "0x0000000000000000000000000000000000000aaa"
	walletSupporter = "0x0000000000000000000000000000000000000bbb"
	walletOther     = "0x0000000000000000000000000000000000000ccc"
)

func newTestReconciler(t *testing.T, db *gorm.DB) *Reconciler {
	t.Helper()

	decoder, err := blockchain.NewDecoder(0)
	require.NoError(t, err)

	userRepo := repository.NewUserRepository(db)
	reviewRepo := repository.NewReviewRepository(db)
	resolver := NewResolver(userRepo, reviewRepo)
	ledger := NewLedger(repository.NewPointsRepository(db), testPointsConfig())

	return NewReconciler(
		resolver,
		repository.NewMovieRepository(db),
		reviewRepo,
		repository.NewSupportRepository(db),
		repository.NewLikeRepository(db),
		repository.NewNotificationRepository(db),
		repository.NewCheckinRepository(db),
		ledger,
		decoder,
		testPointsConfig(),
	)
}

func seedMovie(t *testing.T, db *gorm.DB, tmdbID int64) *models.Movie {
	t.Helper()
	movie := &models.Movie{TmdbID: tmdbID, Title: "Fight Club"}
	require.NoError(t, db.Create(movie).Error)
	return movie
}

func reviewAddedEvent(txHash string) *blockchain.ReviewAddedEvent {
	return &blockchain.ReviewAddedEvent{
		EventMeta:  blockchain.EventMeta{TxHash: txHash, BlockNumber: 100},
		Reviewer:   walletReviewer,
		MovieID:    550,
		ReviewID:   1,
		ReviewText: "Great film",
		Timestamp:  time.Unix(1700000000, 0).UTC(),
		Rating:     5,
	}
}

func supportedEvent(txHash, supporter string, amount int64) *blockchain.SupportedEvent {
	return &blockchain.SupportedEvent{
		EventMeta:      blockchain.EventMeta{TxHash: txHash, BlockNumber: 101},
		ReviewID:       1,
		Supporter:      supporter,
		Amount:         big.NewInt(amount),
		FeePercent:     big.NewInt(5),
		DevFee:         big.NewInt(0),
		ReviewerAmount: big.NewInt(amount),
	}
}

func userByWallet(t *testing.T, db *gorm.DB, wallet string) *models.User {
	t.Helper()
	var user models.User
	require.NoError(t, db.Where("wallet_address = ?", wallet).First(&user).Error)
	return &user
}

func TestReviewAddedReconciledOnce(t *testing.T) {
	db := newTestDB(t)
	rec := newTestReconciler(t, db)
	seedMovie(t, db, 550)
	ctx := context.Background()

	require.NoError(t, rec.Apply(ctx, reviewAddedEvent("0xT0")))
	require.NoError(t, rec.Apply(ctx, reviewAddedEvent("0xT0")))

	var reviews []models.Review
	require.NoError(t, db.Where("numeric_id = ?", 1).Find(&reviews).Error)
	require.Len(t, reviews, 1)

	review := reviews[0]
	require.Equal(t, 5, review.Rating)
	require.Equal(t, "Great film", review.Comment)
	require.Equal(t, time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC), review.CreatedAt.UTC())

	reviewer := userByWallet(t, db, walletReviewer)
	require.Equal(t, reviewer.ID, review.ReviewerID)
	require.Equal(t, "user_000000", reviewer.Username)
}

func TestReviewAddedSkipsUnsyncedMovie(t *testing.T) {
	db := newTestDB(t)
	rec := newTestReconciler(t, db)
	ctx := context.Background()

	require.NoError(t, rec.Apply(ctx, reviewAddedEvent("0xT0")))

	var count int64
	require.NoError(t, db.Model(&models.Review{}).Count(&count).Error)
	require.EqualValues(t, 0, count)
}

func TestSupportedAwardsAndNotifies(t *testing.T) {
	db := newTestDB(t)
	rec := newTestReconciler(t, db)
	seedMovie(t, db, 550)
	ctx := context.Background()

	require.NoError(t, rec.Apply(ctx, reviewAddedEvent("0xT0")))
	require.NoError(t, rec.Apply(ctx, supportedEvent("0xT1", walletSupporter, 3)))

	var support models.Support
	require.NoError(t, db.First(&support).Error)
	require.EqualValues(t, 3, support.Amount)

	supporter := userByWallet(t, db, walletSupporter)
	reviewer := userByWallet(t, db, walletReviewer)
	require.EqualValues(t, 60, supporter.TotalPoints, "3 units at 20 points each")
	require.EqualValues(t, 50, reviewer.TotalPoints, "first unique supporter bonus")

	var notifications []models.Notification
	require.NoError(t, db.Find(&notifications).Error)
	require.Len(t, notifications, 1)
	require.Equal(t, reviewer.ID, notifications[0].RecipientID)
	require.Equal(t, models.NotificationSupportReceived, notifications[0].Type)
}

func TestSupportedReplayIsNoop(t *testing.T) {
	db := newTestDB(t)
	rec := newTestReconciler(t, db)
	seedMovie(t, db, 550)
	ctx := context.Background()

	require.NoError(t, rec.Apply(ctx, reviewAddedEvent("0xT0")))
	require.NoError(t, rec.Apply(ctx, supportedEvent("0xT1", walletSupporter, 3)))
	require.NoError(t, rec.Apply(ctx, supportedEvent("0xT1", walletSupporter, 3)))

	var supports int64
	require.NoError(t, db.Model(&models.Support{}).Count(&supports).Error)
	require.EqualValues(t, 1, supports)

	require.EqualValues(t, 60, userByWallet(t, db, walletSupporter).TotalPoints)
	require.EqualValues(t, 50, userByWallet(t, db, walletReviewer).TotalPoints)
}

func TestSelfSupportEarnsNothing(t *testing.T) {
	db := newTestDB(t)
	rec := newTestReconciler(t, db)
	seedMovie(t, db, 550)
	ctx := context.Background()

	require.NoError(t, rec.Apply(ctx, reviewAddedEvent("0xT0")))
	require.NoError(t, rec.Apply(ctx, supportedEvent("0xT1", walletReviewer, 3)))

	var supports int64
	require.NoError(t, db.Model(&models.Support{}).Count(&supports).Error)
	require.EqualValues(t, 1, supports)

	var txns int64
	require.NoError(t, db.Model(&models.PointTransaction{}).Count(&txns).Error)
	require.EqualValues(t, 0, txns)

	var notifications int64
	require.NoError(t, db.Model(&models.Notification{}).Count(&notifications).Error)
	require.EqualValues(t, 0, notifications)
}

func TestUniqueSupporterBonusPerSupporter(t *testing.T) {
	db := newTestDB(t)
	rec := newTestReconciler(t, db)
	seedMovie(t, db, 550)
	ctx := context.Background()

	require.NoError(t, rec.Apply(ctx, reviewAddedEvent("0xT0")))
	require.NoError(t, rec.Apply(ctx, supportedEvent("0xT1", walletSupporter, 3)))
	// same supporter again, new transaction
	require.NoError(t, rec.Apply(ctx, supportedEvent("0xT2", walletSupporter, 2)))

	reviewer := userByWallet(t, db, walletReviewer)
	require.EqualValues(t, 50, reviewer.TotalPoints, "bonus must not repeat for the same supporter")

	// a different supporter triggers the bonus again
	require.NoError(t, rec.Apply(ctx, supportedEvent("0xT3", walletOther, 1)))
	reviewer = userByWallet(t, db, walletReviewer)
	require.EqualValues(t, 100, reviewer.TotalPoints)

	supporter := userByWallet(t, db, walletSupporter)
	require.EqualValues(t, 60+40, supporter.TotalPoints, "spend points repeat per support")
}

func TestSupportedBeforeReviewIsSoftSkip(t *testing.T) {
	db := newTestDB(t)
	rec := newTestReconciler(t, db)
	seedMovie(t, db, 550)
	ctx := context.Background()

	require.NoError(t, rec.Apply(ctx, supportedEvent("0xT1", walletSupporter, 3)))

	var supports int64
	require.NoError(t, db.Model(&models.Support{}).Count(&supports).Error)
	require.EqualValues(t, 0, supports)

	// replay after the review arrives, as the cron replay would
	require.NoError(t, rec.Apply(ctx, reviewAddedEvent("0xT0")))
	require.NoError(t, rec.Apply(ctx, supportedEvent("0xT1", walletSupporter, 3)))

	require.NoError(t, db.Model(&models.Support{}).Count(&supports).Error)
	require.EqualValues(t, 1, supports)
}

func TestReviewLiked(t *testing.T) {
	db := newTestDB(t)
	rec := newTestReconciler(t, db)
	seedMovie(t, db, 550)
	ctx := context.Background()

	require.NoError(t, rec.Apply(ctx, reviewAddedEvent("0xT0")))

	like := &blockchain.ReviewLikedEvent{
		EventMeta:    blockchain.EventMeta{TxHash: "0xT5", BlockNumber: 102},
		ReviewID:     1,
		Liker:        walletSupporter,
		NewLikeCount: 1,
	}
	require.NoError(t, rec.Apply(ctx, like))
	require.NoError(t, rec.Apply(ctx, like))

	var likes int64
	require.NoError(t, db.Model(&models.ReviewLike{}).Count(&likes).Error)
	require.EqualValues(t, 1, likes)

	var notifications []models.Notification
	require.NoError(t, db.Find(&notifications).Error)
	require.Len(t, notifications, 1)
	require.Equal(t, models.NotificationReviewLiked, notifications[0].Type)
}

func TestSelfLikeSkipsNotification(t *testing.T) {
	db := newTestDB(t)
	rec := newTestReconciler(t, db)
	seedMovie(t, db, 550)
	ctx := context.Background()

	require.NoError(t, rec.Apply(ctx, reviewAddedEvent("0xT0")))
	require.NoError(t, rec.Apply(ctx, &blockchain.ReviewLikedEvent{
		EventMeta: blockchain.EventMeta{TxHash: "0xT5", BlockNumber: 102},
		ReviewID:  1,
		Liker:     walletReviewer,
	}))

	var likes int64
	require.NoError(t, db.Model(&models.ReviewLike{}).Count(&likes).Error)
	require.EqualValues(t, 1, likes)

	var notifications int64
	require.NoError(t, db.Model(&models.Notification{}).Count(&notifications).Error)
	require.EqualValues(t, 0, notifications)
}

func TestCheckinEventRecordsOneRowPerDay(t *testing.T) {
	db := newTestDB(t)
	rec := newTestReconciler(t, db)
	ctx := context.Background()

	ev := &blockchain.CheckinEvent{
		EventMeta: blockchain.EventMeta{TxHash: "0xT6", BlockNumber: 103},
		User:      walletSupporter,
	}
	require.NoError(t, rec.Apply(ctx, ev))
	require.NoError(t, rec.Apply(ctx, ev))

	var checkins int64
	require.NoError(t, db.Model(&models.CheckIn{}).Count(&checkins).Error)
	require.EqualValues(t, 1, checkins)

	var user models.User
	require.NoError(t, db.Where("wallet_address = ?", walletSupporter).First(&user).Error)
	exists, err := repository.NewCheckinRepository(db).ExistsForDay(ctx, user.ID, models.CheckinDay(time.Now()))
	require.NoError(t, err)
	require.True(t, exists)

	// informational only: no points from the event path
	var txns int64
	require.NoError(t, db.Model(&models.PointTransaction{}).Count(&txns).Error)
	require.EqualValues(t, 0, txns)
}
