package service

import (
	"context"
	"fmt"
	"time"

	"github.com/frombarmars/flickshare-sub000/internal/blockchain"
	"github.com/frombarmars/flickshare-sub000/internal/config"
	"github.com/frombarmars/flickshare-sub000/internal/models"
	"github.com/frombarmars/flickshare-sub000/internal/repository"
	"github.com/frombarmars/flickshare-sub000/pkg/errors"
	"github.com/frombarmars/flickshare-sub000/pkg/logger"
)

// Reconciler applies decoded contract events to the store exactly once.
// Every step is an existence-check-then-create against a unique key, so
// replaying a block range after a crash is always safe. A failure after
// an earlier step leaves the earlier writes standing; only the ledger's
// own insert+increment is a cross-write atomic unit.
type Reconciler struct {
	resolver         *Resolver
	movieRepo        *repository.MovieRepository
	reviewRepo       *repository.ReviewRepository
	supportRepo      *repository.SupportRepository
	likeRepo         *repository.LikeRepository
	notificationRepo *repository.NotificationRepository
	checkinRepo      *repository.CheckinRepository
	ledger           *Ledger
	decoder          *blockchain.Decoder
	pointsCfg        *config.PointsConfig
	now              func() time.Time
}

func NewReconciler(
	resolver *Resolver,
	movieRepo *repository.MovieRepository,
	reviewRepo *repository.ReviewRepository,
	supportRepo *repository.SupportRepository,
	likeRepo *repository.LikeRepository,
	notificationRepo *repository.NotificationRepository,
	checkinRepo *repository.CheckinRepository,
	ledger *Ledger,
	decoder *blockchain.Decoder,
	pointsCfg *config.PointsConfig,
) *Reconciler {
	return &Reconciler{
		resolver:         resolver,
		movieRepo:        movieRepo,
		reviewRepo:       reviewRepo,
		supportRepo:      supportRepo,
		likeRepo:         likeRepo,
		notificationRepo: notificationRepo,
		checkinRepo:      checkinRepo,
		ledger:           ledger,
		decoder:          decoder,
		pointsCfg:        pointsCfg,
		now:              time.Now,
	}
}

// Apply dispatches one decoded event. Soft outcomes (already processed,
// review not synced yet) return nil; hard store failures propagate so
// the caller leaves the event for a later replay.
func (r *Reconciler) Apply(ctx context.Context, ev blockchain.Event) error {
	switch e := ev.(type) {
	case *blockchain.ReviewAddedEvent:
		return r.applyReviewAdded(ctx, e)
	case *blockchain.SupportedEvent:
		return r.applySupported(ctx, e)
	case *blockchain.ReviewLikedEvent:
		return r.applyReviewLiked(ctx, e)
	case *blockchain.CheckinEvent:
		return r.applyCheckin(ctx, e)
	default:
		return errors.New(errors.ErrReconcile,
			fmt.Sprintf("unknown event kind %s", ev.Kind()), nil)
	}
}

func (r *Reconciler) applyReviewAdded(ctx context.Context, ev *blockchain.ReviewAddedEvent) error {
	existing, err := r.resolver.ResolveReview(ctx, ev.ReviewID)
	if err != nil {
		return err
	}
	if existing != nil {
		logger.WithFields(map[string]interface{}{
			"numeric_id": ev.ReviewID,
		}).Debug("review already reconciled")
		return nil
	}

	reviewer, err := r.resolver.ResolveUser(ctx, ev.Reviewer)
	if err != nil {
		return err
	}

	movie, err := r.movieRepo.GetByTmdbID(ctx, ev.MovieID)
	if err != nil {
		return err
	}
	if movie == nil {
		// catalog sync owns movies; nothing to attach this review to yet
		logger.WithFields(map[string]interface{}{
			"tmdb_id":    ev.MovieID,
			"numeric_id": ev.ReviewID,
		}).Warn("movie not synced, skipping review event")
		return nil
	}

	txHash := ev.TxHash
	review := &models.Review{
		NumericID:  ev.ReviewID,
		ReviewerID: reviewer.ID,
		MovieID:    movie.ID,
		Comment:    ev.ReviewText,
		Rating:     ev.Rating,
		TxHash:     &txHash,
		CreatedAt:  ev.Timestamp,
	}

	created, err := r.reviewRepo.CreateIfAbsent(ctx, review)
	if err != nil {
		return err
	}
	if !created {
		logger.WithFields(map[string]interface{}{
			"numeric_id": ev.ReviewID,
		}).Debug("review created concurrently")
		return nil
	}

	logger.WithFields(map[string]interface{}{
		"numeric_id": ev.ReviewID,
		"reviewer":   reviewer.WalletAddress,
		"tmdb_id":    ev.MovieID,
		"rating":     ev.Rating,
	}).Info("review reconciled")

	return nil
}

func (r *Reconciler) applySupported(ctx context.Context, ev *blockchain.SupportedEvent) error {
	exists, err := r.supportRepo.ExistsByTxHash(ctx, ev.TxHash)
	if err != nil {
		return err
	}
	if exists {
		logger.WithFields(map[string]interface{}{
			"tx_hash": ev.TxHash,
		}).Debug("support already reconciled")
		return nil
	}

	review, err := r.resolver.ResolveReview(ctx, ev.ReviewID)
	if err != nil {
		return err
	}
	if review == nil {
		logger.WithFields(map[string]interface{}{
			"numeric_id": ev.ReviewID,
			"tx_hash":    ev.TxHash,
		}).Warn("review not synced yet, skipping support event")
		return nil
	}

	supporter, err := r.resolver.ResolveUser(ctx, ev.Supporter)
	if err != nil {
		return err
	}

	txHash := ev.TxHash
	support := &models.Support{
		ReviewID:    review.ID,
		SupporterID: supporter.ID,
		Amount:      r.decoder.AmountToUnits(ev.Amount),
		TxHash:      &txHash,
	}

	created, err := r.supportRepo.Create(ctx, support)
	if err != nil {
		return err
	}
	if !created {
		logger.WithFields(map[string]interface{}{
			"tx_hash": ev.TxHash,
		}).Debug("support created concurrently")
		return nil
	}

	// self-support gets the row but never a notification or points
	if supporter.ID == review.ReviewerID {
		return nil
	}

	notification := &models.Notification{
		RecipientID:   review.ReviewerID,
		TriggeredByID: supporter.ID,
		Type:          models.NotificationSupportReceived,
		Message:       fmt.Sprintf("%s supported your review with %d WLD", supporter.Username, support.Amount),
		EntityID:      review.ID,
	}
	if err := r.notificationRepo.Create(ctx, notification); err != nil {
		return err
	}

	spendPoints := r.decoder.AmountToPoints(ev.Amount, r.pointsCfg.SupportRate)
	if spendPoints > 0 {
		if _, err := r.ledger.Award(ctx, supporter.ID, models.ActionSupportSpend, spendPoints, AwardOptions{}); err != nil {
			return err
		}
	}

	// bonus once per unique supporter of this review
	count, err := r.supportRepo.CountBySupporter(ctx, review.ID, supporter.ID)
	if err != nil {
		return err
	}
	if count == 1 {
		if _, err := r.ledger.Award(ctx, review.ReviewerID, models.ActionUniqueSupporterBonus,
			r.pointsCfg.UniqueSupporterBonus, AwardOptions{}); err != nil {
			return err
		}
	}

	logger.WithFields(map[string]interface{}{
		"tx_hash":    ev.TxHash,
		"numeric_id": ev.ReviewID,
		"supporter":  supporter.WalletAddress,
		"amount":     support.Amount,
	}).Info("support reconciled")

	return nil
}

func (r *Reconciler) applyReviewLiked(ctx context.Context, ev *blockchain.ReviewLikedEvent) error {
	review, err := r.resolver.ResolveReview(ctx, ev.ReviewID)
	if err != nil {
		return err
	}
	if review == nil {
		logger.WithFields(map[string]interface{}{
			"numeric_id": ev.ReviewID,
			"tx_hash":    ev.TxHash,
		}).Warn("review not synced yet, skipping like event")
		return nil
	}

	liker, err := r.resolver.ResolveUser(ctx, ev.Liker)
	if err != nil {
		return err
	}

	exists, err := r.likeRepo.Exists(ctx, review.ID, liker.ID)
	if err != nil {
		return err
	}
	if exists {
		logger.WithFields(map[string]interface{}{
			"numeric_id": ev.ReviewID,
			"liker":      liker.WalletAddress,
		}).Debug("like already reconciled")
		return nil
	}

	txHash := ev.TxHash
	like := &models.ReviewLike{
		ReviewID: review.ID,
		UserID:   liker.ID,
		TxHash:   &txHash,
	}

	created, err := r.likeRepo.Create(ctx, like)
	if err != nil {
		return err
	}
	if !created {
		return nil
	}

	if liker.ID != review.ReviewerID {
		notification := &models.Notification{
			RecipientID:   review.ReviewerID,
			TriggeredByID: liker.ID,
			Type:          models.NotificationReviewLiked,
			Message:       fmt.Sprintf("%s liked your review", liker.Username),
			EntityID:      review.ID,
		}
		if err := r.notificationRepo.Create(ctx, notification); err != nil {
			return err
		}
	}

	logger.WithFields(map[string]interface{}{
		"numeric_id": ev.ReviewID,
		"liker":      liker.WalletAddress,
	}).Info("like reconciled")

	return nil
}

// applyCheckin records the on-chain check-in as a domain row only. The
// daily reward itself goes through the ledger's own check-in path; this
// event is informational and must not double-create the day row when
// both paths fire.
func (r *Reconciler) applyCheckin(ctx context.Context, ev *blockchain.CheckinEvent) error {
	user, err := r.resolver.ResolveUser(ctx, ev.User)
	if err != nil {
		return err
	}

	created, err := r.checkinRepo.CreateForDay(ctx, user.ID, models.CheckinDay(r.now()))
	if err != nil {
		return err
	}
	if !created {
		logger.WithFields(map[string]interface{}{
			"wallet": user.WalletAddress,
		}).Debug("check-in already recorded today")
		return nil
	}

	logger.WithFields(map[string]interface{}{
		"wallet": user.WalletAddress,
	}).Info("check-in reconciled")

	return nil
}
