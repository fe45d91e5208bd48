package service

import (
	"context"
	"time"

	"github.com/frombarmars/flickshare-sub000/internal/config"
	"github.com/frombarmars/flickshare-sub000/internal/models"
	"github.com/frombarmars/flickshare-sub000/internal/repository"
	"github.com/frombarmars/flickshare-sub000/pkg/logger"
)

// AwardResult is the outcome of one ledger call. OK false with a Reason
// is a dedup rejection, a normal outcome the caller can surface to the
// user directly.
type AwardResult struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

type AwardOptions struct {
	Once bool
}

// Ledger is the single choke point for point awards. Both the event
// pipeline and the synchronous API handlers call it, so every rule here
// must hold under redundant and concurrent invocation.
type Ledger struct {
	pointsRepo *repository.PointsRepository
	cfg        *config.PointsConfig
	now        func() time.Time
}

func NewLedger(pointsRepo *repository.PointsRepository, cfg *config.PointsConfig) *Ledger {
	return &Ledger{
		pointsRepo: pointsRepo,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Award records a point transaction and bumps the user's running total
// atomically. CHECKIN is limited to once per UTC day; Once-flagged
// actions to once per user ever.
func (l *Ledger) Award(ctx context.Context, userID uint, actionType models.ActionType, points int64, opts AwardOptions) (AwardResult, error) {
	req := repository.AwardRequest{
		UserID:     userID,
		ActionType: actionType,
		Points:     points,
		Once:       opts.Once,
	}
	if actionType == models.ActionCheckin {
		req.Day = models.CheckinDay(l.now())
	}

	ok, reason, err := l.pointsRepo.Award(ctx, req)
	if err != nil {
		return AwardResult{}, err
	}

	if ok {
		logger.WithFields(map[string]interface{}{
			"user_id":     userID,
			"action_type": actionType,
			"points":      points,
		}).Info("points awarded")
	} else {
		logger.WithFields(map[string]interface{}{
			"user_id":     userID,
			"action_type": actionType,
			"reason":      reason,
		}).Debug("award rejected by dedup rule")
	}

	return AwardResult{OK: ok, Reason: reason}, nil
}

// Checkin is the API-driven daily check-in award.
func (l *Ledger) Checkin(ctx context.Context, userID uint) (AwardResult, error) {
	return l.Award(ctx, userID, models.ActionCheckin, l.cfg.Checkin, AwardOptions{})
}

// ReviewSubmitted awards the eager review-submission bonus.
func (l *Ledger) ReviewSubmitted(ctx context.Context, userID uint) (AwardResult, error) {
	return l.Award(ctx, userID, models.ActionReviewSubmit, l.cfg.ReviewSubmit, AwardOptions{})
}

// FollowClaimed awards a once-only social-follow task.
func (l *Ledger) FollowClaimed(ctx context.Context, userID uint, actionType models.ActionType) (AwardResult, error) {
	return l.Award(ctx, userID, actionType, l.cfg.Follow, AwardOptions{Once: true})
}

// InviteAccepted awards the inviter per accepted invite and the invitee
// a one-time joining bonus.
func (l *Ledger) InviteAccepted(ctx context.Context, inviterID, inviteeID uint) (AwardResult, AwardResult, error) {
	inviterRes, err := l.Award(ctx, inviterID, models.ActionInvite, l.cfg.Invite, AwardOptions{})
	if err != nil {
		return AwardResult{}, AwardResult{}, err
	}

	inviteeRes, err := l.Award(ctx, inviteeID, models.ActionInvited, l.cfg.Invited, AwardOptions{Once: true})
	if err != nil {
		return inviterRes, AwardResult{}, err
	}

	return inviterRes, inviteeRes, nil
}
