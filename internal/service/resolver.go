package service

import (
	"context"
	"fmt"

	"github.com/frombarmars/flickshare-sub000/internal/blockchain"
	"github.com/frombarmars/flickshare-sub000/internal/models"
	"github.com/frombarmars/flickshare-sub000/internal/repository"
	"github.com/frombarmars/flickshare-sub000/pkg/logger"
)

// Resolver maps on-chain identities to off-chain rows. No caching: every
// lookup hits the store so a resolve can never outlive the store's own
// consistency.
type Resolver struct {
	userRepo   *repository.UserRepository
	reviewRepo *repository.ReviewRepository
}

func NewResolver(userRepo *repository.UserRepository, reviewRepo *repository.ReviewRepository) *Resolver {
	return &Resolver{
		userRepo:   userRepo,
		reviewRepo: reviewRepo,
	}
}

// ResolveUser returns the user for a wallet address, creating a
// placeholder profile on first sight. Safe under concurrent calls for
// the same new address: the insert is conflict-tolerant and the final
// read returns whichever row won.
func (r *Resolver) ResolveUser(ctx context.Context, address string) (*models.User, error) {
	wallet := blockchain.NormalizeAddress(address)

	user, err := r.userRepo.GetByWallet(ctx, wallet)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}

	placeholder := &models.User{
		WalletAddress: wallet,
		Username:      placeholderUsername(wallet),
	}
	if err := r.userRepo.CreateIfAbsent(ctx, placeholder); err != nil {
		return nil, err
	}

	user, err = r.userRepo.GetByWallet(ctx, wallet)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user %s missing after upsert", wallet)
	}

	logger.WithFields(map[string]interface{}{
		"wallet":   wallet,
		"username": user.Username,
	}).Debug("resolved user")

	return user, nil
}

// ResolveReview returns nil, nil when the on-chain id has no off-chain
// row yet, e.g. a Supported event racing ahead of its ReviewAdded.
func (r *Resolver) ResolveReview(ctx context.Context, numericID int64) (*models.Review, error) {
	return r.reviewRepo.GetByNumericID(ctx, numericID)
}

// placeholderUsername derives a deterministic name from the first hex
// characters of the address.
func placeholderUsername(wallet string) string {
	hex := wallet
	if len(hex) > 2 && hex[:2] == "0x" {
		hex = hex[2:]
	}
	if len(hex) > 6 {
		hex = hex[:6]
	}
	return "user_" + hex
}
