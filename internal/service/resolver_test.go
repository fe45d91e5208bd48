package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/frombarmars/flickshare-sub000/internal/models"
	"github.com/frombarmars/flickshare-sub000/internal/repository"
)

func newTestResolver(t *testing.T) (*Resolver, *repository.ReviewRepository) {
	t.Helper()
	db := newTestDB(t)
	reviewRepo := repository.NewReviewRepository(db)
	return NewResolver(repository.NewUserRepository(db), reviewRepo), reviewRepo
}

func TestResolveUserCreatesPlaceholder(t *testing.T) {
	resolver, _ := newTestResolver(t)
	ctx := context.Background()

	user, err := resolver.ResolveUser(ctx, "0xAbCdEf0000000000000000000000000000000001")
	require.NoError(t, err)
	require.Equal(t, "0xabcdef0000000000000000000000000000000001", user.WalletAddress)
	require.Equal(t, "user_abcdef", user.Username)
	require.Empty(t, user.ProfilePictureURL)
}

func TestResolveUserIsStableAcrossCase(t *testing.T) {
	resolver, _ := newTestResolver(t)
	ctx := context.Background()

	first, err := resolver.ResolveUser(ctx, "0xABCDEF0000000000000000000000000000000001")
	require.NoError(t, err)

	second, err := resolver.ResolveUser(ctx, "0xabcdef0000000000000000000000000000000001")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
}

func TestConcurrentResolveCreatesOneUser(t *testing.T) {
	db := newTestDB(t)
	resolver := NewResolver(repository.NewUserRepository(db), repository.NewReviewRepository(db))
	ctx := context.Background()

	const resolvers = 8
	ids := make([]uint, resolvers)
	errs := make([]error, resolvers)
	var wg sync.WaitGroup
	for i := 0; i < resolvers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user, err := resolver.ResolveUser(ctx, "0xAbCdEf0000000000000000000000000000000099")
			if err != nil {
				errs[i] = err
				return
			}
			ids[i] = user.ID
		}(i)
	}
	wg.Wait()

	for i := 0; i < resolvers; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, ids[0], ids[i], "every resolve must land on the same row")
	}

	var count int64
	require.NoError(t, db.Model(&models.User{}).
		Where("wallet_address = ?", "0xabcdef0000000000000000000000000000000099").
		Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestResolveReviewNotFoundIsSoft(t *testing.T) {
	resolver, reviewRepo := newTestResolver(t)
	ctx := context.Background()

	review, err := resolver.ResolveReview(ctx, 42)
	require.NoError(t, err)
	require.Nil(t, review)

	user, err := resolver.ResolveUser(ctx, "0xAbCdEf0000000000000000000000000000000001")
	require.NoError(t, err)

	created, err := reviewRepo.CreateIfAbsent(ctx, &models.Review{
		NumericID:  42,
		ReviewerID: user.ID,
		MovieID:    1,
		Rating:     4,
	})
	require.NoError(t, err)
	require.True(t, created)

	review, err = resolver.ResolveReview(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, review)
	require.EqualValues(t, 42, review.NumericID)
}
