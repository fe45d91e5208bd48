package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/frombarmars/flickshare-sub000/internal/models"
)

// MovieRepository is read-only here; the catalog sync job owns writes.
type MovieRepository struct {
	db *gorm.DB
}

func NewMovieRepository(db *gorm.DB) *MovieRepository {
	return &MovieRepository{db: db}
}

// GetByTmdbID returns nil, nil when the movie has not been synced yet.
func (r *MovieRepository) GetByTmdbID(ctx context.Context, tmdbID int64) (*models.Movie, error) {
	var movie models.Movie
	err := r.db.WithContext(ctx).
		Where("tmdb_id = ?", tmdbID).
		First(&movie).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &movie, nil
}
