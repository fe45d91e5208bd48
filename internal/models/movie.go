package models

import (
	"time"
)

// Movie rows are written by the catalog sync job, not by this service.
// The reconciler only reads them to attach reviews.
type Movie struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	TmdbID    int64     `gorm:"uniqueIndex:uk_tmdb;not null" json:"tmdb_id"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	PosterURL string    `gorm:"size:255" json:"poster_url"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Movie) TableName() string {
	return "movies"
}
