package domain

import "time"

// Movie represents the canonical movie entity in the database/service.
// Score and ReviewCount are maintained by the review aggregate and are
// read-only everywhere else.
type Movie struct {
	ID          string
	Title       string
	ReleaseDate *time.Time
	Genre       string
	Overview    *string
	Score       float64
	ReviewCount int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
