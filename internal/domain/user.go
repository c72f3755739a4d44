package domain

import "time"

// User is a registered club member. PasswordHash never leaves the service layer.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ListEntry is one movie on a user's watchlist or favourites.
type ListEntry struct {
	UserID    string
	MovieID   string
	DateAdded time.Time
}
