package domain

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MinScore  = 0.0
	MaxScore  = 10.0
	ScoreStep = 0.5

	MaxReviewTextLength = 5000

	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Review is a single user's review of a movie. A user reviews a movie at most once.
type Review struct {
	ID        string
	MovieID   string
	UserID    string
	Score     float64
	Text      *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ValidateScore reports whether score is within [MinScore, MaxScore] in ScoreStep increments.
func ValidateScore(score float64) error {
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return NewValidationError("score", "must be a number")
	}
	if score < MinScore || score > MaxScore {
		return NewValidationError("score", "must be between 0 and 10")
	}
	if steps := score / ScoreStep; steps != math.Trunc(steps) {
		return NewValidationError("score", "must be a multiple of 0.5")
	}
	return nil
}

// NormalizeReviewText trims text and maps blank input to nil.
func NormalizeReviewText(text *string) (*string, error) {
	if text == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*text)
	if trimmed == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(trimmed) > MaxReviewTextLength {
		return nil, NewValidationError("text", "must be at most 5000 characters")
	}
	return &trimmed, nil
}

// ScopeKind selects the equality predicate of a review listing.
type ScopeKind string

const (
	ScopeMovie ScopeKind = "movie"
	ScopeUser  ScopeKind = "user"
)

// ReviewScope restricts a listing to one movie or one user.
type ReviewScope struct {
	Kind ScopeKind
	ID   string
}

// MovieScope lists the reviews of a movie.
func MovieScope(movieID string) ReviewScope { return ReviewScope{Kind: ScopeMovie, ID: movieID} }

// UserScope lists the reviews written by a user.
func UserScope(userID string) ReviewScope { return ReviewScope{Kind: ScopeUser, ID: userID} }

// Validate ensures the scope names a known kind and a non-empty id.
func (s ReviewScope) Validate() error {
	switch s.Kind {
	case ScopeMovie, ScopeUser:
	default:
		return NewValidationError("scope", "must be movie or user")
	}
	if strings.TrimSpace(s.ID) == "" {
		return NewValidationError("scope", "id is required")
	}
	return nil
}

type SortField string

const (
	SortByDate  SortField = "date"
	SortByScore SortField = "score"
)

type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// ReviewFilter carries ordering and zero-based page selection for a listing.
type ReviewFilter struct {
	SortField     SortField
	SortDirection SortDirection
	PageIndex     int
	PageSize      int
}

// Normalize fills defaults (newest first, DefaultPageSize) and validates the result.
func (f ReviewFilter) Normalize() (ReviewFilter, error) {
	if f.SortField == "" {
		f.SortField = SortByDate
	}
	if f.SortDirection == "" {
		f.SortDirection = SortDesc
	}
	if f.PageSize == 0 {
		f.PageSize = DefaultPageSize
	}
	switch f.SortField {
	case SortByDate, SortByScore:
	default:
		return f, NewValidationError("sort", "must be date or score")
	}
	switch f.SortDirection {
	case SortAsc, SortDesc:
	default:
		return f, NewValidationError("order", "must be asc or desc")
	}
	if f.PageIndex < 0 {
		return f, NewValidationError("page", "must be non-negative")
	}
	if f.PageSize < 1 || f.PageSize > MaxPageSize {
		return f, NewValidationError("size", "must be between 1 and 100")
	}
	return f, nil
}

// Offset is the number of rows skipped before the requested page. It
// saturates at math.MaxInt so far-out pages read as past the end.
func (f ReviewFilter) Offset() int {
	if f.PageIndex <= 0 || f.PageSize <= 0 {
		return 0
	}
	if f.PageIndex > math.MaxInt/f.PageSize {
		return math.MaxInt
	}
	return f.PageIndex * f.PageSize
}
