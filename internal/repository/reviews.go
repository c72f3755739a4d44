package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Clark-Hu/movieclub/internal/domain"
)

// ReviewsRepository persists review rows. It never touches movie aggregates.
type ReviewsRepository struct {
	db DBTX
}

const reviewColumns = `id, movie_id, user_id, score, text, created_at, updated_at`

// ReviewInsertParams bundles the fields of a new review. ID is generated when empty.
type ReviewInsertParams struct {
	ID      string
	MovieID string
	UserID  string
	Score   float64
	Text    *string
}

// sortColumns and sortDirections whitelist the identifiers spliced into ORDER BY.
var (
	sortColumns = map[domain.SortField]string{
		domain.SortByDate:  "created_at",
		domain.SortByScore: "score",
	}
	sortDirections = map[domain.SortDirection]string{
		domain.SortAsc:  "ASC",
		domain.SortDesc: "DESC",
	}
	scopeColumns = map[domain.ScopeKind]string{
		domain.ScopeMovie: "movie_id",
		domain.ScopeUser:  "user_id",
	}
)

// Insert stores a review. A second review of the same movie by the same user
// fails with domain.ErrConstraintViolation; an unknown movie or user fails with
// domain.ErrNotFound.
func (r *ReviewsRepository) Insert(ctx context.Context, params ReviewInsertParams) (domain.Review, error) {
	id := params.ID
	if id == "" {
		generated, err := uuid.NewV7()
		if err != nil {
			return domain.Review{}, fmt.Errorf("generate review id: %w", err)
		}
		id = generated.String()
	}

	query := fmt.Sprintf(`
        INSERT INTO reviews (id, movie_id, user_id, score, text)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING %s
    `, reviewColumns)

	review, err := scanReview(r.db.QueryRow(ctx, query, id, params.MovieID, params.UserID, params.Score, params.Text))
	if err != nil {
		return domain.Review{}, classify(err)
	}
	return review, nil
}

// Find returns the review a user wrote for a movie.
func (r *ReviewsRepository) Find(ctx context.Context, movieID, userID string) (domain.Review, error) {
	query := fmt.Sprintf(`SELECT %s FROM reviews WHERE movie_id = $1 AND user_id = $2`, reviewColumns)
	review, err := scanReview(r.db.QueryRow(ctx, query, movieID, userID))
	if err != nil {
		return domain.Review{}, classify(err)
	}
	return review, nil
}

// UpdateText replaces the text of an existing review and bumps updated_at.
// The score and therefore the movie aggregate are left untouched.
func (r *ReviewsRepository) UpdateText(ctx context.Context, movieID, userID string, text *string) (domain.Review, error) {
	query := fmt.Sprintf(`
        UPDATE reviews
        SET text = $3,
            updated_at = now()
        WHERE movie_id = $1 AND user_id = $2
        RETURNING %s
    `, reviewColumns)

	review, err := scanReview(r.db.QueryRow(ctx, query, movieID, userID, text))
	if err != nil {
		return domain.Review{}, classify(err)
	}
	return review, nil
}

// List returns one page of reviews for a movie or a user. Rows are ordered by
// the requested field and then by id in the same direction, so pages form a
// stable total order. A page past the end is empty, not an error.
func (r *ReviewsRepository) List(ctx context.Context, scope domain.ReviewScope, filter domain.ReviewFilter) ([]domain.Review, error) {
	scopeColumn, ok := scopeColumns[scope.Kind]
	if !ok {
		return nil, domain.NewValidationError("scope", "must be movie or user")
	}
	sortColumn, ok := sortColumns[filter.SortField]
	if !ok {
		return nil, domain.NewValidationError("sort", "must be date or score")
	}
	direction, ok := sortDirections[filter.SortDirection]
	if !ok {
		return nil, domain.NewValidationError("order", "must be asc or desc")
	}

	query := fmt.Sprintf(`
        SELECT %s
        FROM reviews
        WHERE %s = $1
        ORDER BY %s %s, id %s
        LIMIT $2 OFFSET $3
    `, reviewColumns, scopeColumn, sortColumn, direction, direction)

	rows, err := r.db.Query(ctx, query, scope.ID, filter.PageSize, filter.Offset())
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	items := make([]domain.Review, 0, filter.PageSize)
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, review)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return items, nil
}

func scanReview(row pgx.Row) (domain.Review, error) {
	var review domain.Review
	err := row.Scan(
		&review.ID,
		&review.MovieID,
		&review.UserID,
		&review.Score,
		&review.Text,
		&review.CreatedAt,
		&review.UpdatedAt,
	)
	if err != nil {
		return domain.Review{}, err
	}
	return review, nil
}
