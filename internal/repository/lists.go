package repository

import (
	"context"
	"fmt"

	"github.com/Clark-Hu/movieclub/internal/domain"
)

// ListsRepository manages a per-user movie list. The watchlist and the
// favourites share the same shape and differ only by table.
type ListsRepository struct {
	db    DBTX
	table string
}

// Add puts a movie on the user's list. Adding a movie twice is a no-op.
func (r *ListsRepository) Add(ctx context.Context, userID, movieID string) error {
	query := fmt.Sprintf(`
        INSERT INTO %s (user_id, movie_id)
        VALUES ($1,$2)
        ON CONFLICT (user_id, movie_id) DO NOTHING
    `, r.table)
	if _, err := r.db.Exec(ctx, query, userID, movieID); err != nil {
		return classify(err)
	}
	return nil
}

// Remove takes a movie off the user's list. Removing an absent movie is a no-op.
func (r *ListsRepository) Remove(ctx context.Context, userID, movieID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE user_id = $1 AND movie_id = $2`, r.table)
	if _, err := r.db.Exec(ctx, query, userID, movieID); err != nil {
		return classify(err)
	}
	return nil
}

// ListByUser returns the user's entries, most recently added first.
func (r *ListsRepository) ListByUser(ctx context.Context, userID string) ([]domain.ListEntry, error) {
	query := fmt.Sprintf(`
        SELECT user_id, movie_id, date_added
        FROM %s
        WHERE user_id = $1
        ORDER BY date_added DESC, movie_id
    `, r.table)

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	items := make([]domain.ListEntry, 0)
	for rows.Next() {
		var entry domain.ListEntry
		if err := rows.Scan(&entry.UserID, &entry.MovieID, &entry.DateAdded); err != nil {
			return nil, err
		}
		items = append(items, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return items, nil
}
