package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/movieclub/internal/store"
)

// DBTX is the query surface shared by *pgxpool.Pool and pgx.Tx, so every
// repository method runs unchanged inside or outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository aggregates all domain-specific repositories.
type Repository struct {
	Movies     *MoviesRepository
	Reviews    *ReviewsRepository
	Users      *UsersRepository
	Watchlist  *ListsRepository
	Favourites *ListsRepository
}

// New constructs a Repository backed by the provided store.
func New(st *store.Store) *Repository {
	return newRepository(st.Pool())
}

// NewWithPool allows constructing repositories directly from a pgx pool.
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return newRepository(pool)
}

// WithTx returns repositories bound to tx. They must not be used after the
// transaction ends.
func (r *Repository) WithTx(tx pgx.Tx) *Repository {
	return newRepository(tx)
}

func newRepository(db DBTX) *Repository {
	return &Repository{
		Movies:     &MoviesRepository{db: db},
		Reviews:    &ReviewsRepository{db: db},
		Users:      &UsersRepository{db: db},
		Watchlist:  &ListsRepository{db: db, table: "watchlist"},
		Favourites: &ListsRepository{db: db, table: "favourites"},
	}
}
