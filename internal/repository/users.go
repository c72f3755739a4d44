package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/Clark-Hu/movieclub/internal/domain"
)

// UsersRepository persists club members.
type UsersRepository struct {
	db DBTX
}

const userColumns = `id, username, email, password_hash, first_name, last_name, created_at, updated_at`

// UserCreateParams bundles the fields required to register a user.
type UserCreateParams struct {
	Username     string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
}

// Create inserts a user. Duplicate usernames or emails fail with
// domain.ErrConstraintViolation.
func (r *UsersRepository) Create(ctx context.Context, params UserCreateParams) (domain.User, error) {
	query := fmt.Sprintf(`
        INSERT INTO users (username, email, password_hash, first_name, last_name)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING %s
    `, userColumns)

	user, err := scanUser(r.db.QueryRow(ctx, query,
		params.Username, strings.ToLower(params.Email), params.PasswordHash, params.FirstName, params.LastName))
	if err != nil {
		return domain.User{}, classify(err)
	}
	return user, nil
}

// GetByID fetches a user by identifier.
func (r *UsersRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns)
	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return domain.User{}, classify(err)
	}
	return user, nil
}

// GetByLogin fetches a user whose username or email matches login.
func (r *UsersRepository) GetByLogin(ctx context.Context, login string) (domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE username = $1 OR email = LOWER($1) LIMIT 1`, userColumns)
	user, err := scanUser(r.db.QueryRow(ctx, query, login))
	if err != nil {
		return domain.User{}, classify(err)
	}
	return user, nil
}

// UpdateProfile replaces the display names of a user.
func (r *UsersRepository) UpdateProfile(ctx context.Context, id, firstName, lastName string) (domain.User, error) {
	query := fmt.Sprintf(`
        UPDATE users
        SET first_name = $2,
            last_name = $3,
            updated_at = now()
        WHERE id = $1
        RETURNING %s
    `, userColumns)
	user, err := scanUser(r.db.QueryRow(ctx, query, id, firstName, lastName))
	if err != nil {
		return domain.User{}, classify(err)
	}
	return user, nil
}

// UpdateGeneral replaces the username and email of a user.
func (r *UsersRepository) UpdateGeneral(ctx context.Context, id, username, email string) (domain.User, error) {
	query := fmt.Sprintf(`
        UPDATE users
        SET username = $2,
            email = $3,
            updated_at = now()
        WHERE id = $1
        RETURNING %s
    `, userColumns)
	user, err := scanUser(r.db.QueryRow(ctx, query, id, username, strings.ToLower(email)))
	if err != nil {
		return domain.User{}, classify(err)
	}
	return user, nil
}

// UpdatePassword stores a new password hash.
func (r *UsersRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`, id, passwordHash)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var user domain.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}
