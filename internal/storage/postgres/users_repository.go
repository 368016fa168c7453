package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatherly/server/internal/domain/users"
)

var _ users.Repository = (*UserRepository)(nil)

type UserRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

func (r *UserRepository) queryer() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

const userColumns = `id, email, username, password_hash, role, selected_categories, profile_photo_url, email_verified, created_at`

func scanUser(row pgx.Row) (*users.User, error) {
	var (
		u        users.User
		photoURL *string
	)
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.Role, &u.SelectedCategories, &photoURL, &u.EmailVerified, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, users.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.ProfilePhotoURL = derefString(photoURL)
	if u.SelectedCategories == nil {
		u.SelectedCategories = []string{}
	}
	return &u, nil
}

func (r *UserRepository) Create(ctx context.Context, params users.CreateParams) (*users.User, error) {
	row := r.queryer().QueryRow(ctx, `
		INSERT INTO users (email, username, password_hash, role, email_verified)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+userColumns,
		params.Email, params.Username, params.PasswordHash, params.Role, params.EmailVerified)
	user, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err, "users_email_key") {
			return nil, users.ErrEmailTaken
		}
		if isUniqueViolation(err, "users_username_key") {
			return nil, users.ErrUsernameTaken
		}
		return nil, err
	}
	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*users.User, error) {
	row := r.queryer().QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*users.User, error) {
	row := r.queryer().QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	return scanUser(row)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	row := r.queryer().QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

func (r *UserRepository) UpdateUsername(ctx context.Context, id, username string) (*users.User, error) {
	row := r.queryer().QueryRow(ctx, `
		UPDATE users SET username = $2 WHERE id = $1
		RETURNING `+userColumns, id, username)
	user, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err, "users_username_key") {
			return nil, users.ErrUsernameTaken
		}
		return nil, err
	}
	return user, nil
}

func (r *UserRepository) UpdatePhotoURL(ctx context.Context, id, photoURL string) (*users.User, error) {
	row := r.queryer().QueryRow(ctx, `
		UPDATE users SET profile_photo_url = $2 WHERE id = $1
		RETURNING `+userColumns, id, nullableString(photoURL))
	return scanUser(row)
}

func (r *UserRepository) UpdateCategories(ctx context.Context, id string, categories []string) (*users.User, error) {
	if categories == nil {
		categories = []string{}
	}
	row := r.queryer().QueryRow(ctx, `
		UPDATE users SET selected_categories = $2 WHERE id = $1
		RETURNING `+userColumns, id, categories)
	return scanUser(row)
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.queryer().Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return users.ErrNotFound
	}
	return nil
}
