package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatherly/server/internal/domain/users"
)

var _ users.FavoriteRepository = (*FavoriteRepository)(nil)

type FavoriteRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

func (r *FavoriteRepository) queryer() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

func (r *FavoriteRepository) Add(ctx context.Context, userID, eventID string) (bool, error) {
	tag, err := r.queryer().Exec(ctx, `
		INSERT INTO favorites (user_id, event_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, event_id) DO NOTHING`,
		userID, eventID)
	if err != nil {
		return false, fmt.Errorf("add favorite: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *FavoriteRepository) Remove(ctx context.Context, userID, eventID string) error {
	_, err := r.queryer().Exec(ctx, `
		DELETE FROM favorites WHERE user_id = $1 AND event_id = $2`,
		userID, eventID)
	if err != nil {
		return fmt.Errorf("remove favorite: %w", err)
	}
	return nil
}

func (r *FavoriteRepository) Exists(ctx context.Context, userID, eventID string) (bool, error) {
	var exists bool
	err := r.queryer().QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM favorites WHERE user_id = $1 AND event_id = $2)`,
		userID, eventID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check favorite: %w", err)
	}
	return exists, nil
}

func (r *FavoriteRepository) ListEventIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.queryer().Query(ctx, `
		SELECT event_id FROM favorites
		WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan favorite: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
