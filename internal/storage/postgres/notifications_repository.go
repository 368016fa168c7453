package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/gatherly/server/internal/domain/notifications"
)

var _ notifications.Repository = (*NotificationRepository)(nil)

type NotificationRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

func (r *NotificationRepository) queryer() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

const notificationColumns = `id, user_id, type, title, message, related_id, read, created_at`

func scanNotification(row pgx.Row) (*notifications.Notification, error) {
	var (
		n         notifications.Notification
		relatedID *string
	)
	err := row.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &relatedID, &n.Read, &n.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notifications.ErrNotFound
		}
		return nil, fmt.Errorf("scan notification: %w", err)
	}
	n.RelatedID = derefString(relatedID)
	return &n, nil
}

func (r *NotificationRepository) Create(ctx context.Context, params notifications.CreateParams) (*notifications.Notification, error) {
	row := r.queryer().QueryRow(ctx, `
		INSERT INTO notifications (id, user_id, type, title, message, related_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+notificationColumns,
		ulid.Make().String(), params.UserID, params.Type, params.Title, params.Message,
		nullableString(params.RelatedID))
	return scanNotification(row)
}

func (r *NotificationRepository) Get(ctx context.Context, id string) (*notifications.Notification, error) {
	row := r.queryer().QueryRow(ctx, `
		SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id)
	return scanNotification(row)
}

// ListByUser returns notifications newest first; ids are ULIDs so the
// id ordering is chronological.
func (r *NotificationRepository) ListByUser(ctx context.Context, userID string) ([]notifications.Notification, error) {
	rows, err := r.queryer().Query(ctx, `
		SELECT `+notificationColumns+` FROM notifications
		WHERE user_id = $1
		ORDER BY id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	result := []notifications.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *n)
	}
	return result, rows.Err()
}

func (r *NotificationRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.queryer().QueryRow(ctx, `
		SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT read`,
		userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

func (r *NotificationRepository) MarkRead(ctx context.Context, id string) error {
	tag, err := r.queryer().Exec(ctx, `UPDATE notifications SET read = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notifications.ErrNotFound
	}
	return nil
}

func (r *NotificationRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.queryer().Exec(ctx, `DELETE FROM notifications WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notifications.ErrNotFound
	}
	return nil
}

func (r *NotificationRepository) DeleteAllForUser(ctx context.Context, userID string) error {
	_, err := r.queryer().Exec(ctx, `DELETE FROM notifications WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("clear notifications: %w", err)
	}
	return nil
}
