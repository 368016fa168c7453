package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatherly/server/internal/domain/registrations"
)

var (
	_ registrations.Repository            = (*RegistrationRepository)(nil)
	_ registrations.ParticipantRepository = (*ParticipantRepository)(nil)
)

type RegistrationRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

func (r *RegistrationRepository) queryer() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

const registrationColumns = `id, event_id, user_id, name, reason, status, created_at, updated_at`

func scanRegistration(row pgx.Row) (*registrations.Registration, error) {
	var reg registrations.Registration
	err := row.Scan(&reg.ID, &reg.EventID, &reg.UserID, &reg.Name, &reg.Reason, &reg.Status, &reg.CreatedAt, &reg.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, registrations.ErrNotFound
		}
		return nil, fmt.Errorf("scan registration: %w", err)
	}
	return &reg, nil
}

func (r *RegistrationRepository) Create(ctx context.Context, params registrations.CreateParams) (*registrations.Registration, error) {
	row := r.queryer().QueryRow(ctx, `
		INSERT INTO event_registrations (event_id, user_id, name, reason)
		VALUES ($1, $2, $3, $4)
		RETURNING `+registrationColumns,
		params.EventID, params.UserID, params.Name, params.Reason)
	reg, err := scanRegistration(row)
	if err != nil {
		if isUniqueViolation(err, "event_registrations_event_id_user_id_key") {
			return nil, registrations.ErrDuplicate
		}
		return nil, err
	}
	return reg, nil
}

func (r *RegistrationRepository) Get(ctx context.Context, eventID, userID string) (*registrations.Registration, error) {
	row := r.queryer().QueryRow(ctx, `
		SELECT `+registrationColumns+` FROM event_registrations
		WHERE event_id = $1 AND user_id = $2`, eventID, userID)
	return scanRegistration(row)
}

func (r *RegistrationRepository) GetByID(ctx context.Context, id string) (*registrations.Registration, error) {
	row := r.queryer().QueryRow(ctx, `
		SELECT `+registrationColumns+` FROM event_registrations WHERE id = $1`, id)
	return scanRegistration(row)
}

func (r *RegistrationRepository) UpdateStatus(ctx context.Context, id string, status registrations.Status) error {
	tag, err := r.queryer().Exec(ctx, `
		UPDATE event_registrations SET status = $2, updated_at = now() WHERE id = $1`,
		id, status)
	if err != nil {
		return fmt.Errorf("update registration status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return registrations.ErrNotFound
	}
	return nil
}

func (r *RegistrationRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.queryer().Exec(ctx, `DELETE FROM event_registrations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return registrations.ErrNotFound
	}
	return nil
}

func (r *RegistrationRepository) ListByEvent(ctx context.Context, eventID string) ([]registrations.Registration, error) {
	rows, err := r.queryer().Query(ctx, `
		SELECT `+registrationColumns+` FROM event_registrations
		WHERE event_id = $1
		ORDER BY created_at ASC`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	result := []registrations.Registration{}
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *reg)
	}
	return result, rows.Err()
}

func (r *RegistrationRepository) CountApproved(ctx context.Context, eventID string) (int, error) {
	var count int
	err := r.queryer().QueryRow(ctx, `
		SELECT COUNT(*) FROM event_registrations
		WHERE event_id = $1 AND status = $2`,
		eventID, registrations.StatusApproved).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count approved registrations: %w", err)
	}
	return count, nil
}

type ParticipantRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

func (r *ParticipantRepository) queryer() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

func (r *ParticipantRepository) Add(ctx context.Context, eventID, userID string) (bool, error) {
	tag, err := r.queryer().Exec(ctx, `
		INSERT INTO event_participants (event_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (event_id, user_id) DO NOTHING`,
		eventID, userID)
	if err != nil {
		return false, fmt.Errorf("add participant: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *ParticipantRepository) Remove(ctx context.Context, eventID, userID string) (bool, error) {
	tag, err := r.queryer().Exec(ctx, `
		DELETE FROM event_participants WHERE event_id = $1 AND user_id = $2`,
		eventID, userID)
	if err != nil {
		return false, fmt.Errorf("remove participant: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *ParticipantRepository) Exists(ctx context.Context, eventID, userID string) (bool, error) {
	var exists bool
	err := r.queryer().QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM event_participants WHERE event_id = $1 AND user_id = $2)`,
		eventID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check participant: %w", err)
	}
	return exists, nil
}
