package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatherly/server/internal/domain/users"
)

var _ users.OrganizerRequestRepository = (*OrganizerRequestRepository)(nil)

type OrganizerRequestRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

func (r *OrganizerRequestRepository) queryer() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

const organizerRequestColumns = `id, user_id, organization_name, social_media_link, status, created_at`

func scanOrganizerRequest(row pgx.Row) (*users.OrganizerRequest, error) {
	var req users.OrganizerRequest
	err := row.Scan(&req.ID, &req.UserID, &req.OrganizationName, &req.SocialMediaLink, &req.Status, &req.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, users.ErrNotFound
		}
		return nil, fmt.Errorf("scan organizer request: %w", err)
	}
	return &req, nil
}

func (r *OrganizerRequestRepository) Create(ctx context.Context, userID, organizationName, socialMediaLink string) (*users.OrganizerRequest, error) {
	row := r.queryer().QueryRow(ctx, `
		INSERT INTO organizer_requests (user_id, organization_name, social_media_link)
		VALUES ($1, $2, $3)
		RETURNING `+organizerRequestColumns,
		userID, organizationName, socialMediaLink)
	req, err := scanOrganizerRequest(row)
	if err != nil {
		if isUniqueViolation(err, "organizer_requests_user_id_key") {
			return nil, users.ErrRequestExists
		}
		return nil, err
	}
	return req, nil
}

func (r *OrganizerRequestRepository) GetByUser(ctx context.Context, userID string) (*users.OrganizerRequest, error) {
	row := r.queryer().QueryRow(ctx, `
		SELECT `+organizerRequestColumns+` FROM organizer_requests WHERE user_id = $1`, userID)
	return scanOrganizerRequest(row)
}
