package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatherly/server/internal/domain/organizations"
)

var _ organizations.Repository = (*OrganizationRepository)(nil)

type OrganizationRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

func (r *OrganizationRepository) queryer() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

func scanProfile(row pgx.Row) (*organizations.Profile, error) {
	var (
		p        organizations.Profile
		bio      *string
		field    *string
		location *string
	)
	err := row.Scan(&p.UserID, &p.Name, &bio, &field, &location, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, organizations.ErrProfileNotFound
		}
		return nil, fmt.Errorf("scan organization profile: %w", err)
	}
	p.Bio = derefString(bio)
	p.Field = derefString(field)
	p.Location = derefString(location)
	return &p, nil
}

func (r *OrganizationRepository) GetProfile(ctx context.Context, userID string) (*organizations.Profile, error) {
	row := r.queryer().QueryRow(ctx, `
		SELECT user_id, name, bio, field, location, updated_at
		FROM organization_profiles WHERE user_id = $1`, userID)
	return scanProfile(row)
}

func (r *OrganizationRepository) UpsertProfile(ctx context.Context, p organizations.Profile) (*organizations.Profile, error) {
	row := r.queryer().QueryRow(ctx, `
		INSERT INTO organization_profiles (user_id, name, bio, field, location)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			name = EXCLUDED.name,
			bio = EXCLUDED.bio,
			field = EXCLUDED.field,
			location = EXCLUDED.location,
			updated_at = now()
		RETURNING user_id, name, bio, field, location, updated_at`,
		p.UserID, p.Name, nullableString(p.Bio), nullableString(p.Field), nullableString(p.Location))
	return scanProfile(row)
}

func (r *OrganizationRepository) Follow(ctx context.Context, followerID, orgID string) (bool, error) {
	tag, err := r.queryer().Exec(ctx, `
		INSERT INTO organization_follows (follower_id, organization_id)
		VALUES ($1, $2)
		ON CONFLICT (follower_id, organization_id) DO NOTHING`,
		followerID, orgID)
	if err != nil {
		return false, fmt.Errorf("follow organization: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *OrganizationRepository) Unfollow(ctx context.Context, followerID, orgID string) (bool, error) {
	tag, err := r.queryer().Exec(ctx, `
		DELETE FROM organization_follows
		WHERE follower_id = $1 AND organization_id = $2`,
		followerID, orgID)
	if err != nil {
		return false, fmt.Errorf("unfollow organization: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *OrganizationRepository) IsFollowing(ctx context.Context, followerID, orgID string) (bool, error) {
	var following bool
	err := r.queryer().QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM organization_follows
			WHERE follower_id = $1 AND organization_id = $2
		)`, followerID, orgID).Scan(&following)
	if err != nil {
		return false, fmt.Errorf("check follow: %w", err)
	}
	return following, nil
}

func (r *OrganizationRepository) CountFollowers(ctx context.Context, orgID string) (int, error) {
	var count int
	err := r.queryer().QueryRow(ctx, `
		SELECT COUNT(*) FROM organization_follows WHERE organization_id = $1`,
		orgID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count followers: %w", err)
	}
	return count, nil
}

func (r *OrganizationRepository) ListFollowerIDs(ctx context.Context, orgID string) ([]string, error) {
	return r.collectIDs(ctx, `
		SELECT follower_id FROM organization_follows
		WHERE organization_id = $1
		ORDER BY created_at ASC`, orgID)
}

func (r *OrganizationRepository) ListFollowedOrgIDs(ctx context.Context, followerID string) ([]string, error) {
	return r.collectIDs(ctx, `
		SELECT organization_id FROM organization_follows
		WHERE follower_id = $1
		ORDER BY created_at DESC`, followerID)
}

func (r *OrganizationRepository) collectIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.queryer().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query follows: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan follow: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
