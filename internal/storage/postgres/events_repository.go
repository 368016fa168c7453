package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatherly/server/internal/domain/events"
)

var _ events.Repository = (*EventRepository)(nil)

type EventRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

func (r *EventRepository) queryer() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

const eventColumns = `e.id, e.title, e.description, e.location, e.location_address, e.category, e.image_url,
	e.starts_at, e.requires_approval, e.organizer_name, e.organizer_image_url, e.attendees_count,
	e.created_by, e.created_at, e.updated_at`

func scanEvent(row pgx.Row) (*events.Event, error) {
	var (
		e                 events.Event
		description       *string
		locationAddress   *string
		imageURL          *string
		organizerImageURL *string
	)
	err := row.Scan(&e.ID, &e.Title, &description, &e.Location, &locationAddress, &e.Category, &imageURL,
		&e.StartsAt, &e.RequiresApproval, &e.OrganizerName, &organizerImageURL, &e.AttendeesCount,
		&e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, events.ErrNotFound
		}
		return nil, fmt.Errorf("scan event: %w", err)
	}
	e.Description = derefString(description)
	e.LocationAddress = derefString(locationAddress)
	e.ImageURL = derefString(imageURL)
	e.OrganizerImageURL = derefString(organizerImageURL)
	return &e, nil
}

func (r *EventRepository) collect(ctx context.Context, query string, args ...any) ([]events.Event, error) {
	rows, err := r.queryer().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	result := []events.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *e)
	}
	return result, rows.Err()
}

func (r *EventRepository) Create(ctx context.Context, params events.CreateParams) (*events.Event, error) {
	row := r.queryer().QueryRow(ctx, `
		INSERT INTO events (title, description, location, location_address, category, image_url,
			starts_at, requires_approval, organizer_name, organizer_image_url, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+eventColumns+``,
		params.Title, nullableString(params.Description), params.Location, nullableString(params.LocationAddress),
		params.Category, nullableString(params.ImageURL), params.StartsAt, params.RequiresApproval,
		params.OrganizerName, nullableString(params.OrganizerImageURL), params.CreatedBy)
	return scanEvent(row)
}

func (r *EventRepository) Get(ctx context.Context, id string) (*events.Event, error) {
	row := r.queryer().QueryRow(ctx, `SELECT `+eventColumns+` FROM events e WHERE e.id = $1`, id)
	return scanEvent(row)
}

func (r *EventRepository) Update(ctx context.Context, id string, params events.UpdateParams) (*events.Event, error) {
	row := r.queryer().QueryRow(ctx, `
		UPDATE events e SET
			title = COALESCE($2, title),
			description = COALESCE($3, description),
			location = COALESCE($4, location),
			location_address = COALESCE($5, location_address),
			category = COALESCE($6, category),
			image_url = COALESCE($7, image_url),
			starts_at = COALESCE($8, starts_at),
			requires_approval = COALESCE($9, requires_approval),
			organizer_name = COALESCE($10, organizer_name),
			organizer_image_url = COALESCE($11, organizer_image_url),
			updated_at = now()
		WHERE e.id = $1
		RETURNING `+eventColumns,
		id, params.Title, params.Description, params.Location, params.LocationAddress,
		params.Category, params.ImageURL, params.StartsAt, params.RequiresApproval,
		params.OrganizerName, params.OrganizerImageURL)
	return scanEvent(row)
}

func (r *EventRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.queryer().Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return events.ErrNotFound
	}
	return nil
}

func (r *EventRepository) List(ctx context.Context) ([]events.Event, error) {
	return r.collect(ctx, `SELECT `+eventColumns+` FROM events e ORDER BY e.created_at DESC`)
}

func (r *EventRepository) ListByIDs(ctx context.Context, ids []string) ([]events.Event, error) {
	if len(ids) == 0 {
		return []events.Event{}, nil
	}
	return r.collect(ctx, `
		SELECT `+eventColumns+` FROM events e
		WHERE e.id = ANY($1)
		ORDER BY e.starts_at ASC`, ids)
}

func (r *EventRepository) ListPopular(ctx context.Context, limit int) ([]events.Event, error) {
	return r.collect(ctx, `
		SELECT `+eventColumns+` FROM events e
		ORDER BY e.attendees_count DESC, e.created_at DESC
		LIMIT $1`, limit)
}

func (r *EventRepository) ListUpcoming(ctx context.Context, now time.Time, categories []string, limit int) ([]events.Event, error) {
	if len(categories) == 0 {
		categories = nil
	}
	return r.collect(ctx, `
		SELECT `+eventColumns+` FROM events e
		WHERE e.starts_at >= $1
		  AND ($2::text[] IS NULL OR e.category = ANY($2))
		ORDER BY e.starts_at ASC
		LIMIT $3`, now, categories, limit)
}

func (r *EventRepository) ListUpcomingPopular(ctx context.Context, now time.Time, limit int) ([]events.Event, error) {
	return r.collect(ctx, `
		SELECT `+eventColumns+` FROM events e
		WHERE e.starts_at >= $1
		ORDER BY e.attendees_count DESC, e.starts_at ASC
		LIMIT $2`, now, limit)
}

// windowFilter appends the time-window condition; ordering follows the
// window (soonest first for upcoming, most recent first otherwise).
func windowFilter(window events.Window, paramIdx int) (condition, order string) {
	param := fmt.Sprintf("$%d", paramIdx)
	switch window {
	case events.WindowUpcoming:
		return " AND e.starts_at >= " + param, " ORDER BY e.starts_at ASC"
	case events.WindowPast:
		return " AND e.starts_at < " + param, " ORDER BY e.starts_at DESC"
	default:
		return "", " ORDER BY e.starts_at DESC"
	}
}

func (r *EventRepository) ListCreated(ctx context.Context, userID string, window events.Window, now time.Time) ([]events.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events e WHERE e.created_by = $1`
	args := []any{userID}
	condition, order := windowFilter(window, 2)
	if condition != "" {
		args = append(args, now)
	}
	return r.collect(ctx, query+condition+order, args...)
}

func (r *EventRepository) ListJoined(ctx context.Context, userID string, window events.Window, now time.Time) ([]events.Event, error) {
	query := `
		SELECT ` + eventColumns + ` FROM events e
		JOIN event_participants p ON p.event_id = e.id
		WHERE p.user_id = $1`
	args := []any{userID}
	condition, order := windowFilter(window, 2)
	if condition != "" {
		args = append(args, now)
	}
	return r.collect(ctx, query+condition+order, args...)
}

func (r *EventRepository) ListCreatedOrJoined(ctx context.Context, userID string, window events.Window, now time.Time) ([]events.Event, error) {
	query := `
		SELECT ` + eventColumns + ` FROM events e
		WHERE (e.created_by = $1
			OR EXISTS (SELECT 1 FROM event_participants p WHERE p.event_id = e.id AND p.user_id = $1))`
	args := []any{userID}
	condition, order := windowFilter(window, 2)
	if condition != "" {
		args = append(args, now)
	}
	return r.collect(ctx, query+condition+order, args...)
}

// AdjustAttendees moves the denormalized counter, flooring at zero.
func (r *EventRepository) AdjustAttendees(ctx context.Context, id string, delta int) error {
	tag, err := r.queryer().Exec(ctx, `
		UPDATE events
		SET attendees_count = GREATEST(attendees_count + $2, 0), updated_at = now()
		WHERE id = $1`, id, delta)
	if err != nil {
		return fmt.Errorf("adjust attendees: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return events.ErrNotFound
	}
	return nil
}
