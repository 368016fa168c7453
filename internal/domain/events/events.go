package events

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("event not found")
	ErrNotOwner = errors.New("caller does not manage this event")
)

// Window restricts a listing to events relative to a reference time.
type Window int

const (
	WindowAll Window = iota
	WindowUpcoming
	WindowPast
)

type Event struct {
	ID                string    `json:"id"`
	Title             string    `json:"title"`
	Description       string    `json:"description"`
	Location          string    `json:"location"`
	LocationAddress   string    `json:"location_address,omitempty"`
	Category          string    `json:"category"`
	ImageURL          string    `json:"image_url,omitempty"`
	StartsAt          time.Time `json:"date"`
	RequiresApproval  bool      `json:"requires_approval"`
	OrganizerName     string    `json:"organizer"`
	OrganizerImageURL string    `json:"organizer_image_url,omitempty"`
	AttendeesCount    int       `json:"attendees_count"`
	CreatedBy         string    `json:"created_by"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// CanManage reports whether userID may edit, delete, or review
// registrations for the event. Only the creator qualifies.
func CanManage(userID string, e *Event) bool {
	return e != nil && userID != "" && e.CreatedBy == userID
}

type CreateParams struct {
	Title             string
	Description       string
	Location          string
	LocationAddress   string
	Category          string
	ImageURL          string
	StartsAt          time.Time
	RequiresApproval  bool
	OrganizerName     string
	OrganizerImageURL string
	CreatedBy         string
}

// UpdateParams carries the mutable fields; nil pointers leave the
// stored value untouched.
type UpdateParams struct {
	Title             *string
	Description       *string
	Location          *string
	LocationAddress   *string
	Category          *string
	ImageURL          *string
	StartsAt          *time.Time
	RequiresApproval  *bool
	OrganizerName     *string
	OrganizerImageURL *string
}

type Repository interface {
	Create(ctx context.Context, params CreateParams) (*Event, error)
	Get(ctx context.Context, id string) (*Event, error)
	Update(ctx context.Context, id string, params UpdateParams) (*Event, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]Event, error)
	ListByIDs(ctx context.Context, ids []string) ([]Event, error)
	ListPopular(ctx context.Context, limit int) ([]Event, error)
	ListUpcoming(ctx context.Context, now time.Time, categories []string, limit int) ([]Event, error)
	ListUpcomingPopular(ctx context.Context, now time.Time, limit int) ([]Event, error)
	ListCreated(ctx context.Context, userID string, window Window, now time.Time) ([]Event, error)
	ListJoined(ctx context.Context, userID string, window Window, now time.Time) ([]Event, error)
	ListCreatedOrJoined(ctx context.Context, userID string, window Window, now time.Time) ([]Event, error)
	AdjustAttendees(ctx context.Context, id string, delta int) error
}
