package registrations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gatherly/server/internal/domain/events"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

var (
	ErrNotFound = errors.New("registration not found")
	// ErrDuplicate is returned by Repository.Create when the pair
	// (event, user) already has a row.
	ErrDuplicate = errors.New("registration already exists")
	// ErrNotPending rejects cancellation of a decided registration.
	ErrNotPending = errors.New("registration is not pending")
	// ErrAlreadyDecided rejects a second approve or reject.
	ErrAlreadyDecided = errors.New("registration already decided")
	// ErrApprovalRequired rejects a direct join on a gated event.
	ErrApprovalRequired = errors.New("event requires registration approval")
	// ErrOpenEvent rejects a registration request on an open event.
	ErrOpenEvent = errors.New("event does not require registration")
)

// AlreadyRegisteredError reports a duplicate request together with the
// state the existing registration is in.
type AlreadyRegisteredError struct {
	Status Status
}

func (e *AlreadyRegisteredError) Error() string {
	return fmt.Sprintf("already registered (status %s)", e.Status)
}

type Registration struct {
	ID        string    `json:"id"`
	EventID   string    `json:"event_id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Reason    string    `json:"reason"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreateParams struct {
	EventID string
	UserID  string
	Name    string
	Reason  string
}

type Repository interface {
	Create(ctx context.Context, params CreateParams) (*Registration, error)
	Get(ctx context.Context, eventID, userID string) (*Registration, error)
	GetByID(ctx context.Context, id string) (*Registration, error)
	UpdateStatus(ctx context.Context, id string, status Status) error
	Delete(ctx context.Context, id string) error
	ListByEvent(ctx context.Context, eventID string) ([]Registration, error)
	CountApproved(ctx context.Context, eventID string) (int, error)
}

// ParticipantRepository tracks the attendee roster. Add and Remove
// report whether a row actually changed so the attendee counter is only
// adjusted on real transitions.
type ParticipantRepository interface {
	Add(ctx context.Context, eventID, userID string) (bool, error)
	Remove(ctx context.Context, eventID, userID string) (bool, error)
	Exists(ctx context.Context, eventID, userID string) (bool, error)
}

// EventStore is the slice of the event repository the workflow needs.
type EventStore interface {
	Get(ctx context.Context, id string) (*events.Event, error)
	AdjustAttendees(ctx context.Context, id string, delta int) error
}

// Store bundles the repositories touched by a workflow transition.
// WithTx runs fn against a Store whose repositories share one database
// transaction; the status change, roster row, and attendee counter
// either all land or none do.
type Store interface {
	Registrations() Repository
	Participants() ParticipantRepository
	Events() EventStore
	WithTx(ctx context.Context, fn func(ctx context.Context, s Store) error) error
}
