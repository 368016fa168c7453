package notifications

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("notification not found")
	ErrNotOwner = errors.New("notification belongs to another user")
)

const (
	TypeNewEvent             = "new_event"
	TypeRegistrationRequest  = "registration_request"
	TypeRegistrationApproved = "registration_approved"
	TypeRegistrationRejected = "registration_rejected"
)

// Notification ids are ULIDs, so sorting by id is sorting by creation
// time.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	RelatedID string    `json:"related_id,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

type CreateParams struct {
	UserID    string
	Type      string
	Title     string
	Message   string
	RelatedID string
}

type Repository interface {
	Create(ctx context.Context, params CreateParams) (*Notification, error)
	Get(ctx context.Context, id string) (*Notification, error)
	ListByUser(ctx context.Context, userID string) ([]Notification, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	DeleteAllForUser(ctx context.Context, userID string) error
}
