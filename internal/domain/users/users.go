package users

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("user not found")
	ErrUsernameTaken = errors.New("username already taken")
	ErrEmailTaken    = errors.New("email already registered")
	ErrRequestExists = errors.New("organizer request already exists")
)

const (
	RoleParticipant  = "participant"
	RoleOrganizer    = "organizer"
	RoleOrganization = "organization"
)

func ValidRole(role string) bool {
	switch role {
	case RoleParticipant, RoleOrganizer, RoleOrganization:
		return true
	}
	return false
}

type User struct {
	ID                 string    `json:"id"`
	Email              string    `json:"email"`
	Username           string    `json:"username"`
	Role               string    `json:"role"`
	SelectedCategories []string  `json:"selectedCategories"`
	ProfilePhotoURL    string    `json:"profilePhotoUrl,omitempty"`
	EmailVerified      bool      `json:"isEmailVerified"`
	PasswordHash       string    `json:"-"`
	CreatedAt          time.Time `json:"-"`
}

type CreateParams struct {
	Email         string
	Username      string
	PasswordHash  string
	Role          string
	EmailVerified bool
}

type OrganizerRequest struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	OrganizationName string    `json:"organization_name"`
	SocialMediaLink  string    `json:"social_media_link"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
}

type Repository interface {
	Create(ctx context.Context, params CreateParams) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	UpdateUsername(ctx context.Context, id, username string) (*User, error)
	UpdatePhotoURL(ctx context.Context, id, photoURL string) (*User, error)
	UpdateCategories(ctx context.Context, id string, categories []string) (*User, error)
	Delete(ctx context.Context, id string) error
}

type FavoriteRepository interface {
	Add(ctx context.Context, userID, eventID string) (bool, error)
	Remove(ctx context.Context, userID, eventID string) error
	Exists(ctx context.Context, userID, eventID string) (bool, error)
	ListEventIDs(ctx context.Context, userID string) ([]string, error)
}

type OrganizerRequestRepository interface {
	Create(ctx context.Context, userID, organizationName, socialMediaLink string) (*OrganizerRequest, error)
	GetByUser(ctx context.Context, userID string) (*OrganizerRequest, error)
}
