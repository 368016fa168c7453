package organizations

import (
	"context"
	"errors"
	"time"
)

var (
	ErrProfileNotFound = errors.New("organization profile not found")
	// ErrNotOrganization rejects profile writes by accounts that are
	// not organization or organizer accounts.
	ErrNotOrganization = errors.New("account is not an organization")
	// ErrNotFollowable rejects follows of ordinary participant accounts.
	ErrNotFollowable = errors.New("user is not an organization")
	ErrSelfFollow    = errors.New("cannot follow yourself")
)

// Profile is the public page an organization account maintains.
type Profile struct {
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Bio       string    `json:"bio,omitempty"`
	Field     string    `json:"field,omitempty"`
	Location  string    `json:"location,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Repository interface {
	GetProfile(ctx context.Context, userID string) (*Profile, error)
	UpsertProfile(ctx context.Context, p Profile) (*Profile, error)
	Follow(ctx context.Context, followerID, orgID string) (bool, error)
	Unfollow(ctx context.Context, followerID, orgID string) (bool, error)
	IsFollowing(ctx context.Context, followerID, orgID string) (bool, error)
	CountFollowers(ctx context.Context, orgID string) (int, error)
	ListFollowerIDs(ctx context.Context, orgID string) ([]string, error)
	ListFollowedOrgIDs(ctx context.Context, followerID string) ([]string, error)
}
