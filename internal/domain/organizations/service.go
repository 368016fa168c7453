package organizations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/gatherly/server/internal/domain/events"
	"github.com/gatherly/server/internal/domain/users"
	"github.com/gatherly/server/internal/sanitize"
)

// FieldError reports a rejected input value.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// UserDirectory is the slice of the user repository this service needs.
type UserDirectory interface {
	GetByID(ctx context.Context, id string) (*users.User, error)
}

// EventSource lists the events an organization has published.
type EventSource interface {
	ListCreated(ctx context.Context, userID string, window events.Window, now time.Time) ([]events.Event, error)
}

// ProfileView is a profile joined with account info and follow state
// for a particular viewer.
type ProfileView struct {
	UserID        string `json:"user_id"`
	Username      string `json:"username"`
	Name          string `json:"name"`
	Bio           string `json:"bio,omitempty"`
	Field         string `json:"field,omitempty"`
	Location      string `json:"location,omitempty"`
	PhotoURL      string `json:"photo_url,omitempty"`
	FollowerCount int    `json:"follower_count"`
	IsFollowing   bool   `json:"is_following"`
}

type Service struct {
	repo      Repository
	directory UserDirectory
	eventsSrc EventSource
	now       func() time.Time
	logger    zerolog.Logger
}

func NewService(repo Repository, directory UserDirectory, eventsSrc EventSource, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		directory: directory,
		eventsSrc: eventsSrc,
		now:       time.Now,
		logger:    logger.With().Str("component", "organizations").Logger(),
	}
}

type ProfileInput struct {
	Name     string
	Bio      string
	Field    string
	Location string
}

func (s *Service) UpsertProfile(ctx context.Context, callerID string, input ProfileInput) (*Profile, error) {
	caller, err := s.directory.GetByID(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if caller.Role != users.RoleOrganization && caller.Role != users.RoleOrganizer {
		return nil, ErrNotOrganization
	}
	name := sanitize.Text(input.Name)
	if name == "" {
		return nil, &FieldError{Field: "name", Message: "is required"}
	}
	return s.repo.UpsertProfile(ctx, Profile{
		UserID:   callerID,
		Name:     name,
		Bio:      sanitize.Text(input.Bio),
		Field:    sanitize.Text(input.Field),
		Location: sanitize.Text(input.Location),
	})
}

// View assembles the public page for an organization. viewerID may be
// empty for anonymous viewers.
func (s *Service) View(ctx context.Context, viewerID, orgID string) (*ProfileView, error) {
	account, err := s.directory.GetByID(ctx, orgID)
	if err != nil {
		return nil, err
	}
	view := &ProfileView{
		UserID:   account.ID,
		Username: account.Username,
		Name:     account.Username,
		PhotoURL: account.ProfilePhotoURL,
	}
	profile, err := s.repo.GetProfile(ctx, orgID)
	switch {
	case err == nil:
		view.Name = profile.Name
		view.Bio = profile.Bio
		view.Field = profile.Field
		view.Location = profile.Location
	case !errors.Is(err, ErrProfileNotFound):
		return nil, err
	}
	if view.FollowerCount, err = s.repo.CountFollowers(ctx, orgID); err != nil {
		return nil, err
	}
	if viewerID != "" && viewerID != orgID {
		if view.IsFollowing, err = s.repo.IsFollowing(ctx, viewerID, orgID); err != nil {
			return nil, err
		}
	}
	return view, nil
}

func (s *Service) Events(ctx context.Context, orgID string) ([]events.Event, error) {
	return s.eventsSrc.ListCreated(ctx, orgID, events.WindowAll, s.now())
}

// Follow subscribes the caller and returns the updated follower count.
// Only organization accounts can be followed.
func (s *Service) Follow(ctx context.Context, followerID, orgID string) (int, error) {
	if followerID == orgID {
		return 0, ErrSelfFollow
	}
	target, err := s.directory.GetByID(ctx, orgID)
	if err != nil {
		return 0, err
	}
	if target.Role != users.RoleOrganization && target.Role != users.RoleOrganizer {
		return 0, ErrNotFollowable
	}
	if _, err := s.repo.Follow(ctx, followerID, orgID); err != nil {
		return 0, err
	}
	return s.repo.CountFollowers(ctx, orgID)
}

func (s *Service) Unfollow(ctx context.Context, followerID, orgID string) (int, error) {
	if _, err := s.repo.Unfollow(ctx, followerID, orgID); err != nil {
		return 0, err
	}
	return s.repo.CountFollowers(ctx, orgID)
}

func (s *Service) IsFollowing(ctx context.Context, followerID, orgID string) (bool, error) {
	return s.repo.IsFollowing(ctx, followerID, orgID)
}

// Following lists the organizations the user follows.
func (s *Service) Following(ctx context.Context, userID string) ([]ProfileView, error) {
	ids, err := s.repo.ListFollowedOrgIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	views := make([]ProfileView, 0, len(ids))
	for _, id := range ids {
		view, err := s.View(ctx, userID, id)
		if err != nil {
			if errors.Is(err, users.ErrNotFound) {
				continue
			}
			return nil, err
		}
		view.IsFollowing = true
		views = append(views, *view)
	}
	return views, nil
}

// FollowerIDs is used by notification fan-out.
func (s *Service) FollowerIDs(ctx context.Context, orgID string) ([]string, error) {
	return s.repo.ListFollowerIDs(ctx, orgID)
}

// OrganizerSnapshot resolves the display name and avatar stamped onto
// events at creation. Organization accounts use their profile name when
// one exists; everyone else shows their username.
func (s *Service) OrganizerSnapshot(ctx context.Context, userID string) (name, imageURL string, err error) {
	account, err := s.directory.GetByID(ctx, userID)
	if err != nil {
		return "", "", err
	}
	name = account.Username
	imageURL = account.ProfilePhotoURL
	profile, err := s.repo.GetProfile(ctx, userID)
	if err == nil && profile.Name != "" {
		name = profile.Name
	} else if err != nil && !errors.Is(err, ErrProfileNotFound) {
		return "", "", err
	}
	return name, imageURL, nil
}
