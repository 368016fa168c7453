package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gatherly/server/internal/sanitize"
)

const (
	defaultPopularLimit     = 10
	defaultUpcomingLimit    = 20
	defaultRecommendedLimit = 20
)

// FieldError reports a rejected input value.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// OrganizerDirectory resolves the display name and avatar snapshotted
// onto an event at creation time.
type OrganizerDirectory interface {
	OrganizerSnapshot(ctx context.Context, userID string) (name, imageURL string, err error)
}

// Notifier fans a newly created event out to the organizer's followers.
// Implementations must not fail the caller; delivery is best effort.
type Notifier interface {
	EventCreated(ctx context.Context, e *Event)
}

// InterestSource supplies the categories a user selected at onboarding,
// used to bias recommendations.
type InterestSource interface {
	SelectedCategories(ctx context.Context, userID string) ([]string, error)
}

type Service struct {
	repo      Repository
	directory OrganizerDirectory
	notifier  Notifier
	interests InterestSource
	now       func() time.Time
	logger    zerolog.Logger
}

func NewService(repo Repository, directory OrganizerDirectory, notifier Notifier, interests InterestSource, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		directory: directory,
		notifier:  notifier,
		interests: interests,
		now:       time.Now,
		logger:    logger.With().Str("component", "events").Logger(),
	}
}

type CreateInput struct {
	Title            string
	Description      string
	Location         string
	LocationAddress  string
	Category         string
	ImageURL         string
	StartsAt         time.Time
	RequiresApproval bool
}

func (s *Service) Create(ctx context.Context, creatorID string, input CreateInput) (*Event, error) {
	input.Title = sanitize.Text(input.Title)
	input.Description = sanitize.Text(input.Description)
	input.Location = sanitize.Text(input.Location)
	input.LocationAddress = sanitize.Text(input.LocationAddress)
	input.Category = sanitize.Text(input.Category)
	if input.Title == "" {
		return nil, &FieldError{Field: "title", Message: "is required"}
	}
	if input.Location == "" {
		return nil, &FieldError{Field: "location", Message: "is required"}
	}
	if input.Category == "" {
		return nil, &FieldError{Field: "category", Message: "is required"}
	}
	if input.StartsAt.IsZero() {
		return nil, &FieldError{Field: "date", Message: "is required"}
	}

	name, imageURL, err := s.directory.OrganizerSnapshot(ctx, creatorID)
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", creatorID).Msg("organizer snapshot unavailable")
		name = "Unknown"
		imageURL = ""
	}

	event, err := s.repo.Create(ctx, CreateParams{
		Title:             input.Title,
		Description:       input.Description,
		Location:          input.Location,
		LocationAddress:   input.LocationAddress,
		Category:          input.Category,
		ImageURL:          strings.TrimSpace(input.ImageURL),
		StartsAt:          input.StartsAt,
		RequiresApproval:  input.RequiresApproval,
		OrganizerName:     name,
		OrganizerImageURL: imageURL,
		CreatedBy:         creatorID,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("event_id", event.ID).Str("created_by", creatorID).Msg("event created")
	s.notifier.EventCreated(ctx, event)
	return event, nil
}

type UpdateInput struct {
	Title            *string
	Description      *string
	Location         *string
	LocationAddress  *string
	Category         *string
	ImageURL         *string
	StartsAt         *time.Time
	RequiresApproval *bool
}

func (s *Service) Update(ctx context.Context, callerID, id string, input UpdateInput) (*Event, error) {
	event, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanManage(callerID, event) {
		return nil, ErrNotOwner
	}
	params := UpdateParams{
		StartsAt:         input.StartsAt,
		RequiresApproval: input.RequiresApproval,
	}
	// Re-snapshot the organizer so a renamed organization is not stuck
	// with its old name on edited events.
	if name, imageURL, err := s.directory.OrganizerSnapshot(ctx, event.CreatedBy); err != nil {
		s.logger.Warn().Err(err).Str("user_id", event.CreatedBy).Msg("organizer snapshot unavailable")
	} else {
		params.OrganizerName = &name
		params.OrganizerImageURL = &imageURL
	}
	if input.Title != nil {
		v := sanitize.Text(*input.Title)
		if v == "" {
			return nil, &FieldError{Field: "title", Message: "cannot be empty"}
		}
		params.Title = &v
	}
	if input.Description != nil {
		v := sanitize.Text(*input.Description)
		params.Description = &v
	}
	if input.Location != nil {
		v := sanitize.Text(*input.Location)
		if v == "" {
			return nil, &FieldError{Field: "location", Message: "cannot be empty"}
		}
		params.Location = &v
	}
	if input.LocationAddress != nil {
		v := sanitize.Text(*input.LocationAddress)
		params.LocationAddress = &v
	}
	if input.Category != nil {
		v := sanitize.Text(*input.Category)
		if v == "" {
			return nil, &FieldError{Field: "category", Message: "cannot be empty"}
		}
		params.Category = &v
	}
	if input.ImageURL != nil {
		v := strings.TrimSpace(*input.ImageURL)
		params.ImageURL = &v
	}
	return s.repo.Update(ctx, id, params)
}

func (s *Service) Delete(ctx context.Context, callerID, id string) error {
	event, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !CanManage(callerID, event) {
		return ErrNotOwner
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("event_id", id).Msg("event deleted")
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (*Event, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]Event, error) {
	return s.repo.List(ctx)
}

func (s *Service) Popular(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = defaultPopularLimit
	}
	return s.repo.ListPopular(ctx, limit)
}

func (s *Service) Upcoming(ctx context.Context, categories []string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = defaultUpcomingLimit
	}
	return s.repo.ListUpcoming(ctx, s.now(), sanitize.TextSlice(categories), limit)
}

// Recommended returns upcoming events in the user's selected
// categories. Anonymous callers, users with no categories, and users
// whose categories match nothing get the busiest upcoming events
// instead.
func (s *Service) Recommended(ctx context.Context, userID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = defaultRecommendedLimit
	}
	now := s.now()
	if userID != "" {
		categories, err := s.interests.SelectedCategories(ctx, userID)
		if err != nil {
			s.logger.Warn().Err(err).Str("user_id", userID).Msg("interest lookup failed")
			categories = nil
		}
		if len(categories) > 0 {
			matched, err := s.repo.ListUpcoming(ctx, now, categories, limit)
			if err != nil {
				return nil, err
			}
			if len(matched) > 0 {
				return matched, nil
			}
		}
	}
	return s.repo.ListUpcomingPopular(ctx, now, limit)
}

// MyEvents returns everything the user created or joined.
func (s *Service) MyEvents(ctx context.Context, userID string, window Window) ([]Event, error) {
	return s.repo.ListCreatedOrJoined(ctx, userID, window, s.now())
}

func (s *Service) Organized(ctx context.Context, userID string, window Window) ([]Event, error) {
	return s.repo.ListCreated(ctx, userID, window, s.now())
}

func (s *Service) Joined(ctx context.Context, userID string, window Window) ([]Event, error) {
	return s.repo.ListJoined(ctx, userID, window, s.now())
}
