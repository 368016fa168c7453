package notifications

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/gatherly/server/internal/domain/events"
	"github.com/gatherly/server/internal/domain/registrations"
	"github.com/gatherly/server/internal/domain/users"
	"github.com/gatherly/server/internal/email"
	"github.com/gatherly/server/internal/metrics"
)

// fanOutConcurrency bounds parallel email sends during follower
// fan-out so a popular organizer cannot exhaust SMTP connections.
const fanOutConcurrency = 8

// FollowerSource lists the users subscribed to an organizer.
type FollowerSource interface {
	FollowerIDs(ctx context.Context, orgID string) ([]string, error)
}

// UserDirectory resolves recipients' email addresses.
type UserDirectory interface {
	GetByID(ctx context.Context, id string) (*users.User, error)
}

// Service owns the notification inbox and every producer that writes
// into it. Producer methods never return errors: a failed notification
// or email must not fail the action that triggered it, so failures are
// logged and counted instead.
type Service struct {
	repo      Repository
	followers FollowerSource
	directory UserDirectory
	mailer    email.Mailer
	logger    zerolog.Logger
}

func NewService(repo Repository, followers FollowerSource, directory UserDirectory, mailer email.Mailer, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		followers: followers,
		directory: directory,
		mailer:    mailer,
		logger:    logger.With().Str("component", "notifications").Logger(),
	}
}

// Inbox operations. All of them enforce ownership.

func (s *Service) List(ctx context.Context, userID string) ([]Notification, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	return s.repo.CountUnread(ctx, userID)
}

func (s *Service) MarkRead(ctx context.Context, userID, id string) error {
	n, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if n.UserID != userID {
		return ErrNotOwner
	}
	return s.repo.MarkRead(ctx, id)
}

func (s *Service) Delete(ctx context.Context, userID, id string) error {
	n, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if n.UserID != userID {
		return ErrNotOwner
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) DeleteAll(ctx context.Context, userID string) error {
	return s.repo.DeleteAllForUser(ctx, userID)
}

// EventCreated notifies every follower of the organizer, in the inbox
// and by email. Implements the event service's Notifier.
func (s *Service) EventCreated(ctx context.Context, e *events.Event) {
	followerIDs, err := s.followers.FollowerIDs(ctx, e.CreatedBy)
	if err != nil {
		s.suppress(err, "event_fanout")
		return
	}
	if len(followerIDs) == 0 {
		return
	}

	title := "New event from " + e.OrganizerName
	message := fmt.Sprintf("%s published a new event: %s", e.OrganizerName, e.Title)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(fanOutConcurrency)
	for _, followerID := range followerIDs {
		g.Go(func() error {
			if _, err := s.repo.Create(ctx, CreateParams{
				UserID:    followerID,
				Type:      TypeNewEvent,
				Title:     title,
				Message:   message,
				RelatedID: e.ID,
			}); err != nil {
				s.suppress(err, "event_fanout")
				return nil
			}
			metrics.NotificationsCreated.WithLabelValues(TypeNewEvent).Inc()
			s.email(ctx, followerID, title, message+"\n\nOpen the app to register.")
			return nil
		})
	}
	_ = g.Wait()
	s.logger.Info().
		Str("event_id", e.ID).
		Int("followers", len(followerIDs)).
		Msg("event fan-out complete")
}

// RegistrationRequested tells the event creator a request is waiting.
func (s *Service) RegistrationRequested(ctx context.Context, e *events.Event, reg *registrations.Registration) {
	s.notify(ctx, CreateParams{
		UserID:    e.CreatedBy,
		Type:      TypeRegistrationRequest,
		Title:     "New registration request",
		Message:   fmt.Sprintf("%s wants to join %s", reg.Name, e.Title),
		RelatedID: e.ID,
	}, "")
}

// RegistrationApproved tells the applicant they are in.
func (s *Service) RegistrationApproved(ctx context.Context, e *events.Event, reg *registrations.Registration) {
	s.notify(ctx, CreateParams{
		UserID:    reg.UserID,
		Type:      TypeRegistrationApproved,
		Title:     "Registration approved",
		Message:   fmt.Sprintf("Your registration for %s was approved. See you there!", e.Title),
		RelatedID: e.ID,
	}, fmt.Sprintf("Good news! Your registration for %s was approved.", e.Title))
}

// RegistrationRejected tells the applicant they are not.
func (s *Service) RegistrationRejected(ctx context.Context, e *events.Event, reg *registrations.Registration) {
	s.notify(ctx, CreateParams{
		UserID:    reg.UserID,
		Type:      TypeRegistrationRejected,
		Title:     "Registration declined",
		Message:   fmt.Sprintf("Your registration for %s was declined.", e.Title),
		RelatedID: e.ID,
	}, fmt.Sprintf("Unfortunately your registration for %s was declined.", e.Title))
}

// notify writes one inbox row and optionally emails the recipient.
func (s *Service) notify(ctx context.Context, params CreateParams, emailBody string) {
	if _, err := s.repo.Create(ctx, params); err != nil {
		s.suppress(err, "notification")
		return
	}
	metrics.NotificationsCreated.WithLabelValues(params.Type).Inc()
	if emailBody != "" {
		s.email(ctx, params.UserID, params.Title, emailBody)
	}
}

func (s *Service) email(ctx context.Context, userID, subject, body string) {
	recipient, err := s.directory.GetByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, users.ErrNotFound) {
			s.suppress(err, "email")
		}
		return
	}
	if err := s.mailer.Send(ctx, recipient.Email, subject, body); err != nil {
		s.suppress(err, "email")
	}
}

func (s *Service) suppress(err error, kind string) {
	metrics.SideEffectFailures.WithLabelValues(kind).Inc()
	s.logger.Warn().Err(err).Str("kind", kind).Msg("side effect failed")
}
