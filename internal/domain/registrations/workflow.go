package registrations

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/gatherly/server/internal/domain/events"
	"github.com/gatherly/server/internal/metrics"
	"github.com/gatherly/server/internal/sanitize"
)

// FieldError reports a rejected input value.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// Notifier delivers registration lifecycle notices. Implementations
// must not fail the caller; delivery is best effort and runs only after
// the state change has committed.
type Notifier interface {
	RegistrationRequested(ctx context.Context, event *events.Event, reg *Registration)
	RegistrationApproved(ctx context.Context, event *events.Event, reg *Registration)
	RegistrationRejected(ctx context.Context, event *events.Event, reg *Registration)
}

// Workflow owns the registration state machine. Gated events
// (RequiresApproval) go through pending → approved/rejected; open
// events are joined directly. Either path maintains the participant
// roster and the denormalized attendee counter.
type Workflow struct {
	store    Store
	notifier Notifier
	logger   zerolog.Logger
}

func NewWorkflow(store Store, notifier Notifier, logger zerolog.Logger) *Workflow {
	return &Workflow{
		store:    store,
		notifier: notifier,
		logger:   logger.With().Str("component", "registrations").Logger(),
	}
}

// Request creates a pending registration on a gated event.
func (w *Workflow) Request(ctx context.Context, eventID, userID, name, reason string) (*Registration, error) {
	name = sanitize.Text(name)
	reason = sanitize.Text(reason)
	if name == "" {
		return nil, &FieldError{Field: "name", Message: "is required"}
	}
	if reason == "" {
		return nil, &FieldError{Field: "reason", Message: "is required"}
	}

	event, err := w.store.Events().Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !event.RequiresApproval {
		return nil, ErrOpenEvent
	}
	if existing, err := w.store.Registrations().Get(ctx, eventID, userID); err == nil {
		return nil, &AlreadyRegisteredError{Status: existing.Status}
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	reg, err := w.store.Registrations().Create(ctx, CreateParams{
		EventID: eventID,
		UserID:  userID,
		Name:    name,
		Reason:  reason,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			// Lost a race with a concurrent request from the same user.
			if existing, getErr := w.store.Registrations().Get(ctx, eventID, userID); getErr == nil {
				return nil, &AlreadyRegisteredError{Status: existing.Status}
			}
		}
		return nil, err
	}
	metrics.RegistrationTransitions.WithLabelValues("requested").Inc()
	w.logger.Info().Str("event_id", eventID).Str("user_id", userID).Msg("registration requested")
	w.notifier.RegistrationRequested(ctx, event, reg)
	return reg, nil
}

// Cancel withdraws the caller's own pending registration.
func (w *Workflow) Cancel(ctx context.Context, eventID, userID string) error {
	reg, err := w.store.Registrations().Get(ctx, eventID, userID)
	if err != nil {
		return err
	}
	if reg.Status != StatusPending {
		return ErrNotPending
	}
	if err := w.store.Registrations().Delete(ctx, reg.ID); err != nil {
		return err
	}
	metrics.RegistrationTransitions.WithLabelValues("cancelled").Inc()
	return nil
}

// Approve moves a pending registration to approved, adds the applicant
// to the roster, and bumps the attendee counter, all in one
// transaction. Only the event creator may approve.
func (w *Workflow) Approve(ctx context.Context, callerID, eventID, registrationID string) (*Registration, error) {
	var (
		event *events.Event
		reg   *Registration
	)
	err := w.store.WithTx(ctx, func(ctx context.Context, s Store) error {
		e, err := s.Events().Get(ctx, eventID)
		if err != nil {
			return err
		}
		if !events.CanManage(callerID, e) {
			return events.ErrNotOwner
		}
		r, err := s.Registrations().GetByID(ctx, registrationID)
		if err != nil {
			return err
		}
		if r.EventID != eventID {
			return ErrNotFound
		}
		if r.Status != StatusPending {
			return ErrAlreadyDecided
		}
		if err := s.Registrations().UpdateStatus(ctx, r.ID, StatusApproved); err != nil {
			return err
		}
		added, err := s.Participants().Add(ctx, eventID, r.UserID)
		if err != nil {
			return err
		}
		if added {
			if err := s.Events().AdjustAttendees(ctx, eventID, 1); err != nil {
				return err
			}
		}
		r.Status = StatusApproved
		event, reg = e, r
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.RegistrationTransitions.WithLabelValues("approved").Inc()
	w.logger.Info().Str("event_id", eventID).Str("registration_id", registrationID).Msg("registration approved")
	w.notifier.RegistrationApproved(ctx, event, reg)
	return reg, nil
}

// Reject moves a pending registration to rejected. If the applicant
// somehow holds a roster row it is removed and the counter compensated.
func (w *Workflow) Reject(ctx context.Context, callerID, eventID, registrationID string) (*Registration, error) {
	var (
		event *events.Event
		reg   *Registration
	)
	err := w.store.WithTx(ctx, func(ctx context.Context, s Store) error {
		e, err := s.Events().Get(ctx, eventID)
		if err != nil {
			return err
		}
		if !events.CanManage(callerID, e) {
			return events.ErrNotOwner
		}
		r, err := s.Registrations().GetByID(ctx, registrationID)
		if err != nil {
			return err
		}
		if r.EventID != eventID {
			return ErrNotFound
		}
		if r.Status != StatusPending {
			return ErrAlreadyDecided
		}
		if err := s.Registrations().UpdateStatus(ctx, r.ID, StatusRejected); err != nil {
			return err
		}
		removed, err := s.Participants().Remove(ctx, eventID, r.UserID)
		if err != nil {
			return err
		}
		if removed {
			if err := s.Events().AdjustAttendees(ctx, eventID, -1); err != nil {
				return err
			}
		}
		r.Status = StatusRejected
		event, reg = e, r
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.RegistrationTransitions.WithLabelValues("rejected").Inc()
	w.logger.Info().Str("event_id", eventID).Str("registration_id", registrationID).Msg("registration rejected")
	w.notifier.RegistrationRejected(ctx, event, reg)
	return reg, nil
}

// Join adds the caller to an open event's roster. Returns whether the
// caller was newly added.
func (w *Workflow) Join(ctx context.Context, eventID, userID string) (bool, error) {
	var added bool
	err := w.store.WithTx(ctx, func(ctx context.Context, s Store) error {
		event, err := s.Events().Get(ctx, eventID)
		if err != nil {
			return err
		}
		if event.RequiresApproval {
			return ErrApprovalRequired
		}
		added, err = s.Participants().Add(ctx, eventID, userID)
		if err != nil {
			return err
		}
		if added {
			return s.Events().AdjustAttendees(ctx, eventID, 1)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if added {
		metrics.RegistrationTransitions.WithLabelValues("joined").Inc()
	}
	return added, nil
}

// Leave removes the caller from the roster regardless of how they got
// on it. Returns whether a row was actually removed.
func (w *Workflow) Leave(ctx context.Context, eventID, userID string) (bool, error) {
	var removed bool
	err := w.store.WithTx(ctx, func(ctx context.Context, s Store) error {
		if _, err := s.Events().Get(ctx, eventID); err != nil {
			return err
		}
		var err error
		removed, err = s.Participants().Remove(ctx, eventID, userID)
		if err != nil {
			return err
		}
		if removed {
			return s.Events().AdjustAttendees(ctx, eventID, -1)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if removed {
		metrics.RegistrationTransitions.WithLabelValues("left").Inc()
	}
	return removed, nil
}

func (w *Workflow) IsJoined(ctx context.Context, eventID, userID string) (bool, error) {
	return w.store.Participants().Exists(ctx, eventID, userID)
}

// StatusFor returns the caller's registration on the event, or
// ErrNotFound when no request exists.
func (w *Workflow) StatusFor(ctx context.Context, eventID, userID string) (*Registration, error) {
	return w.store.Registrations().Get(ctx, eventID, userID)
}

// ListForEvent returns every registration on the event. Only the event
// creator may review the list.
func (w *Workflow) ListForEvent(ctx context.Context, callerID, eventID string) ([]Registration, error) {
	event, err := w.store.Events().Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !events.CanManage(callerID, event) {
		return nil, events.ErrNotOwner
	}
	return w.store.Registrations().ListByEvent(ctx, eventID)
}

func (w *Workflow) ApprovedCount(ctx context.Context, eventID string) (int, error) {
	return w.store.Registrations().CountApproved(ctx, eventID)
}
