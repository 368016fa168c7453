package users

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/gatherly/server/internal/auth"
	"github.com/gatherly/server/internal/domain/events"
	"github.com/gatherly/server/internal/email"
	"github.com/gatherly/server/internal/sanitize"
	"github.com/gatherly/server/internal/verify"
)

var (
	emailPattern    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,20}$`)
)

// FieldError reports a rejected input value.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// EventSource resolves favorited event ids into full events.
type EventSource interface {
	ListByIDs(ctx context.Context, ids []string) ([]events.Event, error)
}

type Service struct {
	repo      Repository
	favorites FavoriteRepository
	requests  OrganizerRequestRepository
	eventsSrc EventSource
	codes     *verify.Store
	mailer    email.Mailer
	logger    zerolog.Logger
}

func NewService(repo Repository, favorites FavoriteRepository, requests OrganizerRequestRepository, eventsSrc EventSource, codes *verify.Store, mailer email.Mailer, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		favorites: favorites,
		requests:  requests,
		eventsSrc: eventsSrc,
		codes:     codes,
		mailer:    mailer,
		logger:    logger.With().Str("component", "users").Logger(),
	}
}

type SignupParams struct {
	Email    string
	Username string
	Password string
	Role     string
}

func (s *Service) Signup(ctx context.Context, params SignupParams) (*User, error) {
	return s.signup(ctx, params, false)
}

// SignupVerified consumes a code previously issued by SendSignupCode and
// creates the account with the email already marked verified.
func (s *Service) SignupVerified(ctx context.Context, params SignupParams, code string) (*User, error) {
	email := strings.ToLower(strings.TrimSpace(params.Email))
	if err := s.codes.Consume(verify.PurposeSignup, email, code, ""); err != nil {
		return nil, err
	}
	return s.signup(ctx, params, true)
}

func (s *Service) signup(ctx context.Context, params SignupParams, emailVerified bool) (*User, error) {
	params.Email = strings.ToLower(strings.TrimSpace(params.Email))
	params.Username = strings.TrimSpace(params.Username)
	if !emailPattern.MatchString(params.Email) {
		return nil, &FieldError{Field: "email", Message: "invalid email address"}
	}
	if !usernamePattern.MatchString(params.Username) {
		return nil, &FieldError{Field: "username", Message: "must be 3-20 characters (letters, digits, underscore)"}
	}
	if len(params.Password) < 6 {
		return nil, &FieldError{Field: "password", Message: "must be at least 6 characters"}
	}
	role := params.Role
	if role == "" {
		role = RoleParticipant
	}
	if !ValidRole(role) {
		return nil, &FieldError{Field: "role", Message: "unknown role"}
	}

	hash, err := auth.HashPassword(params.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user, err := s.repo.Create(ctx, CreateParams{
		Email:         params.Email,
		Username:      params.Username,
		PasswordHash:  hash,
		Role:          role,
		EmailVerified: emailVerified,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("user_id", user.ID).Str("role", user.Role).Msg("user registered")
	return user, nil
}

// SendSignupCode emails a short-lived verification code to an address
// that is not registered yet.
func (s *Service) SendSignupCode(ctx context.Context, emailAddr string) error {
	emailAddr = strings.ToLower(strings.TrimSpace(emailAddr))
	if !emailPattern.MatchString(emailAddr) {
		return &FieldError{Field: "email", Message: "invalid email address"}
	}
	if _, err := s.repo.GetByEmail(ctx, emailAddr); err == nil {
		return ErrEmailTaken
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	code, err := s.codes.Issue(verify.PurposeSignup, emailAddr, "")
	if err != nil {
		return fmt.Errorf("issue signup code: %w", err)
	}
	body := fmt.Sprintf("Your verification code is %s. It expires in 10 minutes.", code)
	if err := s.mailer.Send(ctx, emailAddr, "Verify your email", body); err != nil {
		return fmt.Errorf("send signup code: %w", err)
	}
	return nil
}

// UsernameAvailable reports whether a valid username is free to take.
func (s *Service) UsernameAvailable(ctx context.Context, username string) (bool, error) {
	username = strings.TrimSpace(username)
	if !usernamePattern.MatchString(username) {
		return false, &FieldError{Field: "username", Message: "must be 3-20 characters (letters, digits, underscore)"}
	}
	_, err := s.repo.GetByUsername(ctx, username)
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, ErrNotFound):
		return true, nil
	default:
		return false, err
	}
}

// Authenticate accepts a username or an email address as the identifier.
func (s *Service) Authenticate(ctx context.Context, identifier, password string) (*User, error) {
	identifier = strings.TrimSpace(identifier)
	var (
		user *User
		err  error
	)
	if strings.Contains(identifier, "@") {
		user, err = s.repo.GetByEmail(ctx, strings.ToLower(identifier))
	} else {
		user, err = s.repo.GetByUsername(ctx, identifier)
	}
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, auth.ErrBadCredentials
		}
		return nil, err
	}
	if err := auth.CheckPassword(user.PasswordHash, password); err != nil {
		return nil, auth.ErrBadCredentials
	}
	return user, nil
}

func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) UpdateUsername(ctx context.Context, id, username string) (*User, error) {
	username = strings.TrimSpace(username)
	if !usernamePattern.MatchString(username) {
		return nil, &FieldError{Field: "username", Message: "must be 3-20 characters (letters, digits, underscore)"}
	}
	return s.repo.UpdateUsername(ctx, id, username)
}

func (s *Service) SetPhotoURL(ctx context.Context, id, photoURL string) (*User, error) {
	return s.repo.UpdatePhotoURL(ctx, id, photoURL)
}

func (s *Service) ClearPhoto(ctx context.Context, id string) (*User, error) {
	return s.repo.UpdatePhotoURL(ctx, id, "")
}

// SelectedCategories reports the interest categories the user picked
// at onboarding.
func (s *Service) SelectedCategories(ctx context.Context, userID string) ([]string, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user.SelectedCategories, nil
}

func (s *Service) UpdateCategories(ctx context.Context, id string, categories []string) (*User, error) {
	return s.repo.UpdateCategories(ctx, id, sanitize.TextSlice(categories))
}

func (s *Service) AddFavorite(ctx context.Context, userID, eventID string) error {
	_, err := s.favorites.Add(ctx, userID, eventID)
	return err
}

func (s *Service) RemoveFavorite(ctx context.Context, userID, eventID string) error {
	return s.favorites.Remove(ctx, userID, eventID)
}

func (s *Service) IsFavorite(ctx context.Context, userID, eventID string) (bool, error) {
	return s.favorites.Exists(ctx, userID, eventID)
}

func (s *Service) ListFavorites(ctx context.Context, userID string) ([]events.Event, error) {
	ids, err := s.favorites.ListEventIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []events.Event{}, nil
	}
	return s.eventsSrc.ListByIDs(ctx, ids)
}

func (s *Service) RequestOrganizer(ctx context.Context, userID, organizationName, socialMediaLink string) (*OrganizerRequest, error) {
	organizationName = sanitize.Text(organizationName)
	socialMediaLink = strings.TrimSpace(socialMediaLink)
	if organizationName == "" {
		return nil, &FieldError{Field: "organization_name", Message: "is required"}
	}
	if socialMediaLink == "" {
		return nil, &FieldError{Field: "social_media_link", Message: "is required"}
	}
	return s.requests.Create(ctx, userID, organizationName, socialMediaLink)
}

func (s *Service) OrganizerRequestStatus(ctx context.Context, userID string) (*OrganizerRequest, error) {
	return s.requests.GetByUser(ctx, userID)
}

// RequestDeletion emails a short-lived confirmation code to the account owner.
func (s *Service) RequestDeletion(ctx context.Context, userID string) error {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	code, err := s.codes.Issue(verify.PurposeDeletion, user.Email, user.ID)
	if err != nil {
		return fmt.Errorf("issue deletion code: %w", err)
	}
	body := fmt.Sprintf("Your account deletion code is %s. It expires in 10 minutes.\n\nIf you did not request this, you can ignore this message.", code)
	if err := s.mailer.Send(ctx, user.Email, "Confirm account deletion", body); err != nil {
		return fmt.Errorf("send deletion code: %w", err)
	}
	return nil
}

func (s *Service) ConfirmDeletion(ctx context.Context, userID, code string) error {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.codes.Consume(verify.PurposeDeletion, user.Email, code, user.ID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, userID); err != nil {
		return err
	}
	s.logger.Info().Str("user_id", userID).Msg("account deleted")
	return nil
}
