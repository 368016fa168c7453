package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/gatherly/server/internal/auth"
	"github.com/gatherly/server/internal/domain/events"
	"github.com/gatherly/server/internal/domain/notifications"
	"github.com/gatherly/server/internal/domain/organizations"
	"github.com/gatherly/server/internal/domain/registrations"
	"github.com/gatherly/server/internal/domain/users"
	"github.com/gatherly/server/internal/verify"
)

var validate = validator.New()

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// decodeJSON parses and validates the request body. It writes the error
// response itself and reports whether the handler should continue.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			writeError(w, http.StatusBadRequest, "invalid field: "+fieldErrs[0].Field())
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// writeDomainError maps domain errors onto HTTP statuses. Anything
// unrecognized is logged and becomes an opaque 500.
func writeDomainError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	switch {
	case isNotFound(err):
		writeError(w, http.StatusNotFound, err.Error())
	case isForbidden(err):
		writeError(w, http.StatusForbidden, err.Error())
	case isUnauthorized(err):
		writeError(w, http.StatusUnauthorized, err.Error())
	case isBadRequest(err):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		logger.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, users.ErrNotFound) ||
		errors.Is(err, events.ErrNotFound) ||
		errors.Is(err, registrations.ErrNotFound) ||
		errors.Is(err, notifications.ErrNotFound) ||
		errors.Is(err, organizations.ErrProfileNotFound)
}

func isForbidden(err error) bool {
	return errors.Is(err, events.ErrNotOwner) ||
		errors.Is(err, notifications.ErrNotOwner) ||
		errors.Is(err, organizations.ErrNotOrganization)
}

func isUnauthorized(err error) bool {
	return errors.Is(err, auth.ErrBadCredentials) ||
		errors.Is(err, auth.ErrMissingToken) ||
		errors.Is(err, auth.ErrInvalidToken)
}

func isBadRequest(err error) bool {
	var (
		userField  *users.FieldError
		eventField *events.FieldError
		regField   *registrations.FieldError
		orgField   *organizations.FieldError
		dupReg     *registrations.AlreadyRegisteredError
	)
	return errors.As(err, &userField) ||
		errors.As(err, &eventField) ||
		errors.As(err, &regField) ||
		errors.As(err, &orgField) ||
		errors.As(err, &dupReg) ||
		errors.Is(err, users.ErrEmailTaken) ||
		errors.Is(err, users.ErrUsernameTaken) ||
		errors.Is(err, users.ErrRequestExists) ||
		errors.Is(err, registrations.ErrNotPending) ||
		errors.Is(err, registrations.ErrAlreadyDecided) ||
		errors.Is(err, registrations.ErrApprovalRequired) ||
		errors.Is(err, registrations.ErrOpenEvent) ||
		errors.Is(err, organizations.ErrSelfFollow) ||
		errors.Is(err, organizations.ErrNotFollowable) ||
		errors.Is(err, verify.ErrCodeInvalid) ||
		errors.Is(err, verify.ErrCodeExpired)
}
