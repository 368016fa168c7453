package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/gatherly/server/internal/api/middleware"
	"github.com/gatherly/server/internal/auth"
	"github.com/gatherly/server/internal/domain/users"
)

type AuthHandler struct {
	users  *users.Service
	tokens *auth.JWTManager
	logger zerolog.Logger
}

func NewAuthHandler(userService *users.Service, tokens *auth.JWTManager, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{users: userService, tokens: tokens, logger: logger}
}

type signupRequest struct {
	Email    string `json:"email" validate:"required"`
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role"`
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.users.Signup(r.Context(), users.SignupParams{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	token, err := h.tokens.Generate(user.ID, user.Role)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"user": user, "token": token})
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Email      string `json:"email"`
	Username   string `json:"username"`
	Password   string `json:"password" validate:"required"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	identifier := req.Identifier
	if identifier == "" {
		identifier = req.Email
	}
	if identifier == "" {
		identifier = req.Username
	}
	if identifier == "" {
		writeError(w, http.StatusBadRequest, "identifier is required")
		return
	}

	user, err := h.users.Authenticate(r.Context(), identifier, req.Password)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	token, err := h.tokens.Generate(user.ID, user.Role)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user, "token": token})
}

type sendVerificationRequest struct {
	Email string `json:"email" validate:"required"`
}

// SendVerification emails a signup code to a not-yet-registered address.
func (h *AuthHandler) SendVerification(w http.ResponseWriter, r *http.Request) {
	var req sendVerificationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.users.SendSignupCode(r.Context(), req.Email); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "verification code sent"})
}

type verifyEmailRequest struct {
	Email    string `json:"email" validate:"required"`
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	Code     string `json:"code" validate:"required"`
	Role     string `json:"role"`
}

// VerifyEmail completes a code-gated signup: the code must match the
// one sent to the address, and the resulting account starts verified.
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.users.SignupVerified(r.Context(), users.SignupParams{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
		Role:     req.Role,
	}, req.Code)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	token, err := h.tokens.Generate(user.ID, user.Role)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"user": user, "token": token})
}

// CheckUsername reports whether the username in the query is free.
func (h *AuthHandler) CheckUsername(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	available, err := h.users.UsernameAvailable(r.Context(), username)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"username": username, "available": available})
}

// Logout exists for client symmetry; tokens are stateless, so the
// client discards its copy and the server has nothing to revoke.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"message": "logged out"})
}

// Me returns the account behind the bearer token.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Get(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}
