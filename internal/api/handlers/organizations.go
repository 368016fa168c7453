package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/gatherly/server/internal/api/middleware"
	"github.com/gatherly/server/internal/domain/organizations"
)

type OrganizationsHandler struct {
	orgs   *organizations.Service
	logger zerolog.Logger
}

func NewOrganizationsHandler(orgService *organizations.Service, logger zerolog.Logger) *OrganizationsHandler {
	return &OrganizationsHandler{orgs: orgService, logger: logger}
}

// Get serves an organization's public page. Works anonymously; follow
// state is filled in for authenticated viewers.
func (h *OrganizationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	orgID := r.PathValue("id")
	view, err := h.orgs.View(r.Context(), middleware.UserID(r.Context()), orgID)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	list, err := h.orgs.Events(r.Context(), orgID)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"organization": view, "events": list})
}

type profileRequest struct {
	Name     string `json:"name" validate:"required"`
	Bio      string `json:"bio"`
	Field    string `json:"field"`
	Location string `json:"location"`
}

func (h *OrganizationsHandler) UpsertProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	profile, err := h.orgs.UpsertProfile(r.Context(), middleware.UserID(r.Context()), organizations.ProfileInput{
		Name:     req.Name,
		Bio:      req.Bio,
		Field:    req.Field,
		Location: req.Location,
	})
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"profile": profile})
}

func (h *OrganizationsHandler) Follow(w http.ResponseWriter, r *http.Request) {
	count, err := h.orgs.Follow(r.Context(), middleware.UserID(r.Context()), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"is_following": true, "follower_count": count})
}

func (h *OrganizationsHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	count, err := h.orgs.Unfollow(r.Context(), middleware.UserID(r.Context()), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"is_following": false, "follower_count": count})
}

func (h *OrganizationsHandler) IsFollowing(w http.ResponseWriter, r *http.Request) {
	following, err := h.orgs.IsFollowing(r.Context(), middleware.UserID(r.Context()), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"is_following": following})
}

func (h *OrganizationsHandler) Following(w http.ResponseWriter, r *http.Request) {
	list, err := h.orgs.Following(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"organizations": list})
}
