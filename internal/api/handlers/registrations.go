package handlers

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/gatherly/server/internal/api/middleware"
	"github.com/gatherly/server/internal/domain/registrations"
)

type RegistrationsHandler struct {
	workflow *registrations.Workflow
	logger   zerolog.Logger
}

func NewRegistrationsHandler(workflow *registrations.Workflow, logger zerolog.Logger) *RegistrationsHandler {
	return &RegistrationsHandler{workflow: workflow, logger: logger}
}

func (h *RegistrationsHandler) Join(w http.ResponseWriter, r *http.Request) {
	joined, err := h.workflow.Join(r.Context(), r.PathValue("id"), middleware.UserID(r.Context()))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"joined": true, "newly_joined": joined})
}

func (h *RegistrationsHandler) Leave(w http.ResponseWriter, r *http.Request) {
	_, err := h.workflow.Leave(r.Context(), r.PathValue("id"), middleware.UserID(r.Context()))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"joined": false})
}

func (h *RegistrationsHandler) IsJoined(w http.ResponseWriter, r *http.Request) {
	joined, err := h.workflow.IsJoined(r.Context(), r.PathValue("id"), middleware.UserID(r.Context()))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"is_joined": joined})
}

type registerRequest struct {
	Name   string `json:"name" validate:"required"`
	Reason string `json:"reason" validate:"required"`
}

func (h *RegistrationsHandler) Request(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	reg, err := h.workflow.Request(r.Context(), r.PathValue("id"), middleware.UserID(r.Context()), req.Name, req.Reason)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"registration": reg})
}

func (h *RegistrationsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	err := h.workflow.Cancel(r.Context(), r.PathValue("id"), middleware.UserID(r.Context()))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "registration cancelled"})
}

// Status reports the caller's registration state on the event; the
// status is null when no request was ever made.
func (h *RegistrationsHandler) Status(w http.ResponseWriter, r *http.Request) {
	reg, err := h.workflow.StatusFor(r.Context(), r.PathValue("id"), middleware.UserID(r.Context()))
	if err != nil {
		if errors.Is(err, registrations.ErrNotFound) {
			writeJSON(w, http.StatusOK, map[string]any{"status": nil})
			return
		}
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": reg.Status, "registration": reg})
}

// ApprovedCount reports the approved headcount. Public: event pages
// show it without a session.
func (h *RegistrationsHandler) ApprovedCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.workflow.ApprovedCount(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": count})
}

// List returns every registration on the event for its organizer,
// together with the approved headcount.
func (h *RegistrationsHandler) List(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("id")
	list, err := h.workflow.ListForEvent(r.Context(), middleware.UserID(r.Context()), eventID)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	approved, err := h.workflow.ApprovedCount(r.Context(), eventID)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"registrations": list, "approved_count": approved})
}

func (h *RegistrationsHandler) Approve(w http.ResponseWriter, r *http.Request) {
	reg, err := h.workflow.Approve(r.Context(), middleware.UserID(r.Context()), r.PathValue("id"), r.PathValue("registrationID"))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"registration": reg})
}

func (h *RegistrationsHandler) Reject(w http.ResponseWriter, r *http.Request) {
	reg, err := h.workflow.Reject(r.Context(), middleware.UserID(r.Context()), r.PathValue("id"), r.PathValue("registrationID"))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"registration": reg})
}
