package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gatherly/server/internal/api/middleware"
	"github.com/gatherly/server/internal/domain/events"
	"github.com/gatherly/server/internal/domain/registrations"
)

type EventsHandler struct {
	events   *events.Service
	workflow *registrations.Workflow
	logger   zerolog.Logger
}

func NewEventsHandler(eventService *events.Service, workflow *registrations.Workflow, logger zerolog.Logger) *EventsHandler {
	return &EventsHandler{events: eventService, workflow: workflow, logger: logger}
}

type createEventRequest struct {
	Title            string    `json:"title" validate:"required"`
	Description      string    `json:"description"`
	Location         string    `json:"location" validate:"required"`
	LocationAddress  string    `json:"location_address"`
	Category         string    `json:"category" validate:"required"`
	ImageURL         string    `json:"image_url"`
	Date             time.Time `json:"date" validate:"required"`
	RequiresApproval bool      `json:"requires_approval"`
}

func (h *EventsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	event, err := h.events.Create(r.Context(), middleware.UserID(r.Context()), events.CreateInput{
		Title:            req.Title,
		Description:      req.Description,
		Location:         req.Location,
		LocationAddress:  req.LocationAddress,
		Category:         req.Category,
		ImageURL:         req.ImageURL,
		StartsAt:         req.Date,
		RequiresApproval: req.RequiresApproval,
	})
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"event": event})
}

type updateEventRequest struct {
	Title            *string    `json:"title"`
	Description      *string    `json:"description"`
	Location         *string    `json:"location"`
	LocationAddress  *string    `json:"location_address"`
	Category         *string    `json:"category"`
	ImageURL         *string    `json:"image_url"`
	Date             *time.Time `json:"date"`
	RequiresApproval *bool      `json:"requires_approval"`
}

func (h *EventsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateEventRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	event, err := h.events.Update(r.Context(), middleware.UserID(r.Context()), r.PathValue("id"), events.UpdateInput{
		Title:            req.Title,
		Description:      req.Description,
		Location:         req.Location,
		LocationAddress:  req.LocationAddress,
		Category:         req.Category,
		ImageURL:         req.ImageURL,
		StartsAt:         req.Date,
		RequiresApproval: req.RequiresApproval,
	})
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"event": event})
}

func (h *EventsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.events.Delete(r.Context(), middleware.UserID(r.Context()), r.PathValue("id")); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "event deleted"})
}

func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.events.List(r.Context())
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": list})
}

// Get returns the event, plus the viewer's join state and registration
// status when the request is authenticated.
func (h *EventsHandler) Get(w http.ResponseWriter, r *http.Request) {
	event, err := h.events.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	response := map[string]any{"event": event}
	if userID := middleware.UserID(r.Context()); userID != "" {
		joined, err := h.workflow.IsJoined(r.Context(), event.ID, userID)
		if err != nil {
			writeDomainError(w, h.logger, err)
			return
		}
		response["is_joined"] = joined

		reg, err := h.workflow.StatusFor(r.Context(), event.ID, userID)
		switch {
		case err == nil:
			response["registration_status"] = reg.Status
		case errors.Is(err, registrations.ErrNotFound):
			response["registration_status"] = nil
		default:
			writeDomainError(w, h.logger, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *EventsHandler) Popular(w http.ResponseWriter, r *http.Request) {
	list, err := h.events.Popular(r.Context(), queryLimit(r))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": list})
}

func (h *EventsHandler) Upcoming(w http.ResponseWriter, r *http.Request) {
	var categories []string
	if raw := r.URL.Query().Get("categories"); raw != "" {
		for _, c := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(c); trimmed != "" {
				categories = append(categories, trimmed)
			}
		}
	}
	list, err := h.events.Upcoming(r.Context(), categories, queryLimit(r))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": list})
}

func (h *EventsHandler) Recommended(w http.ResponseWriter, r *http.Request) {
	list, err := h.events.Recommended(r.Context(), middleware.UserID(r.Context()), queryLimit(r))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": list})
}

func (h *EventsHandler) Mine(w http.ResponseWriter, r *http.Request) {
	list, err := h.events.MyEvents(r.Context(), middleware.UserID(r.Context()), queryWindow(r))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": list})
}

func (h *EventsHandler) Organized(w http.ResponseWriter, r *http.Request) {
	list, err := h.events.Organized(r.Context(), middleware.UserID(r.Context()), queryWindow(r))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": list})
}

func (h *EventsHandler) Joined(w http.ResponseWriter, r *http.Request) {
	list, err := h.events.Joined(r.Context(), middleware.UserID(r.Context()), queryWindow(r))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": list})
}

func queryLimit(r *http.Request) int {
	value, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || value < 0 {
		return 0
	}
	return value
}

func queryWindow(r *http.Request) events.Window {
	switch r.URL.Query().Get("window") {
	case "upcoming":
		return events.WindowUpcoming
	case "past":
		return events.WindowPast
	default:
		return events.WindowAll
	}
}
