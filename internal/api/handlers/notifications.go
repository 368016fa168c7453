package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/gatherly/server/internal/api/middleware"
	"github.com/gatherly/server/internal/domain/notifications"
)

type NotificationsHandler struct {
	notifications *notifications.Service
	logger        zerolog.Logger
}

func NewNotificationsHandler(service *notifications.Service, logger zerolog.Logger) *NotificationsHandler {
	return &NotificationsHandler{notifications: service, logger: logger}
}

func (h *NotificationsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	list, err := h.notifications.List(r.Context(), userID)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	unread, err := h.notifications.UnreadCount(r.Context(), userID)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": list, "unread_count": unread})
}

func (h *NotificationsHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	err := h.notifications.MarkRead(r.Context(), middleware.UserID(r.Context()), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "notification read"})
}

func (h *NotificationsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.notifications.Delete(r.Context(), middleware.UserID(r.Context()), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "notification deleted"})
}

func (h *NotificationsHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	if err := h.notifications.DeleteAll(r.Context(), middleware.UserID(r.Context())); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "notifications cleared"})
}
