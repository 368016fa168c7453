package handlers

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gatherly/server/internal/api/middleware"
	"github.com/gatherly/server/internal/blob"
)

const eventImageBucket = "event-images"

type UploadsHandler struct {
	blobs  blob.Store
	logger zerolog.Logger
}

func NewUploadsHandler(blobs blob.Store, logger zerolog.Logger) *UploadsHandler {
	return &UploadsHandler{blobs: blobs, logger: logger}
}

// EventImage stores an event cover image and returns its public URL for
// use in a subsequent event create or update.
func (h *UploadsHandler) EventImage(w http.ResponseWriter, r *http.Request) {
	data, contentType, ext, ok := readImagePart(w, r)
	if !ok {
		return
	}

	objectPath := fmt.Sprintf("%s/%s%s", middleware.UserID(r.Context()), uuid.NewString(), ext)
	url, err := h.blobs.Upload(r.Context(), eventImageBucket, objectPath, data, contentType)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"url": url})
}
