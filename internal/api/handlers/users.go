package handlers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gatherly/server/internal/api/middleware"
	"github.com/gatherly/server/internal/blob"
	"github.com/gatherly/server/internal/domain/users"
)

const avatarBucket = "avatars"

type UsersHandler struct {
	users  *users.Service
	blobs  blob.Store
	logger zerolog.Logger
}

func NewUsersHandler(userService *users.Service, blobs blob.Store, logger zerolog.Logger) *UsersHandler {
	return &UsersHandler{users: userService, blobs: blobs, logger: logger}
}

// Get returns a user's account by id.
func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

type updateUsernameRequest struct {
	Username string `json:"username" validate:"required"`
}

func (h *UsersHandler) UpdateUsername(w http.ResponseWriter, r *http.Request) {
	var req updateUsernameRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := h.users.UpdateUsername(r.Context(), middleware.UserID(r.Context()), req.Username)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

type updateCategoriesRequest struct {
	Categories []string `json:"categories" validate:"required"`
}

func (h *UsersHandler) UpdateCategories(w http.ResponseWriter, r *http.Request) {
	var req updateCategoriesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := h.users.UpdateCategories(r.Context(), middleware.UserID(r.Context()), req.Categories)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

// UploadPhoto accepts a multipart "file" part, stores it, and points
// the profile at the stored object.
func (h *UsersHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	data, contentType, ext, ok := readImagePart(w, r)
	if !ok {
		return
	}

	objectPath := fmt.Sprintf("%s/%s%s", userID, uuid.NewString(), ext)
	url, err := h.blobs.Upload(r.Context(), avatarBucket, objectPath, data, contentType)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	user, err := h.users.SetPhotoURL(r.Context(), userID, url)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (h *UsersHandler) DeletePhoto(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.ClearPhoto(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (h *UsersHandler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	list, err := h.users.ListFavorites(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": list})
}

func (h *UsersHandler) AddFavorite(w http.ResponseWriter, r *http.Request) {
	err := h.users.AddFavorite(r.Context(), middleware.UserID(r.Context()), r.PathValue("eventID"))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"is_favorite": true})
}

func (h *UsersHandler) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	err := h.users.RemoveFavorite(r.Context(), middleware.UserID(r.Context()), r.PathValue("eventID"))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"is_favorite": false})
}

func (h *UsersHandler) IsFavorite(w http.ResponseWriter, r *http.Request) {
	fav, err := h.users.IsFavorite(r.Context(), middleware.UserID(r.Context()), r.PathValue("eventID"))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"is_favorite": fav})
}

type organizerRequestRequest struct {
	OrganizationName string `json:"organization_name" validate:"required"`
	SocialMediaLink  string `json:"social_media_link" validate:"required"`
}

func (h *UsersHandler) RequestOrganizer(w http.ResponseWriter, r *http.Request) {
	var req organizerRequestRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	request, err := h.users.RequestOrganizer(r.Context(), middleware.UserID(r.Context()), req.OrganizationName, req.SocialMediaLink)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"request": request})
}

func (h *UsersHandler) OrganizerRequestStatus(w http.ResponseWriter, r *http.Request) {
	request, err := h.users.OrganizerRequestStatus(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		if isNotFound(err) {
			writeJSON(w, http.StatusOK, map[string]any{"request": nil})
			return
		}
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"request": request})
}

func (h *UsersHandler) RequestDeletion(w http.ResponseWriter, r *http.Request) {
	if err := h.users.RequestDeletion(r.Context(), middleware.UserID(r.Context())); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "confirmation code sent"})
}

type confirmDeletionRequest struct {
	Code string `json:"code" validate:"required"`
}

func (h *UsersHandler) ConfirmDeletion(w http.ResponseWriter, r *http.Request) {
	var req confirmDeletionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.users.ConfirmDeletion(r.Context(), middleware.UserID(r.Context()), req.Code); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "account deleted"})
}

// imageExtensions maps the sniffed content type to the extension the
// stored object gets. The client filename is never trusted.
var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// readImagePart pulls the "file" part out of a multipart form and
// whitelists image content types. It writes the error response itself.
func readImagePart(w http.ResponseWriter, r *http.Request) (data []byte, contentType, ext string, ok bool) {
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file upload")
		return nil, "", "", false
	}
	defer file.Close()

	data, err = io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable file upload")
		return nil, "", "", false
	}

	contentType = http.DetectContentType(data)
	ext, ok = imageExtensions[contentType]
	if !ok {
		writeError(w, http.StatusBadRequest, "unsupported image type")
		return nil, "", "", false
	}
	return data, contentType, ext, true
}
