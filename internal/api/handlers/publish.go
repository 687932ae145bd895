package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/hugh/go-studio/internal/api/dto"
	"github.com/hugh/go-studio/internal/api/middleware"
	"github.com/hugh/go-studio/internal/api/validation"
	"github.com/hugh/go-studio/internal/database/models"
	"github.com/hugh/go-studio/internal/publish"
)

// PublishHandler manages LMS settings and publishing playlists to them.
type PublishHandler struct {
	publisher *publish.Service
	validator *validation.Validator
	logger    *slog.Logger
}

func NewPublishHandler(publisher *publish.Service, v *validation.Validator, logger *slog.Logger) *PublishHandler {
	return &PublishHandler{publisher: publisher, validator: v, logger: logger}
}

type validateSettingResponse struct {
	Valid bool `json:"valid"`
}

// CreateSetting handles POST /api/v1/lms-settings
func (h *PublishHandler) CreateSetting(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateLmsSettingRequest
	if !decode(w, r, h.validator, &req) {
		return
	}

	setting, err := h.publisher.CreateSetting(r.Context(), middleware.GetUserID(r.Context()), publish.SettingInput{
		LmsName:  models.LmsName(req.LmsName),
		LmsURL:   req.LmsURL,
		SiteName: req.SiteName,
		CourseID: req.CourseID,
		Token:    req.Token,
	})
	if err != nil {
		fail(w, h.logger, err, "Failed to create LMS setting")
		return
	}
	writeData(w, http.StatusCreated, setting)
}

// ListSettings handles GET /api/v1/lms-settings
func (h *PublishHandler) ListSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.publisher.ListSettings(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		fail(w, h.logger, err, "Failed to list LMS settings")
		return
	}
	writeData(w, http.StatusOK, nonNil(settings))
}

// GetSetting handles GET /api/v1/lms-settings/{id}
func (h *PublishHandler) GetSetting(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	setting, err := h.publisher.GetSetting(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		fail(w, h.logger, err, "Failed to load LMS setting")
		return
	}
	writeData(w, http.StatusOK, setting)
}

// DeleteSetting handles DELETE /api/v1/lms-settings/{id}
func (h *PublishHandler) DeleteSetting(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.publisher.DeleteSetting(r.Context(), middleware.GetUserID(r.Context()), id); err != nil {
		fail(w, h.logger, err, "Failed to delete LMS setting")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ValidateSetting handles POST /api/v1/lms-settings/{id}/validate. A token
// the LMS rejects is reported as valid=false rather than as a failure.
func (h *PublishHandler) ValidateSetting(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	err := h.publisher.ValidateSetting(r.Context(), middleware.GetUserID(r.Context()), id)
	switch {
	case err == nil:
		writeData(w, http.StatusOK, validateSettingResponse{Valid: true})
	case errors.Is(err, publish.ErrUpstream):
		writeData(w, http.StatusOK, validateSettingResponse{Valid: false})
	default:
		fail(w, h.logger, err, "Failed to validate LMS setting")
	}
}

// Publish handles POST /api/v1/playlists/{id}/publish
func (h *PublishHandler) Publish(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req dto.PublishRequest
	if !decode(w, r, h.validator, &req) {
		return
	}

	publication, err := h.publisher.Publish(r.Context(), middleware.GetUserID(r.Context()), id, req.SettingID)
	if err != nil {
		fail(w, h.logger, err, "Failed to publish playlist")
		return
	}
	writeData(w, http.StatusOK, publication)
}

// Publications handles GET /api/v1/playlists/{id}/publications
func (h *PublishHandler) Publications(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	pubs, err := h.publisher.ListPublications(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		fail(w, h.logger, err, "Failed to list publications")
		return
	}
	writeData(w, http.StatusOK, nonNil(pubs))
}
