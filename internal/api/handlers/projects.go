package handlers

import (
	"log/slog"
	"net/http"

	"github.com/hugh/go-studio/internal/api/dto"
	"github.com/hugh/go-studio/internal/api/middleware"
	"github.com/hugh/go-studio/internal/api/validation"
	"github.com/hugh/go-studio/internal/database/models"
	"github.com/hugh/go-studio/internal/project"
)

// ProjectHandler serves projects and the playlists and activities inside them.
type ProjectHandler struct {
	projects  *project.Service
	validator *validation.Validator
	logger    *slog.Logger
}

func NewProjectHandler(projects *project.Service, v *validation.Validator, logger *slog.Logger) *ProjectHandler {
	return &ProjectHandler{projects: projects, validator: v, logger: logger}
}

// List handles GET /api/v1/projects
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	projects, err := h.projects.ListForUser(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		fail(w, h.logger, err, "Failed to list projects")
		return
	}
	writeData(w, http.StatusOK, nonNil(projects))
}

// Create handles POST /api/v1/projects
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateProjectRequest
	if !decode(w, r, h.validator, &req) {
		return
	}

	p, err := h.projects.Create(r.Context(), middleware.GetUserID(r.Context()), project.CreateInput{
		OrganizationID: req.OrganizationID,
		Name:           req.Name,
		Description:    req.Description,
		Thumbnail:      req.Thumbnail,
		IsPublic:       req.IsPublic,
		Indexing:       req.Indexing,
	})
	if err != nil {
		fail(w, h.logger, err, "Failed to create project")
		return
	}
	writeData(w, http.StatusCreated, p)
}

// Get handles GET /api/v1/projects/{id}
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	p, err := h.projects.Get(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		fail(w, h.logger, err, "Failed to load project")
		return
	}
	writeData(w, http.StatusOK, p)
}

// Update handles PUT /api/v1/projects/{id}
func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req dto.UpdateProjectRequest
	if !decode(w, r, h.validator, &req) {
		return
	}

	p, err := h.projects.Update(r.Context(), middleware.GetUserID(r.Context()), id, project.UpdateInput{
		Name:        req.Name,
		Description: req.Description,
		Thumbnail:   req.Thumbnail,
		IsPublic:    req.IsPublic,
		Indexing:    req.Indexing,
		IsStarter:   req.IsStarter,
	})
	if err != nil {
		fail(w, h.logger, err, "Failed to update project")
		return
	}
	writeData(w, http.StatusOK, p)
}

// Delete handles DELETE /api/v1/projects/{id}
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.projects.Delete(r.Context(), middleware.GetUserID(r.Context()), id); err != nil {
		fail(w, h.logger, err, "Failed to delete project")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Clone handles POST /api/v1/projects/{id}/clone. Anyone who can view the
// project may take a private copy.
func (h *ProjectHandler) Clone(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	actor := middleware.GetUserID(r.Context())
	if _, err := h.projects.Get(r.Context(), actor, id); err != nil {
		fail(w, h.logger, err, "Failed to clone project")
		return
	}
	clone, err := h.projects.Clone(r.Context(), id, actor)
	if err != nil {
		fail(w, h.logger, err, "Failed to clone project")
		return
	}
	writeData(w, http.StatusCreated, clone)
}

// CreatePlaylist handles POST /api/v1/projects/{id}/playlists
func (h *ProjectHandler) CreatePlaylist(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req dto.CreatePlaylistRequest
	if !decode(w, r, h.validator, &req) {
		return
	}

	playlist, err := h.projects.CreatePlaylist(r.Context(), middleware.GetUserID(r.Context()), id, project.PlaylistInput{
		Title:    req.Title,
		Order:    req.Order,
		IsPublic: req.IsPublic,
	})
	if err != nil {
		fail(w, h.logger, err, "Failed to create playlist")
		return
	}
	writeData(w, http.StatusCreated, playlist)
}

// GetPlaylist handles GET /api/v1/playlists/{id}
func (h *ProjectHandler) GetPlaylist(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	playlist, err := h.projects.GetPlaylist(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		fail(w, h.logger, err, "Failed to load playlist")
		return
	}
	writeData(w, http.StatusOK, playlist)
}

// UpdatePlaylist handles PUT /api/v1/playlists/{id}
func (h *ProjectHandler) UpdatePlaylist(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req dto.UpdatePlaylistRequest
	if !decode(w, r, h.validator, &req) {
		return
	}

	playlist, err := h.projects.UpdatePlaylist(r.Context(), middleware.GetUserID(r.Context()), id, project.PlaylistUpdate{
		Title:    req.Title,
		Order:    req.Order,
		IsPublic: req.IsPublic,
	})
	if err != nil {
		fail(w, h.logger, err, "Failed to update playlist")
		return
	}
	writeData(w, http.StatusOK, playlist)
}

// DeletePlaylist handles DELETE /api/v1/playlists/{id}
func (h *ProjectHandler) DeletePlaylist(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.projects.DeletePlaylist(r.Context(), middleware.GetUserID(r.Context()), id); err != nil {
		fail(w, h.logger, err, "Failed to delete playlist")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateActivity handles POST /api/v1/playlists/{id}/activities
func (h *ProjectHandler) CreateActivity(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req dto.CreateActivityRequest
	if !decode(w, r, h.validator, &req) {
		return
	}

	activity, err := h.projects.CreateActivity(r.Context(), middleware.GetUserID(r.Context()), id, project.ActivityInput{
		Title:     req.Title,
		Type:      models.ActivityType(req.Type),
		Content:   req.Content,
		Thumbnail: req.Thumbnail,
		Order:     req.Order,
		IsPublic:  req.IsPublic,
	})
	if err != nil {
		fail(w, h.logger, err, "Failed to create activity")
		return
	}
	writeData(w, http.StatusCreated, activity)
}

// GetActivity handles GET /api/v1/activities/{id}
func (h *ProjectHandler) GetActivity(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	activity, err := h.projects.GetActivity(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		fail(w, h.logger, err, "Failed to load activity")
		return
	}
	writeData(w, http.StatusOK, activity)
}

// UpdateActivity handles PUT /api/v1/activities/{id}
func (h *ProjectHandler) UpdateActivity(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req dto.UpdateActivityRequest
	if !decode(w, r, h.validator, &req) {
		return
	}

	activity, err := h.projects.UpdateActivity(r.Context(), middleware.GetUserID(r.Context()), id, project.ActivityUpdate{
		Title:     req.Title,
		Content:   req.Content,
		Thumbnail: req.Thumbnail,
		Order:     req.Order,
		IsPublic:  req.IsPublic,
	})
	if err != nil {
		fail(w, h.logger, err, "Failed to update activity")
		return
	}
	writeData(w, http.StatusOK, activity)
}

// DeleteActivity handles DELETE /api/v1/activities/{id}
func (h *ProjectHandler) DeleteActivity(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.projects.DeleteActivity(r.Context(), middleware.GetUserID(r.Context()), id); err != nil {
		fail(w, h.logger, err, "Failed to delete activity")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
