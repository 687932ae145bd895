package handlers

import (
	"log/slog"
	"net/http"

	"github.com/hugh/go-studio/internal/api/dto"
	"github.com/hugh/go-studio/internal/api/middleware"
	"github.com/hugh/go-studio/internal/api/validation"
	"github.com/hugh/go-studio/internal/team"
)

type TeamHandler struct {
	teams     *team.Service
	validator *validation.Validator
	logger    *slog.Logger
}

func NewTeamHandler(teams *team.Service, v *validation.Validator, logger *slog.Logger) *TeamHandler {
	return &TeamHandler{teams: teams, validator: v, logger: logger}
}

// List handles GET /api/v1/teams
func (h *TeamHandler) List(w http.ResponseWriter, r *http.Request) {
	teams, err := h.teams.ListForUser(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		fail(w, h.logger, err, "Failed to list teams")
		return
	}
	writeData(w, http.StatusOK, nonNil(teams))
}

// Create handles POST /api/v1/teams
func (h *TeamHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateTeamRequest
	if !decode(w, r, h.validator, &req) {
		return
	}

	detail, err := h.teams.Create(r.Context(), middleware.GetUserID(r.Context()), team.CreateInput{
		Name:           req.Name,
		Description:    req.Description,
		OrganizationID: req.OrganizationID,
		UserIDs:        req.UserIDs,
		ProjectIDs:     req.ProjectIDs,
	})
	if err != nil {
		fail(w, h.logger, err, "Failed to create team")
		return
	}
	writeData(w, http.StatusCreated, detail)
}

// Get handles GET /api/v1/teams/{id}
func (h *TeamHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	detail, err := h.teams.Get(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		fail(w, h.logger, err, "Failed to load team")
		return
	}
	writeData(w, http.StatusOK, detail)
}

// Update handles PUT /api/v1/teams/{id}
func (h *TeamHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req dto.UpdateTeamRequest
	if !decode(w, r, h.validator, &req) {
		return
	}

	detail, err := h.teams.Update(r.Context(), middleware.GetUserID(r.Context()), id, team.UpdateInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		fail(w, h.logger, err, "Failed to update team")
		return
	}
	writeData(w, http.StatusOK, detail)
}

// Delete handles DELETE /api/v1/teams/{id}
func (h *TeamHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.teams.Delete(r.Context(), middleware.GetUserID(r.Context()), id); err != nil {
		fail(w, h.logger, err, "Failed to delete team")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddMembers handles POST /api/v1/teams/{id}/users
func (h *TeamHandler) AddMembers(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req dto.TeamMembersRequest
	if !decode(w, r, h.validator, &req) {
		return
	}

	detail, err := h.teams.AddMembers(r.Context(), middleware.GetUserID(r.Context()), id, req.UserIDs)
	if err != nil {
		fail(w, h.logger, err, "Failed to add team members")
		return
	}
	writeData(w, http.StatusOK, detail)
}

// RemoveMember handles DELETE /api/v1/teams/{id}/users/{userID}
func (h *TeamHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	if err := h.teams.RemoveMember(r.Context(), middleware.GetUserID(r.Context()), id, userID); err != nil {
		fail(w, h.logger, err, "Failed to remove team member")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddProjects handles POST /api/v1/teams/{id}/projects
func (h *TeamHandler) AddProjects(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req dto.TeamProjectsRequest
	if !decode(w, r, h.validator, &req) {
		return
	}

	detail, err := h.teams.AddProjects(r.Context(), middleware.GetUserID(r.Context()), id, req.ProjectIDs)
	if err != nil {
		fail(w, h.logger, err, "Failed to add team projects")
		return
	}
	writeData(w, http.StatusOK, detail)
}

// RemoveProject handles DELETE /api/v1/teams/{id}/projects/{projectID}
func (h *TeamHandler) RemoveProject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	projectID, ok := pathID(w, r, "projectID")
	if !ok {
		return
	}
	if err := h.teams.RemoveProject(r.Context(), middleware.GetUserID(r.Context()), id, projectID); err != nil {
		fail(w, h.logger, err, "Failed to remove team project")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
