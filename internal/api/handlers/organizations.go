package handlers

import (
	"log/slog"
	"net/http"

	"github.com/hugh/go-studio/internal/api/dto"
	"github.com/hugh/go-studio/internal/api/middleware"
	"github.com/hugh/go-studio/internal/api/validation"
	"github.com/hugh/go-studio/internal/database/models"
	"github.com/hugh/go-studio/internal/organization"
	"github.com/hugh/go-studio/internal/policy"
)

type OrganizationHandler struct {
	orgs      *organization.Service
	policy    policy.Authorizer
	validator *validation.Validator
	logger    *slog.Logger
}

func NewOrganizationHandler(orgs *organization.Service, authz policy.Authorizer, v *validation.Validator, logger *slog.Logger) *OrganizationHandler {
	return &OrganizationHandler{orgs: orgs, policy: authz, validator: v, logger: logger}
}

// viewable loads the organization from the path and checks organization:view.
func (h *OrganizationHandler) viewable(w http.ResponseWriter, r *http.Request) (*models.Organization, bool) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return nil, false
	}
	org, err := h.orgs.Get(r.Context(), id)
	if err != nil {
		fail(w, h.logger, err, "Failed to load organization")
		return nil, false
	}
	actor := middleware.GetUserID(r.Context())
	if err := h.policy.Authorize(r.Context(), actor, policy.Organization(id), policy.OrganizationView); err != nil {
		fail(w, h.logger, err, "Failed to load organization")
		return nil, false
	}
	return org, true
}

// List handles GET /api/v1/organizations
func (h *OrganizationHandler) List(w http.ResponseWriter, r *http.Request) {
	orgs, err := h.orgs.ListForUser(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		fail(w, h.logger, err, "Failed to list organizations")
		return
	}
	writeData(w, http.StatusOK, nonNil(orgs))
}

// Create handles POST /api/v1/organizations
func (h *OrganizationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateOrganizationRequest
	if !decode(w, r, h.validator, &req) {
		return
	}

	org, err := h.orgs.Create(r.Context(), middleware.GetUserID(r.Context()), organization.CreateInput{
		Name:        req.Name,
		Description: req.Description,
		Domain:      req.Domain,
		ParentID:    req.ParentID,
	})
	if err != nil {
		fail(w, h.logger, err, "Failed to create organization")
		return
	}
	writeData(w, http.StatusCreated, org)
}

// Get handles GET /api/v1/organizations/{id}
func (h *OrganizationHandler) Get(w http.ResponseWriter, r *http.Request) {
	org, ok := h.viewable(w, r)
	if !ok {
		return
	}
	writeData(w, http.StatusOK, org)
}

// Update handles PUT /api/v1/organizations/{id}
func (h *OrganizationHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req dto.UpdateOrganizationRequest
	if !decode(w, r, h.validator, &req) {
		return
	}

	org, err := h.orgs.Update(r.Context(), middleware.GetUserID(r.Context()), id, organization.UpdateInput{
		Name:        req.Name,
		Description: req.Description,
		Domain:      req.Domain,
	})
	if err != nil {
		fail(w, h.logger, err, "Failed to update organization")
		return
	}
	writeData(w, http.StatusOK, org)
}

// Delete handles DELETE /api/v1/organizations/{id}
func (h *OrganizationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.orgs.Delete(r.Context(), middleware.GetUserID(r.Context()), id); err != nil {
		fail(w, h.logger, err, "Failed to delete organization")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetParent handles PUT /api/v1/organizations/{id}/parent
func (h *OrganizationHandler) SetParent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req dto.SetParentRequest
	if !decode(w, r, h.validator, &req) {
		return
	}

	org, err := h.orgs.SetParent(r.Context(), middleware.GetUserID(r.Context()), id, req.ParentID)
	if err != nil {
		fail(w, h.logger, err, "Failed to move organization")
		return
	}
	writeData(w, http.StatusOK, org)
}

// Parent handles GET /api/v1/organizations/{id}/parent. Roots return null.
func (h *OrganizationHandler) Parent(w http.ResponseWriter, r *http.Request) {
	org, ok := h.viewable(w, r)
	if !ok {
		return
	}
	parent, err := h.orgs.Parent(r.Context(), org.ID)
	if err != nil {
		fail(w, h.logger, err, "Failed to load parent organization")
		return
	}
	writeData(w, http.StatusOK, parent)
}

// Children handles GET /api/v1/organizations/{id}/children
func (h *OrganizationHandler) Children(w http.ResponseWriter, r *http.Request) {
	org, ok := h.viewable(w, r)
	if !ok {
		return
	}
	children, err := h.orgs.Children(r.Context(), org.ID)
	if err != nil {
		fail(w, h.logger, err, "Failed to load child organizations")
		return
	}
	writeData(w, http.StatusOK, children)
}

// Ancestors handles GET /api/v1/organizations/{id}/ancestors
func (h *OrganizationHandler) Ancestors(w http.ResponseWriter, r *http.Request) {
	org, ok := h.viewable(w, r)
	if !ok {
		return
	}
	chain, err := h.orgs.Ancestors(r.Context(), org.ID)
	if err != nil {
		fail(w, h.logger, err, "Failed to load ancestors")
		return
	}
	writeData(w, http.StatusOK, nonNil(chain))
}

// Activities handles GET /api/v1/organizations/{id}/activities
func (h *OrganizationHandler) Activities(w http.ResponseWriter, r *http.Request) {
	org, ok := h.viewable(w, r)
	if !ok {
		return
	}
	activities, err := h.orgs.Activities(r.Context(), org.ID)
	if err != nil {
		fail(w, h.logger, err, "Failed to load activities")
		return
	}
	writeData(w, http.StatusOK, nonNil(activities))
}

// Projects handles GET /api/v1/organizations/{id}/projects
func (h *OrganizationHandler) Projects(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	projects, err := h.orgs.Projects(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		fail(w, h.logger, err, "Failed to list projects")
		return
	}
	writeData(w, http.StatusOK, nonNil(projects))
}

// Members handles GET /api/v1/organizations/{id}/users
func (h *OrganizationHandler) Members(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	members, err := h.orgs.Members(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		fail(w, h.logger, err, "Failed to list members")
		return
	}
	writeData(w, http.StatusOK, nonNil(members))
}

// AddUser handles POST /api/v1/organizations/{id}/users
func (h *OrganizationHandler) AddUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req dto.AddOrganizationUserRequest
	if !decode(w, r, h.validator, &req) {
		return
	}

	if err := h.orgs.AddUser(r.Context(), middleware.GetUserID(r.Context()), id, req.UserID, req.Role); err != nil {
		fail(w, h.logger, err, "Failed to add member")
		return
	}
	writeData(w, http.StatusCreated, dto.RoleResponse{OrganizationID: id, UserID: req.UserID, Role: req.Role})
}

// RemoveUser handles DELETE /api/v1/organizations/{id}/users/{userID}
func (h *OrganizationHandler) RemoveUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	if err := h.orgs.RemoveUser(r.Context(), middleware.GetUserID(r.Context()), id, userID); err != nil {
		fail(w, h.logger, err, "Failed to remove member")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Role handles GET /api/v1/organizations/{id}/users/{userID}/role and
// reports the effective, possibly inherited, role.
func (h *OrganizationHandler) Role(w http.ResponseWriter, r *http.Request) {
	org, ok := h.viewable(w, r)
	if !ok {
		return
	}
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	role, err := h.orgs.RoleOf(r.Context(), org.ID, userID)
	if err != nil {
		fail(w, h.logger, err, "Failed to resolve role")
		return
	}
	writeData(w, http.StatusOK, dto.RoleResponse{OrganizationID: org.ID, UserID: userID, Role: role})
}

// nonNil keeps empty lists encoding as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
