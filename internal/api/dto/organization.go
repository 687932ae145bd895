package dto

import "github.com/google/uuid"

type CreateOrganizationRequest struct {
	Name        string     `json:"name" validate:"notblank,max=255"`
	Description string     `json:"description" validate:"max=2000"`
	Domain      string     `json:"domain" validate:"required,org_domain,max=255"`
	ParentID    *uuid.UUID `json:"parent_id,omitempty"`
}

type UpdateOrganizationRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,notblank,max=255"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=2000"`
	Domain      *string `json:"domain,omitempty" validate:"omitempty,org_domain,max=255"`
}

// SetParentRequest moves an organization; a null parent_id makes it a root.
type SetParentRequest struct {
	ParentID *uuid.UUID `json:"parent_id"`
}

type AddOrganizationUserRequest struct {
	UserID uuid.UUID `json:"user_id" validate:"required"`
	Role   string    `json:"role" validate:"required,org_role"`
}

type RoleResponse struct {
	OrganizationID uuid.UUID `json:"organization_id"`
	UserID         uuid.UUID `json:"user_id"`
	Role           string    `json:"role"`
}
