package dto

import "github.com/google/uuid"

type CreateTeamRequest struct {
	Name           string      `json:"name" validate:"notblank,max=255"`
	Description    string      `json:"description" validate:"max=2000"`
	OrganizationID *uuid.UUID  `json:"organization_id,omitempty"`
	UserIDs        []uuid.UUID `json:"user_ids"`
	ProjectIDs     []uuid.UUID `json:"project_ids"`
}

type UpdateTeamRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,notblank,max=255"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=2000"`
}

type TeamMembersRequest struct {
	UserIDs []uuid.UUID `json:"user_ids" validate:"required,min=1"`
}

type TeamProjectsRequest struct {
	ProjectIDs []uuid.UUID `json:"project_ids" validate:"required,min=1"`
}
