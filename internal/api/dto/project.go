package dto

import "github.com/google/uuid"

type CreateProjectRequest struct {
	OrganizationID *uuid.UUID `json:"organization_id,omitempty"`
	Name           string     `json:"name" validate:"notblank,max=255"`
	Description    string     `json:"description" validate:"max=5000"`
	Thumbnail      string     `json:"thumbnail" validate:"omitempty,url"`
	IsPublic       bool       `json:"is_public"`
	Indexing       bool       `json:"indexing"`
}

type UpdateProjectRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,notblank,max=255"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=5000"`
	Thumbnail   *string `json:"thumbnail,omitempty" validate:"omitempty,url"`
	IsPublic    *bool   `json:"is_public,omitempty"`
	Indexing    *bool   `json:"indexing,omitempty"`
	IsStarter   *bool   `json:"is_starter,omitempty"`
}

type CreatePlaylistRequest struct {
	Title    string `json:"title" validate:"notblank,max=255"`
	Order    *int   `json:"order,omitempty" validate:"omitempty,min=0"`
	IsPublic bool   `json:"is_public"`
}

type UpdatePlaylistRequest struct {
	Title    *string `json:"title,omitempty" validate:"omitempty,notblank,max=255"`
	Order    *int    `json:"order,omitempty" validate:"omitempty,min=0"`
	IsPublic *bool   `json:"is_public,omitempty"`
}

type CreateActivityRequest struct {
	Title     string `json:"title" validate:"notblank,max=255"`
	Type      string `json:"type" validate:"activity_type"`
	Content   string `json:"content" validate:"max=65535"`
	Thumbnail string `json:"thumbnail" validate:"omitempty,url"`
	Order     *int   `json:"order,omitempty" validate:"omitempty,min=0"`
	IsPublic  bool   `json:"is_public"`
}

type UpdateActivityRequest struct {
	Title     *string `json:"title,omitempty" validate:"omitempty,notblank,max=255"`
	Content   *string `json:"content,omitempty" validate:"omitempty,max=65535"`
	Thumbnail *string `json:"thumbnail,omitempty" validate:"omitempty,url"`
	Order     *int    `json:"order,omitempty" validate:"omitempty,min=0"`
	IsPublic  *bool   `json:"is_public,omitempty"`
}
