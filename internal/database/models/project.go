package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	ProjectRoleOwner  = "owner"
	ProjectRoleEditor = "editor"
)

type Project struct {
	Base
	OrganizationID *uuid.UUID `gorm:"type:uuid;index" json:"organization_id,omitempty"`
	Name           string     `gorm:"not null" json:"name"`
	Description    string     `json:"description,omitempty"`
	Thumbnail      string     `json:"thumbnail,omitempty"`
	IsPublic       bool       `gorm:"default:false" json:"is_public"`
	Indexing       bool       `gorm:"default:false;index" json:"indexing"`
	IsStarter      bool       `gorm:"default:false;index" json:"is_starter"`
	ClonedFromID   *uuid.UUID `gorm:"type:uuid;index" json:"cloned_from_id,omitempty"`

	// Relationships
	Organization *Organization `gorm:"foreignKey:OrganizationID" json:"-"`
	Playlists    []Playlist    `gorm:"foreignKey:ProjectID" json:"playlists,omitempty"`
	Users        []ProjectUser `gorm:"foreignKey:ProjectID" json:"-"`
}

func (Project) TableName() string {
	return "projects"
}

type ProjectUser struct {
	ProjectID uuid.UUID `gorm:"type:uuid;primaryKey" json:"project_id"`
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey;index" json:"user_id"`
	Role      string    `gorm:"not null;default:'owner'" json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func (ProjectUser) TableName() string {
	return "user_project"
}

type Playlist struct {
	Base
	ProjectID uuid.UUID `gorm:"type:uuid;index;not null" json:"project_id"`
	Title     string    `gorm:"not null" json:"title"`
	Order     int       `gorm:"column:order_index;default:0" json:"order"`
	IsPublic  bool      `gorm:"default:false" json:"is_public"`

	// Relationships
	Project    *Project   `gorm:"foreignKey:ProjectID" json:"-"`
	Activities []Activity `gorm:"foreignKey:PlaylistID" json:"activities,omitempty"`
}

func (Playlist) TableName() string {
	return "playlists"
}

type ActivityType string

const (
	ActivityTypeH5P      ActivityType = "h5p"
	ActivityTypeLink     ActivityType = "link"
	ActivityTypeDocument ActivityType = "document"
)

type Activity struct {
	Base
	PlaylistID uuid.UUID    `gorm:"type:uuid;index;not null" json:"playlist_id"`
	Title      string       `gorm:"not null" json:"title"`
	Type       ActivityType `gorm:"not null;default:'h5p'" json:"type"`
	Content    string       `gorm:"type:text" json:"content,omitempty"` // H5P content id or URL
	Thumbnail  string       `json:"thumbnail,omitempty"`
	Order      int          `gorm:"column:order_index;default:0" json:"order"`
	IsPublic   bool         `gorm:"default:false" json:"is_public"`

	Playlist *Playlist `gorm:"foreignKey:PlaylistID" json:"-"`
}

func (Activity) TableName() string {
	return "activities"
}
