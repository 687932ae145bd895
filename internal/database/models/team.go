package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	TeamRoleOwner        = "owner"
	TeamRoleCollaborator = "collaborator"
)

type Team struct {
	Base
	Name           string     `gorm:"not null" json:"name"`
	Description    string     `json:"description,omitempty"`
	OrganizationID *uuid.UUID `gorm:"type:uuid;index" json:"organization_id,omitempty"`

	// Relationships
	Users    []TeamUser    `gorm:"foreignKey:TeamID" json:"-"`
	Projects []TeamProject `gorm:"foreignKey:TeamID" json:"-"`
}

func (Team) TableName() string {
	return "teams"
}

// TeamUser is the team membership pivot carrying the role and the
// invitation token sent to the member.
type TeamUser struct {
	TeamID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"team_id"`
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	Role      string    `gorm:"not null;default:'collaborator'" json:"role"`
	Token     string    `gorm:"index" json:"-"`
	CreatedAt time.Time `json:"created_at"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (TeamUser) TableName() string {
	return "team_user"
}

type TeamProject struct {
	TeamID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"team_id"`
	ProjectID uuid.UUID `gorm:"type:uuid;primaryKey" json:"project_id"`
	CreatedAt time.Time `json:"created_at"`

	Project *Project `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
}

func (TeamProject) TableName() string {
	return "team_project"
}

// TeamProjectUser records which users collaborate on which project within
// a team. The composite key makes inserts idempotent.
type TeamProjectUser struct {
	TeamID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"team_id"`
	ProjectID uuid.UUID `gorm:"type:uuid;primaryKey;index" json:"project_id"`
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey;index" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (TeamProjectUser) TableName() string {
	return "team_project_user"
}
