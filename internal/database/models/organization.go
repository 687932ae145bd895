package models

import (
	"time"

	"github.com/google/uuid"
)

type Organization struct {
	Base
	Name        string     `gorm:"not null" json:"name"`
	Description string     `json:"description,omitempty"`
	Domain      string     `gorm:"uniqueIndex;not null" json:"domain"`
	ParentID    *uuid.UUID `gorm:"type:uuid;index" json:"parent_id,omitempty"`

	// Relationships
	Parent   *Organization      `gorm:"foreignKey:ParentID" json:"-"`
	Children []Organization     `gorm:"foreignKey:ParentID" json:"-"`
	Projects []Project          `gorm:"foreignKey:OrganizationID" json:"-"`
	Members  []OrganizationUser `gorm:"foreignKey:OrganizationID" json:"-"`
}

func (Organization) TableName() string {
	return "organizations"
}

// Organization roles, most privileged first.
const (
	OrgRoleAdmin         = "admin"
	OrgRoleCourseCreator = "course_creator"
	OrgRoleMember        = "member"
)

// OrganizationUser is the membership pivot. The role applies to the
// organization and every descendant without an assignment of its own.
type OrganizationUser struct {
	OrganizationID uuid.UUID `gorm:"type:uuid;primaryKey" json:"organization_id"`
	UserID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	Role           string    `gorm:"not null;default:'member'" json:"role"`
	CreatedAt      time.Time `json:"created_at"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (OrganizationUser) TableName() string {
	return "organization_user"
}
