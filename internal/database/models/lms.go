package models

import "github.com/google/uuid"

type LmsName string

const (
	LmsCanvas          LmsName = "canvas"
	LmsMoodle          LmsName = "moodle"
	LmsGoogleClassroom LmsName = "google_classroom"
)

// LmsSetting is a user's connection to an external LMS.
type LmsSetting struct {
	Base
	UserID   uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	LmsName  LmsName   `gorm:"not null" json:"lms_name"`
	LmsURL   string    `json:"lms_url,omitempty"`
	SiteName string    `json:"site_name,omitempty"`
	CourseID string    `json:"course_id,omitempty"` // optional fixed target course

	// Encrypted access token (age); for Google Classroom the OAuth2 token JSON
	EncryptedToken []byte `gorm:"type:bytea" json:"-"`

	User *User `gorm:"foreignKey:UserID" json:"-"`
}

func (LmsSetting) TableName() string {
	return "lms_settings"
}

// Publication remembers where a playlist went so republishing updates it.
type Publication struct {
	Base
	PlaylistID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_publication_target" json:"playlist_id"`
	LmsSettingID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_publication_target" json:"lms_setting_id"`
	LmsName      LmsName   `gorm:"not null" json:"lms_name"`
	ExternalID   string    `gorm:"not null" json:"external_id"`
	CourseID     string    `json:"course_id,omitempty"`
	PublishedBy  uuid.UUID `gorm:"type:uuid" json:"published_by"`
}

func (Publication) TableName() string {
	return "publications"
}
