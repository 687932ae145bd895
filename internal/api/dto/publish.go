package dto

import "github.com/google/uuid"

type CreateLmsSettingRequest struct {
	LmsName  string `json:"lms_name" validate:"required,lms_name"`
	LmsURL   string `json:"lms_url" validate:"omitempty,url"`
	SiteName string `json:"site_name" validate:"max=255"`
	CourseID string `json:"course_id" validate:"max=255"`
	Token    string `json:"token" validate:"notblank"`
}

type PublishRequest struct {
	SettingID uuid.UUID `json:"lms_setting_id" validate:"required"`
}
