package models

// DailyUsageReport is keyed by day so a redelivered report job overwrites
// the row instead of adding to it.
type DailyUsageReport struct {
	Base
	Day           string `gorm:"uniqueIndex;not null" json:"day"` // YYYY-MM-DD, UTC
	NewUsers      int64  `json:"new_users"`
	NewProjects   int64  `json:"new_projects"`
	NewPlaylists  int64  `json:"new_playlists"`
	NewActivities int64  `json:"new_activities"`
	Publications  int64  `json:"publications"`
}

func (DailyUsageReport) TableName() string {
	return "daily_usage_reports"
}
