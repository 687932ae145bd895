// Package reports aggregates daily platform usage.
package reports

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hugh/go-studio/internal/database/models"
	"github.com/hugh/go-studio/pkg/util"
)

const dayLayout = "2006-01-02"

var ErrInvalidDay = errors.New("invalid report day")

type Service struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewService(db *gorm.DB, logger *slog.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// Window resolves the report window. An empty day means the UTC day before
// now; otherwise day is "YYYY-MM-DD".
func Window(day string, now time.Time) (time.Time, time.Time, error) {
	if day == "" {
		start, end := util.DayWindow(now)
		return start, end, nil
	}
	start, err := time.ParseInLocation(dayLayout, day, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDay, day)
	}
	return start, start.Add(24 * time.Hour), nil
}

// GenerateDaily counts what was created in the window and upserts the
// report row for that day. Rows deleted since creation still count.
func (s *Service) GenerateDaily(ctx context.Context, day string, now time.Time) (*models.DailyUsageReport, error) {
	start, end, err := Window(day, now)
	if err != nil {
		return nil, err
	}

	report := models.DailyUsageReport{Day: start.Format(dayLayout)}
	counts := []struct {
		model interface{}
		dst   *int64
	}{
		{&models.User{}, &report.NewUsers},
		{&models.Project{}, &report.NewProjects},
		{&models.Playlist{}, &report.NewPlaylists},
		{&models.Activity{}, &report.NewActivities},
		{&models.Publication{}, &report.Publications},
	}
	for _, c := range counts {
		if err := s.db.WithContext(ctx).Unscoped().Model(c.model).
			Where("created_at >= ? AND created_at < ?", start, end).
			Count(c.dst).Error; err != nil {
			return nil, fmt.Errorf("counting usage: %w", err)
		}
	}

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "day"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"new_users",
			"new_projects",
			"new_playlists",
			"new_activities",
			"publications",
			"updated_at",
		}),
	}).Create(&report).Error
	if err != nil {
		return nil, fmt.Errorf("saving usage report: %w", err)
	}

	s.logger.Info("usage report generated",
		"day", report.Day,
		"new_users", report.NewUsers,
		"new_projects", report.NewProjects,
		"publications", report.Publications,
	)
	return s.Get(ctx, report.Day)
}

func (s *Service) Get(ctx context.Context, day string) (*models.DailyUsageReport, error) {
	var report models.DailyUsageReport
	if err := s.db.WithContext(ctx).Where("day = ?", day).First(&report).Error; err != nil {
		return nil, fmt.Errorf("loading usage report: %w", err)
	}
	return &report, nil
}
