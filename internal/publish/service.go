// Package publish pushes playlists to external learning-management systems
// and keeps the per-user LMS connections they are published through.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hugh/go-studio/internal/database/models"
	"github.com/hugh/go-studio/internal/policy"
	"github.com/hugh/go-studio/internal/publish/canvas"
	"github.com/hugh/go-studio/internal/publish/classroom"
	"github.com/hugh/go-studio/internal/publish/moodle"
	"github.com/hugh/go-studio/internal/publish/types"
	"github.com/hugh/go-studio/pkg/crypto"
)

// Re-export types so callers only import this package
type (
	Publisher = types.Publisher
	Target    = types.Target
	Result    = types.Result
	Config    = types.Config
)

var (
	ErrUpstream        = types.ErrUpstream
	ErrSettingNotFound = errors.New("lms setting not found")
	ErrInvalidSetting  = errors.New("invalid lms setting")
)

// PlaylistLoader loads a playlist with its project and ordered activities.
type PlaylistLoader interface {
	LoadPlaylistForPublish(ctx context.Context, id uuid.UUID) (*models.Playlist, error)
}

type SettingInput struct {
	LmsName  models.LmsName
	LmsURL   string
	SiteName string
	CourseID string
	Token    string
}

type Service struct {
	db        *gorm.DB
	playlists PlaylistLoader
	policy    policy.Authorizer
	encryptor *crypto.Encryptor
	cfg       Config
	oauth     *oauth2.Config
	logger    *slog.Logger
}

func NewService(db *gorm.DB, playlists PlaylistLoader, authz policy.Authorizer, encryptor *crypto.Encryptor, cfg Config, oauth *oauth2.Config, logger *slog.Logger) *Service {
	return &Service{
		db:        db,
		playlists: playlists,
		policy:    authz,
		encryptor: encryptor,
		cfg:       cfg,
		oauth:     oauth,
		logger:    logger,
	}
}

// CreateSetting encrypts the token and stores a new LMS connection
func (s *Service) CreateSetting(ctx context.Context, userID uuid.UUID, input SettingInput) (*models.LmsSetting, error) {
	switch input.LmsName {
	case models.LmsCanvas, models.LmsMoodle:
		if input.LmsURL == "" {
			return nil, fmt.Errorf("%s requires lms_url: %w", input.LmsName, ErrInvalidSetting)
		}
	case models.LmsGoogleClassroom:
	default:
		return nil, fmt.Errorf("unsupported lms %q: %w", input.LmsName, ErrInvalidSetting)
	}

	sealed, err := s.encryptor.SealToken(input.Token)
	if err != nil {
		return nil, fmt.Errorf("encrypting token: %w", err)
	}

	setting := &models.LmsSetting{
		UserID:         userID,
		LmsName:        input.LmsName,
		LmsURL:         input.LmsURL,
		SiteName:       input.SiteName,
		CourseID:       input.CourseID,
		EncryptedToken: sealed,
	}
	if err := s.db.WithContext(ctx).Create(setting).Error; err != nil {
		return nil, fmt.Errorf("saving lms setting: %w", err)
	}

	s.logger.Info("created lms setting", "id", setting.ID, "lms", setting.LmsName, "user_id", userID)
	return setting, nil
}

// GetSetting retrieves one of the user's settings (token stays encrypted)
func (s *Service) GetSetting(ctx context.Context, userID, id uuid.UUID) (*models.LmsSetting, error) {
	var setting models.LmsSetting
	if err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&setting).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSettingNotFound
		}
		return nil, err
	}
	return &setting, nil
}

func (s *Service) ListSettings(ctx context.Context, userID uuid.UUID) ([]models.LmsSetting, error) {
	var settings []models.LmsSetting
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&settings).Error; err != nil {
		return nil, err
	}
	for i := range settings {
		settings[i].EncryptedToken = nil
	}
	return settings, nil
}

func (s *Service) DeleteSetting(ctx context.Context, userID, id uuid.UUID) error {
	result := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.LmsSetting{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSettingNotFound
	}
	return nil
}

// ValidateSetting checks the stored token against the LMS
func (s *Service) ValidateSetting(ctx context.Context, userID, id uuid.UUID) error {
	setting, err := s.GetSetting(ctx, userID, id)
	if err != nil {
		return err
	}
	publisher, err := s.getPublisher(setting)
	if err != nil {
		return err
	}
	if err := publisher.ValidateCredentials(ctx); err != nil {
		s.logger.Warn("lms credential check failed", "id", id, "lms", setting.LmsName, "error", err)
		return err
	}
	return nil
}

// Publish sends a playlist to the LMS behind one of the actor's settings and
// records where it went. A previous publication to the same setting is
// updated in place.
func (s *Service) Publish(ctx context.Context, actor, playlistID, settingID uuid.UUID) (*models.Publication, error) {
	playlist, err := s.playlists.LoadPlaylistForPublish(ctx, playlistID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(ctx, actor, policy.Project(playlist.ProjectID), policy.ProjectPublish); err != nil {
		return nil, err
	}
	setting, err := s.GetSetting(ctx, actor, settingID)
	if err != nil {
		return nil, err
	}

	var previous *types.Previous
	var existing models.Publication
	err = s.db.WithContext(ctx).
		Where("playlist_id = ? AND lms_setting_id = ?", playlistID, settingID).
		First(&existing).Error
	switch {
	case err == nil:
		previous = &types.Previous{ExternalID: existing.ExternalID, CourseID: existing.CourseID}
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("loading publication: %w", err)
	}

	publisher, err := s.getPublisher(setting)
	if err != nil {
		return nil, err
	}
	result, err := publisher.Publish(ctx, playlist, previous)
	if err != nil {
		s.logger.Error("publish failed",
			"lms", setting.LmsName,
			"playlist_id", playlistID,
			"setting_id", settingID,
			"error", err,
		)
		return nil, err
	}

	publication := models.Publication{
		PlaylistID:   playlistID,
		LmsSettingID: settingID,
		LmsName:      setting.LmsName,
		ExternalID:   result.ExternalID,
		CourseID:     result.CourseID,
		PublishedBy:  actor,
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "playlist_id"}, {Name: "lms_setting_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"external_id",
			"course_id",
			"published_by",
			"updated_at",
		}),
	}).Create(&publication).Error
	if err != nil {
		return nil, fmt.Errorf("recording publication: %w", err)
	}

	s.logger.Info("playlist published",
		"lms", setting.LmsName,
		"playlist_id", playlistID,
		"external_id", result.ExternalID,
		"items", result.Items,
	)
	return s.publication(ctx, playlistID, settingID)
}

// ListPublications returns where a playlist has been published.
func (s *Service) ListPublications(ctx context.Context, actor, playlistID uuid.UUID) ([]models.Publication, error) {
	playlist, err := s.playlists.LoadPlaylistForPublish(ctx, playlistID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(ctx, actor, policy.Project(playlist.ProjectID), policy.ProjectView); err != nil {
		return nil, err
	}

	var pubs []models.Publication
	if err := s.db.WithContext(ctx).
		Where("playlist_id = ?", playlistID).
		Order("updated_at DESC").
		Find(&pubs).Error; err != nil {
		return nil, err
	}
	return pubs, nil
}

func (s *Service) publication(ctx context.Context, playlistID, settingID uuid.UUID) (*models.Publication, error) {
	var pub models.Publication
	if err := s.db.WithContext(ctx).
		Where("playlist_id = ? AND lms_setting_id = ?", playlistID, settingID).
		First(&pub).Error; err != nil {
		return nil, fmt.Errorf("reloading publication: %w", err)
	}
	return &pub, nil
}

// getPublisher creates an adapter from a setting
func (s *Service) getPublisher(setting *models.LmsSetting) (Publisher, error) {
	token, err := s.encryptor.OpenToken(setting.EncryptedToken)
	if err != nil {
		return nil, fmt.Errorf("decrypting token: %w", err)
	}
	target := types.Target{BaseURL: setting.LmsURL, Token: token, CourseID: setting.CourseID}

	switch setting.LmsName {
	case models.LmsCanvas:
		return canvas.New(target, s.cfg, s.logger), nil
	case models.LmsMoodle:
		return moodle.New(target, s.cfg, s.logger), nil
	case models.LmsGoogleClassroom:
		if s.oauth == nil {
			return nil, fmt.Errorf("google classroom is not configured: %w", ErrInvalidSetting)
		}
		return classroom.New(target, s.cfg, s.oauth, s.logger), nil
	default:
		return nil, fmt.Errorf("unsupported lms %q: %w", setting.LmsName, ErrInvalidSetting)
	}
}
