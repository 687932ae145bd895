package project

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hugh/go-studio/internal/database/models"
	"github.com/hugh/go-studio/internal/policy"
	"gorm.io/gorm"
)

type ActivityInput struct {
	Title     string
	Type      models.ActivityType
	Content   string
	Thumbnail string
	Order     *int
	IsPublic  bool
}

type ActivityUpdate struct {
	Title     *string
	Content   *string
	Thumbnail *string
	Order     *int
	IsPublic  *bool
}

func (s *Service) CreateActivity(ctx context.Context, actor, playlistID uuid.UUID, input ActivityInput) (*models.Activity, error) {
	playlist, err := s.loadPlaylist(ctx, playlistID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(ctx, actor, policy.Project(playlist.ProjectID), policy.ProjectEdit); err != nil {
		return nil, err
	}

	activity := models.Activity{
		PlaylistID: playlistID,
		Title:      input.Title,
		Type:       input.Type,
		Content:    input.Content,
		Thumbnail:  input.Thumbnail,
		IsPublic:   input.IsPublic,
	}
	if activity.Type == "" {
		activity.Type = models.ActivityTypeH5P
	}
	if input.Order != nil {
		activity.Order = *input.Order
	} else {
		next, err := s.nextOrder(ctx, &models.Activity{}, "playlist_id = ?", playlistID)
		if err != nil {
			return nil, err
		}
		activity.Order = next
	}

	if err := s.db.WithContext(ctx).Create(&activity).Error; err != nil {
		return nil, fmt.Errorf("creating activity: %w", err)
	}
	s.reindexByID(ctx, playlist.ProjectID)
	return &activity, nil
}

func (s *Service) GetActivity(ctx context.Context, actor, id uuid.UUID) (*models.Activity, error) {
	activity, projectID, err := s.loadActivity(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(ctx, actor, policy.Project(projectID), policy.ProjectView); err != nil {
		return nil, err
	}
	return activity, nil
}

func (s *Service) UpdateActivity(ctx context.Context, actor, id uuid.UUID, input ActivityUpdate) (*models.Activity, error) {
	_, projectID, err := s.loadActivity(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(ctx, actor, policy.Project(projectID), policy.ProjectEdit); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if input.Title != nil {
		updates["title"] = *input.Title
	}
	if input.Content != nil {
		updates["content"] = *input.Content
	}
	if input.Thumbnail != nil {
		updates["thumbnail"] = *input.Thumbnail
	}
	if input.Order != nil {
		updates["order_index"] = *input.Order
	}
	if input.IsPublic != nil {
		updates["is_public"] = *input.IsPublic
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&models.Activity{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("updating activity: %w", err)
		}
	}

	s.reindexByID(ctx, projectID)
	activity, _, err := s.loadActivity(ctx, id)
	return activity, err
}

func (s *Service) DeleteActivity(ctx context.Context, actor, id uuid.UUID) error {
	_, projectID, err := s.loadActivity(ctx, id)
	if err != nil {
		return err
	}
	if err := s.policy.Authorize(ctx, actor, policy.Project(projectID), policy.ProjectEdit); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(&models.Activity{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("deleting activity: %w", err)
	}
	s.unindexChildren(ctx, projectID, nil, []uuid.UUID{id})
	s.reindexByID(ctx, projectID)
	return nil
}

// loadActivity returns the activity and the id of the project owning it.
func (s *Service) loadActivity(ctx context.Context, id uuid.UUID) (*models.Activity, uuid.UUID, error) {
	var activity models.Activity
	if err := s.db.WithContext(ctx).Preload("Playlist").First(&activity, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, uuid.Nil, ErrActivityNotFound
		}
		return nil, uuid.Nil, fmt.Errorf("loading activity: %w", err)
	}
	if activity.Playlist == nil {
		return nil, uuid.Nil, ErrActivityNotFound
	}
	return &activity, activity.Playlist.ProjectID, nil
}
