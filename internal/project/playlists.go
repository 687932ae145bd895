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

type PlaylistInput struct {
	Title    string
	Order    *int
	IsPublic bool
}

type PlaylistUpdate struct {
	Title    *string
	Order    *int
	IsPublic *bool
}

func (s *Service) CreatePlaylist(ctx context.Context, actor, projectID uuid.UUID, input PlaylistInput) (*models.Playlist, error) {
	if err := s.authorizeProject(ctx, actor, projectID, policy.ProjectEdit); err != nil {
		return nil, err
	}

	playlist := models.Playlist{ProjectID: projectID, Title: input.Title, IsPublic: input.IsPublic}
	if input.Order != nil {
		playlist.Order = *input.Order
	} else {
		next, err := s.nextOrder(ctx, &models.Playlist{}, "project_id = ?", projectID)
		if err != nil {
			return nil, err
		}
		playlist.Order = next
	}

	if err := s.db.WithContext(ctx).Create(&playlist).Error; err != nil {
		return nil, fmt.Errorf("creating playlist: %w", err)
	}
	s.reindexByID(ctx, projectID)
	return &playlist, nil
}

// GetPlaylist returns the playlist with its activities in order.
func (s *Service) GetPlaylist(ctx context.Context, actor, id uuid.UUID) (*models.Playlist, error) {
	playlist, err := s.loadPlaylist(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(ctx, actor, policy.Project(playlist.ProjectID), policy.ProjectView); err != nil {
		return nil, err
	}
	return playlist, nil
}

func (s *Service) UpdatePlaylist(ctx context.Context, actor, id uuid.UUID, input PlaylistUpdate) (*models.Playlist, error) {
	playlist, err := s.loadPlaylist(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(ctx, actor, policy.Project(playlist.ProjectID), policy.ProjectEdit); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if input.Title != nil {
		updates["title"] = *input.Title
	}
	if input.Order != nil {
		updates["order_index"] = *input.Order
	}
	if input.IsPublic != nil {
		updates["is_public"] = *input.IsPublic
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&models.Playlist{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("updating playlist: %w", err)
		}
	}

	s.reindexByID(ctx, playlist.ProjectID)
	return s.loadPlaylist(ctx, id)
}

// DeletePlaylist removes the playlist and its activities.
func (s *Service) DeletePlaylist(ctx context.Context, actor, id uuid.UUID) error {
	playlist, err := s.loadPlaylist(ctx, id)
	if err != nil {
		return err
	}
	if err := s.policy.Authorize(ctx, actor, policy.Project(playlist.ProjectID), policy.ProjectEdit); err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("playlist_id = ?", id).Delete(&models.Activity{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Playlist{}, "id = ?", id).Error
	})
	if err != nil {
		return fmt.Errorf("deleting playlist: %w", err)
	}

	activityIDs := make([]uuid.UUID, 0, len(playlist.Activities))
	for _, a := range playlist.Activities {
		activityIDs = append(activityIDs, a.ID)
	}
	s.unindexChildren(ctx, playlist.ProjectID, []uuid.UUID{playlist.ID}, activityIDs)
	s.reindexByID(ctx, playlist.ProjectID)
	return nil
}

func (s *Service) loadPlaylist(ctx context.Context, id uuid.UUID) (*models.Playlist, error) {
	var playlist models.Playlist
	err := s.db.WithContext(ctx).
		Preload("Activities", func(db *gorm.DB) *gorm.DB { return db.Order("order_index ASC, created_at ASC") }).
		First(&playlist, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlaylistNotFound
		}
		return nil, fmt.Errorf("loading playlist: %w", err)
	}
	return &playlist, nil
}

// LoadPlaylistForPublish returns the playlist with its project and ordered
// activities.
func (s *Service) LoadPlaylistForPublish(ctx context.Context, id uuid.UUID) (*models.Playlist, error) {
	var playlist models.Playlist
	err := s.db.WithContext(ctx).
		Preload("Project").
		Preload("Activities", func(db *gorm.DB) *gorm.DB { return db.Order("order_index ASC, created_at ASC") }).
		First(&playlist, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlaylistNotFound
		}
		return nil, fmt.Errorf("loading playlist: %w", err)
	}
	if playlist.Project == nil {
		return nil, ErrNotFound
	}
	return &playlist, nil
}

func (s *Service) nextOrder(ctx context.Context, model interface{}, where string, arg uuid.UUID) (int, error) {
	var max int64
	row := s.db.WithContext(ctx).Model(model).Where(where, arg).
		Select("COALESCE(MAX(order_index), -1)").Row()
	if err := row.Scan(&max); err != nil {
		return 0, fmt.Errorf("computing order: %w", err)
	}
	return int(max) + 1, nil
}

func (s *Service) reindexByID(ctx context.Context, projectID uuid.UUID) {
	var project models.Project
	if err := s.db.WithContext(ctx).Select("id", "indexing").First(&project, "id = ?", projectID).Error; err != nil {
		return
	}
	s.reindex(ctx, &project)
}
