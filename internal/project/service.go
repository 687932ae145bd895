// Package project manages projects and the playlists and activities they own.
package project

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hugh/go-studio/internal/database/models"
	"github.com/hugh/go-studio/internal/policy"
	"github.com/hugh/go-studio/internal/tasks"
	"gorm.io/gorm"
)

var (
	ErrNotFound         = errors.New("project not found")
	ErrPlaylistNotFound = errors.New("playlist not found")
	ErrActivityNotFound = errors.New("activity not found")
)

// Dispatcher queues search index maintenance. Satisfied by *tasks.Dispatcher.
type Dispatcher interface {
	IndexProject(ctx context.Context, projectID uuid.UUID) error
	RemoveProject(ctx context.Context, payload tasks.ProjectRemovalPayload) error
}

type CreateInput struct {
	OrganizationID *uuid.UUID
	Name           string
	Description    string
	Thumbnail      string
	IsPublic       bool
	Indexing       bool
}

type UpdateInput struct {
	Name        *string
	Description *string
	Thumbnail   *string
	IsPublic    *bool
	Indexing    *bool
	IsStarter   *bool
}

type Service struct {
	db       *gorm.DB
	policy   policy.Authorizer
	dispatch Dispatcher
	logger   *slog.Logger
}

func NewService(db *gorm.DB, authz policy.Authorizer, dispatch Dispatcher, logger *slog.Logger) *Service {
	return &Service{db: db, policy: authz, dispatch: dispatch, logger: logger}
}

// Create makes a project owned by actor. Inside an organization the actor
// needs project:create there.
func (s *Service) Create(ctx context.Context, actor uuid.UUID, input CreateInput) (*models.Project, error) {
	if input.OrganizationID != nil {
		if err := s.policy.Authorize(ctx, actor, policy.Organization(*input.OrganizationID), policy.ProjectCreate); err != nil {
			return nil, err
		}
	}

	project := models.Project{
		OrganizationID: input.OrganizationID,
		Name:           input.Name,
		Description:    input.Description,
		Thumbnail:      input.Thumbnail,
		IsPublic:       input.IsPublic,
		Indexing:       input.Indexing,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&project).Error; err != nil {
			return err
		}
		return tx.Create(&models.ProjectUser{ProjectID: project.ID, UserID: actor, Role: models.ProjectRoleOwner}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("creating project: %w", err)
	}

	s.logger.Info("project created", "project_id", project.ID, "actor", actor)
	s.reindex(ctx, &project)
	return &project, nil
}

// Get returns the project with its playlists and activities in order.
func (s *Service) Get(ctx context.Context, actor, id uuid.UUID) (*models.Project, error) {
	if err := s.authorizeProject(ctx, actor, id, policy.ProjectView); err != nil {
		return nil, err
	}
	return s.Load(ctx, id)
}

// Load fetches the project tree without an authorization check. Used by
// background jobs.
func (s *Service) Load(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	var project models.Project
	err := s.db.WithContext(ctx).
		Preload("Playlists", func(db *gorm.DB) *gorm.DB { return db.Order("order_index ASC, created_at ASC") }).
		Preload("Playlists.Activities", func(db *gorm.DB) *gorm.DB { return db.Order("order_index ASC, created_at ASC") }).
		First(&project, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("loading project: %w", err)
	}
	return &project, nil
}

// ListForUser returns projects the user owns or edits directly or through
// a team.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Project, error) {
	var projects []models.Project
	err := s.db.WithContext(ctx).
		Where("id IN (?) OR id IN (?)",
			s.db.Model(&models.ProjectUser{}).Select("project_id").Where("user_id = ?", userID),
			s.db.Model(&models.TeamProjectUser{}).Select("project_id").Where("user_id = ?", userID),
		).
		Order("name ASC").
		Find(&projects).Error
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	return projects, nil
}

func (s *Service) Update(ctx context.Context, actor, id uuid.UUID, input UpdateInput) (*models.Project, error) {
	if err := s.authorizeProject(ctx, actor, id, policy.ProjectEdit); err != nil {
		return nil, err
	}
	if input.IsStarter != nil {
		if err := s.authorizeStarter(ctx, actor, id); err != nil {
			return nil, err
		}
	}

	updates := map[string]interface{}{}
	if input.Name != nil {
		updates["name"] = *input.Name
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.Thumbnail != nil {
		updates["thumbnail"] = *input.Thumbnail
	}
	if input.IsPublic != nil {
		updates["is_public"] = *input.IsPublic
	}
	if input.Indexing != nil {
		updates["indexing"] = *input.Indexing
	}
	if input.IsStarter != nil {
		updates["is_starter"] = *input.IsStarter
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&models.Project{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("updating project: %w", err)
		}
	}

	project, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.Indexing != nil && !*input.Indexing {
		s.unindex(ctx, project)
	} else {
		s.reindex(ctx, project)
	}
	return project, nil
}

// Delete removes the project, its playlists and their activities in one
// transaction, along with every membership and team association.
func (s *Service) Delete(ctx context.Context, actor, id uuid.UUID) error {
	if err := s.authorizeProject(ctx, actor, id, policy.ProjectDelete); err != nil {
		return err
	}
	project, err := s.Load(ctx, id)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		playlistIDs := playlistIDsOf(project)
		if len(playlistIDs) > 0 {
			if err := tx.Where("playlist_id IN ?", playlistIDs).Delete(&models.Activity{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", playlistIDs).Delete(&models.Playlist{}).Error; err != nil {
				return err
			}
		}
		for _, model := range []interface{}{&models.TeamProjectUser{}, &models.TeamProject{}, &models.ProjectUser{}} {
			if err := tx.Where("project_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.Project{}, "id = ?", id).Error
	})
	if err != nil {
		return fmt.Errorf("deleting project: %w", err)
	}

	s.logger.Info("project deleted", "project_id", id, "actor", actor)
	s.unindex(ctx, project)
	return nil
}

// Clone copies a project with its playlists and activities to a new owner.
// The copy is never a starter project itself.
func (s *Service) Clone(ctx context.Context, sourceID, ownerID uuid.UUID) (*models.Project, error) {
	source, err := s.Load(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	clone := models.Project{
		Name:         source.Name,
		Description:  source.Description,
		Thumbnail:    source.Thumbnail,
		IsPublic:     false,
		Indexing:     false,
		ClonedFromID: &source.ID,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&clone).Error; err != nil {
			return err
		}
		if err := tx.Create(&models.ProjectUser{ProjectID: clone.ID, UserID: ownerID, Role: models.ProjectRoleOwner}).Error; err != nil {
			return err
		}
		for _, pl := range source.Playlists {
			copied := models.Playlist{ProjectID: clone.ID, Title: pl.Title, Order: pl.Order, IsPublic: pl.IsPublic}
			if err := tx.Create(&copied).Error; err != nil {
				return err
			}
			for _, a := range pl.Activities {
				activity := models.Activity{
					PlaylistID: copied.ID,
					Title:      a.Title,
					Type:       a.Type,
					Content:    a.Content,
					Thumbnail:  a.Thumbnail,
					Order:      a.Order,
					IsPublic:   a.IsPublic,
				}
				if err := tx.Create(&activity).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cloning project %s: %w", sourceID, err)
	}
	return &clone, nil
}

// AssignStarterProjects gives the user a copy of every starter project they
// do not already have a copy of. Returns the number of copies made.
func (s *Service) AssignStarterProjects(ctx context.Context, userID uuid.UUID) (int, error) {
	var starters []uuid.UUID
	if err := s.db.WithContext(ctx).Model(&models.Project{}).
		Where("is_starter = ?", true).
		Order("created_at ASC").
		Pluck("id", &starters).Error; err != nil {
		return 0, fmt.Errorf("listing starter projects: %w", err)
	}

	copied := 0
	for _, sourceID := range starters {
		var existing int64
		if err := s.db.WithContext(ctx).Model(&models.Project{}).
			Joins("JOIN user_project ON user_project.project_id = projects.id").
			Where("projects.cloned_from_id = ? AND user_project.user_id = ?", sourceID, userID).
			Count(&existing).Error; err != nil {
			return copied, fmt.Errorf("checking starter copy: %w", err)
		}
		if existing > 0 {
			continue
		}
		if _, err := s.Clone(ctx, sourceID, userID); err != nil {
			return copied, err
		}
		copied++
	}
	return copied, nil
}

func (s *Service) authorizeProject(ctx context.Context, actor, id uuid.UUID, action policy.Action) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Project{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("loading project: %w", err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return s.policy.Authorize(ctx, actor, policy.Project(id), action)
}

// authorizeStarter limits the starter flag to administrators of the
// project's organization. Personal projects never become starters.
func (s *Service) authorizeStarter(ctx context.Context, actor, id uuid.UUID) error {
	var project models.Project
	if err := s.db.WithContext(ctx).Select("id", "organization_id").First(&project, "id = ?", id).Error; err != nil {
		return fmt.Errorf("loading project: %w", err)
	}
	if project.OrganizationID == nil {
		return fmt.Errorf("starter flag on personal project: %w", policy.ErrForbidden)
	}
	return s.policy.Authorize(ctx, actor, policy.Organization(*project.OrganizationID), policy.OrganizationManageStarters)
}

func (s *Service) reindex(ctx context.Context, project *models.Project) {
	if s.dispatch == nil || !project.Indexing {
		return
	}
	if err := s.dispatch.IndexProject(ctx, project.ID); err != nil {
		s.logger.Warn("failed to queue project indexing", "project_id", project.ID, "error", err)
	}
}

func (s *Service) unindex(ctx context.Context, project *models.Project) {
	if s.dispatch == nil {
		return
	}
	payload := tasks.ProjectRemovalPayload{ProjectID: project.ID}
	for _, pl := range project.Playlists {
		payload.PlaylistIDs = append(payload.PlaylistIDs, pl.ID)
		for _, a := range pl.Activities {
			payload.ActivityIDs = append(payload.ActivityIDs, a.ID)
		}
	}
	if err := s.dispatch.RemoveProject(ctx, payload); err != nil {
		s.logger.Warn("failed to queue project removal from index", "project_id", project.ID, "error", err)
	}
}

// unindexChildren drops the documents of deleted playlists and activities.
// The project's own document stays; reindex refreshes it.
func (s *Service) unindexChildren(ctx context.Context, projectID uuid.UUID, playlistIDs, activityIDs []uuid.UUID) {
	if s.dispatch == nil || len(playlistIDs)+len(activityIDs) == 0 {
		return
	}
	payload := tasks.ProjectRemovalPayload{
		ProjectID:    projectID,
		PlaylistIDs:  playlistIDs,
		ActivityIDs:  activityIDs,
		ChildrenOnly: true,
	}
	if err := s.dispatch.RemoveProject(ctx, payload); err != nil {
		s.logger.Warn("failed to queue index removal", "project_id", projectID, "error", err)
	}
}

func playlistIDsOf(project *models.Project) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(project.Playlists))
	for _, pl := range project.Playlists {
		ids = append(ids, pl.ID)
	}
	return ids
}
