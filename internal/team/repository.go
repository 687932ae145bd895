// Package team manages teams and the team/project/user associations that
// decide who collaborates on which project.
package team

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hugh/go-studio/internal/database/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrTeamNotPersisted = errors.New("team must be persisted before associating projects and users")

// ProjectDetail is a team project with the users sharing it under the team.
type ProjectDetail struct {
	models.Project
	Users []models.User `json:"users"`
}

// UserDetail is a team member with the projects shared with them under the team.
type UserDetail struct {
	models.User
	Role     string           `json:"role"`
	Projects []models.Project `json:"projects"`
}

type Detail struct {
	models.Team
	OwnerID  uuid.UUID       `json:"owner_id"`
	Projects []ProjectDetail `json:"projects"`
	Users    []UserDetail    `json:"users"`
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to an open transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// SetTeamProjectUser records every (project, user) pair under the team.
// Existing triples are left alone.
func (r *Repository) SetTeamProjectUser(ctx context.Context, team *models.Team, projectIDs, userIDs []uuid.UUID) error {
	if team == nil || team.ID == uuid.Nil {
		return ErrTeamNotPersisted
	}
	if len(projectIDs) == 0 || len(userIDs) == 0 {
		return nil
	}

	rows := make([]models.TeamProjectUser, 0, len(projectIDs)*len(userIDs))
	for _, projectID := range projectIDs {
		for _, userID := range userIDs {
			rows = append(rows, models.TeamProjectUser{TeamID: team.ID, ProjectID: projectID, UserID: userID})
		}
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error
	if err != nil {
		return fmt.Errorf("setting team project users: %w", err)
	}
	return nil
}

// RemoveTeamProjectUser drops every project association of the user within the team.
func (r *Repository) RemoveTeamProjectUser(ctx context.Context, teamID, userID uuid.UUID) error {
	err := r.db.WithContext(ctx).
		Where("team_id = ? AND user_id = ?", teamID, userID).
		Delete(&models.TeamProjectUser{}).Error
	if err != nil {
		return fmt.Errorf("removing team user associations: %w", err)
	}
	return nil
}

// RemoveTeamUserProject drops every user association of the project within the team.
func (r *Repository) RemoveTeamUserProject(ctx context.Context, teamID, projectID uuid.UUID) error {
	err := r.db.WithContext(ctx).
		Where("team_id = ? AND project_id = ?", teamID, projectID).
		Delete(&models.TeamProjectUser{}).Error
	if err != nil {
		return fmt.Errorf("removing team project associations: %w", err)
	}
	return nil
}

func (r *Repository) Find(ctx context.Context, teamID uuid.UUID) (*models.Team, error) {
	var team models.Team
	if err := r.db.WithContext(ctx).First(&team, "id = ?", teamID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("loading team: %w", err)
	}
	return &team, nil
}

func (r *Repository) MemberIDs(ctx context.Context, teamID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).Model(&models.TeamUser{}).
		Where("team_id = ?", teamID).
		Order("created_at ASC").
		Pluck("user_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("listing team members: %w", err)
	}
	return ids, nil
}

func (r *Repository) ProjectIDs(ctx context.Context, teamID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).Model(&models.TeamProject{}).
		Where("team_id = ?", teamID).
		Order("created_at ASC").
		Pluck("project_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("listing team projects: %w", err)
	}
	return ids, nil
}

// GetTeamDetail loads the team with, for every project, the users sharing it
// and, for every member, the projects shared with them. Queries grow with
// projects times members.
func (r *Repository) GetTeamDetail(ctx context.Context, teamID uuid.UUID) (*Detail, error) {
	team, err := r.Find(ctx, teamID)
	if err != nil {
		return nil, err
	}
	db := r.db.WithContext(ctx)

	var teamProjects []models.TeamProject
	if err := db.Preload("Project").
		Where("team_id = ?", teamID).
		Order("created_at ASC").
		Find(&teamProjects).Error; err != nil {
		return nil, fmt.Errorf("loading team projects: %w", err)
	}

	var teamUsers []models.TeamUser
	if err := db.Preload("User").
		Where("team_id = ?", teamID).
		Order("created_at ASC").
		Find(&teamUsers).Error; err != nil {
		return nil, fmt.Errorf("loading team users: %w", err)
	}

	detail := &Detail{Team: *team, Projects: []ProjectDetail{}, Users: []UserDetail{}}

	for _, tp := range teamProjects {
		if tp.Project == nil {
			continue
		}
		users := []models.User{}
		if err := db.
			Joins("JOIN team_project_user ON team_project_user.user_id = users.id").
			Where("team_project_user.team_id = ? AND team_project_user.project_id = ?", teamID, tp.ProjectID).
			Order("users.email ASC").
			Find(&users).Error; err != nil {
			return nil, fmt.Errorf("loading project collaborators: %w", err)
		}
		detail.Projects = append(detail.Projects, ProjectDetail{Project: *tp.Project, Users: users})
	}

	for _, tu := range teamUsers {
		if tu.User == nil {
			continue
		}
		if tu.Role == models.TeamRoleOwner && detail.OwnerID == uuid.Nil {
			detail.OwnerID = tu.UserID
		}
		projects := []models.Project{}
		if err := db.
			Joins("JOIN team_project_user ON team_project_user.project_id = projects.id").
			Where("team_project_user.team_id = ? AND team_project_user.user_id = ?", teamID, tu.UserID).
			Order("projects.name ASC").
			Find(&projects).Error; err != nil {
			return nil, fmt.Errorf("loading member projects: %w", err)
		}
		detail.Users = append(detail.Users, UserDetail{User: *tu.User, Role: tu.Role, Projects: projects})
	}

	return detail, nil
}
