package team

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hugh/go-studio/internal/database/models"
	"github.com/hugh/go-studio/internal/policy"
	"github.com/hugh/go-studio/internal/tasks"
	"github.com/hugh/go-studio/pkg/crypto"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound          = errors.New("team not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrProjectNotFound   = errors.New("project not found")
	ErrNotMember         = errors.New("user is not a team member")
	ErrProjectNotInTeam  = errors.New("project is not part of the team")
	ErrCannotRemoveOwner = errors.New("the team owner cannot be removed")
)

// InviteDispatcher queues invitation mail. Satisfied by *tasks.Dispatcher.
type InviteDispatcher interface {
	TeamInvite(ctx context.Context, payload tasks.TeamInvitePayload) error
}

// Authorizer is the policy surface the service needs. Team ownership is
// decided by the evaluator, not by the repository.
type Authorizer interface {
	policy.Authorizer
	TeamOwner(ctx context.Context, teamID uuid.UUID) (uuid.UUID, error)
}

type CreateInput struct {
	Name           string
	Description    string
	OrganizationID *uuid.UUID
	UserIDs        []uuid.UUID
	ProjectIDs     []uuid.UUID
}

type UpdateInput struct {
	Name        *string
	Description *string
}

type Service struct {
	db      *gorm.DB
	repo    *Repository
	policy  Authorizer
	invites InviteDispatcher
	logger  *slog.Logger
}

func NewService(db *gorm.DB, authz Authorizer, invites InviteDispatcher, logger *slog.Logger) *Service {
	return &Service{
		db:      db,
		repo:    NewRepository(db),
		policy:  authz,
		invites: invites,
		logger:  logger,
	}
}

// Create makes a team owned by actor. Listed users join as collaborators
// and every member is associated with every listed project.
func (s *Service) Create(ctx context.Context, actor uuid.UUID, input CreateInput) (*Detail, error) {
	if input.OrganizationID != nil {
		if err := s.policy.Authorize(ctx, actor, policy.Organization(*input.OrganizationID), policy.TeamCreate); err != nil {
			return nil, err
		}
	}

	userIDs := dedupe(input.UserIDs, actor)
	projectIDs := dedupe(input.ProjectIDs, uuid.Nil)
	if err := s.requireUsers(ctx, userIDs); err != nil {
		return nil, err
	}
	if err := s.requireProjects(ctx, actor, projectIDs); err != nil {
		return nil, err
	}

	team := models.Team{
		Name:           input.Name,
		Description:    input.Description,
		OrganizationID: input.OrganizationID,
	}
	var invited []uuid.UUID

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := tx.Create(&team).Error; err != nil {
			return err
		}
		if err := tx.Create(&models.TeamUser{TeamID: team.ID, UserID: actor, Role: models.TeamRoleOwner}).Error; err != nil {
			return err
		}

		var err error
		invited, err = addCollaborators(tx, team.ID, userIDs)
		if err != nil {
			return err
		}
		if err := attachProjects(tx, team.ID, projectIDs); err != nil {
			return err
		}
		members := append([]uuid.UUID{actor}, userIDs...)
		return repo.SetTeamProjectUser(ctx, &team, projectIDs, members)
	})
	if err != nil {
		return nil, fmt.Errorf("creating team: %w", err)
	}

	s.logger.Info("team created", "team_id", team.ID, "actor", actor, "members", len(userIDs)+1, "projects", len(projectIDs))
	s.sendInvites(ctx, team.ID, actor, invited)
	return s.repo.GetTeamDetail(ctx, team.ID)
}

func (s *Service) Update(ctx context.Context, actor, teamID uuid.UUID, input UpdateInput) (*Detail, error) {
	team, err := s.authorize(ctx, actor, teamID, policy.TeamEdit)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if input.Name != nil {
		updates["name"] = *input.Name
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(team).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("updating team: %w", err)
		}
	}
	return s.repo.GetTeamDetail(ctx, teamID)
}

// Delete removes the team and its associations. Projects and users stay.
func (s *Service) Delete(ctx context.Context, actor, teamID uuid.UUID) error {
	team, err := s.authorize(ctx, actor, teamID, policy.TeamDelete)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{&models.TeamProjectUser{}, &models.TeamProject{}, &models.TeamUser{}} {
			if err := tx.Where("team_id = ?", teamID).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Delete(team).Error
	})
	if err != nil {
		return fmt.Errorf("deleting team: %w", err)
	}

	s.logger.Info("team deleted", "team_id", teamID, "actor", actor)
	return nil
}

// AddMembers adds collaborators and shares every team project with them.
// Existing members are skipped.
func (s *Service) AddMembers(ctx context.Context, actor, teamID uuid.UUID, userIDs []uuid.UUID) (*Detail, error) {
	team, err := s.authorize(ctx, actor, teamID, policy.TeamAddMember)
	if err != nil {
		return nil, err
	}

	userIDs = dedupe(userIDs, uuid.Nil)
	if err := s.requireUsers(ctx, userIDs); err != nil {
		return nil, err
	}

	var invited []uuid.UUID
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := repo.MemberIDs(ctx, teamID)
		if err != nil {
			return err
		}
		fresh := without(userIDs, existing)

		invited, err = addCollaborators(tx, teamID, fresh)
		if err != nil {
			return err
		}
		projectIDs, err := repo.ProjectIDs(ctx, teamID)
		if err != nil {
			return err
		}
		return repo.SetTeamProjectUser(ctx, team, projectIDs, fresh)
	})
	if err != nil {
		return nil, fmt.Errorf("adding team members: %w", err)
	}

	s.sendInvites(ctx, teamID, actor, invited)
	return s.repo.GetTeamDetail(ctx, teamID)
}

// RemoveMember drops the user from the team along with every project
// association they had under it.
func (s *Service) RemoveMember(ctx context.Context, actor, teamID, userID uuid.UUID) error {
	if _, err := s.authorize(ctx, actor, teamID, policy.TeamRemoveMember); err != nil {
		return err
	}

	owner, err := s.policy.TeamOwner(ctx, teamID)
	if err != nil {
		return err
	}
	if owner == userID {
		return ErrCannotRemoveOwner
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("team_id = ? AND user_id = ?", teamID, userID).Delete(&models.TeamUser{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotMember
		}
		return s.repo.WithTx(tx).RemoveTeamProjectUser(ctx, teamID, userID)
	})
	if errors.Is(err, ErrNotMember) {
		return err
	}
	if err != nil {
		return fmt.Errorf("removing team member: %w", err)
	}

	s.logger.Info("team member removed", "team_id", teamID, "user_id", userID, "actor", actor)
	return nil
}

// AddProjects attaches projects and shares them with every member.
func (s *Service) AddProjects(ctx context.Context, actor, teamID uuid.UUID, projectIDs []uuid.UUID) (*Detail, error) {
	team, err := s.authorize(ctx, actor, teamID, policy.TeamAddProject)
	if err != nil {
		return nil, err
	}

	projectIDs = dedupe(projectIDs, uuid.Nil)
	if err := s.requireProjects(ctx, actor, projectIDs); err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := attachProjects(tx, teamID, projectIDs); err != nil {
			return err
		}
		members, err := repo.MemberIDs(ctx, teamID)
		if err != nil {
			return err
		}
		return repo.SetTeamProjectUser(ctx, team, projectIDs, members)
	})
	if err != nil {
		return nil, fmt.Errorf("adding team projects: %w", err)
	}

	return s.repo.GetTeamDetail(ctx, teamID)
}

// RemoveProject detaches the project and every member association with it.
// The project itself is untouched.
func (s *Service) RemoveProject(ctx context.Context, actor, teamID, projectID uuid.UUID) error {
	if _, err := s.authorize(ctx, actor, teamID, policy.TeamRemoveProject); err != nil {
		return err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("team_id = ? AND project_id = ?", teamID, projectID).Delete(&models.TeamProject{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrProjectNotInTeam
		}
		return s.repo.WithTx(tx).RemoveTeamUserProject(ctx, teamID, projectID)
	})
	if errors.Is(err, ErrProjectNotInTeam) {
		return err
	}
	if err != nil {
		return fmt.Errorf("removing team project: %w", err)
	}

	s.logger.Info("team project removed", "team_id", teamID, "project_id", projectID, "actor", actor)
	return nil
}

func (s *Service) Get(ctx context.Context, actor, teamID uuid.UUID) (*Detail, error) {
	if _, err := s.authorize(ctx, actor, teamID, policy.TeamView); err != nil {
		return nil, err
	}
	return s.repo.GetTeamDetail(ctx, teamID)
}

// ListForUser returns every team the user belongs to.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Team, error) {
	var teams []models.Team
	err := s.db.WithContext(ctx).
		Joins("JOIN team_user ON team_user.team_id = teams.id").
		Where("team_user.user_id = ?", userID).
		Order("teams.name ASC").
		Find(&teams).Error
	if err != nil {
		return nil, fmt.Errorf("listing teams: %w", err)
	}
	return teams, nil
}

func (s *Service) Owner(ctx context.Context, teamID uuid.UUID) (uuid.UUID, error) {
	if _, err := s.repo.Find(ctx, teamID); err != nil {
		return uuid.Nil, err
	}
	return s.policy.TeamOwner(ctx, teamID)
}

// authorize loads the team, then checks the action. Missing teams are
// reported before permissions.
func (s *Service) authorize(ctx context.Context, actor, teamID uuid.UUID, action policy.Action) (*models.Team, error) {
	team, err := s.repo.Find(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(ctx, actor, policy.Team(teamID), action); err != nil {
		return nil, err
	}
	return team, nil
}

func (s *Service) requireUsers(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id IN ?", ids).Count(&count).Error; err != nil {
		return fmt.Errorf("checking users: %w", err)
	}
	if int(count) != len(ids) {
		return ErrUserNotFound
	}
	return nil
}

// requireProjects checks the projects exist and the actor may edit each one.
func (s *Service) requireProjects(ctx context.Context, actor uuid.UUID, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Project{}).Where("id IN ?", ids).Count(&count).Error; err != nil {
		return fmt.Errorf("checking projects: %w", err)
	}
	if int(count) != len(ids) {
		return ErrProjectNotFound
	}
	for _, id := range ids {
		if err := s.policy.Authorize(ctx, actor, policy.Project(id), policy.ProjectEdit); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) sendInvites(ctx context.Context, teamID, inviter uuid.UUID, userIDs []uuid.UUID) {
	if s.invites == nil {
		return
	}
	for _, userID := range userIDs {
		err := s.invites.TeamInvite(ctx, tasks.TeamInvitePayload{TeamID: teamID, UserID: userID, InvitedBy: inviter})
		if err != nil {
			s.logger.Warn("failed to queue team invitation", "team_id", teamID, "user_id", userID, "error", err)
		}
	}
}

func addCollaborators(tx *gorm.DB, teamID uuid.UUID, userIDs []uuid.UUID) ([]uuid.UUID, error) {
	var invited []uuid.UUID
	for _, userID := range userIDs {
		token, err := crypto.NewInviteToken()
		if err != nil {
			return nil, err
		}
		member := models.TeamUser{TeamID: teamID, UserID: userID, Role: models.TeamRoleCollaborator, Token: token}
		if err := tx.Create(&member).Error; err != nil {
			return nil, err
		}
		invited = append(invited, userID)
	}
	return invited, nil
}

func attachProjects(tx *gorm.DB, teamID uuid.UUID, projectIDs []uuid.UUID) error {
	if len(projectIDs) == 0 {
		return nil
	}
	rows := make([]models.TeamProject, 0, len(projectIDs))
	for _, projectID := range projectIDs {
		rows = append(rows, models.TeamProject{TeamID: teamID, ProjectID: projectID})
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

// dedupe drops duplicates, nil ids and skip.
func dedupe(ids []uuid.UUID, skip uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || id == skip {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func without(ids, existing []uuid.UUID) []uuid.UUID {
	drop := make(map[uuid.UUID]struct{}, len(existing))
	for _, id := range existing {
		drop[id] = struct{}{}
	}
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := drop[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
