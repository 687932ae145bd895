// Package organization manages the organization hierarchy and its members.
package organization

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hugh/go-studio/internal/database/models"
	"github.com/hugh/go-studio/internal/policy"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound     = errors.New("organization not found")
	ErrCycle        = errors.New("organization cannot be its own ancestor")
	ErrDomainTaken  = errors.New("organization domain already in use")
	ErrInvalidRole  = errors.New("invalid organization role")
	ErrNotMember    = errors.New("user is not a member of the organization")
	ErrUserNotFound = errors.New("user not found")
)

// maxDepth bounds hierarchy walks so a corrupt row cannot loop forever.
const maxDepth = 64

// Node is an organization with its descendants expanded to full depth.
type Node struct {
	models.Organization
	Children []*Node `json:"children"`
}

type CreateInput struct {
	Name        string
	Description string
	Domain      string
	ParentID    *uuid.UUID
}

type UpdateInput struct {
	Name        *string
	Description *string
	Domain      *string
}

type Member struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	Name   string    `json:"name"`
	Role   string    `json:"role"`
}

type Service struct {
	db     *gorm.DB
	policy policy.Authorizer
	logger *slog.Logger
}

func NewService(db *gorm.DB, authz policy.Authorizer, logger *slog.Logger) *Service {
	return &Service{db: db, policy: authz, logger: logger}
}

// Get returns a single organization.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	var org models.Organization
	if err := s.db.WithContext(ctx).First(&org, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("loading organization: %w", err)
	}
	return &org, nil
}

// ListForUser returns the organizations the user holds a direct role on.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Organization, error) {
	var orgs []models.Organization
	err := s.db.WithContext(ctx).
		Joins("JOIN organization_user ON organization_user.organization_id = organizations.id").
		Where("organization_user.user_id = ?", userID).
		Order("organizations.name ASC").
		Find(&orgs).Error
	if err != nil {
		return nil, fmt.Errorf("listing organizations: %w", err)
	}
	return orgs, nil
}

// Create makes a new organization. Roots make the actor admin; a child
// requires organization:create-child on the parent.
func (s *Service) Create(ctx context.Context, actor uuid.UUID, input CreateInput) (*models.Organization, error) {
	if input.ParentID != nil {
		if _, err := s.Get(ctx, *input.ParentID); err != nil {
			return nil, err
		}
		if err := s.policy.Authorize(ctx, actor, policy.Organization(*input.ParentID), policy.OrganizationCreateChild); err != nil {
			return nil, err
		}
	}
	if err := s.checkDomain(ctx, input.Domain, uuid.Nil); err != nil {
		return nil, err
	}

	org := models.Organization{
		Name:        input.Name,
		Description: input.Description,
		Domain:      input.Domain,
		ParentID:    input.ParentID,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&org).Error; err != nil {
			return err
		}
		if input.ParentID != nil {
			return nil
		}
		return tx.Create(&models.OrganizationUser{
			OrganizationID: org.ID,
			UserID:         actor,
			Role:           models.OrgRoleAdmin,
		}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("creating organization: %w", err)
	}

	s.logger.Info("organization created", "org_id", org.ID, "parent_id", org.ParentID, "actor", actor)
	return &org, nil
}

func (s *Service) Update(ctx context.Context, actor, id uuid.UUID, input UpdateInput) (*models.Organization, error) {
	org, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(ctx, actor, policy.Organization(id), policy.OrganizationEdit); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if input.Name != nil {
		updates["name"] = *input.Name
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.Domain != nil && *input.Domain != org.Domain {
		if err := s.checkDomain(ctx, *input.Domain, id); err != nil {
			return nil, err
		}
		updates["domain"] = *input.Domain
	}
	if len(updates) == 0 {
		return org, nil
	}

	if err := s.db.WithContext(ctx).Model(org).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("updating organization: %w", err)
	}
	return s.Get(ctx, id)
}

// SetParent moves an organization under a new parent, or to the root when
// parentID is nil. Moving under itself or a descendant returns ErrCycle.
func (s *Service) SetParent(ctx context.Context, actor, id uuid.UUID, parentID *uuid.UUID) (*models.Organization, error) {
	org, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(ctx, actor, policy.Organization(id), policy.OrganizationEdit); err != nil {
		return nil, err
	}

	if parentID != nil {
		if _, err := s.Get(ctx, *parentID); err != nil {
			return nil, err
		}
		if err := s.policy.Authorize(ctx, actor, policy.Organization(*parentID), policy.OrganizationCreateChild); err != nil {
			return nil, err
		}
		cycle, err := s.isAncestorOrSelf(ctx, id, *parentID)
		if err != nil {
			return nil, err
		}
		if cycle {
			return nil, ErrCycle
		}
	}

	if err := s.db.WithContext(ctx).Model(org).Update("parent_id", parentID).Error; err != nil {
		return nil, fmt.Errorf("reparenting organization: %w", err)
	}
	s.logger.Info("organization reparented", "org_id", id, "parent_id", parentID, "actor", actor)
	return s.Get(ctx, id)
}

// isAncestorOrSelf reports whether candidate appears on the root-ward chain
// starting at node (inclusive).
func (s *Service) isAncestorOrSelf(ctx context.Context, candidate, node uuid.UUID) (bool, error) {
	current := &node
	for depth := 0; current != nil; depth++ {
		if depth >= maxDepth {
			return true, nil
		}
		if *current == candidate {
			return true, nil
		}
		var org models.Organization
		if err := s.db.WithContext(ctx).Select("id", "parent_id").First(&org, "id = ?", *current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return false, nil
			}
			return false, fmt.Errorf("walking ancestors: %w", err)
		}
		current = org.ParentID
	}
	return false, nil
}

// Delete soft-deletes the organization and every descendant.
func (s *Service) Delete(ctx context.Context, actor, id uuid.UUID) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.policy.Authorize(ctx, actor, policy.Organization(id), policy.OrganizationDelete); err != nil {
		return err
	}

	ids, err := s.subtreeIDs(ctx, id)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.Organization{}).Error; err != nil {
		return fmt.Errorf("deleting organization subtree: %w", err)
	}

	s.logger.Info("organization deleted", "org_id", id, "subtree_size", len(ids), "actor", actor)
	return nil
}

func (s *Service) subtreeIDs(ctx context.Context, root uuid.UUID) ([]uuid.UUID, error) {
	ids := []uuid.UUID{root}
	frontier := []uuid.UUID{root}
	for depth := 0; len(frontier) > 0 && depth < maxDepth; depth++ {
		var next []uuid.UUID
		if err := s.db.WithContext(ctx).Model(&models.Organization{}).
			Where("parent_id IN ?", frontier).
			Pluck("id", &next).Error; err != nil {
			return nil, fmt.Errorf("loading descendants: %w", err)
		}
		ids = append(ids, next...)
		frontier = next
	}
	return ids, nil
}

// Children returns the direct descendants of id with their own descendants
// expanded, one query per level.
func (s *Service) Children(ctx context.Context, id uuid.UUID) ([]*Node, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	byParent := map[uuid.UUID][]*Node{}
	frontier := []uuid.UUID{id}
	for depth := 0; len(frontier) > 0 && depth < maxDepth; depth++ {
		var level []models.Organization
		if err := s.db.WithContext(ctx).
			Where("parent_id IN ?", frontier).
			Order("name ASC").
			Find(&level).Error; err != nil {
			return nil, fmt.Errorf("loading children: %w", err)
		}

		frontier = frontier[:0]
		for _, org := range level {
			node := &Node{Organization: org, Children: []*Node{}}
			byParent[*org.ParentID] = append(byParent[*org.ParentID], node)
			frontier = append(frontier, org.ID)
		}
	}

	var attach func(nodes []*Node)
	attach = func(nodes []*Node) {
		for _, n := range nodes {
			if kids, ok := byParent[n.ID]; ok {
				n.Children = kids
				attach(kids)
			}
		}
	}
	roots := byParent[id]
	if roots == nil {
		roots = []*Node{}
	}
	attach(roots)
	return roots, nil
}

// Parent returns the immediate ancestor, or nil for a root organization.
func (s *Service) Parent(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	org, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if org.ParentID == nil {
		return nil, nil
	}
	parent, err := s.Get(ctx, *org.ParentID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return parent, err
}

// Ancestors returns the chain from the immediate parent up to the root.
func (s *Service) Ancestors(ctx context.Context, id uuid.UUID) ([]models.Organization, error) {
	org, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var chain []models.Organization
	current := org.ParentID
	for depth := 0; current != nil && depth < maxDepth; depth++ {
		var parent models.Organization
		if err := s.db.WithContext(ctx).First(&parent, "id = ?", *current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				break
			}
			return nil, fmt.Errorf("loading ancestor: %w", err)
		}
		chain = append(chain, parent)
		current = parent.ParentID
	}
	return chain, nil
}

// Activities resolves every activity reachable through the organization's
// projects and their playlists. Soft-deleted rows anywhere on the chain are
// excluded.
func (s *Service) Activities(ctx context.Context, id uuid.UUID) ([]models.Activity, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	var activities []models.Activity
	err := s.db.WithContext(ctx).
		Joins("JOIN playlists ON playlists.id = activities.playlist_id AND playlists.deleted_at IS NULL").
		Joins("JOIN projects ON projects.id = playlists.project_id AND projects.deleted_at IS NULL").
		Where("projects.organization_id = ?", id).
		Order("playlists.order_index ASC, activities.order_index ASC").
		Find(&activities).Error
	if err != nil {
		return nil, fmt.Errorf("loading organization activities: %w", err)
	}
	return activities, nil
}

// Projects lists the organization's own projects.
func (s *Service) Projects(ctx context.Context, actor, id uuid.UUID) ([]models.Project, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(ctx, actor, policy.Organization(id), policy.OrganizationView); err != nil {
		return nil, err
	}

	var projects []models.Project
	if err := s.db.WithContext(ctx).Where("organization_id = ?", id).Order("name ASC").Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("listing organization projects: %w", err)
	}
	return projects, nil
}

// AddUser assigns a role to a user. Re-adding updates the role.
func (s *Service) AddUser(ctx context.Context, actor, orgID, userID uuid.UUID, role string) error {
	if !policy.IsKnownRole(role) {
		return ErrInvalidRole
	}
	if _, err := s.Get(ctx, orgID); err != nil {
		return err
	}
	if err := s.policy.Authorize(ctx, actor, policy.Organization(orgID), policy.OrganizationAddUser); err != nil {
		return err
	}

	var user models.User
	if err := s.db.WithContext(ctx).Select("id").First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("loading user: %w", err)
	}

	membership := models.OrganizationUser{OrganizationID: orgID, UserID: userID, Role: role}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "organization_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"role"}),
	}).Create(&membership).Error
	if err != nil {
		return fmt.Errorf("adding organization member: %w", err)
	}
	return nil
}

func (s *Service) RemoveUser(ctx context.Context, actor, orgID, userID uuid.UUID) error {
	if _, err := s.Get(ctx, orgID); err != nil {
		return err
	}
	if err := s.policy.Authorize(ctx, actor, policy.Organization(orgID), policy.OrganizationRemoveUser); err != nil {
		return err
	}

	result := s.db.WithContext(ctx).
		Where("organization_id = ? AND user_id = ?", orgID, userID).
		Delete(&models.OrganizationUser{})
	if result.Error != nil {
		return fmt.Errorf("removing organization member: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotMember
	}
	return nil
}

// Members lists users with a direct role on the organization.
func (s *Service) Members(ctx context.Context, actor, orgID uuid.UUID) ([]Member, error) {
	if _, err := s.Get(ctx, orgID); err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(ctx, actor, policy.Organization(orgID), policy.OrganizationView); err != nil {
		return nil, err
	}

	var members []Member
	err := s.db.WithContext(ctx).Table("organization_user").
		Select("users.id AS user_id, users.email, users.name, organization_user.role").
		Joins("JOIN users ON users.id = organization_user.user_id AND users.deleted_at IS NULL").
		Where("organization_user.organization_id = ?", orgID).
		Order("users.email ASC").
		Scan(&members).Error
	if err != nil {
		return nil, fmt.Errorf("listing organization members: %w", err)
	}
	return members, nil
}

// RoleOf returns the user's effective role, inherited from the nearest
// ancestor with an assignment. Empty means no membership.
func (s *Service) RoleOf(ctx context.Context, orgID, userID uuid.UUID) (string, error) {
	if _, err := s.Get(ctx, orgID); err != nil {
		return "", err
	}
	return policy.NewEvaluator(s.db).OrganizationRole(ctx, userID, orgID)
}

func (s *Service) checkDomain(ctx context.Context, domain string, self uuid.UUID) error {
	var count int64
	q := s.db.WithContext(ctx).Unscoped().Model(&models.Organization{}).Where("domain = ?", domain)
	if self != uuid.Nil {
		q = q.Where("id <> ?", self)
	}
	if err := q.Count(&count).Error; err != nil {
		return fmt.Errorf("checking domain: %w", err)
	}
	if count > 0 {
		return ErrDomainTaken
	}
	return nil
}
