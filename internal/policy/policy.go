// Package policy decides whether an actor may perform an action on a
// resource. Every handler and service goes through Evaluate; there are no
// ad hoc ownership checks elsewhere.
package policy

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hugh/go-studio/internal/database/models"
	"gorm.io/gorm"
)

var ErrForbidden = errors.New("forbidden")

// maxDepth bounds the ancestor walk; the hierarchy is acyclic but a corrupt
// row must not hang a request.
const maxDepth = 64

type ResourceKind string

const (
	KindOrganization ResourceKind = "organization"
	KindTeam         ResourceKind = "team"
	KindProject      ResourceKind = "project"
)

type Resource struct {
	Kind ResourceKind
	ID   uuid.UUID
}

func Organization(id uuid.UUID) Resource { return Resource{Kind: KindOrganization, ID: id} }
func Team(id uuid.UUID) Resource         { return Resource{Kind: KindTeam, ID: id} }
func Project(id uuid.UUID) Resource      { return Resource{Kind: KindProject, ID: id} }

type Request struct {
	Actor    uuid.UUID
	Resource Resource
	Action   Action
}

type Decision struct {
	Allowed bool
	Reason  string
}

func allow(reason string) Decision { return Decision{Allowed: true, Reason: reason} }
func deny(reason string) Decision  { return Decision{Allowed: false, Reason: reason} }

// Authorizer is what services depend on.
type Authorizer interface {
	Evaluate(ctx context.Context, req Request) (Decision, error)
	Authorize(ctx context.Context, actor uuid.UUID, resource Resource, action Action) error
}

var _ Authorizer = (*Evaluator)(nil)

type Evaluator struct {
	db *gorm.DB
}

func NewEvaluator(db *gorm.DB) *Evaluator {
	return &Evaluator{db: db}
}

// Authorize is Evaluate folded into an error: nil when allowed, ErrForbidden
// (wrapped with the reason) when denied.
func (e *Evaluator) Authorize(ctx context.Context, actor uuid.UUID, resource Resource, action Action) error {
	d, err := e.Evaluate(ctx, Request{Actor: actor, Resource: resource, Action: action})
	if err != nil {
		return err
	}
	if !d.Allowed {
		return fmt.Errorf("%s on %s %s: %w", action, resource.Kind, d.Reason, ErrForbidden)
	}
	return nil
}

func (e *Evaluator) Evaluate(ctx context.Context, req Request) (Decision, error) {
	if req.Actor == uuid.Nil {
		return deny("anonymous actor"), nil
	}

	switch req.Resource.Kind {
	case KindTeam:
		return e.evaluateTeam(ctx, req)
	case KindOrganization:
		return e.evaluateOrganization(ctx, req.Actor, req.Resource.ID, req.Action)
	case KindProject:
		return e.evaluateProject(ctx, req)
	default:
		return deny("unknown resource kind"), nil
	}
}

// TeamOwner returns the first member holding the owner role.
func (e *Evaluator) TeamOwner(ctx context.Context, teamID uuid.UUID) (uuid.UUID, error) {
	var owner models.TeamUser
	err := e.db.WithContext(ctx).
		Where("team_id = ? AND role = ?", teamID, models.TeamRoleOwner).
		Order("created_at ASC").
		First(&owner).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return uuid.Nil, nil
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("loading team owner: %w", err)
	}
	return owner.UserID, nil
}

func (e *Evaluator) evaluateTeam(ctx context.Context, req Request) (Decision, error) {
	if req.Action == TeamView {
		var count int64
		if err := e.db.WithContext(ctx).Model(&models.TeamUser{}).
			Where("team_id = ? AND user_id = ?", req.Resource.ID, req.Actor).
			Count(&count).Error; err != nil {
			return Decision{}, fmt.Errorf("checking team membership: %w", err)
		}
		if count > 0 {
			return allow("team member"), nil
		}
		return deny("not a team member"), nil
	}

	owner, err := e.TeamOwner(ctx, req.Resource.ID)
	if err != nil {
		return Decision{}, err
	}
	if owner != uuid.Nil && owner == req.Actor {
		return allow("team owner"), nil
	}
	return deny("not the team owner"), nil
}

func (e *Evaluator) evaluateOrganization(ctx context.Context, actor, orgID uuid.UUID, action Action) (Decision, error) {
	role, err := e.OrganizationRole(ctx, actor, orgID)
	if err != nil {
		return Decision{}, err
	}
	if role == "" {
		return deny("not an organization member"), nil
	}
	if roleGrants(orgRolePermissions, role, action) {
		return allow("organization " + role), nil
	}
	return deny("organization role " + role + " lacks permission"), nil
}

// OrganizationRole returns the actor's role on orgID, inherited from the
// nearest ancestor holding an assignment. Empty means no membership.
func (e *Evaluator) OrganizationRole(ctx context.Context, actor, orgID uuid.UUID) (string, error) {
	current := &orgID
	for depth := 0; current != nil && depth < maxDepth; depth++ {
		var membership models.OrganizationUser
		err := e.db.WithContext(ctx).
			Where("organization_id = ? AND user_id = ?", *current, actor).
			First(&membership).Error
		if err == nil {
			return membership.Role, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("loading organization role: %w", err)
		}

		var org models.Organization
		if err := e.db.WithContext(ctx).Select("id", "parent_id").First(&org, "id = ?", *current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return "", nil
			}
			return "", fmt.Errorf("loading organization: %w", err)
		}
		current = org.ParentID
	}
	return "", nil
}

func (e *Evaluator) evaluateProject(ctx context.Context, req Request) (Decision, error) {
	db := e.db.WithContext(ctx)

	var pivot models.ProjectUser
	err := db.Where("project_id = ? AND user_id = ?", req.Resource.ID, req.Actor).First(&pivot).Error
	switch {
	case err == nil:
		if roleGrants(projectRolePermissions, pivot.Role, req.Action) {
			return allow("project " + pivot.Role), nil
		}
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return Decision{}, fmt.Errorf("loading project membership: %w", err)
	}

	var triples int64
	if err := db.Model(&models.TeamProjectUser{}).
		Where("project_id = ? AND user_id = ?", req.Resource.ID, req.Actor).
		Count(&triples).Error; err != nil {
		return Decision{}, fmt.Errorf("checking team collaboration: %w", err)
	}
	if triples > 0 && roleGrants(projectRolePermissions, models.ProjectRoleEditor, req.Action) {
		return allow("team collaborator"), nil
	}

	var project models.Project
	if err := db.Select("id", "organization_id", "is_public").First(&project, "id = ?", req.Resource.ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return deny("project not found"), nil
		}
		return Decision{}, fmt.Errorf("loading project: %w", err)
	}
	if req.Action == ProjectView && project.IsPublic {
		return allow("public project"), nil
	}
	if project.OrganizationID != nil {
		return e.evaluateOrganization(ctx, req.Actor, *project.OrganizationID, req.Action)
	}
	return deny("no project access"), nil
}
