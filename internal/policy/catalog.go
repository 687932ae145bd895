package policy

import (
	"strings"

	"github.com/hugh/go-studio/internal/database/models"
)

// Action is a "resource:verb" permission from the fixed catalog.
type Action string

const (
	OrganizationView        Action = "organization:view"
	OrganizationEdit        Action = "organization:edit"
	OrganizationDelete      Action = "organization:delete"
	OrganizationAddUser     Action = "organization:add-user"
	OrganizationRemoveUser  Action = "organization:remove-user"
	OrganizationCreateChild Action = "organization:create-child"

	// OrganizationManageStarters marks projects copied into every new account.
	OrganizationManageStarters Action = "organization:manage-starters"

	ProjectView    Action = "project:view"
	ProjectCreate  Action = "project:create"
	ProjectEdit    Action = "project:edit"
	ProjectDelete  Action = "project:delete"
	ProjectPublish Action = "project:publish"

	TeamView          Action = "team:view"
	TeamCreate        Action = "team:create"
	TeamEdit          Action = "team:edit"
	TeamDelete        Action = "team:delete"
	TeamAddMember     Action = "team:add-member"
	TeamRemoveMember  Action = "team:remove-member"
	TeamAddProject    Action = "team:add-project"
	TeamRemoveProject Action = "team:remove-project"
)

// Catalog lists every action the system knows about.
var Catalog = []Action{
	OrganizationView, OrganizationEdit, OrganizationDelete,
	OrganizationAddUser, OrganizationRemoveUser, OrganizationCreateChild,
	OrganizationManageStarters,
	ProjectView, ProjectCreate, ProjectEdit, ProjectDelete, ProjectPublish,
	TeamView, TeamCreate, TeamEdit, TeamDelete,
	TeamAddMember, TeamRemoveMember, TeamAddProject, TeamRemoveProject,
}

// orgRolePermissions maps organization roles to permission patterns.
// Patterns may use "*" for a whole segment.
var orgRolePermissions = map[string][]string{
	models.OrgRoleAdmin: {"*"},
	models.OrgRoleCourseCreator: {
		"organization:view",
		"project:*",
		"team:create",
		"team:view",
	},
	models.OrgRoleMember: {
		"organization:view",
		"project:view",
		"team:view",
	},
}

// projectRolePermissions applies to direct project pivots and to team
// collaborators (who act as editors).
var projectRolePermissions = map[string][]string{
	models.ProjectRoleOwner:  {"project:*"},
	models.ProjectRoleEditor: {"project:view", "project:edit", "project:publish"},
}

// IsKnownRole reports whether role is a valid organization role.
func IsKnownRole(role string) bool {
	_, ok := orgRolePermissions[role]
	return ok
}

// PermissionsFor expands an organization role into concrete catalog actions.
func PermissionsFor(role string) []Action {
	var out []Action
	for _, a := range Catalog {
		if roleGrants(orgRolePermissions, role, a) {
			out = append(out, a)
		}
	}
	return out
}

func roleGrants(table map[string][]string, role string, action Action) bool {
	for _, pattern := range table[role] {
		if matches(pattern, string(action)) {
			return true
		}
	}
	return false
}

// matches supports "*", "resource:*" and "*:verb".
func matches(pattern, action string) bool {
	if pattern == "*" || pattern == action {
		return true
	}
	pRes, pVerb, ok := strings.Cut(pattern, ":")
	if !ok {
		return false
	}
	aRes, aVerb, ok := strings.Cut(action, ":")
	if !ok {
		return false
	}
	return (pRes == "*" || pRes == aRes) && (pVerb == "*" || pVerb == aVerb)
}
