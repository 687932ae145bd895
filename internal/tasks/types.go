package tasks

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Task type names
const (
	TypeAssignStarterProjects = "user:assign_starter_projects"
	TypeDailyUsageReport      = "report:daily_usage"
	TypeIndexProject          = "search:index_project"
	TypeRemoveProject         = "search:remove_project"
	TypeTeamInviteMail        = "team:invite_mail"
)

// StarterProjectsPayload names the freshly registered user who receives
// copies of every starter project.
type StarterProjectsPayload struct {
	UserID uuid.UUID `json:"user_id"`
}

func NewStarterProjectsTask(payload StarterProjectsPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeAssignStarterProjects, data), nil
}

// UsageReportPayload is empty for scheduled runs; Day ("YYYY-MM-DD")
// re-runs a specific day.
type UsageReportPayload struct {
	Day string `json:"day,omitempty"`
}

func NewUsageReportTask(payload UsageReportPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeDailyUsageReport, data), nil
}

type ProjectIndexPayload struct {
	ProjectID uuid.UUID `json:"project_id"`
}

func NewIndexProjectTask(payload ProjectIndexPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeIndexProject, data), nil
}

// ProjectRemovalPayload carries the child ids because the rows are gone by
// the time the worker runs. ChildrenOnly keeps the project document when
// only some of its playlists or activities were deleted.
type ProjectRemovalPayload struct {
	ProjectID    uuid.UUID   `json:"project_id"`
	PlaylistIDs  []uuid.UUID `json:"playlist_ids,omitempty"`
	ActivityIDs  []uuid.UUID `json:"activity_ids,omitempty"`
	ChildrenOnly bool        `json:"children_only,omitempty"`
}

func NewRemoveProjectTask(payload ProjectRemovalPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeRemoveProject, data), nil
}

type TeamInvitePayload struct {
	TeamID    uuid.UUID `json:"team_id"`
	UserID    uuid.UUID `json:"user_id"`
	InvitedBy uuid.UUID `json:"invited_by"`
}

func NewTeamInviteTask(payload TeamInvitePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeTeamInviteMail, data), nil
}
