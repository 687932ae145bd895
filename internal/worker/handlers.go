// Package worker runs the background tasks queued by the API.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"github.com/hugh/go-studio/internal/database/models"
	"github.com/hugh/go-studio/internal/notify"
	"github.com/hugh/go-studio/internal/project"
	"github.com/hugh/go-studio/internal/reports"
	"github.com/hugh/go-studio/internal/search"
	"github.com/hugh/go-studio/internal/tasks"
	"github.com/hugh/go-studio/pkg/queue"
	"github.com/hugh/go-studio/pkg/util"
)

type Options struct {
	FrontendURL string
	Recipients  []mail.Address
}

type Handler struct {
	db       *gorm.DB
	projects *project.Service
	indexer  search.Indexer
	reports  *reports.Service
	mailer   notify.Mailer
	opts     Options
	logger   *slog.Logger
	now      func() time.Time
}

func NewHandler(db *gorm.DB, projects *project.Service, indexer search.Indexer, reports *reports.Service, mailer notify.Mailer, opts Options, logger *slog.Logger) *Handler {
	return &Handler{
		db:       db,
		projects: projects,
		indexer:  indexer,
		reports:  reports,
		mailer:   mailer,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
	}
}

func (h *Handler) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(tasks.TypeAssignStarterProjects, h.HandleAssignStarterProjects)
	mux.HandleFunc(tasks.TypeDailyUsageReport, h.HandleDailyUsageReport)
	mux.HandleFunc(tasks.TypeIndexProject, h.HandleIndexProject)
	mux.HandleFunc(tasks.TypeRemoveProject, h.HandleRemoveProject)
	mux.HandleFunc(tasks.TypeTeamInviteMail, h.HandleTeamInviteMail)
}

func (h *Handler) HandleAssignStarterProjects(ctx context.Context, t *asynq.Task) error {
	var payload tasks.StarterProjectsPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	copied, err := h.projects.AssignStarterProjects(ctx, payload.UserID)
	if err != nil {
		h.logger.Error("starter project assignment failed", "user_id", payload.UserID, "copied", copied, "error", err)
		return err
	}

	h.logger.Info("assigned starter projects", "user_id", payload.UserID, "copied", copied)
	return nil
}

// HandleIndexProject pushes the project tree to the search index. A project
// that was deleted or stopped indexing after the task was queued is removed
// instead.
func (h *Handler) HandleIndexProject(ctx context.Context, t *asynq.Task) error {
	var payload tasks.ProjectIndexPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	p, err := h.projects.Load(ctx, payload.ProjectID)
	if errors.Is(err, project.ErrNotFound) {
		h.logger.Info("project gone before indexing", "project_id", payload.ProjectID)
		return h.indexer.Remove(ctx, search.Removal{ProjectIDs: []uuid.UUID{payload.ProjectID}})
	}
	if err != nil {
		return err
	}

	if !p.Indexing {
		return h.indexer.Remove(ctx, removalFor(p))
	}

	batch := search.BuildBatch(p)
	if err := h.indexer.Index(ctx, batch); err != nil {
		h.logger.Error("indexing failed", "project_id", p.ID, "error", err)
		return err
	}

	h.logger.Info("indexed project",
		"project_id", p.ID,
		"playlists", len(batch.Playlists),
		"activities", len(batch.Activities),
	)
	return nil
}

func (h *Handler) HandleRemoveProject(ctx context.Context, t *asynq.Task) error {
	var payload tasks.ProjectRemovalPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	removal := search.Removal{
		PlaylistIDs: payload.PlaylistIDs,
		ActivityIDs: payload.ActivityIDs,
	}
	if !payload.ChildrenOnly {
		removal.ProjectIDs = []uuid.UUID{payload.ProjectID}
	}
	if err := h.indexer.Remove(ctx, removal); err != nil {
		h.logger.Error("index removal failed", "project_id", payload.ProjectID, "error", err)
		return err
	}

	h.logger.Info("removed project from index", "project_id", payload.ProjectID)
	return nil
}

// HandleDailyUsageReport aggregates a day and mails it. The report row is
// upserted, so a retry after a mail failure does not double count.
func (h *Handler) HandleDailyUsageReport(ctx context.Context, t *asynq.Task) error {
	var payload tasks.UsageReportPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("unmarshal payload: %w", err)
		}
	}

	report, err := h.reports.GenerateDaily(ctx, payload.Day, h.now())
	if errors.Is(err, reports.ErrInvalidDay) {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if err != nil {
		return err
	}

	if len(h.opts.Recipients) == 0 {
		h.logger.Info("usage report has no recipients", "day", report.Day)
		return nil
	}

	msg, err := notify.UsageReport(h.opts.Recipients, notify.UsageData{
		Day:           report.Day,
		NewUsers:      report.NewUsers,
		NewProjects:   report.NewProjects,
		NewPlaylists:  report.NewPlaylists,
		NewActivities: report.NewActivities,
		Publications:  report.Publications,
	})
	if err != nil {
		return err
	}
	return h.mailer.Send(ctx, msg)
}

func (h *Handler) HandleTeamInviteMail(ctx context.Context, t *asynq.Task) error {
	var payload tasks.TeamInvitePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	var member models.TeamUser
	err := h.db.WithContext(ctx).
		Preload("User").
		Where("team_id = ? AND user_id = ?", payload.TeamID, payload.UserID).
		First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Removed from the team before the mail went out.
		h.logger.Info("invitation no longer valid", "team_id", payload.TeamID, "user_id", payload.UserID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading team member: %w", err)
	}
	if member.User == nil {
		return nil
	}

	var team models.Team
	if err := h.db.WithContext(ctx).First(&team, "id = ?", payload.TeamID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("loading team: %w", err)
	}

	inviterName := "A teammate"
	var inviter models.User
	if err := h.db.WithContext(ctx).First(&inviter, "id = ?", payload.InvitedBy).Error; err == nil {
		inviterName = inviter.Name
	}

	msg, err := notify.TeamInvitation(
		mail.Address{Name: member.User.Name, Address: member.User.Email},
		notify.InvitationData{
			InviteeName: member.User.Name,
			InviterName: inviterName,
			TeamName:    team.Name,
			AcceptURL:   h.inviteURL(team.ID, member.Token),
		},
	)
	if err != nil {
		return err
	}
	if err := h.mailer.Send(ctx, msg); err != nil {
		h.logger.Error("invitation mail failed", "team_id", team.ID, "user_id", member.UserID, "error", err)
		return err
	}

	h.logger.Info("sent team invitation", "team_id", team.ID, "user_id", member.UserID)
	return nil
}

func (h *Handler) inviteURL(teamID uuid.UUID, token string) string {
	base := strings.TrimRight(h.opts.FrontendURL, "/")
	return fmt.Sprintf("%s/teams/%s?token=%s", base, teamID, url.QueryEscape(token))
}

func removalFor(p *models.Project) search.Removal {
	removal := search.Removal{ProjectIDs: []uuid.UUID{p.ID}}
	for _, pl := range p.Playlists {
		removal.PlaylistIDs = append(removal.PlaylistIDs, pl.ID)
		for _, a := range pl.Activities {
			removal.ActivityIDs = append(removal.ActivityIDs, a.ID)
		}
	}
	return removal
}

// RegisterSchedules adds the periodic usage report to the scheduler.
func RegisterSchedules(scheduler *asynq.Scheduler, usageCron string) (string, error) {
	if err := util.ValidateCronExpr(usageCron); err != nil {
		return "", err
	}
	task, err := tasks.NewUsageReportTask(tasks.UsageReportPayload{})
	if err != nil {
		return "", err
	}
	return scheduler.Register(usageCron, task, asynq.Queue(queue.QueueLow))
}
