package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hugh/go-studio/internal/api/dto"
	"github.com/hugh/go-studio/internal/api/middleware"
	"github.com/hugh/go-studio/internal/api/validation"
	"github.com/hugh/go-studio/internal/lrs"
	"github.com/hugh/go-studio/internal/project"
)

// XAPIHandler forwards learning records to the configured LRS.
type XAPIHandler struct {
	recorder  lrs.Recorder
	builder   *lrs.Builder
	projects  *project.Service
	validator *validation.Validator
	logger    *slog.Logger
}

func NewXAPIHandler(recorder lrs.Recorder, builder *lrs.Builder, projects *project.Service, v *validation.Validator, logger *slog.Logger) *XAPIHandler {
	return &XAPIHandler{recorder: recorder, builder: builder, projects: projects, validator: v, logger: logger}
}

// Statements handles POST /api/v1/xapi/statements
func (h *XAPIHandler) Statements(w http.ResponseWriter, r *http.Request) {
	var req dto.StatementsRequest
	if !decode(w, r, h.validator, &req) {
		return
	}
	for i := range req.Statements {
		if err := req.Statements[i].Validate(); err != nil {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
				Errors:  []string{"Validation failed"},
				Details: map[string]string{fmt.Sprintf("statements[%d]", i): err.Error()},
			})
			return
		}
	}
	h.send(w, r, req.Statements)
}

// Event handles POST /api/v1/xapi/events. The statement is built for the
// authenticated learner against an activity they can view.
func (h *XAPIHandler) Event(w http.ResponseWriter, r *http.Request) {
	var req dto.ActivityEventRequest
	if !decode(w, r, h.validator, &req) {
		return
	}

	actor := middleware.GetUserID(r.Context())
	activity, err := h.projects.GetActivity(r.Context(), actor, req.ActivityID)
	if err != nil {
		fail(w, h.logger, err, "Failed to record event")
		return
	}
	playlist, err := h.projects.GetPlaylist(r.Context(), actor, activity.PlaylistID)
	if err != nil {
		fail(w, h.logger, err, "Failed to record event")
		return
	}

	target := lrs.Activity{
		ID:         activity.ID,
		Title:      activity.Title,
		PlaylistID: playlist.ID,
		ProjectID:  playlist.ProjectID,
	}
	learner := actor.String()

	var stmt lrs.Statement
	switch req.Verb {
	case "launched":
		stmt = h.builder.Launched(learner, target)
	case "attempted":
		stmt = h.builder.Attempted(learner, target)
	case "answered":
		stmt = h.builder.Answered(learner, target, req.Response, req.ScoreRaw, req.ScoreMax, req.Success)
	case "completed":
		stmt = h.builder.Completed(learner, target, time.Duration(req.DurationSeconds)*time.Second)
	}
	h.send(w, r, []lrs.Statement{stmt})
}

func (h *XAPIHandler) send(w http.ResponseWriter, r *http.Request, statements []lrs.Statement) {
	ids, err := h.recorder.Send(r.Context(), statements)
	if err != nil {
		fail(w, h.logger, err, "Failed to record statements")
		return
	}
	writeData(w, http.StatusOK, dto.StatementIDsResponse{IDs: ids})
}
