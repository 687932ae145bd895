package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hugh/go-studio/internal/api/dto"
	"github.com/hugh/go-studio/internal/api/validation"
	"github.com/hugh/go-studio/internal/auth"
	"github.com/hugh/go-studio/internal/lrs"
	"github.com/hugh/go-studio/internal/organization"
	"github.com/hugh/go-studio/internal/policy"
	"github.com/hugh/go-studio/internal/project"
	"github.com/hugh/go-studio/internal/publish"
	"github.com/hugh/go-studio/internal/team"
	"gorm.io/gorm"
)

// maxBodyBytes caps request bodies read by decode.
const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, v interface{}) {
	writeJSON(w, status, dto.DataResponse{Data: v})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, dto.ErrorResponse{Errors: []string{msg}})
}

// decode reads a JSON body into dst and validates it. It writes the 400
// response itself and reports false when the handler should stop.
func decode(w http.ResponseWriter, r *http.Request, v *validation.Validator, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if details := v.Struct(dst); details != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
			Errors:  []string{"Validation failed"},
			Details: details,
		})
		return false
	}
	return true
}

// pathID parses a UUID route parameter, writing 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// errorStatuses maps domain sentinels to HTTP statuses. Anything not listed
// is a 500.
var errorStatuses = []struct {
	err    error
	status int
}{
	{policy.ErrForbidden, http.StatusForbidden},
	{organization.ErrNotFound, http.StatusNotFound},
	{organization.ErrUserNotFound, http.StatusNotFound},
	{team.ErrNotFound, http.StatusNotFound},
	{team.ErrUserNotFound, http.StatusNotFound},
	{team.ErrProjectNotFound, http.StatusNotFound},
	{project.ErrNotFound, http.StatusNotFound},
	{project.ErrPlaylistNotFound, http.StatusNotFound},
	{project.ErrActivityNotFound, http.StatusNotFound},
	{publish.ErrSettingNotFound, http.StatusNotFound},
	{auth.ErrUserNotFound, http.StatusNotFound},
	{gorm.ErrRecordNotFound, http.StatusNotFound},
	{organization.ErrCycle, http.StatusConflict},
	{organization.ErrDomainTaken, http.StatusConflict},
	{auth.ErrUserExists, http.StatusConflict},
	{team.ErrCannotRemoveOwner, http.StatusConflict},
	{organization.ErrInvalidRole, http.StatusBadRequest},
	{organization.ErrNotMember, http.StatusBadRequest},
	{team.ErrNotMember, http.StatusBadRequest},
	{team.ErrProjectNotInTeam, http.StatusBadRequest},
	{publish.ErrInvalidSetting, http.StatusBadRequest},
	{lrs.ErrInvalidStatement, http.StatusBadRequest},
}

// classify returns the status and the client-facing sentinel for err.
func classify(err error) (int, error) {
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			return e.status, e.err
		}
	}
	return http.StatusInternalServerError, nil
}

// fail writes the mapped error. Only the sentinel text reaches the client;
// server-side failures are logged and answered with fallback.
func fail(w http.ResponseWriter, logger *slog.Logger, err error, fallback string) {
	status, sentinel := classify(err)
	if sentinel == nil {
		logger.Error(fallback, "error", err)
		writeError(w, status, fallback)
		return
	}
	writeError(w, status, capitalize(sentinel.Error()))
}

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
