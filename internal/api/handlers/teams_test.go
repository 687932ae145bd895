package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hugh/go-studio/internal/api/handlers"
	"github.com/hugh/go-studio/internal/api/middleware"
	"github.com/hugh/go-studio/internal/api/validation"
	"github.com/hugh/go-studio/internal/policy"
	"github.com/hugh/go-studio/internal/tasks"
	"github.com/hugh/go-studio/internal/team"
	"github.com/hugh/go-studio/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingInvites struct {
	mu   sync.Mutex
	sent []tasks.TeamInvitePayload
}

func (r *recordingInvites) TeamInvite(_ context.Context, payload tasks.TeamInvitePayload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, payload)
	return nil
}

func setupTeamTestRouter(t *testing.T) (*chi.Mux, *testutil.TestSetup, *recordingInvites) {
	tc := testutil.NewTestContext(t)

	invites := &recordingInvites{}
	teams := team.NewService(tc.DB, policy.NewEvaluator(tc.DB), invites, testutil.DiscardLogger())
	handler := handlers.NewTeamHandler(teams, validation.New(), testutil.DiscardLogger())

	r := chi.NewRouter()
	r.Use(middleware.Auth(tc.JWTService))
	r.Route("/api/v1/teams", func(r chi.Router) {
		r.Get("/", handler.List)
		r.Post("/", handler.Create)
		r.Get("/{id}", handler.Get)
		r.Put("/{id}", handler.Update)
		r.Delete("/{id}", handler.Delete)
		r.Post("/{id}/users", handler.AddMembers)
		r.Delete("/{id}/users/{userID}", handler.RemoveMember)
		r.Post("/{id}/projects", handler.AddProjects)
		r.Delete("/{id}/projects/{projectID}", handler.RemoveProject)
	})

	return r, tc, invites
}

func TestTeamHandler_Lifecycle(t *testing.T) {
	router, tc, invites := setupTeamTestRouter(t)
	defer tc.Cleanup()

	member := testutil.CreateTestUser(t, tc.DB, "member")
	memberToken := testutil.GenerateTestToken(t, tc.JWTService, member)
	project := testutil.CreateTestProject(t, tc.DB, nil, tc.User, "Algebra")

	req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/teams", map[string]interface{}{
		"name":        "Math",
		"user_ids":    []uuid.UUID{member.ID},
		"project_ids": []uuid.UUID{project.ID},
	}, tc.Token)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	testutil.AssertStatus(t, rr, http.StatusCreated)

	var created team.Detail
	testutil.ParseData(t, rr, &created)
	assert.Equal(t, tc.User.ID, created.OwnerID)
	assert.Len(t, created.Users, 2)
	require.Len(t, created.Projects, 1)
	assert.Len(t, created.Projects[0].Users, 2)
	require.Len(t, invites.sent, 1)
	assert.Equal(t, member.ID, invites.sent[0].UserID)

	teamURL := "/api/v1/teams/" + created.ID.String()

	t.Run("member can view", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "GET", teamURL, nil, memberToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusOK)
	})

	t.Run("member cannot delete", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "DELETE", teamURL, nil, memberToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("stranger cannot view", func(t *testing.T) {
		stranger := testutil.CreateTestUser(t, tc.DB, "stranger")
		token := testutil.GenerateTestToken(t, tc.JWTService, stranger)

		req := testutil.AuthenticatedRequest(t, "GET", teamURL, nil, token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("owner cannot be removed", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "DELETE", teamURL+"/users/"+tc.User.ID.String(), nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("empty member list rejected", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "POST", teamURL+"/users",
			map[string]interface{}{"user_ids": []uuid.UUID{}}, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("remove member drops the triples", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "DELETE", teamURL+"/users/"+member.ID.String(), nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusNoContent, rr.Code)

		req = testutil.AuthenticatedRequest(t, "GET", teamURL, nil, tc.Token)
		rr = httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		var detail team.Detail
		testutil.ParseData(t, rr, &detail)
		assert.Len(t, detail.Users, 1)
		require.Len(t, detail.Projects, 1)
		assert.Len(t, detail.Projects[0].Users, 1)
	})

	t.Run("removing a project not in the team", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "DELETE", teamURL+"/projects/"+uuid.NewString(), nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("delete", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "DELETE", teamURL, nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusNoContent, rr.Code)

		req = testutil.AuthenticatedRequest(t, "GET", teamURL, nil, tc.Token)
		rr = httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestTeamHandler_CreateValidation(t *testing.T) {
	router, tc, _ := setupTeamTestRouter(t)
	defer tc.Cleanup()

	t.Run("blank name", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/teams", map[string]interface{}{"name": "  "}, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("unknown user", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/teams", map[string]interface{}{
			"name":     "Ghosts",
			"user_ids": []uuid.UUID{uuid.New()},
		}, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("project the caller cannot edit", func(t *testing.T) {
		other := testutil.CreateTestUser(t, tc.DB, "other")
		project := testutil.CreateTestProject(t, tc.DB, nil, other, "Not mine")

		req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/teams", map[string]interface{}{
			"name":        "Grab",
			"project_ids": []uuid.UUID{project.ID},
		}, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})
}
