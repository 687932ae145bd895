package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hugh/go-studio/internal/api/handlers"
	"github.com/hugh/go-studio/internal/api/middleware"
	"github.com/hugh/go-studio/internal/api/validation"
	"github.com/hugh/go-studio/internal/database/models"
	"github.com/hugh/go-studio/internal/policy"
	"github.com/hugh/go-studio/internal/project"
	"github.com/hugh/go-studio/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupProjectTestRouter(t *testing.T) (*chi.Mux, *testutil.TestSetup) {
	tc := testutil.NewTestContext(t)

	projects := project.NewService(tc.DB, policy.NewEvaluator(tc.DB), nil, testutil.DiscardLogger())
	handler := handlers.NewProjectHandler(projects, validation.New(), testutil.DiscardLogger())

	r := chi.NewRouter()
	r.Use(middleware.Auth(tc.JWTService))
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/projects", handler.List)
		r.Post("/projects", handler.Create)
		r.Get("/projects/{id}", handler.Get)
		r.Put("/projects/{id}", handler.Update)
		r.Delete("/projects/{id}", handler.Delete)
		r.Post("/projects/{id}/clone", handler.Clone)
		r.Post("/projects/{id}/playlists", handler.CreatePlaylist)
		r.Get("/playlists/{id}", handler.GetPlaylist)
		r.Put("/playlists/{id}", handler.UpdatePlaylist)
		r.Delete("/playlists/{id}", handler.DeletePlaylist)
		r.Post("/playlists/{id}/activities", handler.CreateActivity)
		r.Get("/activities/{id}", handler.GetActivity)
		r.Put("/activities/{id}", handler.UpdateActivity)
		r.Delete("/activities/{id}", handler.DeleteActivity)
	})

	return r, tc
}

func TestProjectHandler_Tree(t *testing.T) {
	router, tc := setupProjectTestRouter(t)
	defer tc.Cleanup()

	req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/projects",
		map[string]interface{}{"name": "Biology", "description": "Cells"}, tc.Token)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	testutil.AssertStatus(t, rr, http.StatusCreated)

	var created models.Project
	testutil.ParseData(t, rr, &created)
	projectURL := "/api/v1/projects/" + created.ID.String()

	req = testutil.AuthenticatedRequest(t, "POST", projectURL+"/playlists", map[string]interface{}{"title": "Week 1"}, tc.Token)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	testutil.AssertStatus(t, rr, http.StatusCreated)

	var playlist models.Playlist
	testutil.ParseData(t, rr, &playlist)
	playlistURL := "/api/v1/playlists/" + playlist.ID.String()

	for _, title := range []string{"Intro", "Quiz"} {
		req = testutil.AuthenticatedRequest(t, "POST", playlistURL+"/activities",
			map[string]interface{}{"title": title, "type": "h5p", "content": "h5p-1"}, tc.Token)
		rr = httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		testutil.AssertStatus(t, rr, http.StatusCreated)
	}

	t.Run("tree is ordered", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "GET", projectURL, nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		testutil.AssertStatus(t, rr, http.StatusOK)

		var p models.Project
		testutil.ParseData(t, rr, &p)
		require.Len(t, p.Playlists, 1)
		require.Len(t, p.Playlists[0].Activities, 2)
		assert.Equal(t, "Intro", p.Playlists[0].Activities[0].Title)
		assert.Equal(t, "Quiz", p.Playlists[0].Activities[1].Title)
	})

	t.Run("unknown activity type", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "POST", playlistURL+"/activities",
			map[string]interface{}{"title": "Video", "type": "flash"}, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("stranger cannot view or edit", func(t *testing.T) {
		stranger := testutil.CreateTestUser(t, tc.DB, "stranger")
		token := testutil.GenerateTestToken(t, tc.JWTService, stranger)

		req := testutil.AuthenticatedRequest(t, "GET", projectURL, nil, token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusForbidden, rr.Code)

		req = testutil.AuthenticatedRequest(t, "PUT", playlistURL, map[string]interface{}{"title": "Mine"}, token)
		rr = httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("clone copies the tree", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "POST", projectURL+"/clone", nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		testutil.AssertStatus(t, rr, http.StatusCreated)

		var clone models.Project
		testutil.ParseData(t, rr, &clone)
		assert.NotEqual(t, created.ID, clone.ID)
		require.NotNil(t, clone.ClonedFromID)
		assert.Equal(t, created.ID, *clone.ClonedFromID)
	})

	t.Run("update", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "PUT", projectURL, map[string]interface{}{"name": "Biology II"}, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		testutil.AssertStatus(t, rr, http.StatusOK)

		var p models.Project
		testutil.ParseData(t, rr, &p)
		assert.Equal(t, "Biology II", p.Name)
	})

	t.Run("delete cascades", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "DELETE", projectURL, nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusNoContent, rr.Code)

		req = testutil.AuthenticatedRequest(t, "GET", playlistURL, nil, tc.Token)
		rr = httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestProjectHandler_List(t *testing.T) {
	router, tc := setupProjectTestRouter(t)
	defer tc.Cleanup()

	testutil.CreateTestProject(t, tc.DB, nil, tc.User, "Mine")
	other := testutil.CreateTestUser(t, tc.DB, "other")
	testutil.CreateTestProject(t, tc.DB, nil, other, "Theirs")

	req := testutil.AuthenticatedRequest(t, "GET", "/api/v1/projects", nil, tc.Token)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	testutil.AssertStatus(t, rr, http.StatusOK)

	var projects []models.Project
	testutil.ParseData(t, rr, &projects)
	require.Len(t, projects, 1)
	assert.Equal(t, "Mine", projects[0].Name)
}

func TestProjectHandler_StarterFlag(t *testing.T) {
	router, tc := setupProjectTestRouter(t)
	defer tc.Cleanup()

	own := testutil.CreateTestProject(t, tc.DB, nil, tc.User, "Mine")

	req := testutil.AuthenticatedRequest(t, "PUT", "/api/v1/projects/"+own.ID.String(),
		map[string]interface{}{"is_starter": true}, tc.Token)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	var stored models.Project
	require.NoError(t, tc.DB.First(&stored, "id = ?", own.ID).Error)
	assert.False(t, stored.IsStarter)

	org := testutil.CreateTestOrg(t, tc.DB, "District", nil)
	admin := testutil.CreateTestUser(t, tc.DB, "admin")
	testutil.AddOrgMember(t, tc.DB, org.ID, admin.ID, models.OrgRoleAdmin)
	shared := testutil.CreateTestProject(t, tc.DB, &org.ID, tc.User, "Welcome")

	req = testutil.AuthenticatedRequest(t, "PUT", "/api/v1/projects/"+shared.ID.String(),
		map[string]interface{}{"is_starter": true}, testutil.GenerateTestToken(t, tc.JWTService, admin))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	testutil.AssertStatus(t, rr, http.StatusOK)

	var updated models.Project
	testutil.ParseData(t, rr, &updated)
	assert.True(t, updated.IsStarter)
}
