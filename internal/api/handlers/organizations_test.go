package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hugh/go-studio/internal/api/dto"
	"github.com/hugh/go-studio/internal/api/handlers"
	"github.com/hugh/go-studio/internal/api/middleware"
	"github.com/hugh/go-studio/internal/api/validation"
	"github.com/hugh/go-studio/internal/database/models"
	"github.com/hugh/go-studio/internal/organization"
	"github.com/hugh/go-studio/internal/policy"
	"github.com/hugh/go-studio/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupOrganizationTestRouter(t *testing.T) (*chi.Mux, *testutil.TestSetup) {
	tc := testutil.NewTestContext(t)

	authz := policy.NewEvaluator(tc.DB)
	orgs := organization.NewService(tc.DB, authz, testutil.DiscardLogger())
	handler := handlers.NewOrganizationHandler(orgs, authz, validation.New(), testutil.DiscardLogger())

	r := chi.NewRouter()
	r.Use(middleware.Auth(tc.JWTService))
	r.Route("/api/v1/organizations", func(r chi.Router) {
		r.Get("/", handler.List)
		r.Post("/", handler.Create)
		r.Get("/{id}", handler.Get)
		r.Put("/{id}", handler.Update)
		r.Delete("/{id}", handler.Delete)
		r.Get("/{id}/parent", handler.Parent)
		r.Put("/{id}/parent", handler.SetParent)
		r.Get("/{id}/children", handler.Children)
		r.Get("/{id}/ancestors", handler.Ancestors)
		r.Get("/{id}/activities", handler.Activities)
		r.Get("/{id}/projects", handler.Projects)
		r.Get("/{id}/users", handler.Members)
		r.Post("/{id}/users", handler.AddUser)
		r.Delete("/{id}/users/{userID}", handler.RemoveUser)
		r.Get("/{id}/users/{userID}/role", handler.Role)
	})

	return r, tc
}

func createOrg(t *testing.T, router http.Handler, token string, body map[string]interface{}) models.Organization {
	t.Helper()

	req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/organizations", body, token)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var org models.Organization
	testutil.ParseData(t, rr, &org)
	return org
}

func TestOrganizationHandler_CreateAndGet(t *testing.T) {
	router, tc := setupOrganizationTestRouter(t)
	defer tc.Cleanup()

	root := createOrg(t, router, tc.Token, map[string]interface{}{"name": "District", "domain": "district"})
	assert.Equal(t, "district", root.Domain)
	assert.Nil(t, root.ParentID)

	t.Run("creator can read", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "GET", "/api/v1/organizations/"+root.ID.String(), nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusOK)
	})

	t.Run("listed for creator", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "GET", "/api/v1/organizations", nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		var orgs []models.Organization
		testutil.ParseData(t, rr, &orgs)
		require.Len(t, orgs, 1)
		assert.Equal(t, root.ID, orgs[0].ID)
	})

	t.Run("stranger is forbidden", func(t *testing.T) {
		stranger := testutil.CreateTestUser(t, tc.DB, "stranger")
		token := testutil.GenerateTestToken(t, tc.JWTService, stranger)

		req := testutil.AuthenticatedRequest(t, "GET", "/api/v1/organizations/"+root.ID.String(), nil, token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("unknown id", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "GET", "/api/v1/organizations/"+uuid.NewString(), nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("malformed id", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "GET", "/api/v1/organizations/not-a-uuid", nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("duplicate domain", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/organizations",
			map[string]interface{}{"name": "Again", "domain": "district"}, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("invalid domain", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/organizations",
			map[string]interface{}{"name": "Bad", "domain": "Not A Domain"}, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)

		var resp dto.ErrorResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Contains(t, resp.Details, "domain")
	})
}

func TestOrganizationHandler_Hierarchy(t *testing.T) {
	router, tc := setupOrganizationTestRouter(t)
	defer tc.Cleanup()

	root := createOrg(t, router, tc.Token, map[string]interface{}{"name": "Root", "domain": "root"})
	child := createOrg(t, router, tc.Token, map[string]interface{}{"name": "Child", "domain": "child", "parent_id": root.ID})
	grandchild := createOrg(t, router, tc.Token, map[string]interface{}{"name": "Grandchild", "domain": "grandchild", "parent_id": child.ID})

	t.Run("children tree", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "GET", "/api/v1/organizations/"+root.ID.String()+"/children", nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusOK)

		var nodes []organization.Node
		testutil.ParseData(t, rr, &nodes)
		require.Len(t, nodes, 1)
		assert.Equal(t, child.ID, nodes[0].ID)
		require.Len(t, nodes[0].Children, 1)
		assert.Equal(t, grandchild.ID, nodes[0].Children[0].ID)
	})

	t.Run("ancestors nearest first", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "GET", "/api/v1/organizations/"+grandchild.ID.String()+"/ancestors", nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		var chain []models.Organization
		testutil.ParseData(t, rr, &chain)
		require.Len(t, chain, 2)
		assert.Equal(t, child.ID, chain[0].ID)
		assert.Equal(t, root.ID, chain[1].ID)
	})

	t.Run("root has no parent", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "GET", "/api/v1/organizations/"+root.ID.String()+"/parent", nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusOK)
		assert.JSONEq(t, `{"data":null}`, rr.Body.String())
	})

	t.Run("moving under a descendant is a cycle", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "PUT", "/api/v1/organizations/"+root.ID.String()+"/parent",
			map[string]interface{}{"parent_id": grandchild.ID}, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("inherited role", func(t *testing.T) {
		member := testutil.CreateTestUser(t, tc.DB, "member")
		req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/organizations/"+root.ID.String()+"/users",
			map[string]interface{}{"user_id": member.ID, "role": "course_creator"}, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		testutil.AssertStatus(t, rr, http.StatusCreated)

		req = testutil.AuthenticatedRequest(t, "GET",
			"/api/v1/organizations/"+grandchild.ID.String()+"/users/"+member.ID.String()+"/role", nil, tc.Token)
		rr = httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		var role dto.RoleResponse
		testutil.ParseData(t, rr, &role)
		assert.Equal(t, "course_creator", role.Role)
	})

	t.Run("deleting removes the subtree", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "DELETE", "/api/v1/organizations/"+child.ID.String(), nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusNoContent, rr.Code)

		req = testutil.AuthenticatedRequest(t, "GET", "/api/v1/organizations/"+grandchild.ID.String(), nil, tc.Token)
		rr = httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestOrganizationHandler_Members(t *testing.T) {
	router, tc := setupOrganizationTestRouter(t)
	defer tc.Cleanup()

	org := createOrg(t, router, tc.Token, map[string]interface{}{"name": "School", "domain": "school"})
	member := testutil.CreateTestUser(t, tc.DB, "teacher")
	memberToken := testutil.GenerateTestToken(t, tc.JWTService, member)
	base := "/api/v1/organizations/" + org.ID.String() + "/users"

	t.Run("unknown role rejected", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "POST", base,
			map[string]interface{}{"user_id": member.ID, "role": "superuser"}, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("unknown user", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "POST", base,
			map[string]interface{}{"user_id": uuid.New(), "role": "member"}, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("add and list", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "POST", base,
			map[string]interface{}{"user_id": member.ID, "role": "member"}, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		testutil.AssertStatus(t, rr, http.StatusCreated)

		req = testutil.AuthenticatedRequest(t, "GET", base, nil, memberToken)
		rr = httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		testutil.AssertStatus(t, rr, http.StatusOK)

		var members []organization.Member
		testutil.ParseData(t, rr, &members)
		assert.Len(t, members, 2)
	})

	t.Run("member cannot edit", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "PUT", "/api/v1/organizations/"+org.ID.String(),
			map[string]interface{}{"name": "Renamed"}, memberToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("remove then remove again", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "DELETE", base+"/"+member.ID.String(), nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusNoContent, rr.Code)

		req = testutil.AuthenticatedRequest(t, "DELETE", base+"/"+member.ID.String(), nil, tc.Token)
		rr = httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}
