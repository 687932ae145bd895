package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/go-studio/internal/auth"
	"github.com/hugh/go-studio/internal/database"
	"github.com/hugh/go-studio/internal/database/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB creates a private in-memory SQLite database. The shared cache
// keeps every pooled connection on the same database.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=off", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// DiscardLogger returns a logger that drops everything below error.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func CreateTestUser(t *testing.T, db *gorm.DB, name string) *models.User {
	t.Helper()

	hash, err := auth.HashPassword("testpassword123")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Email:        name + "-" + uuid.NewString()[:8] + "@example.com",
		PasswordHash: hash,
		Name:         name,
		IsActive:     true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

func CreateTestOrg(t *testing.T, db *gorm.DB, name string, parentID *uuid.UUID) *models.Organization {
	t.Helper()

	org := &models.Organization{
		Name:     name,
		Domain:   "org-" + uuid.NewString()[:8],
		ParentID: parentID,
	}
	if err := db.Create(org).Error; err != nil {
		t.Fatalf("failed to create test organization: %v", err)
	}
	return org
}

func AddOrgMember(t *testing.T, db *gorm.DB, orgID, userID uuid.UUID, role string) {
	t.Helper()

	if err := db.Create(&models.OrganizationUser{OrganizationID: orgID, UserID: userID, Role: role}).Error; err != nil {
		t.Fatalf("failed to add organization member: %v", err)
	}
}

// CreateTestProject creates a project owned by owner. orgID may be nil.
func CreateTestProject(t *testing.T, db *gorm.DB, orgID *uuid.UUID, owner *models.User, name string) *models.Project {
	t.Helper()

	project := &models.Project{
		OrganizationID: orgID,
		Name:           name,
	}
	if err := db.Create(project).Error; err != nil {
		t.Fatalf("failed to create test project: %v", err)
	}
	if owner != nil {
		if err := db.Create(&models.ProjectUser{ProjectID: project.ID, UserID: owner.ID, Role: models.ProjectRoleOwner}).Error; err != nil {
			t.Fatalf("failed to attach project owner: %v", err)
		}
	}
	return project
}

func CreateTestPlaylist(t *testing.T, db *gorm.DB, projectID uuid.UUID, title string, order int) *models.Playlist {
	t.Helper()

	playlist := &models.Playlist{ProjectID: projectID, Title: title, Order: order}
	if err := db.Create(playlist).Error; err != nil {
		t.Fatalf("failed to create test playlist: %v", err)
	}
	return playlist
}

func CreateTestActivity(t *testing.T, db *gorm.DB, playlistID uuid.UUID, title string, order int) *models.Activity {
	t.Helper()

	activity := &models.Activity{
		PlaylistID: playlistID,
		Title:      title,
		Type:       models.ActivityTypeH5P,
		Content:    "h5p-" + uuid.NewString()[:8],
		Order:      order,
	}
	if err := db.Create(activity).Error; err != nil {
		t.Fatalf("failed to create test activity: %v", err)
	}
	return activity
}

func CreateTestJWTService() *auth.JWTService {
	return auth.NewJWTService("test-secret-key-for-testing", 24*time.Hour)
}

func GenerateTestToken(t *testing.T, jwtService *auth.JWTService, user *models.User) string {
	t.Helper()

	token, err := jwtService.GenerateToken(user.ID, user.Email)
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return token
}

// AuthenticatedRequest creates an HTTP request with a bearer token.
func AuthenticatedRequest(t *testing.T, method, path string, body interface{}, token string) *http.Request {
	t.Helper()

	reqBody := bytes.NewBuffer(nil)
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func UnauthenticatedRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	return AuthenticatedRequest(t, method, path, body, "")
}

func AssertStatus(t *testing.T, rr *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if rr.Code != expected {
		t.Errorf("expected status %d, got %d. Body: %s", expected, rr.Code, rr.Body.String())
	}
}

// ParseData decodes the "data" member of a response envelope into v.
func ParseData(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("failed to parse response body: %v. Body: %s", err, rr.Body.String())
	}
	if err := json.Unmarshal(envelope.Data, v); err != nil {
		t.Fatalf("failed to parse response data: %v. Body: %s", err, rr.Body.String())
	}
}

func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TestSetup holds the common dependencies of handler and service tests.
type TestSetup struct {
	DB         *gorm.DB
	JWTService *auth.JWTService
	User       *models.User
	Token      string
}

// NewTestContext creates a DB, one user and a token for that user.
func NewTestContext(t *testing.T) *TestSetup {
	t.Helper()

	db := SetupTestDB(t)
	jwtService := CreateTestJWTService()
	user := CreateTestUser(t, db, "owner")

	return &TestSetup{
		DB:         db,
		JWTService: jwtService,
		User:       user,
		Token:      GenerateTestToken(t, jwtService, user),
	}
}

func (ts *TestSetup) Cleanup() {
	if ts.DB != nil {
		sqlDB, err := ts.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
}
