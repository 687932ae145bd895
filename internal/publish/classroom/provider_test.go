package classroom_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/go-studio/internal/database/models"
	"github.com/hugh/go-studio/internal/publish/classroom"
	"github.com/hugh/go-studio/internal/publish/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClassroom struct {
	mu       sync.Mutex
	calls    []string
	auth     []string
	existing []map[string]interface{}
}

func (f *fakeClassroom) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.calls = append(f.calls, r.Method+" "+r.URL.Path)
	f.auth = append(f.auth, r.Header.Get("Authorization"))
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	path := r.URL.Path
	switch {
	case r.Method == http.MethodPost && path == "/v1/courses":
		_, _ = w.Write([]byte(`{"id":"c1","name":"Biology"}`))
	case r.Method == http.MethodPost && strings.HasSuffix(path, "/topics"):
		_, _ = w.Write([]byte(`{"topicId":"t1","courseId":"c1"}`))
	case r.Method == http.MethodPatch && strings.Contains(path, "/topics/"):
		_, _ = w.Write([]byte(`{"topicId":"t9","courseId":"c1"}`))
	case r.Method == http.MethodGet && strings.HasSuffix(path, "/courseWork"):
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"courseWork": f.existing})
	case r.Method == http.MethodPost && strings.HasSuffix(path, "/courseWork"):
		_, _ = w.Write([]byte(`{"id":"w1"}`))
	case r.Method == http.MethodGet && path == "/v1/courses":
		_, _ = w.Write([]byte(`{"courses":[]}`))
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":404,"message":"not found"}}`))
	}
}

func (f *fakeClassroom) count(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func fixturePlaylist() *models.Playlist {
	project := &models.Project{Name: "Biology"}
	project.ID = uuid.New()
	playlist := &models.Playlist{ProjectID: project.ID, Title: "Cells", Project: project}
	playlist.ID = uuid.New()
	for _, title := range []string{"Intro", "Quiz"} {
		a := models.Activity{PlaylistID: playlist.ID, Title: title}
		a.ID = uuid.New()
		playlist.Activities = append(playlist.Activities, a)
	}
	return playlist
}

func newProvider(base, token, courseID string) *classroom.Provider {
	cfg := types.Config{Timeout: 5 * time.Second, FrontendURL: "https://studio.test"}
	oauth := classroom.OAuthConfig("client", "secret", "https://studio.test/callback")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return classroom.New(types.Target{BaseURL: base, Token: token, CourseID: courseID}, cfg, oauth, logger)
}

func TestProvider_Publish(t *testing.T) {
	fake := &fakeClassroom{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	token := `{"access_token":"ya29.test","token_type":"Bearer"}`
	result, err := newProvider(srv.URL, token, "").Publish(context.Background(), fixturePlaylist(), nil)
	require.NoError(t, err)
	assert.Equal(t, "t1", result.ExternalID)
	assert.Equal(t, "c1", result.CourseID)
	assert.Equal(t, 2, result.Items)

	assert.Equal(t, 1, fake.count("POST /v1/courses"))
	assert.Equal(t, 1, fake.count("POST /v1/courses/c1/topics"))
	assert.Equal(t, 2, fake.count("POST /v1/courses/c1/courseWork"))
	for _, a := range fake.auth {
		assert.Equal(t, "Bearer ya29.test", a)
	}
}

func TestProvider_Republish(t *testing.T) {
	playlist := fixturePlaylist()
	fake := &fakeClassroom{existing: []map[string]interface{}{{
		"id":      "w0",
		"topicId": "t9",
		"materials": []map[string]interface{}{
			{"link": map[string]interface{}{"url": "https://studio.test/activity/" + playlist.Activities[0].ID.String() + "/shared"}},
		},
	}}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	result, err := newProvider(srv.URL, "bare-access-token", "c1").
		Publish(context.Background(), playlist, &types.Previous{ExternalID: "t9", CourseID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, "t9", result.ExternalID)
	assert.Equal(t, 1, result.Items)
	assert.Equal(t, 0, fake.count("POST /v1/courses"))
	assert.Equal(t, 1, fake.count("PATCH /v1/courses/c1/topics/t9"))
}

func TestProvider_Errors(t *testing.T) {
	fake := &fakeClassroom{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	_, err := newProvider(srv.URL, "", "c1").Publish(context.Background(), fixturePlaylist(), nil)
	assert.ErrorIs(t, err, types.ErrUpstream, "empty token")

	_, err = newProvider(srv.URL, "tok", "c1").
		Publish(context.Background(), fixturePlaylist(), &types.Previous{ExternalID: "t9", CourseID: "other"})
	require.NoError(t, err, "a different course creates a fresh topic")

	assert.NoError(t, newProvider(srv.URL, "tok", "").ValidateCredentials(context.Background()))
}
