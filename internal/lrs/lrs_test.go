package lrs_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/go-studio/internal/lrs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func activity() lrs.Activity {
	return lrs.Activity{ID: uuid.New(), Title: "Photosynthesis", PlaylistID: uuid.New(), ProjectID: uuid.New()}
}

func TestBuilder(t *testing.T) {
	b := lrs.NewBuilder("https://studio.test")
	a := activity()

	tests := []struct {
		name string
		stmt lrs.Statement
		verb string
	}{
		{"launched", b.Launched("learner-1", a), lrs.VerbLaunched},
		{"attempted", b.Attempted("learner-1", a), lrs.VerbAttempted},
		{"answered", b.Answered("learner-1", a, "chlorophyll", 3, 4, true), lrs.VerbAnswered},
		{"completed", b.Completed("learner-1", a, 90*time.Minute+5*time.Second), lrs.VerbCompleted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, tt.stmt.Validate())
			assert.Equal(t, tt.verb, tt.stmt.Verb.ID)
			assert.Equal(t, "https://studio.test/activity/"+a.ID.String(), tt.stmt.Object.ID)
			assert.Equal(t, "learner-1", tt.stmt.Actor.Account.Name)
			require.NotNil(t, tt.stmt.Timestamp)
		})
	}

	answered := tests[2].stmt
	require.NotNil(t, answered.Result.Score)
	assert.InDelta(t, 0.75, *answered.Result.Score.Scaled, 1e-9)
	assert.Equal(t, "PT1H30M5S", tests[3].stmt.Result.Duration)
}

func TestStatement_Validate(t *testing.T) {
	valid := lrs.NewBuilder("https://studio.test").Launched("l", activity())
	scaled := 1.5

	tests := []struct {
		name   string
		mutate func(s *lrs.Statement)
	}{
		{"no actor identity", func(s *lrs.Statement) { s.Actor = lrs.Actor{Name: "x"} }},
		{"incomplete account", func(s *lrs.Statement) { s.Actor.Account = &lrs.Account{Name: "x"} }},
		{"no verb", func(s *lrs.Statement) { s.Verb.ID = "" }},
		{"no object", func(s *lrs.Statement) { s.Object.ID = "" }},
		{"bad id", func(s *lrs.Statement) { s.ID = "not-a-uuid" }},
		{"scaled out of range", func(s *lrs.Statement) {
			s.Result = &lrs.Result{Score: &lrs.Score{Scaled: &scaled}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid
			actor := *valid.Actor.Account
			s.Actor.Account = &actor
			tt.mutate(&s)
			assert.ErrorIs(t, s.Validate(), lrs.ErrInvalidStatement)
		})
	}

	mbox := lrs.Statement{
		Actor:  lrs.Actor{Mbox: "mailto:a@example.com"},
		Verb:   lrs.Verb{ID: lrs.VerbLaunched},
		Object: lrs.Object{ID: "https://studio.test/activity/1"},
	}
	assert.NoError(t, mbox.Validate())
}

func TestClient_Send(t *testing.T) {
	var got []lrs.Statement
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/xapi/statements", r.URL.Path)
		assert.Equal(t, "1.0.3", r.Header.Get("X-Experience-API-Version"))
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "key", user)
		assert.Equal(t, "secret", pass)

		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		ids := make([]string, len(got))
		for i, s := range got {
			ids[i] = s.ID
		}
		_ = json.NewEncoder(w).Encode(ids)
	}))
	defer srv.Close()

	b := lrs.NewBuilder("https://studio.test")
	a := activity()
	stmts := []lrs.Statement{b.Launched("l", a), b.Completed("l", a, 0)}

	client := lrs.NewClient(srv.URL+"/xapi/", "key", "secret", 5*time.Second, discard())
	ids, err := client.Send(context.Background(), stmts)
	require.NoError(t, err)
	assert.Equal(t, []string{stmts[0].ID, stmts[1].ID}, ids)
	assert.Len(t, got, 2)
}

func TestClient_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"bad credentials"}`))
	}))
	defer srv.Close()

	client := lrs.NewClient(srv.URL, "k", "s", time.Second, discard())
	stmt := lrs.NewBuilder("https://studio.test").Launched("l", activity())

	_, err := client.Send(context.Background(), []lrs.Statement{stmt})
	assert.ErrorIs(t, err, lrs.ErrUpstream)
	assert.Contains(t, err.Error(), "401")

	_, err = client.Send(context.Background(), []lrs.Statement{{}})
	assert.ErrorIs(t, err, lrs.ErrInvalidStatement)

	ids, err := client.Send(context.Background(), nil)
	assert.NoError(t, err)
	assert.Empty(t, ids)
}

func TestLogRecorder(t *testing.T) {
	rec := lrs.NewLogRecorder(discard())
	stmt := lrs.Statement{
		Actor:  lrs.Actor{Mbox: "mailto:a@example.com"},
		Verb:   lrs.Verb{ID: lrs.VerbAttempted},
		Object: lrs.Object{ID: "https://studio.test/activity/1"},
	}
	ids, err := rec.Send(context.Background(), []lrs.Statement{stmt})
	require.NoError(t, err)
	require.Len(t, ids, 1)
	_, err = uuid.Parse(ids[0])
	assert.NoError(t, err)
}
