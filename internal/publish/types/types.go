package types

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/go-studio/internal/database/models"
)

// ErrUpstream marks any failure reported by, or while talking to, an LMS.
var ErrUpstream = errors.New("lms request failed")

// Publisher defines the interface every LMS adapter implements
type Publisher interface {
	// Name returns the LMS identifier
	Name() models.LmsName

	// ValidateCredentials checks the stored token against the LMS
	ValidateCredentials(ctx context.Context) error

	// Publish creates or updates the playlist in the LMS. The playlist must
	// carry its Project and ordered Activities.
	Publish(ctx context.Context, playlist *models.Playlist, previous *Previous) (*Result, error)
}

// Target is a decrypted LMS connection.
type Target struct {
	BaseURL  string
	Token    string
	CourseID string
}

// Previous identifies an earlier publication of the same playlist.
type Previous struct {
	ExternalID string
	CourseID   string
}

type Result struct {
	ExternalID string // module, playlist or topic id in the LMS
	CourseID   string
	Items      int // activities pushed
}

// Config holds settings shared by every adapter
type Config struct {
	Timeout     time.Duration
	FrontendURL string
}

func DefaultConfig() Config {
	return Config{Timeout: 30 * time.Second, FrontendURL: "http://localhost:3000"}
}

// ActivityURL is the public link an LMS item points at.
func (c Config) ActivityURL(id uuid.UUID) string {
	return fmt.Sprintf("%s/activity/%s/shared", strings.TrimRight(c.FrontendURL, "/"), id)
}

// Upstream wraps an LMS failure so callers can match ErrUpstream.
func Upstream(lms models.LmsName, op string, err error) error {
	return fmt.Errorf("%s %s: %v: %w", lms, op, err, ErrUpstream)
}

// UpstreamStatus reports an unexpected HTTP status from an LMS.
func UpstreamStatus(lms models.LmsName, op string, status int, body string) error {
	if len(body) > 512 {
		body = body[:512]
	}
	return fmt.Errorf("%s %s: status %d: %s: %w", lms, op, status, body, ErrUpstream)
}
