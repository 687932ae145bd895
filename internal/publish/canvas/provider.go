package canvas

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/hugh/go-studio/internal/database/models"
	"github.com/hugh/go-studio/internal/publish/types"
)

// Provider publishes playlists to Canvas as course modules
type Provider struct {
	target types.Target
	cfg    types.Config
	client *http.Client
	logger *slog.Logger
}

// New creates a new Canvas provider instance
func New(target types.Target, cfg types.Config, logger *slog.Logger) *Provider {
	return &Provider{
		target: target,
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

func (p *Provider) Name() models.LmsName {
	return models.LmsCanvas
}

// ValidateCredentials fetches the token owner's profile
func (p *Provider) ValidateCredentials(ctx context.Context) error {
	var profile struct {
		ID int64 `json:"id"`
	}
	return p.do(ctx, http.MethodGet, "/api/v1/users/self/profile", nil, &profile)
}

type idResponse struct {
	ID int64 `json:"id"`
}

type moduleItem struct {
	ID          int64  `json:"id"`
	ExternalURL string `json:"external_url"`
}

// Publish maps the project to a course, the playlist to a module and each
// activity to an ExternalUrl module item.
func (p *Provider) Publish(ctx context.Context, playlist *models.Playlist, previous *types.Previous) (*types.Result, error) {
	courseID := p.target.CourseID
	if courseID == "" && previous != nil {
		courseID = previous.CourseID
	}
	if courseID == "" {
		var course idResponse
		body := map[string]interface{}{
			"course": map[string]interface{}{"name": playlist.Project.Name},
		}
		if err := p.do(ctx, http.MethodPost, "/api/v1/accounts/self/courses", body, &course); err != nil {
			return nil, err
		}
		courseID = strconv.FormatInt(course.ID, 10)
		p.logger.Info("canvas course created", "course_id", courseID, "project_id", playlist.ProjectID)
	}

	moduleBody := map[string]interface{}{
		"module": map[string]interface{}{"name": playlist.Title, "position": playlist.Order + 1},
	}
	var module idResponse
	existing := map[string]bool{}
	if previous != nil && previous.ExternalID != "" && (previous.CourseID == "" || previous.CourseID == courseID) {
		path := fmt.Sprintf("/api/v1/courses/%s/modules/%s", courseID, previous.ExternalID)
		if err := p.do(ctx, http.MethodPut, path, moduleBody, &module); err != nil {
			return nil, err
		}
		var items []moduleItem
		if err := p.do(ctx, http.MethodGet, path+"/items?per_page=100", nil, &items); err != nil {
			return nil, err
		}
		for _, item := range items {
			existing[item.ExternalURL] = true
		}
	} else {
		path := fmt.Sprintf("/api/v1/courses/%s/modules", courseID)
		if err := p.do(ctx, http.MethodPost, path, moduleBody, &module); err != nil {
			return nil, err
		}
	}
	moduleID := strconv.FormatInt(module.ID, 10)

	pushed := 0
	itemsPath := fmt.Sprintf("/api/v1/courses/%s/modules/%s/items", courseID, moduleID)
	for i, activity := range playlist.Activities {
		url := p.cfg.ActivityURL(activity.ID)
		if existing[url] {
			continue
		}
		item := map[string]interface{}{
			"module_item": map[string]interface{}{
				"title":        activity.Title,
				"type":         "ExternalUrl",
				"external_url": url,
				"position":     i + 1,
				"new_tab":      true,
			},
		}
		if err := p.do(ctx, http.MethodPost, itemsPath, item, nil); err != nil {
			return nil, err
		}
		pushed++
	}

	p.logger.Info("canvas publish complete", "course_id", courseID, "module_id", moduleID, "items", pushed)
	return &types.Result{ExternalID: moduleID, CourseID: courseID, Items: pushed}, nil
}

func (p *Provider) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding canvas request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(p.target.BaseURL, "/")+path, reader)
	if err != nil {
		return types.Upstream(models.LmsCanvas, path, err)
	}
	req.Header.Set("Authorization", "Bearer "+p.target.Token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return types.Upstream(models.LmsCanvas, method+" "+path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return types.Upstream(models.LmsCanvas, method+" "+path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return types.UpstreamStatus(models.LmsCanvas, method+" "+path, resp.StatusCode, string(raw))
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return types.Upstream(models.LmsCanvas, "decoding "+path, err)
	}
	return nil
}
