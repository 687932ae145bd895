package moodle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/hugh/go-studio/internal/database/models"
	"github.com/hugh/go-studio/internal/publish/types"
)

const (
	restPath           = "/webservice/rest/server.php"
	fnCreatePlaylist   = "local_curriki_moodle_plugin_create_playlist"
	fnSiteInfo         = "core_webservice_get_site_info"
	entityTypePlaylist = "playlist"
)

// Provider publishes playlists through the Curriki Moodle plugin web service
type Provider struct {
	target types.Target
	cfg    types.Config
	client *http.Client
	logger *slog.Logger
}

// New creates a new Moodle provider instance
func New(target types.Target, cfg types.Config, logger *slog.Logger) *Provider {
	return &Provider{
		target: target,
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

func (p *Provider) Name() models.LmsName {
	return models.LmsMoodle
}

// ValidateCredentials calls the site info function with the stored token
func (p *Provider) ValidateCredentials(ctx context.Context) error {
	_, err := p.call(ctx, fnSiteInfo, url.Values{})
	return err
}

// Publish sends the playlist with its activity links in a single call. The
// plugin creates or updates the entity identified by entity_id.
func (p *Provider) Publish(ctx context.Context, playlist *models.Playlist, previous *types.Previous) (*types.Result, error) {
	form := url.Values{}
	form.Set("entity_name", playlist.Title)
	form.Set("entity_type", entityTypePlaylist)
	form.Set("entity_id", playlist.ID.String())
	form.Set("parent_name", playlist.Project.Name)
	form.Set("parent_id", playlist.ProjectID.String())
	if p.target.CourseID != "" {
		form.Set("course_id", p.target.CourseID)
	}
	if previous != nil && previous.ExternalID != "" {
		form.Set("external_id", previous.ExternalID)
	}
	for i, activity := range playlist.Activities {
		prefix := fmt.Sprintf("activities[%d]", i)
		form.Set(prefix+"[name]", activity.Title)
		form.Set(prefix+"[url]", p.cfg.ActivityURL(activity.ID))
		form.Set(prefix+"[position]", strconv.Itoa(i+1))
	}

	body, err := p.call(ctx, fnCreatePlaylist, form)
	if err != nil {
		return nil, err
	}

	externalID, courseID := parseCreated(body)
	if externalID == "" {
		externalID = playlist.ID.String()
	}
	if courseID == "" {
		courseID = p.target.CourseID
	}

	p.logger.Info("moodle publish complete", "external_id", externalID, "items", len(playlist.Activities))
	return &types.Result{ExternalID: externalID, CourseID: courseID, Items: len(playlist.Activities)}, nil
}

// call posts a web-service function. Moodle reports failures with HTTP 200
// and an "exception" member, so the body is always inspected.
func (p *Provider) call(ctx context.Context, function string, form url.Values) ([]byte, error) {
	form.Set("wstoken", p.target.Token)
	form.Set("wsfunction", function)
	form.Set("moodlewsrestformat", "json")

	endpoint := strings.TrimRight(p.target.BaseURL, "/") + restPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, types.Upstream(models.LmsMoodle, function, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, types.Upstream(models.LmsMoodle, function, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, types.Upstream(models.LmsMoodle, function, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, types.UpstreamStatus(models.LmsMoodle, function, resp.StatusCode, string(raw))
	}

	var failure struct {
		Exception string `json:"exception"`
		ErrorCode string `json:"errorcode"`
		Message   string `json:"message"`
	}
	if json.Unmarshal(raw, &failure) == nil && failure.Exception != "" {
		return nil, types.Upstream(models.LmsMoodle, function,
			fmt.Errorf("%s (%s): %s", failure.Exception, failure.ErrorCode, failure.Message))
	}
	return raw, nil
}

// parseCreated pulls the ids out of the plugin response. Ids may arrive as
// numbers or strings.
func parseCreated(raw []byte) (externalID, courseID string) {
	var body map[string]interface{}
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", ""
	}
	return stringify(body["id"]), stringify(body["course_id"])
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatInt(int64(t), 10)
	default:
		return ""
	}
}
