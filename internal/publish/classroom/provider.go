package classroom

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	classroomapi "google.golang.org/api/classroom/v1"
	"google.golang.org/api/option"

	"github.com/hugh/go-studio/internal/database/models"
	"github.com/hugh/go-studio/internal/publish/types"
)

// Provider publishes playlists to Google Classroom: project as course,
// playlist as topic, activity as a link assignment.
type Provider struct {
	target types.Target
	cfg    types.Config
	oauth  *oauth2.Config
	logger *slog.Logger
}

// New creates a new Google Classroom provider instance. target.Token holds
// the OAuth2 token as JSON, or a bare access token.
func New(target types.Target, cfg types.Config, oauth *oauth2.Config, logger *slog.Logger) *Provider {
	return &Provider{
		target: target,
		cfg:    cfg,
		oauth:  oauth,
		logger: logger,
	}
}

// OAuthConfig returns the Google OAuth2 configuration for the scopes the
// adapter needs.
func OAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint:     google.Endpoint,
		Scopes: []string{
			classroomapi.ClassroomCoursesScope,
			classroomapi.ClassroomTopicsScope,
			classroomapi.ClassroomCourseworkStudentsScope,
		},
	}
}

func (p *Provider) Name() models.LmsName {
	return models.LmsGoogleClassroom
}

// ValidateCredentials lists at most one course
func (p *Provider) ValidateCredentials(ctx context.Context) error {
	svc, err := p.service(ctx)
	if err != nil {
		return err
	}
	if _, err := svc.Courses.List().PageSize(1).Context(ctx).Do(); err != nil {
		return types.Upstream(models.LmsGoogleClassroom, "list courses", err)
	}
	return nil
}

func (p *Provider) Publish(ctx context.Context, playlist *models.Playlist, previous *types.Previous) (*types.Result, error) {
	svc, err := p.service(ctx)
	if err != nil {
		return nil, err
	}

	courseID := p.target.CourseID
	if courseID == "" && previous != nil {
		courseID = previous.CourseID
	}
	if courseID == "" {
		course, err := svc.Courses.Create(&classroomapi.Course{
			Name:    playlist.Project.Name,
			OwnerId: "me",
		}).Context(ctx).Do()
		if err != nil {
			return nil, types.Upstream(models.LmsGoogleClassroom, "create course", err)
		}
		courseID = course.Id
		p.logger.Info("classroom course created", "course_id", courseID, "project_id", playlist.ProjectID)
	}

	var topicID string
	existing := map[string]bool{}
	if previous != nil && previous.ExternalID != "" && (previous.CourseID == "" || previous.CourseID == courseID) {
		topic, err := svc.Courses.Topics.Patch(courseID, previous.ExternalID, &classroomapi.Topic{Name: playlist.Title}).
			UpdateMask("name").Context(ctx).Do()
		if err != nil {
			return nil, types.Upstream(models.LmsGoogleClassroom, "update topic", err)
		}
		topicID = topic.TopicId

		work, err := svc.Courses.CourseWork.List(courseID).Context(ctx).Do()
		if err != nil {
			return nil, types.Upstream(models.LmsGoogleClassroom, "list course work", err)
		}
		for _, cw := range work.CourseWork {
			if cw.TopicId != topicID {
				continue
			}
			for _, m := range cw.Materials {
				if m.Link != nil {
					existing[m.Link.Url] = true
				}
			}
		}
	} else {
		topic, err := svc.Courses.Topics.Create(courseID, &classroomapi.Topic{Name: playlist.Title}).Context(ctx).Do()
		if err != nil {
			return nil, types.Upstream(models.LmsGoogleClassroom, "create topic", err)
		}
		topicID = topic.TopicId
	}

	pushed := 0
	for _, activity := range playlist.Activities {
		link := p.cfg.ActivityURL(activity.ID)
		if existing[link] {
			continue
		}
		_, err := svc.Courses.CourseWork.Create(courseID, &classroomapi.CourseWork{
			Title:     activity.Title,
			TopicId:   topicID,
			WorkType:  "ASSIGNMENT",
			State:     "PUBLISHED",
			Materials: []*classroomapi.Material{{Link: &classroomapi.Link{Url: link}}},
		}).Context(ctx).Do()
		if err != nil {
			return nil, types.Upstream(models.LmsGoogleClassroom, "create course work", err)
		}
		pushed++
	}

	p.logger.Info("classroom publish complete", "course_id", courseID, "topic_id", topicID, "items", pushed)
	return &types.Result{ExternalID: topicID, CourseID: courseID, Items: pushed}, nil
}

func (p *Provider) service(ctx context.Context) (*classroomapi.Service, error) {
	token, err := parseToken(p.target.Token)
	if err != nil {
		return nil, types.Upstream(models.LmsGoogleClassroom, "token", err)
	}

	httpClient := &http.Client{
		Timeout: p.cfg.Timeout,
		Transport: &oauth2.Transport{
			Source: p.oauth.TokenSource(ctx, token),
			Base:   http.DefaultTransport,
		},
	}
	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if p.target.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(strings.TrimRight(p.target.BaseURL, "/")+"/"))
	}

	svc, err := classroomapi.NewService(ctx, opts...)
	if err != nil {
		return nil, types.Upstream(models.LmsGoogleClassroom, "client", err)
	}
	return svc, nil
}

func parseToken(raw string) (*oauth2.Token, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty token")
	}
	if !strings.HasPrefix(raw, "{") {
		return &oauth2.Token{AccessToken: raw, TokenType: "Bearer"}, nil
	}
	var token oauth2.Token
	if err := json.Unmarshal([]byte(raw), &token); err != nil {
		return nil, fmt.Errorf("parsing oauth token: %w", err)
	}
	return &token, nil
}
