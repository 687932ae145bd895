// Package lrs builds xAPI statements about activity usage and sends them to a
// Learning Record Store.
package lrs

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	VerbLaunched  = "http://adlnet.gov/expapi/verbs/launched"
	VerbAttempted = "http://adlnet.gov/expapi/verbs/attempted"
	VerbAnswered  = "http://adlnet.gov/expapi/verbs/answered"
	VerbCompleted = "http://adlnet.gov/expapi/verbs/completed"

	activityType = "http://adlnet.gov/expapi/activities/lesson"
	contextKey   = "https://studio.local/xapi/extensions/"
)

var ErrInvalidStatement = errors.New("invalid statement")

type Statement struct {
	ID        string     `json:"id,omitempty"`
	Actor     Actor      `json:"actor"`
	Verb      Verb       `json:"verb"`
	Object    Object     `json:"object"`
	Result    *Result    `json:"result,omitempty"`
	Context   *Context   `json:"context,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// Actor is an Agent identified either by mbox or by account.
type Actor struct {
	ObjectType string   `json:"objectType,omitempty"`
	Name       string   `json:"name,omitempty"`
	Mbox       string   `json:"mbox,omitempty"`
	Account    *Account `json:"account,omitempty"`
}

type Account struct {
	HomePage string `json:"homePage"`
	Name     string `json:"name"`
}

type Verb struct {
	ID      string            `json:"id"`
	Display map[string]string `json:"display,omitempty"`
}

type Object struct {
	ObjectType string      `json:"objectType,omitempty"`
	ID         string      `json:"id"`
	Definition *Definition `json:"definition,omitempty"`
}

type Definition struct {
	Name map[string]string `json:"name,omitempty"`
	Type string            `json:"type,omitempty"`
}

type Result struct {
	Score      *Score `json:"score,omitempty"`
	Success    *bool  `json:"success,omitempty"`
	Completion *bool  `json:"completion,omitempty"`
	Response   string `json:"response,omitempty"`
	Duration   string `json:"duration,omitempty"`
}

type Score struct {
	Scaled *float64 `json:"scaled,omitempty"`
	Raw    *float64 `json:"raw,omitempty"`
	Min    *float64 `json:"min,omitempty"`
	Max    *float64 `json:"max,omitempty"`
}

type Context struct {
	Registration      string                 `json:"registration,omitempty"`
	ContextActivities *ContextActivities     `json:"contextActivities,omitempty"`
	Platform          string                 `json:"platform,omitempty"`
	Extensions        map[string]interface{} `json:"extensions,omitempty"`
}

type ContextActivities struct {
	Parent   []Object `json:"parent,omitempty"`
	Grouping []Object `json:"grouping,omitempty"`
}

// Validate checks the parts an LRS rejects outright.
func (s *Statement) Validate() error {
	if s.Actor.Mbox == "" && s.Actor.Account == nil {
		return fmt.Errorf("actor needs mbox or account: %w", ErrInvalidStatement)
	}
	if s.Actor.Account != nil && (s.Actor.Account.HomePage == "" || s.Actor.Account.Name == "") {
		return fmt.Errorf("actor account needs homePage and name: %w", ErrInvalidStatement)
	}
	if s.Verb.ID == "" {
		return fmt.Errorf("verb id is required: %w", ErrInvalidStatement)
	}
	if s.Object.ID == "" {
		return fmt.Errorf("object id is required: %w", ErrInvalidStatement)
	}
	if s.ID != "" {
		if _, err := uuid.Parse(s.ID); err != nil {
			return fmt.Errorf("statement id must be a uuid: %w", ErrInvalidStatement)
		}
	}
	if s.Result != nil && s.Result.Score != nil {
		if sc := s.Result.Score.Scaled; sc != nil && (*sc < -1 || *sc > 1) {
			return fmt.Errorf("scaled score out of range: %w", ErrInvalidStatement)
		}
	}
	return nil
}

// Activity describes the studio activity a statement is about.
type Activity struct {
	ID         uuid.UUID
	Title      string
	PlaylistID uuid.UUID
	ProjectID  uuid.UUID
}

// Builder stamps statements with the platform identity. Learners are
// identified by account on the studio frontend.
type Builder struct {
	homePage string
	now      func() time.Time
}

func NewBuilder(frontendURL string) *Builder {
	return &Builder{homePage: frontendURL, now: time.Now}
}

func (b *Builder) Launched(learner string, a Activity) Statement {
	return b.statement(learner, VerbLaunched, "launched", a, nil)
}

func (b *Builder) Attempted(learner string, a Activity) Statement {
	return b.statement(learner, VerbAttempted, "attempted", a, nil)
}

// Answered records a response with an optional raw score out of max.
func (b *Builder) Answered(learner string, a Activity, response string, raw, max float64, success bool) Statement {
	result := &Result{Response: response, Success: &success}
	if max > 0 {
		scaled := raw / max
		min := 0.0
		result.Score = &Score{Scaled: &scaled, Raw: &raw, Min: &min, Max: &max}
	}
	return b.statement(learner, VerbAnswered, "answered", a, result)
}

// Completed records completion; duration is rendered as an ISO 8601 duration.
func (b *Builder) Completed(learner string, a Activity, duration time.Duration) Statement {
	done := true
	result := &Result{Completion: &done}
	if duration > 0 {
		result.Duration = isoDuration(duration)
	}
	return b.statement(learner, VerbCompleted, "completed", a, result)
}

func (b *Builder) statement(learner, verbID, display string, a Activity, result *Result) Statement {
	ts := b.now().UTC()
	return Statement{
		ID: uuid.NewString(),
		Actor: Actor{
			ObjectType: "Agent",
			Account:    &Account{HomePage: b.homePage, Name: learner},
		},
		Verb: Verb{ID: verbID, Display: map[string]string{"en-US": display}},
		Object: Object{
			ObjectType: "Activity",
			ID:         b.homePage + "/activity/" + a.ID.String(),
			Definition: &Definition{Name: map[string]string{"en-US": a.Title}, Type: activityType},
		},
		Result: result,
		Context: &Context{
			Platform: "studio",
			ContextActivities: &ContextActivities{
				Parent: []Object{{ObjectType: "Activity", ID: b.homePage + "/playlist/" + a.PlaylistID.String()}},
			},
			Extensions: map[string]interface{}{
				contextKey + "project": a.ProjectID.String(),
			},
		},
		Timestamp: &ts,
	}
}

func isoDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	s := int((d % time.Minute) / time.Second)
	out := "PT"
	if h > 0 {
		out += fmt.Sprintf("%dH", h)
	}
	if m > 0 {
		out += fmt.Sprintf("%dM", m)
	}
	if s > 0 || out == "PT" {
		out += fmt.Sprintf("%dS", s)
	}
	return out
}
