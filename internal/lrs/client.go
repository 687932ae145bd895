package lrs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const xapiVersion = "1.0.3"

var ErrUpstream = errors.New("lrs request failed")

// Recorder stores statements and returns their ids in order.
type Recorder interface {
	Send(ctx context.Context, statements []Statement) ([]string, error)
}

// Client talks to an LRS statements resource with basic auth.
type Client struct {
	endpoint string
	username string
	password string
	http     *http.Client
	logger   *slog.Logger
}

func NewClient(endpoint, username, password string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		username: username,
		password: password,
		http:     &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

func (c *Client) Send(ctx context.Context, statements []Statement) ([]string, error) {
	if len(statements) == 0 {
		return nil, nil
	}
	for i := range statements {
		if err := statements[i].Validate(); err != nil {
			return nil, fmt.Errorf("statement %d: %w", i, err)
		}
	}

	body, err := json.Marshal(statements)
	if err != nil {
		return nil, fmt.Errorf("encoding statements: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/statements", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Experience-API-Version", xapiVersion)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrUpstream, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := string(raw)
		if len(snippet) > 512 {
			snippet = snippet[:512]
		}
		return nil, fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, snippet)
	}

	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("%w: decoding ids: %v", ErrUpstream, err)
	}

	c.logger.Debug("statements recorded", "count", len(ids))
	return ids, nil
}

// LogRecorder is used when no LRS is configured. It assigns ids locally so
// callers see the same shape of response.
type LogRecorder struct {
	logger *slog.Logger
}

func NewLogRecorder(logger *slog.Logger) *LogRecorder {
	return &LogRecorder{logger: logger}
}

func (r *LogRecorder) Send(_ context.Context, statements []Statement) ([]string, error) {
	ids := make([]string, 0, len(statements))
	for i := range statements {
		if err := statements[i].Validate(); err != nil {
			return nil, fmt.Errorf("statement %d: %w", i, err)
		}
		if statements[i].ID == "" {
			statements[i].ID = uuid.NewString()
		}
		ids = append(ids, statements[i].ID)
		r.logger.Info("xapi statement (no lrs configured)",
			"verb", statements[i].Verb.ID,
			"object", statements[i].Object.ID,
		)
	}
	return ids, nil
}
