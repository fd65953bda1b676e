package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/neudev/attemptd/internal/auth"
	"github.com/neudev/attemptd/internal/model"
	"github.com/rs/zerolog"
)

// ErrUnauthorized is returned when the backend rejects the access token.
var ErrUnauthorized = errors.New("unauthorized")

// APIError is a non-2xx backend response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned %d", e.Status)
	}
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}

// Client talks to the activity backend on behalf of one identity.
type Client struct {
	baseURL  string
	identity auth.Identity
	http     *http.Client
	log      zerolog.Logger
}

// NewClient creates a client for baseURL (the API root, e.g. https://host/api).
func NewClient(baseURL string, identity auth.Identity, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		identity: identity,
		http:     &http.Client{Timeout: timeout},
		log:      log.With().Str("component", "backend").Logger(),
	}
}

// FetchActivity returns the activity with its items and test cases.
func (c *Client) FetchActivity(ctx context.Context, activityID int64) (*model.Activity, error) {
	var a model.Activity
	path := fmt.Sprintf("/student/activities/%d/items", activityID)
	if err := c.do(ctx, http.MethodGet, path, nil, &a); err != nil {
		return nil, fmt.Errorf("fetch activity: %w", err)
	}
	return &a, nil
}

// FetchProgress returns the server-side draft, or nil when there is none.
func (c *Client) FetchProgress(ctx context.Context, activityID int64) (*model.Progress, error) {
	var resp model.ProgressResponse
	if err := c.do(ctx, http.MethodGet, c.progressPath(activityID), nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch progress: %w", err)
	}
	if len(resp.Progress) == 0 {
		return nil, nil
	}
	p := resp.Progress[0]
	return &p, nil
}

// SaveProgress stores the draft on the server.
func (c *Client) SaveProgress(ctx context.Context, activityID int64, p model.Progress) error {
	if err := c.do(ctx, http.MethodPost, c.progressPath(activityID), p, nil); err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}

// ClearProgress deletes the server-side draft.
func (c *Client) ClearProgress(ctx context.Context, activityID int64) error {
	if err := c.do(ctx, http.MethodDelete, c.progressPath(activityID), nil, nil); err != nil {
		return fmt.Errorf("clear progress: %w", err)
	}
	return nil
}

// FinalizeSubmission sends the final per-item results.
func (c *Client) FinalizeSubmission(ctx context.Context, activityID int64, payload model.SubmissionPayload) (*model.FinalizeResult, error) {
	var res model.FinalizeResult
	path := fmt.Sprintf("/student/activities/%d/submission", activityID)
	if err := c.do(ctx, http.MethodPost, path, payload, &res); err != nil {
		return nil, fmt.Errorf("finalize submission: %w", err)
	}
	return &res, nil
}

// Teachers preview activities through their own progress endpoint.
func (c *Client) progressPath(activityID int64) string {
	role := auth.RoleStudent
	if c.identity.IsTeacher() {
		role = auth.RoleTeacher
	}
	return fmt.Sprintf("/%s/activities/%d/progress", role, activityID)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.identity.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.identity.Token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("Backend request")

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Message: errorMessage(raw)}
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errorMessage pulls "message" or "error" out of a JSON error body.
func errorMessage(raw []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return strings.TrimSpace(string(raw))
}
