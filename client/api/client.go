// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/danielhkuo/crowd-poll/models"
)

// DefaultTimeout bounds every request so a hung connection surfaces as
// a connectivity failure instead of wedging the session in Submitting.
const DefaultTimeout = 10 * time.Second

var (
	// ErrUnreachable wraps transport-level failures (DNS, refused
	// connections, timeouts). Callers branch on it to queue instead of
	// surfacing an error.
	ErrUnreachable = errors.New("server unreachable")

	// ErrNotFound is returned by lookups that resolved nothing.
	ErrNotFound = errors.New("not found")
)

// RejectionError is a structured server-side rejection.
type RejectionError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *RejectionError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server rejected request (%d %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("server rejected request (%d %s)", e.StatusCode, e.Code)
}

// IsConnectivity reports whether err means the server could not be
// reached at all.
func IsConnectivity(err error) bool {
	return errors.Is(err, ErrUnreachable)
}

// IsAlreadySubmitted reports whether err is the duplicate-submission
// rejection, which a retrying queue treats as delivered.
func IsAlreadySubmitted(err error) bool {
	var rej *RejectionError
	return errors.As(err, &rej) && rej.Code == models.CodeAlreadySubmitted
}

// Doer issues HTTP requests. *http.Client satisfies it, as does the
// client cache, which interposes its partition policies here.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a typed client for the Crowd Poll API.
type Client struct {
	base string
	doer Doer
}

// New creates a Client for the given base URL. A nil doer gets a
// plain http.Client with DefaultTimeout.
func New(baseURL string, doer Doer) *Client {
	if doer == nil {
		doer = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{base: baseURL, doer: doer}
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.doer.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var errResp models.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)

		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %s", ErrNotFound, errResp.Message)
		}
		return &RejectionError{
			StatusCode: resp.StatusCode,
			Code:       errResp.Code,
			Message:    errResp.Message,
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Health probes the server. A nil return means the server is reachable.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := c.doer.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health returned %d", ErrUnreachable, resp.StatusCode)
	}
	return nil
}

func typeQuery(pollType string) url.Values {
	q := url.Values{}
	if pollType != "" {
		q.Set("type", pollType)
	}
	return q
}

// ActivePolls lists active polls, optionally filtered by type.
func (c *Client) ActivePolls(ctx context.Context, pollType string) ([]models.PollSummary, error) {
	var out []models.PollSummary
	if err := c.get(ctx, "/poll/active", typeQuery(pollType), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PollByTitle resolves an active poll by its display title.
func (c *Client) PollByTitle(ctx context.Context, title, pollType string) (*models.PollSummary, error) {
	q := typeQuery(pollType)
	q.Set("title", title)
	var out models.PollSummary
	if err := c.get(ctx, "/poll/by-title", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PollBySlug resolves an active poll by its join code.
func (c *Client) PollBySlug(ctx context.Context, slug, pollType string) (*models.PollSummary, error) {
	q := typeQuery(pollType)
	q.Set("slug", slug)
	var out models.PollSummary
	if err := c.get(ctx, "/poll/by-slug", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StatusBySlug reports whether a poll with this slug exists at all and
// whether it is still accepting submissions.
func (c *Client) StatusBySlug(ctx context.Context, slug string) (*models.PollStatus, error) {
	q := url.Values{}
	q.Set("slug", slug)
	var out models.PollStatus
	if err := c.get(ctx, "/poll/status/by-slug", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StatusByTitle is StatusBySlug for title lookups.
func (c *Client) StatusByTitle(ctx context.Context, title string) (*models.PollStatus, error) {
	q := url.Values{}
	q.Set("title", title)
	var out models.PollStatus
	if err := c.get(ctx, "/poll/status/by-title", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PollDetail fetches the full question/choice tree for an active poll.
func (c *Client) PollDetail(ctx context.Context, pollID string) (*models.PollDetail, error) {
	var out models.PollDetail
	if err := c.get(ctx, "/poll/"+url.PathEscape(pollID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Submit delivers an answer set for a poll.
func (c *Client) Submit(ctx context.Context, pollID string, req models.SubmitRequest) error {
	return c.post(ctx, "/poll/"+url.PathEscape(pollID)+"/submit", req, nil)
}
