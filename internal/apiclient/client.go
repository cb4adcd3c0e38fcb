// Package apiclient is a REST client for the liftplan session API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/davidbz/liftplan/internal/domain"
	"github.com/davidbz/liftplan/internal/observability"
)

const defaultTimeout = 30 * time.Second

// Error is a non-2xx response decoded from the API error envelope.
type Error struct {
	Status  int
	Kind    string
	Message string
}

func (e *Error) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("api returned status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api returned status %d (%s): %s", e.Status, e.Kind, e.Message)
}

// Unwrap maps the status onto the domain sentinels so callers can use errors.Is.
func (e *Error) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusConflict:
		return domain.ErrConflict
	case http.StatusBadRequest:
		return domain.ErrInvalidInput
	default:
		return nil
	}
}

// Client talks to the liftplan HTTP API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a new API client. A zero timeout uses the default.
func New(baseURL, apiKey string, timeout time.Duration) (*Client, error) {
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid server URL %q: %w", baseURL, err)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type createSessionRequest struct {
	PlanID  string `json:"plan_id"`
	DayName string `json:"day_name"`
	Date    string `json:"date,omitempty"`
}

type sessionBody struct {
	Session *domain.SessionDocument `json:"session,omitempty"`
}

type errorEnvelope struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// GetPlan fetches a plan.
func (c *Client) GetPlan(ctx context.Context, id string) (*domain.Plan, error) {
	var plan domain.Plan
	if err := c.do(ctx, http.MethodGet, "/v1/plans/"+url.PathEscape(id), nil, &plan); err != nil {
		return nil, fmt.Errorf("failed to fetch plan: %w", err)
	}
	return &plan, nil
}

// CreateSession starts a session for a plan day. An empty date means today.
func (c *Client) CreateSession(ctx context.Context, planID, dayName, date string) (*domain.SessionRecord, error) {
	var record domain.SessionRecord
	req := createSessionRequest{PlanID: planID, DayName: dayName, Date: date}
	if err := c.do(ctx, http.MethodPost, "/v1/sessions", req, &record); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return &record, nil
}

// FetchSession fetches a session record.
func (c *Client) FetchSession(ctx context.Context, id string) (*domain.SessionRecord, error) {
	var record domain.SessionRecord
	if err := c.do(ctx, http.MethodGet, "/v1/sessions/"+url.PathEscape(id), nil, &record); err != nil {
		return nil, fmt.Errorf("failed to fetch session: %w", err)
	}
	return &record, nil
}

// UpdateSession replaces the stored document of a session.
func (c *Client) UpdateSession(ctx context.Context, id string, doc domain.SessionDocument) error {
	if err := c.do(ctx, http.MethodPut, "/v1/sessions/"+url.PathEscape(id), sessionBody{Session: &doc}, nil); err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return nil
}

// CompleteSession finalises a session, sending doc first when non-nil.
func (c *Client) CompleteSession(
	ctx context.Context,
	id string,
	doc *domain.SessionDocument,
) (*domain.SessionRecord, error) {
	var record domain.SessionRecord
	path := "/v1/sessions/" + url.PathEscape(id) + "/complete"
	if err := c.do(ctx, http.MethodPost, path, sessionBody{Session: doc}, &record); err != nil {
		return nil, fmt.Errorf("failed to complete session: %w", err)
	}
	return &record, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	if requestID := observability.GetRequestID(ctx); requestID != "" {
		req.Header.Set("X-Request-Id", requestID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return decodeError(resp.StatusCode, raw)
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err = json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeError(status int, raw []byte) error {
	var envelope errorEnvelope
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error != "" {
		return &Error{Status: status, Kind: envelope.Error, Message: envelope.Message}
	}
	return &Error{Status: status, Kind: "", Message: strings.TrimSpace(string(raw))}
}
