// Package analytics queries the gateway's /analytics endpoints on behalf of an admin session.
// Unlike event dispatch, every failure here is returned to the caller.
package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 15 * time.Second

// Endpoints under /analytics/.
const (
	EndpointEventCount = "events/count"
	EndpointByType     = "events/by-type"
	EndpointByUser     = "events/by-user"
	EndpointTimeseries = "events/timeseries"
)

// ErrUnauthorized is wrapped when the gateway answers 401 or 403.
var ErrUnauthorized = errors.New("analytics: not authorized")

// HeaderSource supplies request headers, typically the session's auth headers.
// *session.Manager implements it.
type HeaderSource interface {
	AuthHeaders() map[string]string
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Endpoint string
	Status   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("analytics: %s: API Error: %d", e.Endpoint, e.Status)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrUnauthorized && (e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden)
}

// EventCount is the body of events/count.
type EventCount struct {
	TotalEvents int64 `json:"total_events"`
	Today       int64 `json:"today"`
}

// TypeCount is one row of events/by-type.
type TypeCount struct {
	EventType string `json:"event_type"`
	Count     int64  `json:"count"`
}

// UserCount is one row of events/by-user.
type UserCount struct {
	UserID string `json:"user_id"`
	Count  int64  `json:"count"`
}

// Bucket is one row of events/timeseries.
type Bucket struct {
	Timestamp time.Time `json:"timestamp"`
	Count     int64     `json:"count"`
}

// Client fetches analytics with the headers from Headers.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Headers    HeaderSource
}

// NewClient returns a client for the gateway at baseURL. timeout <= 0 uses 15s.
func NewClient(baseURL string, headers HeaderSource, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: timeout},
		Headers:    headers,
	}
}

// Fetch GETs /analytics/<endpoint> and returns the raw JSON body of a 2xx response.
func (c *Client) Fetch(ctx context.Context, endpoint string) (json.RawMessage, error) {
	endpoint = strings.TrimPrefix(endpoint, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/analytics/"+endpoint, nil)
	if err != nil {
		return nil, err
	}
	if c.Headers != nil {
		for k, v := range c.Headers.AuthHeaders() {
			req.Header.Set(k, v)
		}
	} else {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analytics: %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("analytics: %s: read body: %w", endpoint, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Endpoint: endpoint, Status: resp.StatusCode}
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("analytics: %s: response is not JSON", endpoint)
	}
	return body, nil
}

func (c *Client) EventCounts(ctx context.Context) (EventCount, error) {
	var out EventCount
	err := c.fetchInto(ctx, EndpointEventCount, &out)
	return out, err
}

func (c *Client) EventsByType(ctx context.Context) ([]TypeCount, error) {
	var out []TypeCount
	err := c.fetchInto(ctx, EndpointByType, &out)
	return out, err
}

func (c *Client) EventsByUser(ctx context.Context) ([]UserCount, error) {
	var out []UserCount
	err := c.fetchInto(ctx, EndpointByUser, &out)
	return out, err
}

func (c *Client) Timeseries(ctx context.Context) ([]Bucket, error) {
	var out []Bucket
	err := c.fetchInto(ctx, EndpointTimeseries, &out)
	return out, err
}

func (c *Client) fetchInto(ctx context.Context, endpoint string, v any) error {
	raw, err := c.Fetch(ctx, endpoint)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("analytics: %s: decode: %w", endpoint, err)
	}
	return nil
}
