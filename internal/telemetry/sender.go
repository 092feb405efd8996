package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrNotAccepted is wrapped by HTTPSender when ingestion answers anything but 202.
var ErrNotAccepted = errors.New("telemetry: event not accepted")

// HTTPSender posts envelopes to the gateway's /events endpoint. Requests carry no auth header.
type HTTPSender struct {
	URL        string
	HTTPClient *http.Client
}

// NewHTTPSender returns a sender for <baseURL>/events. client may be nil (http.DefaultClient).
func NewHTTPSender(baseURL string, client *http.Client) *HTTPSender {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSender{
		URL:        strings.TrimSuffix(baseURL, "/") + "/events",
		HTTPClient: client,
	}
}

// Send posts env as JSON. Only 202 Accepted counts as success.
func (s *HTTPSender) Send(ctx context.Context, env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("telemetry: encode envelope: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("%w: ingestion returned %s", ErrNotAccepted, resp.Status)
	}
	return nil
}
