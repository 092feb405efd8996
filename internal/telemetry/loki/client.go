// Package loki pushes telemetry envelopes to Grafana Loki as log lines, as an optional mirror
// of the ingestion endpoint.
package loki

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"event-analytics/client/internal/telemetry"
)

// DefaultJob is the job label when Sender.Job is empty.
const DefaultJob = "analytics-client"

// PushRequest is the Loki push API request body (v1).
type PushRequest struct {
	Streams []Stream `json:"streams"`
}

// Stream is a single stream with labels and log entries.
type Stream struct {
	Stream map[string]string `json:"stream"`
	Values [][]string        `json:"values"` // each entry is [timestamp_ns, log_line]
}

// labelSanitize replaces characters we avoid in Loki label values.
var labelSanitize = regexp.MustCompile(`[^a-zA-Z0-9_\-:]`)

// Sender is a telemetry.Sender writing one stream entry per envelope. Only event_type becomes a
// label; ids stay in the line to keep stream cardinality low.
type Sender struct {
	BaseURL    string
	Job        string
	HTTPClient *http.Client
}

// NewSender returns a Sender for the Loki instance at baseURL (e.g. http://localhost:3100).
func NewSender(baseURL string, client *http.Client) *Sender {
	if client == nil {
		client = http.DefaultClient
	}
	return &Sender{BaseURL: baseURL, Job: DefaultJob, HTTPClient: client}
}

// Send pushes env as a JSON line stamped with the envelope timestamp (now if it is missing).
func (s *Sender) Send(ctx context.Context, env telemetry.Envelope) error {
	line, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("loki: encode envelope: %w", err)
	}
	ts, ok := env.Timestamp()
	if !ok {
		ts = time.Now().UTC()
	}
	labels := map[string]string{}
	if et := env.EventType(); et != "" {
		labels["event_type"] = et
	}
	return s.push(ctx, ts, string(line), labels)
}

func (s *Sender) push(ctx context.Context, timestamp time.Time, line string, labels map[string]string) error {
	if s.BaseURL == "" {
		return fmt.Errorf("loki: base URL is empty")
	}
	job := s.Job
	if job == "" {
		job = DefaultJob
	}
	streamLabels := make(map[string]string, len(labels)+1)
	streamLabels["job"] = job
	for k, v := range labels {
		if sanitized := labelSanitize.ReplaceAllString(strings.TrimSpace(v), "_"); sanitized != "" {
			streamLabels[k] = sanitized
		}
	}
	payload, err := json.Marshal(PushRequest{
		Streams: []Stream{{
			Stream: streamLabels,
			Values: [][]string{{fmt.Sprintf("%d", timestamp.UnixNano()), line}},
		}},
	})
	if err != nil {
		return err
	}
	url := strings.TrimSuffix(s.BaseURL, "/") + "/loki/api/v1/push"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("loki: push returned %s", resp.Status)
	}
	return nil
}
