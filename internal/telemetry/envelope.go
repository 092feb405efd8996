// Package telemetry builds behavioral event envelopes and ships them to the ingestion endpoint
// fire-and-forget. Construction is synchronous; delivery happens on its own goroutine and is never
// retried or queued.
package telemetry

import "time"

// System envelope fields. Caller attributes with the same key replace them.
const (
	FieldEventType        = "event_type"
	FieldUserID           = "user_id"
	FieldSessionID        = "session_id"
	FieldTimestamp        = "timestamp"
	FieldURL              = "url"
	FieldUserAgent        = "user_agent"
	FieldScreenResolution = "screen_resolution"
)

// timestampLayout is ISO-8601 UTC with millisecond precision.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// Attributes are caller-supplied event fields. Values must be JSON-encodable.
type Attributes map[string]any

// Envelope is the JSON object posted for one event.
type Envelope map[string]any

// EventType returns the envelope's event_type, or "" if it is not a string.
func (e Envelope) EventType() string {
	s, _ := e[FieldEventType].(string)
	return s
}

// String returns the string value of key, or "".
func (e Envelope) String(key string) string {
	s, _ := e[key].(string)
	return s
}

// Timestamp parses the envelope's timestamp. ok is false when it is missing or malformed.
func (e Envelope) Timestamp() (t time.Time, ok bool) {
	t, err := time.Parse(timestampLayout, e.String(FieldTimestamp))
	if err != nil {
		t, err = time.Parse(time.RFC3339Nano, e.String(FieldTimestamp))
	}
	return t, err == nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}
