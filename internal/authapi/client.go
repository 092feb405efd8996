// Package authapi is the HTTP client for the identity service behind the API gateway
// (/auth/verify, /auth/me, /auth/login, /auth/register).
package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultTimeout = 15 * time.Second
	// maxBodyBytes caps how much of a response body is read.
	maxBodyBytes = 1 << 20

	tracerName = "event-analytics/client/authapi"
)

// Client calls the identity service. The zero value is not usable; use NewClient.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient returns a client for the gateway at baseURL. timeout <= 0 uses 15s.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// Verify checks token against GET /auth/verify. Only 200 counts as valid.
func (c *Client) Verify(ctx context.Context, token string) error {
	status, body, err := c.do(ctx, OpVerify, http.MethodGet, "/auth/verify", token, nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return rejectedErr(OpVerify, status, detailOf(body))
	}
	return nil
}

// Me fetches the profile of the token's user from GET /auth/me.
func (c *Client) Me(ctx context.Context, token string) (*User, error) {
	status, body, err := c.do(ctx, OpMe, http.MethodGet, "/auth/me", token, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, rejectedErr(OpMe, status, detailOf(body))
	}
	var u User
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, malformedErr(OpMe, status, err)
	}
	return &u, nil
}

// Login exchanges credentials for an access token via POST /auth/login.
// A 2xx response must carry a non-empty access_token and no detail.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	status, body, err := c.do(ctx, OpLogin, http.MethodPost, "/auth/login", "", loginRequest{
		Username: username,
		Password: password,
	})
	if err != nil {
		return "", err
	}
	detail := detailOf(body)
	if !isSuccess(status) || detail != "" {
		return "", rejectedErr(OpLogin, status, detail)
	}
	var lr loginResponse
	if err := json.Unmarshal(body, &lr); err != nil {
		return "", malformedErr(OpLogin, status, err)
	}
	if lr.AccessToken == "" {
		return "", &Error{Kind: ErrAuthRejected, Op: OpLogin, Status: status, Err: ErrMissingToken}
	}
	return lr.AccessToken, nil
}

// Register creates an account via POST /auth/register. Success is a 2xx without detail.
func (c *Client) Register(ctx context.Context, req RegisterRequest) error {
	status, body, err := c.do(ctx, OpRegister, http.MethodPost, "/auth/register", "", req)
	if err != nil {
		return err
	}
	detail := detailOf(body)
	if !isSuccess(status) || detail != "" {
		return rejectedErr(OpRegister, status, detail)
	}
	return nil
}

// do sends one request and reads the (capped) body inside a client span. Only transport
// failures return an error.
func (c *Client) do(ctx context.Context, op, method, path, token string, payload any) (int, []byte, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "authapi."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
		))
	defer span.End()

	status, body, err := c.send(ctx, op, method, path, token, payload)
	if status != 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", status))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport error")
	} else if status >= 400 {
		span.SetStatus(codes.Error, http.StatusText(status))
	}
	return status, body, err
}

func (c *Client) send(ctx context.Context, op, method, path, token string, payload any) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, malformedErr(op, 0, err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return 0, nil, transportErr(op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, nil, transportErr(op, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, nil, transportErr(op, err)
	}
	return resp.StatusCode, raw, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

// detailOf extracts the gateway's "detail" field: a plain string, or a list of validation
// errors whose "msg" fields are joined. Returns "" when absent or the body is not JSON.
func detailOf(body []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if len(body) == 0 || json.Unmarshal(body, &envelope) != nil || len(envelope.Detail) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(envelope.Detail, &s); err == nil {
		return s
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(envelope.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	if string(envelope.Detail) == "null" {
		return ""
	}
	return string(envelope.Detail)
}
