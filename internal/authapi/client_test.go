package authapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient("http://gateway.local/", 0)
	if c.BaseURL != "http://gateway.local" {
		t.Errorf("BaseURL = %q, want trailing slash trimmed", c.BaseURL)
	}
	if c.HTTPClient == nil {
		t.Fatal("HTTPClient should be set")
	}
	if c.HTTPClient.Timeout != defaultTimeout {
		t.Errorf("HTTPClient.Timeout = %v, want %v", c.HTTPClient.Timeout, defaultTimeout)
	}
	if got := NewClient("http://x", 3*time.Second).HTTPClient.Timeout; got != 3*time.Second {
		t.Errorf("custom Timeout = %v, want 3s", got)
	}
}

func TestVerify_SendsBearer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %q, want GET", r.Method)
		}
		if r.URL.Path != "/auth/verify" {
			t.Errorf("path = %q, want /auth/verify", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok123" {
			t.Errorf("Authorization = %q, want %q", got, "Bearer tok123")
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"valid":true,"user":"admin"}`))
	}))
	defer server.Close()

	if err := NewClient(server.URL, 0).Verify(context.Background(), "tok123"); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerify_NonOKIsRejected(t *testing.T) {
	testCases := []int{http.StatusUnauthorized, http.StatusNoContent, http.StatusInternalServerError}
	for _, status := range testCases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		err := NewClient(server.URL, 0).Verify(context.Background(), "tok")
		server.Close()

		if !errors.Is(err, ErrAuthRejected) {
			t.Errorf("status %d: err = %v, want ErrAuthRejected", status, err)
		}
		var apiErr *Error
		if errors.As(err, &apiErr) && apiErr.Status != status {
			t.Errorf("Status = %d, want %d", apiErr.Status, status)
		}
	}
}

func TestVerify_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	err := NewClient(url, time.Second).Verify(context.Background(), "tok")
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("err = %v, want ErrTransport", err)
	}
	if got := Message(err); got != "Network error. Please check API Gateway is running." {
		t.Errorf("Message = %q", got)
	}
}

func TestMe_DecodesUser(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":7,"username":"admin","email":"a@x.io","is_active":true,"is_superuser":true,"created_at":"2024-01-01T00:00:00","extra":"ignored"}`))
	}))
	defer server.Close()

	u, err := NewClient(server.URL, 0).Me(context.Background(), "tok")
	if err != nil {
		t.Fatalf("Me: %v", err)
	}
	if u.ID != 7 || u.Username != "admin" || u.Email != "a@x.io" {
		t.Errorf("user = %+v", u)
	}
	if !u.IsSuperuser || !u.IsActive {
		t.Errorf("flags = active %v superuser %v, want true true", u.IsActive, u.IsSuperuser)
	}
}

func TestMe_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>gateway</html>`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL, 0).Me(context.Background(), "tok")
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("err = %v, want ErrMalformedResponse", err)
	}
}

func TestLogin(t *testing.T) {
	testCases := []struct {
		name      string
		status    int
		body      string
		wantToken string
		wantKind  error
		wantMsg   string
	}{
		{"ok", 200, `{"access_token":"abc","token_type":"bearer","expires_in":1800}`, "abc", nil, ""},
		{"created", 201, `{"access_token":"abc"}`, "abc", nil, ""},
		{"no token", 200, `{"token_type":"bearer"}`, "", ErrAuthRejected, "Login failed - no token received"},
		{"detail on 200", 200, `{"access_token":"abc","detail":"Account locked"}`, "", ErrAuthRejected, "Account locked"},
		{"401 detail", 401, `{"detail":"Incorrect username or password"}`, "", ErrAuthRejected, "Incorrect username or password"},
		{"500 html", 500, `oops`, "", ErrAuthRejected, "Login failed"},
		{"malformed", 200, `not json`, "", ErrMalformedResponse, "Login failed"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost || r.URL.Path != "/auth/login" {
					t.Errorf("request = %s %s, want POST /auth/login", r.Method, r.URL.Path)
				}
				if r.Header.Get("Authorization") != "" {
					t.Error("login must not send Authorization")
				}
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer server.Close()

			token, err := NewClient(server.URL, 0).Login(context.Background(), "admin", "admin")
			if token != tc.wantToken {
				t.Errorf("token = %q, want %q", token, tc.wantToken)
			}
			if tc.wantKind == nil {
				if err != nil {
					t.Fatalf("Login: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantKind) {
				t.Fatalf("err = %v, want kind %v", err, tc.wantKind)
			}
			if got := Message(err); got != tc.wantMsg {
				t.Errorf("Message = %q, want %q", got, tc.wantMsg)
			}
		})
	}
}

func TestLogin_MissingTokenIsDistinguishable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL, 0).Login(context.Background(), "u", "p")
	if !errors.Is(err, ErrMissingToken) {
		t.Errorf("err = %v, want to wrap ErrMissingToken", err)
	}
	if !errors.Is(err, ErrAuthRejected) {
		t.Errorf("err = %v, want kind ErrAuthRejected", err)
	}
}

func TestRegister(t *testing.T) {
	testCases := []struct {
		name    string
		status  int
		body    string
		wantErr bool
		wantMsg string
	}{
		{"ok", 200, `{"id":1,"username":"bob"}`, false, ""},
		{"ok non-json", 200, `registered`, false, ""},
		{"duplicate", 400, `{"detail":"Username already registered"}`, true, "Username already registered"},
		{"validation list", 422, `{"detail":[{"msg":"username too short"},{"msg":"bad email"}]}`, true, "username too short; bad email"},
		{"detail on 200", 200, `{"detail":"Registration endpoint - not implemented yet"}`, true, "Registration endpoint - not implemented yet"},
		{"bare 503", 503, ``, true, "Registration failed"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer server.Close()

			err := NewClient(server.URL, 0).Register(context.Background(), RegisterRequest{
				Username: "bob", Email: "bob@example.com", Password: "secret1",
			})
			if tc.wantErr != (err != nil) {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
			if got := Message(err); got != tc.wantMsg {
				t.Errorf("Message = %q, want %q", got, tc.wantMsg)
			}
		})
	}
}

func TestMessage_NonAPIError(t *testing.T) {
	if got := Message(errors.New("boom")); got != "Unexpected error. Please try again." {
		t.Errorf("Message = %q", got)
	}
	if got := Message(nil); got != "" {
		t.Errorf("Message(nil) = %q, want empty", got)
	}
}

func TestDetailOf(t *testing.T) {
	testCases := []struct {
		body string
		want string
	}{
		{``, ""},
		{`not json`, ""},
		{`{"message":"x"}`, ""},
		{`{"detail":null}`, ""},
		{`{"detail":"plain"}`, "plain"},
		{`{"detail":[{"msg":"a"},{"loc":["body"]},{"msg":"b"}]}`, "a; b"},
		{`{"detail":{"code":1}}`, `{"code":1}`},
	}
	for _, tc := range testCases {
		if got := detailOf([]byte(tc.body)); got != tc.want {
			t.Errorf("detailOf(%q) = %q, want %q", tc.body, got, tc.want)
		}
	}
}

func TestClient_RecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	_ = NewClient(server.URL, 0).Verify(context.Background(), "tok")

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	if spans[0].Name() != "authapi.verify" {
		t.Errorf("span name = %q, want authapi.verify", spans[0].Name())
	}
	if spans[0].Status().Code != codes.Error {
		t.Errorf("span status = %v, want Error for 401", spans[0].Status().Code)
	}
}
