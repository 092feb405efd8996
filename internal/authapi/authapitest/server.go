// Package authapitest provides an in-process fake of the API gateway: the identity
// endpoints under /auth, event ingestion at /events and the /analytics stubs.
package authapitest

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"event-analytics/client/internal/authapi"
)

const tokenTTL = 30 * time.Minute

type account struct {
	user authapi.User
	hash []byte
}

// Server is a fake gateway backed by httptest.Server. Tokens are HS256 JWTs with
// sub=username. Safe for concurrent use.
type Server struct {
	*httptest.Server

	secret []byte

	mu          sync.Mutex
	accounts    map[string]*account
	nextID      int64
	eventStatus int
	events      []map[string]any
	calls       map[string]int
	eventCh     chan struct{}
}

// NewServer starts a fake gateway. Callers must Close it.
func NewServer() *Server {
	s := &Server{
		secret:      []byte("authapitest-secret"),
		accounts:    make(map[string]*account),
		eventStatus: http.StatusAccepted,
		calls:       make(map[string]int),
		eventCh:     make(chan struct{}, 1024),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /auth/verify", s.handleVerify)
	mux.HandleFunc("GET /auth/me", s.handleMe)
	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.HandleFunc("POST /auth/register", s.handleRegister)
	mux.HandleFunc("POST /events", s.handleEvent)
	mux.HandleFunc("GET /analytics/events/count", s.analytics(map[string]any{"total_events": 1247, "today": 89}))
	mux.HandleFunc("GET /analytics/events/by-type", s.analytics([]map[string]any{
		{"event_type": "button_click", "count": 456},
		{"event_type": "page_view", "count": 789},
		{"event_type": "feature_usage", "count": 123},
	}))
	mux.HandleFunc("GET /analytics/events/by-user", s.analytics([]map[string]any{
		{"user_id": "user_001", "count": 45},
		{"user_id": "user_002", "count": 67},
		{"user_id": "user_003", "count": 23},
	}))
	mux.HandleFunc("GET /analytics/events/timeseries", s.analytics([]map[string]any{
		{"timestamp": "2024-01-01T00:00:00Z", "count": 12},
		{"timestamp": "2024-01-01T01:00:00Z", "count": 23},
		{"timestamp": "2024-01-01T02:00:00Z", "count": 34},
	}))
	s.Server = httptest.NewServer(s.count(mux))
	return s
}

// AddUser registers an account directly and returns its profile.
func (s *Server) AddUser(username, email, password string, superuser bool) authapi.User {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(username, email, hash, superuser)
}

func (s *Server) addLocked(username, email string, hash []byte, superuser bool) authapi.User {
	s.nextID++
	now := time.Now().UTC().Format(time.RFC3339)
	u := authapi.User{
		ID:          s.nextID,
		Username:    username,
		Email:       email,
		IsActive:    true,
		IsSuperuser: superuser,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.accounts[username] = &account{user: u, hash: hash}
	return u
}

// IssueToken mints a valid token for username without a login round-trip.
func (s *Server) IssueToken(username string) string {
	s.mu.Lock()
	var id int64
	if a, ok := s.accounts[username]; ok {
		id = a.user.ID
	}
	s.mu.Unlock()
	token, err := s.mint(username, id)
	if err != nil {
		panic(err)
	}
	return token
}

// SetEventStatus sets the status /events answers with (default 202).
func (s *Server) SetEventStatus(code int) {
	s.mu.Lock()
	s.eventStatus = code
	s.mu.Unlock()
}

// Events returns a copy of every event body received so far, in arrival order.
func (s *Server) Events() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]any, len(s.events))
	copy(out, s.events)
	return out
}

// WaitForEvents blocks until at least n events were received or timeout elapses,
// then returns what was received.
func (s *Server) WaitForEvents(n int, timeout time.Duration) []map[string]any {
	deadline := time.After(timeout)
	for {
		if ev := s.Events(); len(ev) >= n {
			return ev
		}
		select {
		case <-s.eventCh:
		case <-deadline:
			return s.Events()
		}
	}
}

// Calls reports how many requests hit path.
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// TotalCalls reports how many requests the server handled.
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[r.URL.Path]++
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) mint(username string, userID int64) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":     username,
		"user_id": userID,
		"iat":     now.Unix(),
		"exp":     now.Add(tokenTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// authenticate resolves the bearer token to an account, or nil.
func (s *Server) authenticate(r *http.Request) *account {
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || raw == "" {
		return nil
	}
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil
	}
	sub, err := token.Claims.GetSubject()
	if err != nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[sub]
	if !ok || !a.user.IsActive {
		return nil
	}
	return a
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	a := s.authenticate(r)
	if a == nil {
		writeDetail(w, http.StatusUnauthorized, "Invalid or missing authentication token")
		return
	}
	writeJSON(w, http.StatusOK, a.user)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	a := s.authenticate(r)
	if a == nil {
		writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}
	writeJSON(w, http.StatusOK, a.user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidation(w, "invalid request body")
		return
	}
	s.mu.Lock()
	a, ok := s.accounts[req.Username]
	s.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword(a.hash, []byte(req.Password)) != nil {
		writeDetail(w, http.StatusUnauthorized, "Incorrect username or password")
		return
	}
	token, err := s.mint(a.user.Username, a.user.ID)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "token signing failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": token,
		"token_type":   "bearer",
		"expires_in":   int(tokenTTL.Seconds()),
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req authapi.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidation(w, "invalid request body")
		return
	}
	switch {
	case len(req.Username) < 3:
		writeValidation(w, "username should have at least 3 characters")
		return
	case !strings.Contains(req.Email, "@"):
		writeValidation(w, "value is not a valid email address")
		return
	case len(req.Password) < 6:
		writeValidation(w, "password should have at least 6 characters")
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.MinCost)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "hashing failed")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[req.Username]; exists {
		writeDetail(w, http.StatusBadRequest, "Username already registered")
		return
	}
	for _, a := range s.accounts {
		if a.user.Email == req.Email {
			writeDetail(w, http.StatusBadRequest, "Email already registered")
			return
		}
	}
	writeJSON(w, http.StatusOK, s.addLocked(req.Username, req.Email, hash, false))
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeValidation(w, "invalid event body")
		return
	}
	s.mu.Lock()
	s.events = append(s.events, body)
	status := s.eventStatus
	s.mu.Unlock()
	select {
	case s.eventCh <- struct{}{}:
	default:
	}

	if status != http.StatusAccepted {
		writeDetail(w, status, "Failed to process event")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"message":  "Event accepted",
		"event_id": "evt_" + time.Now().UTC().Format("20060102150405.000000"),
	})
}

func (s *Server) analytics(payload any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.authenticate(r) == nil {
			writeDetail(w, http.StatusUnauthorized, "Invalid or missing authentication token")
			return
		}
		writeJSON(w, http.StatusOK, payload)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeValidation(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"detail": []map[string]any{{"type": "value_error", "msg": msg}},
	})
}
