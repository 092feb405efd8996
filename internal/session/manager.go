// Package session owns the client's auth lifecycle: restoring a persisted token at startup,
// login, logout and the headers authenticated requests carry.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"event-analytics/client/internal/authapi"
	"event-analytics/client/internal/logging"
	"event-analytics/client/internal/observe"
	"event-analytics/client/internal/storage"
)

// TokenKey is the storage key of the persisted bearer token.
const TokenKey = "analytics_token"

// Navigation targets after login and logout.
const (
	HomePath  = "/"
	AdminPath = "/admin"
)

// ErrEmptyToken is returned by Login when called without a token.
var ErrEmptyToken = errors.New("session: empty token")

// AuthAPI is the part of the identity service the manager needs. *authapi.Client implements it.
type AuthAPI interface {
	Verify(ctx context.Context, token string) error
	Me(ctx context.Context, token string) (*authapi.User, error)
}

// Navigator receives the post-login and post-logout redirects. *navigation.History implements it.
type Navigator interface {
	Push(path string)
}

// Manager is the session state machine. Subscribers are notified synchronously on the goroutine
// that caused the change. mu is never held across network calls or callbacks.
type Manager struct {
	store  storage.Store
	api    AuthAPI
	nav    Navigator
	logger *slog.Logger

	// tokenMu orders writes of TokenKey so a stale validation never removes a newer token.
	tokenMu sync.Mutex

	mu    sync.Mutex
	state State
	// gen increments on every token change; async results carrying an older gen are dropped.
	gen uint64

	bootOnce   sync.Once
	settled    chan struct{}
	settleOnce sync.Once

	changes observe.Subject[State]
}

// NewManager returns a Manager in the unauthenticated, not-yet-ready state. nav and logger may be nil.
func NewManager(store storage.Store, api AuthAPI, nav Navigator, logger *slog.Logger) *Manager {
	return &Manager{
		store:   store,
		api:     api,
		nav:     nav,
		logger:  logging.OrDiscard(logger),
		state:   State{Status: StatusUnauthenticated},
		settled: make(chan struct{}),
	}
}

// State returns a snapshot of the current session state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe registers fn for every state change and returns its unsubscribe function.
func (m *Manager) Subscribe(fn func(State)) (unsubscribe func()) {
	return m.changes.Subscribe(fn)
}

// Settled is closed once startup validation finished (or Login settled the manager first).
func (m *Manager) Settled() <-chan struct{} {
	return m.settled
}

// AuthHeaders returns the headers for the current token. See AuthHeaders.
func (m *Manager) AuthHeaders() map[string]string {
	return AuthHeaders(m.State().Token)
}

// Bootstrap restores the session from the persisted token. It runs once; later calls return
// immediately. Failures are absorbed: a rejected or unverifiable token is cleared and the
// session ends unauthenticated.
func (m *Manager) Bootstrap(ctx context.Context) {
	m.bootOnce.Do(func() { m.bootstrap(ctx) })
}

func (m *Manager) bootstrap(ctx context.Context) {
	token, err := m.store.Get(ctx, TokenKey)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		m.logger.Warn("session: read persisted token failed", "error", err)
	}
	if token == "" {
		m.settleAnonymous()
		return
	}

	gen, ok := m.beginValidation(token)
	if !ok {
		return
	}

	if err := m.api.Verify(ctx, token); err != nil {
		m.logger.Info("session: persisted token rejected", "error", err)
		m.invalidate(ctx, gen)
		return
	}

	user, err := m.api.Me(ctx, token)
	if err != nil {
		m.logger.Warn("session: profile fetch failed", "error", err)
		user = nil
	}
	m.finish(gen, State{Status: StatusAuthenticated, Token: token, User: user})
}

// beginValidation publishes validating for token unless something else already settled the
// manager (a Login racing startup).
func (m *Manager) beginValidation(token string) (uint64, bool) {
	m.mu.Lock()
	if m.state.Ready {
		m.mu.Unlock()
		return 0, false
	}
	m.gen++
	gen := m.gen
	m.state = State{Status: StatusValidating, Token: token}
	snap := m.state
	m.mu.Unlock()

	m.changes.Publish(snap)
	return gen, true
}

// invalidate clears the rejected token, publishes invalid, then settles unauthenticated.
func (m *Manager) invalidate(ctx context.Context, gen uint64) {
	m.tokenMu.Lock()
	if m.currentGen() == gen {
		if err := m.store.Remove(ctx, TokenKey); err != nil {
			m.logger.Error("session: clear persisted token failed", "error", err)
		}
	}
	m.tokenMu.Unlock()

	if !m.apply(gen, State{Status: StatusInvalid}) {
		return
	}
	m.finish(gen, State{Status: StatusUnauthenticated})
}

// finish applies st as the settled state if gen is still current, then closes Settled.
func (m *Manager) finish(gen uint64, st State) {
	st.Ready = true
	m.apply(gen, st)
	m.settle()
}

// apply replaces the state and notifies subscribers when gen is still current. While not
// yet ready, Ready is left false.
func (m *Manager) apply(gen uint64, st State) bool {
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return false
	}
	if m.state.Ready {
		st.Ready = true
	}
	m.state = st
	snap := m.state
	m.mu.Unlock()

	m.changes.Publish(snap)
	return true
}

// settleAnonymous settles unauthenticated unless a Login already settled the manager.
func (m *Manager) settleAnonymous() {
	m.mu.Lock()
	if m.state.Ready {
		m.mu.Unlock()
		m.settle()
		return
	}
	m.state = State{Status: StatusUnauthenticated, Ready: true}
	snap := m.state
	m.mu.Unlock()

	m.changes.Publish(snap)
	m.settle()
}

func (m *Manager) settle() {
	m.settleOnce.Do(func() { close(m.settled) })
}

func (m *Manager) currentGen() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen
}

// Login installs a token issued by the login exchange: it is persisted and trusted without
// re-validation. The profile is fetched best effort; a failure keeps the session authenticated
// with no user. Afterwards the navigator is sent to AdminPath, unless a later Login or Logout
// superseded this one while the profile was in flight.
func (m *Manager) Login(ctx context.Context, token string) error {
	if token == "" {
		return ErrEmptyToken
	}

	m.tokenMu.Lock()
	if err := m.store.Set(ctx, TokenKey, token); err != nil {
		m.logger.Error("session: persist token failed", "error", err)
	}
	gen, snap := m.swap(State{Status: StatusAuthenticated, Token: token, Ready: true})
	m.tokenMu.Unlock()
	m.changes.Publish(snap)
	m.settle()

	user, err := m.api.Me(ctx, token)
	switch {
	case err != nil:
		m.logger.Warn("session: profile fetch failed", "error", err)
	case !m.apply(gen, State{Status: StatusAuthenticated, Token: token, User: user, Ready: true}):
		m.logger.Debug("session: discarded stale profile")
	}

	if m.nav != nil && m.currentGen() == gen {
		m.nav.Push(AdminPath)
	}
	return nil
}

// Logout clears the token and user and sends the navigator to HomePath. Calling it while
// already logged out only repeats the redirect.
func (m *Manager) Logout(ctx context.Context) {
	m.tokenMu.Lock()
	if err := m.store.Remove(ctx, TokenKey); err != nil {
		m.logger.Error("session: clear persisted token failed", "error", err)
	}
	m.mu.Lock()
	changed := m.state.Status != StatusUnauthenticated || !m.state.Ready
	m.mu.Unlock()
	var snap State
	if changed {
		_, snap = m.swap(State{Status: StatusUnauthenticated, Ready: true})
	}
	m.tokenMu.Unlock()
	if changed {
		m.changes.Publish(snap)
	}
	m.settle()

	if m.nav != nil {
		m.nav.Push(HomePath)
	}
}

// swap unconditionally replaces the state under a new generation. The caller publishes the
// returned snapshot once it holds no locks.
func (m *Manager) swap(st State) (uint64, State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen++
	m.state = st
	return m.gen, m.state
}
