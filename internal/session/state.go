package session

import "event-analytics/client/internal/authapi"

// Status is the lifecycle position of the auth session.
type Status string

const (
	StatusUnauthenticated Status = "unauthenticated"
	StatusValidating      Status = "validating"
	StatusAuthenticated   Status = "authenticated"
	StatusInvalid         Status = "invalid"
)

// State is the observable {status, user} pair plus the bearer token.
//
// Token is non-empty exactly when Status is validating or authenticated. User is nil unless
// Status is authenticated; an authenticated session may still have a nil User when the
// profile fetch failed.
type State struct {
	Status Status
	Token  string
	User   *authapi.User
	// Ready is false until startup validation has settled.
	Ready bool
}

// Loading reports whether gated views must show a loading state.
func (s State) Loading() bool {
	return !s.Ready || s.Status == StatusValidating
}

// Authenticated reports whether the session holds a trusted token.
func (s State) Authenticated() bool {
	return s.Status == StatusAuthenticated && s.Token != ""
}

// IsSuperuser reports whether the loaded profile, if any, is a superuser.
func (s State) IsSuperuser() bool {
	return s.User != nil && s.User.IsSuperuser
}

// AuthHeaders returns the request headers for token: Content-Type always, Authorization
// only when token is non-empty.
func AuthHeaders(token string) map[string]string {
	h := map[string]string{"Content-Type": "application/json"}
	if token != "" {
		h["Authorization"] = "Bearer " + token
	}
	return h
}
