// Package gate decides what a view shows for the current session: a loading state, the view
// itself, the login form, or a forbidden notice.
package gate

import (
	"context"

	"event-analytics/client/internal/session"
)

// Decision is the outcome for one view.
type Decision string

const (
	Loading   Decision = "loading"
	Render    Decision = "render"
	Login     Decision = "login"
	Forbidden Decision = "forbidden"
)

// Views known to the client. Any other view is public.
const (
	ViewHome  = "home"
	ViewLogin = "login"
	ViewAdmin = "admin"
)

// Evaluator decides what view shows given st.
type Evaluator interface {
	Decide(ctx context.Context, view string, st session.State) Decision
}

// Rules is the built-in rule set, used directly and as the fallback when the policy engine fails.
//
// Public views always render. The admin view shows loading until the session has settled,
// asks for login unless authenticated, and is forbidden when a loaded profile is not a
// superuser. An authenticated session without a profile is trusted.
func Rules(view string, st session.State) Decision {
	if view != ViewAdmin {
		return Render
	}
	switch {
	case st.Loading():
		return Loading
	case st.Status != session.StatusAuthenticated:
		return Login
	case st.User != nil && !st.User.IsSuperuser:
		return Forbidden
	default:
		return Render
	}
}

// RulesEvaluator adapts Rules to Evaluator.
type RulesEvaluator struct{}

func (RulesEvaluator) Decide(_ context.Context, view string, st session.State) Decision {
	return Rules(view, st)
}
