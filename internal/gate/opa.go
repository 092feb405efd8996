package gate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"

	"event-analytics/client/internal/logging"
	"event-analytics/client/internal/session"
)

const decisionQuery = "data.analytics.gate.decision"

// DefaultPolicy mirrors Rules.
const DefaultPolicy = `package analytics.gate

default decision := "render"

protected_views := {"admin"}

protected if input.view in protected_views

loading if not input.session.ready

loading if input.session.status == "validating"

decision := "loading" if {
	protected
	loading
}

decision := "login" if {
	protected
	not loading
	input.session.status != "authenticated"
}

decision := "forbidden" if {
	protected
	not loading
	input.session.status == "authenticated"
	input.session.has_user
	not input.session.is_superuser
}
`

// OPAEvaluator evaluates a Rego gate policy. Evaluation failures fall back to Rules.
type OPAEvaluator struct {
	query  rego.PreparedEvalQuery
	logger *slog.Logger
}

// NewOPAEvaluator compiles DefaultPolicy. logger may be nil.
func NewOPAEvaluator(ctx context.Context, logger *slog.Logger) (*OPAEvaluator, error) {
	return NewOPAEvaluatorWithPolicy(ctx, DefaultPolicy, logger)
}

// NewOPAEvaluatorWithPolicy compiles policy, which must define data.analytics.gate.decision.
func NewOPAEvaluatorWithPolicy(ctx context.Context, policy string, logger *slog.Logger) (*OPAEvaluator, error) {
	compiler, err := ast.CompileModules(map[string]string{"gate.rego": policy})
	if err != nil {
		return nil, fmt.Errorf("gate: compile policy: %w", err)
	}
	query, err := rego.New(
		rego.Query(decisionQuery),
		rego.Compiler(compiler),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("gate: prepare policy: %w", err)
	}
	return &OPAEvaluator{query: query, logger: logging.OrDiscard(logger)}, nil
}

// Decide evaluates the policy for view and st.
func (e *OPAEvaluator) Decide(ctx context.Context, view string, st session.State) Decision {
	d, err := e.eval(ctx, view, st)
	if err != nil {
		e.logger.Warn("gate: policy evaluation failed, using built-in rules", "view", view, "error", err)
		return Rules(view, st)
	}
	return d
}

func (e *OPAEvaluator) eval(ctx context.Context, view string, st session.State) (Decision, error) {
	rs, err := e.query.Eval(ctx, rego.EvalInput(buildInput(view, st)))
	if err != nil {
		return "", err
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return "", fmt.Errorf("policy query returned no result")
	}
	s, ok := rs[0].Expressions[0].Value.(string)
	if !ok {
		return "", fmt.Errorf("policy decision is %T, want string", rs[0].Expressions[0].Value)
	}
	switch d := Decision(s); d {
	case Loading, Render, Login, Forbidden:
		return d, nil
	default:
		return "", fmt.Errorf("unknown policy decision %q", s)
	}
}

func buildInput(view string, st session.State) map[string]interface{} {
	return map[string]interface{}{
		"view": view,
		"session": map[string]interface{}{
			"ready":         st.Ready,
			"status":        string(st.Status),
			"has_user":      st.User != nil,
			"is_superuser":  st.IsSuperuser(),
			"authenticated": st.Authenticated(),
		},
	}
}
