package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
)

const allowQuery = "data.authgate.rpc.allow"

// DefaultRPCPolicy allows ADMIN everything and USER everything except admin-only methods.
const DefaultRPCPolicy = `package authgate.rpc

default allow := false

admin_methods := {
	"/authgate.audit.v1.AuditService/ListAuditLogs",
	"/authgate.user.v1.UserService/GetUser",
	"/authgate.user.v1.UserService/DeleteUser",
}

allow if {
	input.role == "ADMIN"
}

allow if {
	input.role == "USER"
	not admin_methods[input.method]
}
`

// OPAEvaluator evaluates the RPC role policy with an in-process OPA Rego engine.
// The query is prepared once; Allow is safe for concurrent use.
type OPAEvaluator struct {
	query rego.PreparedEvalQuery
}

var _ Evaluator = (*OPAEvaluator)(nil)

// NewOPAEvaluator compiles module (DefaultRPCPolicy when empty) and prepares the allow query.
func NewOPAEvaluator(ctx context.Context, module string) (*OPAEvaluator, error) {
	if module == "" {
		module = DefaultRPCPolicy
	}
	compiler, err := ast.CompileModules(map[string]string{"rpc.rego": module})
	if err != nil {
		return nil, fmt.Errorf("compile rpc policy: %w", err)
	}
	pq, err := rego.New(
		rego.Query(allowQuery),
		rego.Compiler(compiler),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare rpc policy: %w", err)
	}
	return &OPAEvaluator{query: pq}, nil
}

// Allow evaluates the policy for the given method and role. An undefined or non-boolean result denies.
func (e *OPAEvaluator) Allow(ctx context.Context, fullMethod, role string) (bool, error) {
	if e == nil {
		return false, errors.New("policy evaluator not configured")
	}
	input := map[string]interface{}{
		"method": fullMethod,
		"role":   role,
	}
	rs, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, fmt.Errorf("eval rpc policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, nil
	}
	allowed, ok := rs[0].Expressions[0].Value.(bool)
	if !ok {
		return false, fmt.Errorf("rpc policy returned %T, want bool", rs[0].Expressions[0].Value)
	}
	return allowed, nil
}

// HealthCheck evaluates the prepared policy against a minimal input. Returns nil on success.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	if e == nil {
		return errors.New("policy evaluator not configured")
	}
	rs, err := e.query.Eval(ctx, rego.EvalInput(map[string]interface{}{"method": "", "role": ""}))
	if err != nil {
		return fmt.Errorf("eval rpc policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return errors.New("policy query returned no result")
	}
	return nil
}
