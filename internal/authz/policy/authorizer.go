// Package policy authorizes identities against named claim policies.
package policy

import (
	"errors"
	"fmt"

	"apikeyauth/internal/authz"
	"apikeyauth/internal/observability/logging"
	"apikeyauth/internal/observability/metrics"

	"github.com/samber/lo"
)

// ErrUnknownPolicy is returned for a policy name that was never configured
var ErrUnknownPolicy = errors.New("unknown authorization policy")

// Requirement demands a claim. With Values set, the identity must carry at
// least one of them.
type Requirement struct {
	Claim  string   `mapstructure:"claim"`
	Values []string `mapstructure:"values"`
}

// Policy is a named set of requirements that must all hold
type Policy struct {
	Name    string        `mapstructure:"name"`
	Require []Requirement `mapstructure:"require"`
}

// DefaultPolicies returns the policies available when none are configured
func DefaultPolicies() []Policy {
	return []Policy{
		{Name: "TestPolicy", Require: []Requirement{{Claim: "TestClaim"}}},
	}
}

// Authorizer evaluates claim policies in process
type Authorizer struct {
	policies map[string]Policy
	logger   *logging.Logger
	metrics  *metrics.Collector
}

var _ authz.Authorizer = (*Authorizer)(nil)

// New creates an authorizer. Policy names must be unique and every
// requirement must name a claim.
func New(policies []Policy, logger *logging.Logger, metrics *metrics.Collector) (*Authorizer, error) {
	if dup := lo.FindDuplicatesBy(policies, func(p Policy) string { return p.Name }); len(dup) > 0 {
		return nil, fmt.Errorf("duplicate policy %q", dup[0].Name)
	}

	for _, p := range policies {
		if p.Name == "" {
			return nil, fmt.Errorf("policy name is required")
		}
		if lo.SomeBy(p.Require, func(r Requirement) bool { return r.Claim == "" }) {
			return nil, fmt.Errorf("policy %q: every requirement needs a claim", p.Name)
		}
	}

	return &Authorizer{
		policies: lo.KeyBy(policies, func(p Policy) string { return p.Name }),
		logger:   logger.WithModule("authz.policy"),
		metrics:  metrics,
	}, nil
}

// Authorize checks the identity against req.Policy
func (a *Authorizer) Authorize(req *authz.Request) *authz.Response {
	label := req.Policy
	if label == "" {
		label = "authenticated"
	}

	resp := a.evaluate(req)
	a.metrics.RecordAuthorization(label, resp.Decision.String())
	return resp
}

func (a *Authorizer) evaluate(req *authz.Request) *authz.Response {
	if req.Identity == nil {
		return &authz.Response{
			Decision: authz.Unauthorized,
			Reason:   "No identity provided",
		}
	}

	if req.Policy == "" {
		return &authz.Response{Decision: authz.Allow, Reason: "Authenticated"}
	}

	policy, ok := a.policies[req.Policy]
	if !ok {
		a.logger.Error("Authorization policy not configured", "policy", req.Policy)
		return &authz.Response{
			Decision: authz.Error,
			Reason:   "Error checking permission",
			Error:    fmt.Errorf("%w: %s", ErrUnknownPolicy, req.Policy),
		}
	}

	missing, found := lo.Find(policy.Require, func(r Requirement) bool {
		return !req.Identity.HasClaim(r.Claim, r.Values...)
	})
	if found {
		return &authz.Response{
			Decision: authz.Deny,
			Reason:   fmt.Sprintf("Missing claim %s", missing.Claim),
		}
	}

	return &authz.Response{Decision: authz.Allow, Reason: "Permission granted"}
}
