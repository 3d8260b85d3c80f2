package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/parleyhq/parley/pkg/auth"
)

// Decision is the outcome of evaluating a request against the table
type Decision struct {
	// Allowed reports whether the request may proceed
	Allowed bool
	// RequiresAuth is set on denials that would succeed with a valid
	// principal; callers use it to pick 401 over 403
	RequiresAuth bool
	// Reason describes the decision for logs and error bodies
	Reason string
	// Rule is the rule that produced the decision, nil for fallbacks
	Rule *Rule
}

// Table is an ordered authorization rule table. Tables are immutable after
// construction and safe for concurrent use.
type Table struct {
	public       []Rule
	capability   []Rule
	authOnly     []Rule
	allowUnknown bool
}

// NewTable validates the rules and partitions them by access tier.
// Order within a tier is preserved; the first matching rule in a tier wins.
func NewTable(rules []Rule) (*Table, error) {
	t := &Table{}
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		switch r.Access {
		case AccessPublic:
			t.public = append(t.public, r)
		case AccessCapability:
			t.capability = append(t.capability, r)
		case AccessAuthenticated:
			t.authOnly = append(t.authOnly, r)
		}
	}
	return t, nil
}

// Evaluate decides whether the principal may perform method on path.
// A nil principal is an anonymous request. Precedence: public rules, then
// capability rules, then authenticated rules, then the authenticated
// fallback, then deny.
func (t *Table) Evaluate(method, path string, p *auth.Principal) Decision {
	for i := range t.public {
		if t.public[i].Matches(method, path) {
			return Decision{Allowed: true, Reason: "public", Rule: &t.public[i]}
		}
	}
	for i := range t.capability {
		r := &t.capability[i]
		if !r.Matches(method, path) {
			continue
		}
		if p == nil {
			return Decision{
				RequiresAuth: true,
				Reason:       fmt.Sprintf("capability %q required", r.Capability),
				Rule:         r,
			}
		}
		if !p.HasCapability(r.Capability) {
			return Decision{
				Reason: fmt.Sprintf("capability %q required", r.Capability),
				Rule:   r,
			}
		}
		return Decision{Allowed: true, Reason: string(r.Capability), Rule: r}
	}
	for i := range t.authOnly {
		r := &t.authOnly[i]
		if !r.Matches(method, path) {
			continue
		}
		if p == nil {
			return Decision{RequiresAuth: true, Reason: "authentication required", Rule: r}
		}
		return Decision{Allowed: true, Reason: "authenticated", Rule: r}
	}
	if p != nil {
		return Decision{Allowed: true, Reason: "authenticated fallback"}
	}
	return Decision{RequiresAuth: true, Reason: "no matching rule; authentication required"}
}

type tableFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadFile reads a rule table from a YAML file of the form:
//
//	rules:
//	  - method: GET
//	    path: /api/v1/forums/*
//	    access: public
//	  - method: "*"
//	    path: /api/v1/admin/*
//	    access: capability
//	    capability: admin
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse policy file %s: %w", path, err)
	}
	if len(f.Rules) == 0 {
		return nil, fmt.Errorf("policy file %s contains no rules", path)
	}
	return NewTable(f.Rules)
}

// DefaultTable returns the built-in rule table for the forum API
func DefaultTable() *Table {
	t, err := NewTable(DefaultRules())
	if err != nil {
		// The built-in rules are validated by tests; this is unreachable
		// short of a bad edit.
		panic(err)
	}
	return t
}

// DefaultRules returns the rules behind DefaultTable, exported so the
// table can be dumped or extended.
func DefaultRules() []Rule {
	return []Rule{
		{Method: "GET", Path: "/healthz", Access: AccessPublic},
		{Method: "GET", Path: "/readyz", Access: AccessPublic},
		{Method: "GET", Path: "/metrics", Access: AccessPublic},
		{Method: "POST", Path: "/api/v1/auth/register", Access: AccessPublic},
		{Method: "POST", Path: "/api/v1/auth/login", Access: AccessPublic},
		{Method: "GET", Path: "/api/v1/forums", Access: AccessPublic},
		{Method: "GET", Path: "/api/v1/forums/*", Access: AccessPublic},
		{Method: MethodAny, Path: "/api/v1/admin/*", Access: AccessCapability, Capability: auth.CapabilityAdmin},
		{Method: MethodAny, Path: "/api/v1/moderation/*", Access: AccessCapability, Capability: auth.CapabilityAdmin},
		{Method: "POST", Path: "/api/v1/auth/logout", Access: AccessAuthenticated},
		{Method: "GET", Path: "/api/v1/members/me", Access: AccessAuthenticated},
		{Method: MethodAny, Path: "/api/v1/warnings/*", Access: AccessAuthenticated},
		{Method: "GET", Path: "/api/v1/warnings", Access: AccessAuthenticated},
	}
}
