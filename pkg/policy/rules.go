package policy

import (
	"fmt"
	"strings"

	"github.com/parleyhq/parley/pkg/auth"
)

// Access is the kind of requirement a rule imposes
type Access string

const (
	// AccessPublic allows any request, authenticated or not
	AccessPublic Access = "public"
	// AccessAuthenticated allows any request carrying a resolved principal
	AccessAuthenticated Access = "authenticated"
	// AccessCapability allows only principals holding the rule's capability
	AccessCapability Access = "capability"
)

// MethodAny matches every HTTP method
const MethodAny = "*"

// Rule maps a method and path pattern to an access requirement.
// A path pattern is either an exact path or a prefix pattern ending in
// "/*", which matches the prefix itself and everything beneath it.
type Rule struct {
	Method     string          `yaml:"method"`
	Path       string          `yaml:"path"`
	Access     Access          `yaml:"access"`
	Capability auth.Capability `yaml:"capability,omitempty"`
}

// Matches reports whether the rule applies to the given method and path
func (r Rule) Matches(method, path string) bool {
	if r.Method != MethodAny && !strings.EqualFold(r.Method, method) {
		return false
	}
	return pathMatches(r.Path, path)
}

func pathMatches(pattern, path string) bool {
	if strings.HasSuffix(pattern, "/*") {
		base := strings.TrimSuffix(pattern, "/*")
		return path == base || strings.HasPrefix(path, base+"/")
	}
	return path == pattern
}

// Validate checks that the rule is well formed
func (r Rule) Validate() error {
	if r.Method == "" {
		return fmt.Errorf("rule for %q: method must not be empty (use %q for any)", r.Path, MethodAny)
	}
	if !strings.HasPrefix(r.Path, "/") {
		return fmt.Errorf("rule path %q must start with /", r.Path)
	}
	switch r.Access {
	case AccessPublic, AccessAuthenticated:
		if r.Capability != "" {
			return fmt.Errorf("rule %s %s: capability set but access is %q", r.Method, r.Path, r.Access)
		}
	case AccessCapability:
		if r.Capability == "" {
			return fmt.Errorf("rule %s %s: access %q requires a capability name", r.Method, r.Path, r.Access)
		}
	default:
		return fmt.Errorf("rule %s %s: unknown access %q", r.Method, r.Path, r.Access)
	}
	return nil
}
