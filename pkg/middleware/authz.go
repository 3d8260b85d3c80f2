package middleware

import (
	"net/http"

	"github.com/parleyhq/parley/pkg/httputil"
	"github.com/parleyhq/parley/pkg/observability"
	"github.com/parleyhq/parley/pkg/policy"
)

// PolicyEnforcer rejects requests the policy table denies. It runs after
// the authentication gateway so the principal (or its absence) is already
// on the context.
type PolicyEnforcer struct {
	table   *policy.Table
	metrics *observability.Metrics
}

// NewPolicyEnforcer creates an enforcer over the given table
func NewPolicyEnforcer(table *policy.Table) *PolicyEnforcer {
	return &PolicyEnforcer{table: table}
}

// WithMetrics enables decision counters
func (e *PolicyEnforcer) WithMetrics(m *observability.Metrics) *PolicyEnforcer {
	e.metrics = m
	return e
}

// Handler wraps an HTTP handler with policy enforcement. Denials for
// anonymous requests get 401 so clients know a credential would help;
// denials for authenticated principals get 403.
func (e *PolicyEnforcer) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal := GetPrincipal(r)
		decision := e.table.Evaluate(r.Method, r.URL.Path, principal)

		if decision.Allowed {
			e.count("allow")
			next.ServeHTTP(w, r)
			return
		}

		logger := observability.FromContext(r.Context()).WithFields(map[string]interface{}{
			"method": r.Method,
			"path":   r.URL.Path,
			"reason": decision.Reason,
		})

		if principal == nil && decision.RequiresAuth {
			e.count("deny_unauthenticated")
			logger.Debug("request denied: authentication required")
			httputil.WriteUnauthorized(w, "authentication required")
			return
		}

		e.count("deny_forbidden")
		if principal != nil {
			logger = logger.WithField("member_id", principal.MemberID)
		}
		logger.Info("request denied by policy")
		httputil.WriteForbidden(w, decision.Reason)
	})
}

func (e *PolicyEnforcer) count(outcome string) {
	if e.metrics != nil {
		e.metrics.PolicyDecisionsTotal.WithLabelValues(outcome).Inc()
	}
}
