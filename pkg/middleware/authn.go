package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/parleyhq/parley/pkg/auth"
	"github.com/parleyhq/parley/pkg/contextkeys"
	"github.com/parleyhq/parley/pkg/observability"
)

// SkipRule exempts a path prefix from authentication. Matching requests
// pass through the gateway untouched, even when they carry a credential;
// they reach the policy layer as anonymous.
type SkipRule struct {
	// Prefix matches the path itself and everything beneath it
	Prefix string
	// GETOnly restricts the exemption to GET requests, mirroring the
	// policy table's literal method matching
	GETOnly bool
}

// Matches reports whether the rule exempts the given method and path
func (s SkipRule) Matches(method, path string) bool {
	if s.GETOnly && method != http.MethodGet {
		return false
	}
	return path == s.Prefix || strings.HasPrefix(path, s.Prefix+"/")
}

// DefaultSkipRules exempts the operational endpoints, the credential
// endpoints that necessarily run without a principal, and the public
// read-only forum surface.
func DefaultSkipRules() []SkipRule {
	return []SkipRule{
		{Prefix: "/healthz"},
		{Prefix: "/readyz"},
		{Prefix: "/metrics"},
		{Prefix: "/api/v1/auth/register"},
		{Prefix: "/api/v1/auth/login"},
		{Prefix: "/api/v1/forums", GETOnly: true},
	}
}

// Authenticator is the authentication gateway. It extracts the bearer
// token, verifies it, checks the revocation list, resolves the subject
// to a principal, and attaches the principal to the request context.
type Authenticator struct {
	codec       *auth.TokenCodec
	resolver    *auth.Resolver
	revocations auth.RevocationList
	skip        []SkipRule
	logger      *observability.Logger
	metrics     *observability.Metrics
	now         func() time.Time
}

// NewAuthenticator creates a gateway with the default skip rules and no
// revocation list.
func NewAuthenticator(codec *auth.TokenCodec, resolver *auth.Resolver, logger *observability.Logger) *Authenticator {
	return &Authenticator{
		codec:    codec,
		resolver: resolver,
		skip:     DefaultSkipRules(),
		logger:   logger,
		now:      time.Now,
	}
}

// WithRevocationList enables deny-list checks between verification and
// resolution. A revoked token is treated as anonymous.
func (a *Authenticator) WithRevocationList(list auth.RevocationList) *Authenticator {
	a.revocations = list
	return a
}

// WithSkipRules replaces the public allow-list
func (a *Authenticator) WithSkipRules(rules []SkipRule) *Authenticator {
	a.skip = rules
	return a
}

// WithMetrics enables verification and resolution counters
func (a *Authenticator) WithMetrics(m *observability.Metrics) *Authenticator {
	a.metrics = m
	return a
}

// Handler wraps an HTTP handler with authentication. The wrapped handler
// always runs; the only question is whether a principal is attached.
func (a *Authenticator) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, rule := range a.skip {
			if rule.Matches(r.Method, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
		}

		if principal := a.authenticate(r); principal != nil {
			ctx := contextkeys.WithPrincipal(r.Context(), principal)
			r = r.WithContext(ctx)
		}
		next.ServeHTTP(w, r)
	})
}

// authenticate returns the resolved principal or nil for anonymous.
// It never fails the request: every error path logs and returns nil,
// and a panic below it is contained the same way.
func (a *Authenticator) authenticate(r *http.Request) (principal *auth.Principal) {
	defer func() {
		if rec := recover(); rec != nil {
			observability.FromContext(r.Context()).
				WithField("panic", rec).
				Error("authentication gateway panicked; continuing as anonymous")
			principal = nil
		}
	}()

	token, ok := ExtractBearer(r)
	if !ok {
		return nil
	}

	logger := observability.FromContext(r.Context())

	claims, err := a.codec.Verify(token)
	if err != nil {
		a.countVerify(verifyOutcome(err))
		logger.WithError(err).Debug("token rejected")
		return nil
	}

	if a.revocations != nil {
		revoked, err := a.revocations.IsRevoked(r.Context(), claims.TokenID())
		if err != nil {
			// Deny-list unavailable: fail closed for this credential.
			logger.WithError(err).Warn("revocation check failed; treating token as anonymous")
			return nil
		}
		if revoked {
			a.countVerify("revoked")
			logger.WithField("token_id", claims.TokenID()).Debug("token revoked")
			return nil
		}
	}
	a.countVerify("ok")

	p, err := a.resolver.Resolve(r.Context(), claims.Subject)
	if err != nil {
		a.countResolution("not_found")
		logger.WithError(err).WithField("subject", claims.Subject).Debug("subject did not resolve")
		return nil
	}
	a.countResolution("ok")
	return p
}

func (a *Authenticator) countVerify(outcome string) {
	if a.metrics != nil {
		a.metrics.TokenVerifyTotal.WithLabelValues(outcome).Inc()
	}
}

func (a *Authenticator) countResolution(outcome string) {
	if a.metrics != nil {
		a.metrics.PrincipalResolutions.WithLabelValues(outcome).Inc()
	}
}

func verifyOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case err == auth.ErrTokenExpired:
		return "expired"
	case err == auth.ErrTokenBadSignature:
		return "bad_signature"
	default:
		return "malformed"
	}
}

// ExtractBearer pulls the token out of the Authorization header.
// The scheme comparison is case-insensitive; surrounding whitespace on
// the token is trimmed.
func ExtractBearer(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}

// GetPrincipal extracts the resolved principal from a request, or nil
// when the request is anonymous.
func GetPrincipal(r *http.Request) *auth.Principal {
	return PrincipalFromContext(r.Context())
}

// PrincipalFromContext extracts the resolved principal from a context
func PrincipalFromContext(ctx context.Context) *auth.Principal {
	p, ok := ctx.Value(contextkeys.PrincipalKey).(*auth.Principal)
	if !ok {
		return nil
	}
	return p
}
