package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleyhq/parley/pkg/auth"
	"github.com/parleyhq/parley/pkg/contextkeys"
	"github.com/parleyhq/parley/pkg/policy"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func requestAs(method, path string, p *auth.Principal) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	if p != nil {
		req = req.WithContext(contextkeys.WithPrincipal(req.Context(), p))
	}
	return req
}

func TestPolicyEnforcer(t *testing.T) {
	enforcer := NewPolicyEnforcer(policy.DefaultTable())
	handler := enforcer.Handler(okHandler())

	member := &auth.Principal{MemberID: 2, Name: "m", Capabilities: []auth.Capability{auth.CapabilityMember}}
	admin := &auth.Principal{MemberID: 1, Name: "a", Capabilities: []auth.Capability{auth.CapabilityMember, auth.CapabilityAdmin}}

	tests := []struct {
		name       string
		method     string
		path       string
		principal  *auth.Principal
		wantStatus int
	}{
		{"anonymous public read", http.MethodGet, "/api/v1/forums/1", nil, http.StatusOK},
		{"anonymous protected write", http.MethodPost, "/api/v1/forums/1/topics", nil, http.StatusUnauthorized},
		{"member protected write", http.MethodPost, "/api/v1/forums/1/topics", member, http.StatusOK},
		{"anonymous moderation", http.MethodPost, "/api/v1/moderation/warnings", nil, http.StatusUnauthorized},
		{"member moderation", http.MethodPost, "/api/v1/moderation/warnings", member, http.StatusForbidden},
		{"admin moderation", http.MethodPost, "/api/v1/moderation/warnings", admin, http.StatusOK},
		{"member admin surface", http.MethodDelete, "/api/v1/admin/members/9", member, http.StatusForbidden},
		{"admin admin surface", http.MethodDelete, "/api/v1/admin/members/9", admin, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, requestAs(tt.method, tt.path, tt.principal))
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

// The full pipeline: a public GET must succeed no matter what credential
// accompanies it.
func TestPipeline_PublicReadWithAnyCredential(t *testing.T) {
	f := newFixture(t, time.Hour)
	m := f.addMember(t, "alice")

	expired, err := f.codec.IssueWithTTL("1", -time.Minute)
	require.NoError(t, err)

	enforcer := NewPolicyEnforcer(policy.DefaultTable())
	handler := f.gateway.Handler(enforcer.Handler(okHandler()))

	headers := map[string]string{
		"no credential":   "",
		"valid token":     "Bearer " + f.tokenFor(t, m),
		"expired token":   "Bearer " + expired,
		"garbage token":   "Bearer %%%not-a-token%%%",
		"wrong scheme":    "Token abc",
		"tampered header": "Bearer ..",
	}
	for name, header := range headers {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/forums/3/topics/7", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusOK, rec.Code)
		})
	}
}

func TestPipeline_ProtectedRouteStatusCodes(t *testing.T) {
	f := newFixture(t, time.Hour)
	m := f.addMember(t, "bob")

	enforcer := NewPolicyEnforcer(policy.DefaultTable())
	handler := f.gateway.Handler(enforcer.Handler(okHandler()))

	// Anonymous hits 401, an authenticated non-admin hits 403 on the
	// moderation surface, and a plain authenticated route succeeds.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/moderation/warnings", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/moderation/warnings", nil)
	req.Header.Set("Authorization", "Bearer "+f.tokenFor(t, m))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/members/me", nil)
	req.Header.Set("Authorization", "Bearer "+f.tokenFor(t, m))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginThrottle(t *testing.T) {
	throttle := NewLoginThrottle(&ThrottleConfig{
		AttemptsPerWindow: 2,
		WindowDuration:    time.Hour, // no refill during the test
		BurstSize:         0,
	})
	handler := throttle.Handler(okHandler())

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, "attempt %d", i+1)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// A different client is unaffected.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestClientIP_ForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", clientIP(req))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.4:5678"
	assert.Equal(t, "192.0.2.4:5678", clientIP(req))
}
