package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleyhq/parley/pkg/auth"
	"github.com/parleyhq/parley/pkg/members"
	"github.com/parleyhq/parley/pkg/observability"
)

type fixture struct {
	store    *members.MemoryStore
	codec    *auth.TokenCodec
	resolver *auth.Resolver
	gateway  *Authenticator
}

func newFixture(t *testing.T, ttl time.Duration) *fixture {
	t.Helper()
	codec, err := auth.NewTokenCodec([]byte("test-signing-key"), ttl)
	require.NoError(t, err)

	store := members.NewMemoryStore()
	resolver := auth.NewResolver(store)
	logger := observability.NewLogger(observability.ErrorLevel, nil)

	return &fixture{
		store:    store,
		codec:    codec,
		resolver: resolver,
		gateway:  NewAuthenticator(codec, resolver, logger),
	}
}

func (f *fixture) addMember(t *testing.T, name string) *members.Member {
	t.Helper()
	m := &members.Member{Name: name, Email: name + "@example.com", Active: true}
	require.NoError(t, f.store.Create(context.Background(), m))
	return m
}

func (f *fixture) tokenFor(t *testing.T, m *members.Member) string {
	t.Helper()
	token, err := f.codec.Issue(strconv.FormatInt(m.ID, 10))
	require.NoError(t, err)
	return token
}

// principalCapture records what the downstream handler saw
func principalCapture(captured **auth.Principal) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*captured = GetPrincipal(r)
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticator_ValidToken(t *testing.T) {
	f := newFixture(t, time.Hour)
	m := f.addMember(t, "alice")

	var got *auth.Principal
	handler := f.gateway.Handler(principalCapture(&got))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/members/me", nil)
	req.Header.Set("Authorization", "Bearer "+f.tokenFor(t, m))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got)
	assert.Equal(t, m.ID, got.MemberID)
	assert.Equal(t, "alice", got.Name)
}

func TestAuthenticator_AnonymousPassesThrough(t *testing.T) {
	f := newFixture(t, time.Hour)

	tests := []struct {
		name   string
		header string
	}{
		{"no credential", ""},
		{"wrong scheme", "Basic dXNlcjpwYXNz"},
		{"empty bearer", "Bearer "},
		{"garbage token", "Bearer not.a.token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got *auth.Principal
			handler := f.gateway.Handler(principalCapture(&got))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/members/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code, "gateway must never reject")
			assert.Nil(t, got)
		})
	}
}

func TestAuthenticator_ExpiredToken(t *testing.T) {
	f := newFixture(t, time.Hour)
	m := f.addMember(t, "bob")

	token, err := f.codec.IssueWithTTL(strconv.FormatInt(m.ID, 10), -time.Minute)
	require.NoError(t, err)

	var got *auth.Principal
	handler := f.gateway.Handler(principalCapture(&got))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/members/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, got, "expired token must downgrade to anonymous")
}

func TestAuthenticator_TamperedToken(t *testing.T) {
	f := newFixture(t, time.Hour)
	m := f.addMember(t, "carol")

	other, err := auth.NewTokenCodec([]byte("other-key"), time.Hour)
	require.NoError(t, err)
	token, err := other.Issue(strconv.FormatInt(m.ID, 10))
	require.NoError(t, err)

	var got *auth.Principal
	handler := f.gateway.Handler(principalCapture(&got))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/members/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Nil(t, got, "foreign-key token must downgrade to anonymous")
}

func TestAuthenticator_RevokedToken(t *testing.T) {
	f := newFixture(t, time.Hour)
	m := f.addMember(t, "dave")
	list := auth.NewMemoryRevocationList()
	f.gateway.WithRevocationList(list)

	token := f.tokenFor(t, m)
	claims, err := f.codec.Verify(token)
	require.NoError(t, err)
	require.NoError(t, list.Revoke(context.Background(), claims.TokenID(), time.Hour))

	var got *auth.Principal
	handler := f.gateway.Handler(principalCapture(&got))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/members/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, got, "revoked token must downgrade to anonymous")
}

func TestAuthenticator_BannedSubject(t *testing.T) {
	f := newFixture(t, time.Hour)
	m := f.addMember(t, "eve")
	token := f.tokenFor(t, m)

	// Ban lands after the token was issued; the token still verifies but
	// the subject must stop resolving.
	_, err := f.store.SetBan(context.Background(), m.ID, "spam", time.Now().Add(time.Hour))
	require.NoError(t, err)

	var got *auth.Principal
	handler := f.gateway.Handler(principalCapture(&got))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/members/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Nil(t, got)
}

func TestAuthenticator_SkipRules(t *testing.T) {
	f := newFixture(t, time.Hour)
	m := f.addMember(t, "frank")

	var got *auth.Principal
	handler := f.gateway.Handler(principalCapture(&got))

	// Public GET is skipped even with a valid credential attached.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/forums/1/topics", nil)
	req.Header.Set("Authorization", "Bearer "+f.tokenFor(t, m))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, got, "skip rule must bypass authentication entirely")

	// Garbage credential on a skipped path must not matter either.
	got = nil
	req = httptest.NewRequest(http.MethodGet, "/api/v1/forums", nil)
	req.Header.Set("Authorization", "Bearer ;;;garbage;;;")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, got)

	// The same prefix with a write method is not skipped.
	got = nil
	req = httptest.NewRequest(http.MethodPost, "/api/v1/forums/1/topics", nil)
	req.Header.Set("Authorization", "Bearer "+f.tokenFor(t, m))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.NotNil(t, got, "non-GET on a GET-only skip prefix must authenticate")
	assert.Equal(t, m.ID, got.MemberID)

	// Login and register are skipped for any method; a stale credential on
	// a login attempt must not be resolved.
	got = nil
	req = httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	req.Header.Set("Authorization", "Bearer "+f.tokenFor(t, m))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, got)

	// Logout shares the prefix path segment but is not exempt.
	got = nil
	req = httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+f.tokenFor(t, m))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.NotNil(t, got, "logout must still authenticate")
}

func TestSkipRule_PrefixBoundary(t *testing.T) {
	rule := SkipRule{Prefix: "/api/v1/forums", GETOnly: true}

	assert.True(t, rule.Matches(http.MethodGet, "/api/v1/forums"))
	assert.True(t, rule.Matches(http.MethodGet, "/api/v1/forums/3"))
	assert.False(t, rule.Matches(http.MethodGet, "/api/v1/forumsx"))
	assert.False(t, rule.Matches(http.MethodDelete, "/api/v1/forums/3"))
	// GET-only means GET literally, matching how policy rules compare
	// methods; HEAD is not part of the public surface.
	assert.False(t, rule.Matches(http.MethodHead, "/api/v1/forums/3"))
}

func TestExtractBearer(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
		ok     bool
	}{
		{"standard", "Bearer abc.def.ghi", "abc.def.ghi", true},
		{"lowercase scheme", "bearer abc", "abc", true},
		{"trailing space", "Bearer abc ", "abc", true},
		{"missing", "", "", false},
		{"scheme only", "Bearer", "", false},
		{"blank token", "Bearer   ", "", false},
		{"basic auth", "Basic abc", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			got, ok := ExtractBearer(r)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
