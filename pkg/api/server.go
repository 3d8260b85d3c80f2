package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/parleyhq/parley/pkg/audit"
	"github.com/parleyhq/parley/pkg/auth"
	"github.com/parleyhq/parley/pkg/contextkeys"
	"github.com/parleyhq/parley/pkg/httputil"
	"github.com/parleyhq/parley/pkg/members"
	"github.com/parleyhq/parley/pkg/middleware"
	"github.com/parleyhq/parley/pkg/moderation"
	"github.com/parleyhq/parley/pkg/observability"
	"github.com/parleyhq/parley/pkg/policy"
)

const maxRequestBodyBytes = 1 << 20 // 1 MiB

// Options configures a Server. Members, Codec, Hasher, and Engine are
// required; everything else has a working default.
type Options struct {
	Members members.Store
	Codec   *auth.TokenCodec
	Hasher  auth.PasswordHasher
	Engine  *moderation.Engine

	// Content backs the forum endpoints; defaults to an empty in-memory store
	Content ContentStore
	// Revocations enables logout-driven token revocation
	Revocations auth.RevocationList
	// Policy overrides the built-in rule table
	Policy *policy.Table
	// Recorder receives audit events; defaults to a no-op
	Recorder audit.Recorder
	// Metrics enables counters across the pipeline
	Metrics *observability.Metrics
	// Logger defaults to an info-level stdout logger
	Logger *observability.Logger
	// LoginThrottle guards the credential-presenting endpoints
	LoginThrottle *middleware.LoginThrottle
}

// Server is the HTTP API server
type Server struct {
	router        *mux.Router
	members       members.Store
	codec         *auth.TokenCodec
	hasher        auth.PasswordHasher
	engine        *moderation.Engine
	content       ContentStore
	revocations   auth.RevocationList
	policy        *policy.Table
	recorder      audit.Recorder
	metrics       *observability.Metrics
	logger        *observability.Logger
	loginThrottle *middleware.LoginThrottle
}

// NewServer creates an API server and registers its routes
func NewServer(opts Options) *Server {
	s := &Server{
		router:        mux.NewRouter(),
		members:       opts.Members,
		codec:         opts.Codec,
		hasher:        opts.Hasher,
		engine:        opts.Engine,
		content:       opts.Content,
		revocations:   opts.Revocations,
		policy:        opts.Policy,
		recorder:      opts.Recorder,
		metrics:       opts.Metrics,
		logger:        opts.Logger,
		loginThrottle: opts.LoginThrottle,
	}
	if s.content == nil {
		s.content = NewMemoryContentStore()
	}
	if s.policy == nil {
		s.policy = policy.DefaultTable()
	}
	if s.recorder == nil {
		s.recorder = audit.NopRecorder{}
	}
	if s.logger == nil {
		s.logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	login := http.Handler(http.HandlerFunc(s.login))
	register := http.Handler(http.HandlerFunc(s.register))
	if s.loginThrottle != nil {
		login = s.loginThrottle.Handler(login)
		register = s.loginThrottle.Handler(register)
	}

	// Account routes
	s.router.Handle("/api/v1/auth/register", register).Methods("POST")
	s.router.Handle("/api/v1/auth/login", login).Methods("POST")
	s.router.HandleFunc("/api/v1/auth/logout", s.logout).Methods("POST")
	s.router.HandleFunc("/api/v1/members/me", s.me).Methods("GET")

	// Member-facing warning routes
	s.router.HandleFunc("/api/v1/warnings", s.listOwnWarnings).Methods("GET")
	s.router.HandleFunc("/api/v1/warnings/{id}/ack", s.acknowledgeWarning).Methods("POST")

	// Moderation routes (admin capability via policy)
	s.router.HandleFunc("/api/v1/moderation/warnings", s.issueWarning).Methods("POST")
	s.router.HandleFunc("/api/v1/moderation/members/{id}/warnings", s.listMemberWarnings).Methods("GET")
	s.router.HandleFunc("/api/v1/moderation/members/{id}/state", s.memberState).Methods("GET")

	// Admin routes
	s.router.HandleFunc("/api/v1/admin/members/{id}/unban", s.unbanMember).Methods("POST")
	s.router.HandleFunc("/api/v1/admin/members/{id}/deactivate", s.deactivateMember).Methods("POST")

	// Forum content routes
	s.router.HandleFunc("/api/v1/forums", s.listForums).Methods("GET")
	s.router.HandleFunc("/api/v1/forums/{forum}", s.getForum).Methods("GET")
	s.router.HandleFunc("/api/v1/forums/{forum}/topics", s.listTopics).Methods("GET")
	s.router.HandleFunc("/api/v1/forums/{forum}/topics", s.createTopic).Methods("POST")
	s.router.HandleFunc("/api/v1/forums/{forum}/topics/{topic}", s.getTopic).Methods("GET")
	s.router.HandleFunc("/api/v1/forums/{forum}/topics/{topic}/replies", s.createReply).Methods("POST")
}

// ServeHTTP implements http.Handler over the bare router, without the
// middleware pipeline. Use Handler for the full chain.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler assembles the full middleware pipeline around the router:
// request ID, logging, panic recovery, body limit, authentication, and
// policy enforcement.
func (s *Server) Handler() http.Handler {
	resolver := auth.NewResolver(s.members)
	gateway := middleware.NewAuthenticator(s.codec, resolver, s.logger)
	if s.revocations != nil {
		gateway.WithRevocationList(s.revocations)
	}
	if s.metrics != nil {
		gateway.WithMetrics(s.metrics)
	}

	enforcer := middleware.NewPolicyEnforcer(s.policy)
	if s.metrics != nil {
		enforcer.WithMetrics(s.metrics)
	}

	chain := httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(s.logger),
		httputil.RecoveryMiddleware(s.logger),
		httputil.MaxBytesMiddleware(maxRequestBodyBytes),
		gateway.Handler,
		enforcer.Handler,
	)
	return chain(s.router)
}

// principal returns the request principal, or writes 401 and returns nil.
// The policy layer normally guarantees a principal on protected routes;
// this guards handlers that are reached without the pipeline (tests, or
// a misconfigured policy file).
func (s *Server) principal(w http.ResponseWriter, r *http.Request) *auth.Principal {
	p := middleware.GetPrincipal(r)
	if p == nil {
		httputil.WriteUnauthorized(w, "authentication required")
	}
	return p
}

func (s *Server) record(r *http.Request, event audit.Event) {
	event.RequestID = contextkeys.GetRequestID(r.Context())
	if err := s.recorder.Record(r.Context(), event); err != nil {
		observability.FromContext(r.Context()).WithError(err).Warn("failed to record audit event")
	}
}
