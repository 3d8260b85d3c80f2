package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/parleyhq/parley/pkg/audit"
	"github.com/parleyhq/parley/pkg/auth"
	"github.com/parleyhq/parley/pkg/httputil"
	"github.com/parleyhq/parley/pkg/members"
	"github.com/parleyhq/parley/pkg/middleware"
	"github.com/parleyhq/parley/pkg/moderation"
	"github.com/parleyhq/parley/pkg/observability"
)

const minPasswordLength = 8

// register handles POST /api/v1/auth/register
func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" {
		httputil.WriteBadRequest(w, "name is required")
		return
	}
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		httputil.WriteBadRequest(w, "a valid email is required")
		return
	}
	if len(req.Password) < minPasswordLength {
		httputil.WriteBadRequest(w, fmt.Sprintf("password must be at least %d characters", minPasswordLength))
		return
	}

	ctx := r.Context()
	if exists, err := s.members.ExistsByName(ctx, req.Name); err != nil {
		httputil.WriteInternalError(w, err)
		return
	} else if exists {
		httputil.WriteConflict(w, "name already taken")
		return
	}
	if exists, err := s.members.ExistsByEmail(ctx, req.Email); err != nil {
		httputil.WriteInternalError(w, err)
		return
	} else if exists {
		httputil.WriteConflict(w, "email already registered")
		return
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	member := &members.Member{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Active:       true,
		Roles:        []string{},
	}
	if err := s.members.Create(ctx, member); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	s.record(r, audit.Event{Kind: audit.KindRegister, ActorID: member.ID, TargetID: member.ID})
	httputil.WriteCreated(w, member)
}

// login handles POST /api/v1/auth/login
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	req.NameOrEmail = strings.TrimSpace(req.NameOrEmail)
	if req.NameOrEmail == "" || req.Password == "" {
		httputil.WriteBadRequest(w, "name_or_email and password are required")
		return
	}

	member, ok := s.verifyCredentials(w, r, req)
	if !ok {
		return
	}

	token, err := s.codec.Issue(strconv.FormatInt(member.ID, 10))
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.TokenIssuedTotal.Inc()
		s.metrics.LoginAttemptsTotal.WithLabelValues("ok").Inc()
	}
	s.record(r, audit.Event{Kind: audit.KindLogin, ActorID: member.ID, TargetID: member.ID})

	httputil.WriteSuccess(w, LoginResponse{
		Token:     token,
		ExpiresIn: int64(s.codec.TTL().Seconds()),
		Member:    member,
	})
}

// verifyCredentials checks the login request against the member store.
// Every failure path returns the same 401 body so callers cannot probe
// which part of the credential was wrong.
func (s *Server) verifyCredentials(w http.ResponseWriter, r *http.Request, req LoginRequest) (*members.Member, bool) {
	fail := func(memberID int64, why string) (*members.Member, bool) {
		if s.metrics != nil {
			s.metrics.LoginAttemptsTotal.WithLabelValues("bad_credentials").Inc()
		}
		s.record(r, audit.Event{Kind: audit.KindLoginFailed, TargetID: memberID, Detail: why})
		httputil.WriteUnauthorized(w, "invalid credentials")
		return nil, false
	}

	matches, err := s.members.FindByNameOrEmail(r.Context(), req.NameOrEmail)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return nil, false
	}
	if len(matches) == 0 {
		return fail(0, "unknown subject")
	}
	member := matches[0]

	if !member.Active {
		return fail(member.ID, "inactive member")
	}
	if member.BanActive(time.Now()) {
		return fail(member.ID, "banned member")
	}
	if err := s.hasher.Compare(member.PasswordHash, req.Password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return fail(member.ID, "password mismatch")
		}
		httputil.WriteInternalError(w, err)
		return nil, false
	}
	return member, true
}

// logout handles POST /api/v1/auth/logout. With a revocation list
// configured the presented token is denied for its remaining lifetime;
// without one the call only audits the logout.
func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	p := s.principal(w, r)
	if p == nil {
		return
	}

	if s.revocations != nil {
		if token, ok := middleware.ExtractBearer(r); ok {
			if claims, err := s.codec.Verify(token); err == nil {
				retention := claims.RemainingTTL(time.Now())
				if err := s.revocations.Revoke(r.Context(), claims.TokenID(), retention); err != nil {
					httputil.WriteInternalError(w, err)
					return
				}
			}
		}
	}

	s.record(r, audit.Event{Kind: audit.KindLogout, ActorID: p.MemberID, TargetID: p.MemberID})
	httputil.WriteNoContent(w)
}

// me handles GET /api/v1/members/me
func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	p := s.principal(w, r)
	if p == nil {
		return
	}

	member, err := s.members.FindByID(r.Context(), p.MemberID)
	if err != nil {
		if errors.Is(err, members.ErrNotFound) {
			httputil.WriteNotFoundError(w, "member not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, MeResponse{
		Member: member,
		State:  moderation.StateFor(member, time.Now()),
	})
}

// unbanMember handles POST /api/v1/admin/members/{id}/unban
func (s *Server) unbanMember(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	member, err := s.members.FindByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, members.ErrNotFound) {
			httputil.WriteNotFoundError(w, "member not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	if member.Banned {
		member.Banned = false
		member.BanReason = ""
		member.BanExpiresAt = nil
		if err := s.members.Update(r.Context(), member); err != nil {
			httputil.WriteInternalError(w, err)
			return
		}
		if s.metrics != nil {
			s.metrics.BansLiftedTotal.Inc()
		}
		actor := middleware.GetPrincipal(r)
		var actorID int64
		if actor != nil {
			actorID = actor.MemberID
		}
		s.record(r, audit.Event{Kind: audit.KindBanLifted, ActorID: actorID, TargetID: id, Detail: "unbanned by admin"})
	}

	httputil.WriteSuccess(w, member)
}

// deactivateMember handles POST /api/v1/admin/members/{id}/deactivate.
// A deactivated member stops resolving on the next request even though
// outstanding tokens verify until expiry.
func (s *Server) deactivateMember(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	member, err := s.members.FindByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, members.ErrNotFound) {
			httputil.WriteNotFoundError(w, "member not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	if member.Active {
		member.Active = false
		if err := s.members.Update(r.Context(), member); err != nil {
			httputil.WriteInternalError(w, err)
			return
		}
		observability.FromContext(r.Context()).
			WithField("member_id", id).
			Info("member deactivated")
	}

	httputil.WriteSuccess(w, member)
}
