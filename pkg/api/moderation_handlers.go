package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/parleyhq/parley/pkg/httputil"
	"github.com/parleyhq/parley/pkg/members"
	"github.com/parleyhq/parley/pkg/moderation"
)

// issueWarning handles POST /api/v1/moderation/warnings
func (s *Server) issueWarning(w http.ResponseWriter, r *http.Request) {
	p := s.principal(w, r)
	if p == nil {
		return
	}

	var req IssueWarningRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.TargetID == 0 {
		httputil.WriteBadRequest(w, "target_id is required")
		return
	}

	warning, banned, err := s.engine.IssueWarning(
		r.Context(), p.MemberID, req.TargetID, req.Reason, req.ContentType, req.ContentID)
	if err != nil {
		switch {
		case errors.Is(err, moderation.ErrEmptyReason):
			httputil.WriteBadRequest(w, err.Error())
		case errors.Is(err, members.ErrNotFound):
			httputil.WriteNotFoundError(w, "member not found")
		default:
			httputil.WriteInternalError(w, err)
		}
		return
	}

	httputil.WriteCreated(w, IssueWarningResponse{Warning: warning, Banned: banned})
}

// listMemberWarnings handles GET /api/v1/moderation/members/{id}/warnings
func (s *Server) listMemberWarnings(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if _, err := s.members.FindByID(r.Context(), id); err != nil {
		if errors.Is(err, members.ErrNotFound) {
			httputil.WriteNotFoundError(w, "member not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	warnings, err := s.engine.WarningsFor(r.Context(), id)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if warnings == nil {
		warnings = []*moderation.Warning{}
	}
	httputil.WriteSuccess(w, warnings)
}

// memberState handles GET /api/v1/moderation/members/{id}/state
func (s *Server) memberState(w http.ResponseWriter, r *http.Request) {
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

	httputil.WriteSuccess(w, MemberStateResponse{
		MemberID:     member.ID,
		State:        moderation.StateFor(member, time.Now()),
		WarningCount: member.WarningCount,
		Banned:       member.Banned,
		BanReason:    member.BanReason,
	})
}

// listOwnWarnings handles GET /api/v1/warnings
func (s *Server) listOwnWarnings(w http.ResponseWriter, r *http.Request) {
	p := s.principal(w, r)
	if p == nil {
		return
	}

	warnings, err := s.engine.WarningsFor(r.Context(), p.MemberID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if warnings == nil {
		warnings = []*moderation.Warning{}
	}
	httputil.WriteSuccess(w, warnings)
}

// acknowledgeWarning handles POST /api/v1/warnings/{id}/ack
func (s *Server) acknowledgeWarning(w http.ResponseWriter, r *http.Request) {
	p := s.principal(w, r)
	if p == nil {
		return
	}

	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	warning, err := s.engine.Acknowledge(r.Context(), p.MemberID, id)
	if err != nil {
		switch {
		case errors.Is(err, moderation.ErrWarningNotFound):
			httputil.WriteNotFoundError(w, "warning not found")
		case errors.Is(err, moderation.ErrNotWarningTarget):
			httputil.WriteForbidden(w, "warning belongs to another member")
		default:
			httputil.WriteInternalError(w, err)
		}
		return
	}

	httputil.WriteSuccess(w, warning)
}
