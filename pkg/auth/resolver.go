package auth

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/parleyhq/parley/pkg/members"
)

// ErrPrincipalNotFound is returned when a token subject does not resolve
// to an active, non-banned member. The gateway treats it as anonymous.
var ErrPrincipalNotFound = errors.New("principal not found")

// Resolver turns a verified token subject into a full Principal by
// consulting the credential store. It is side-effect free.
type Resolver struct {
	store members.Store
	now   func() time.Time
}

// NewResolver creates a resolver backed by the given member store
func NewResolver(store members.Store) *Resolver {
	return &Resolver{
		store: store,
		now:   time.Now,
	}
}

// Resolve looks up the subject and builds its principal.
//
// The subject may be a stable member identifier or a name/email, depending
// on what the issuer embedded; both are supported. Identifier lookup runs
// first; only if it misses does the name-or-email lookup run, and an
// ambiguous name-or-email match resolves to the lowest member ID
// (the store returns matches in ascending ID order).
//
// A member that is inactive, or whose ban is still in force, does not
// resolve: deactivation and bans take effect on the next request even
// though outstanding tokens verify until natural expiry.
func (r *Resolver) Resolve(ctx context.Context, subject string) (*Principal, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return nil, ErrPrincipalNotFound
	}

	member, err := r.lookup(ctx, subject)
	if err != nil {
		return nil, err
	}

	if !member.Active {
		return nil, ErrPrincipalNotFound
	}
	if member.BanActive(r.now()) {
		return nil, ErrPrincipalNotFound
	}

	return &Principal{
		MemberID:     member.ID,
		Name:         member.Name,
		Capabilities: capabilitiesFor(member),
		Banned:       member.Banned,
	}, nil
}

func (r *Resolver) lookup(ctx context.Context, subject string) (*members.Member, error) {
	if id, err := strconv.ParseInt(subject, 10, 64); err == nil {
		member, err := r.store.FindByID(ctx, id)
		if err == nil {
			return member, nil
		}
		if !errors.Is(err, members.ErrNotFound) {
			return nil, err
		}
		// A numeric subject that is not a known ID may still be a
		// member name; fall through to the name-or-email lookup.
	}

	matches, err := r.store.FindByNameOrEmail(ctx, subject)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, ErrPrincipalNotFound
	}
	return matches[0], nil
}

// capabilitiesFor builds the effective capability set: every member holds
// the base member capability; admin comes from the admin flag or from any
// attached role record naming an admin role.
func capabilitiesFor(m *members.Member) []Capability {
	caps := []Capability{CapabilityMember}

	admin := m.Admin
	if !admin {
		for _, role := range m.Roles {
			if adminRoleNames[strings.ToLower(role)] {
				admin = true
				break
			}
		}
	}
	if admin {
		caps = append(caps, CapabilityAdmin)
	}
	return caps
}
