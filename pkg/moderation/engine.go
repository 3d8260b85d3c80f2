package moderation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/parleyhq/parley/pkg/audit"
	"github.com/parleyhq/parley/pkg/members"
	"github.com/parleyhq/parley/pkg/observability"
)

const (
	// DefaultBanThreshold is the warning count at which a member is banned
	DefaultBanThreshold = 3
	// DefaultBanDuration is how long a threshold ban lasts
	DefaultBanDuration = 30 * 24 * time.Hour
)

// Engine applies the warning and ban lifecycle on top of the member and
// warning stores. Safe for concurrent use; the atomicity guarantees live
// in the stores.
type Engine struct {
	warnings    Store
	members     members.Store
	threshold   int
	banDuration time.Duration
	recorder    audit.Recorder
	metrics     *observability.Metrics
	now         func() time.Time
}

// NewEngine creates an engine with the default threshold and ban duration
func NewEngine(warnings Store, memberStore members.Store) *Engine {
	return &Engine{
		warnings:    warnings,
		members:     memberStore,
		threshold:   DefaultBanThreshold,
		banDuration: DefaultBanDuration,
		recorder:    audit.NopRecorder{},
		now:         time.Now,
	}
}

// WithThreshold overrides the warning count that triggers a ban
func (e *Engine) WithThreshold(threshold int) *Engine {
	if threshold > 0 {
		e.threshold = threshold
	}
	return e
}

// WithBanDuration overrides how long a threshold ban lasts
func (e *Engine) WithBanDuration(d time.Duration) *Engine {
	if d > 0 {
		e.banDuration = d
	}
	return e
}

// WithAuditRecorder attaches an audit trail
func (e *Engine) WithAuditRecorder(r audit.Recorder) *Engine {
	if r != nil {
		e.recorder = r
	}
	return e
}

// WithMetrics enables warning and ban counters
func (e *Engine) WithMetrics(m *observability.Metrics) *Engine {
	e.metrics = m
	return e
}

// Threshold returns the configured ban threshold
func (e *Engine) Threshold() int {
	return e.threshold
}

// IssueWarning records a warning against the target and increments the
// target's warning counter. The warning whose post-increment count
// reaches the threshold also bans the target; the returned flag reports
// whether this call applied the ban. Under concurrent warnings the count
// never loses increments and at most one call reports the ban.
func (e *Engine) IssueWarning(ctx context.Context, issuerID, targetID int64, reason, contentType string, contentID int64) (*Warning, bool, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, false, ErrEmptyReason
	}

	// The target must exist before anything is written.
	if _, err := e.members.FindByID(ctx, targetID); err != nil {
		return nil, false, err
	}

	warning := &Warning{
		TargetID:    targetID,
		IssuerID:    issuerID,
		Reason:      reason,
		ContentType: contentType,
		ContentID:   contentID,
		CreatedAt:   e.now().UTC(),
	}
	if err := e.warnings.Create(ctx, warning); err != nil {
		return nil, false, err
	}

	count, err := e.members.IncrementWarningCount(ctx, targetID)
	if err != nil {
		// Undo the insert: the counter and the warning rows must agree.
		if delErr := e.warnings.Delete(ctx, warning.ID); delErr != nil {
			observability.FromContext(ctx).WithError(delErr).
				Warnf("orphan warning %d left behind after failed count increment", warning.ID)
		}
		return nil, false, fmt.Errorf("failed to count warning against member %d: %w", targetID, err)
	}

	if e.metrics != nil {
		e.metrics.WarningsIssuedTotal.Inc()
	}
	e.record(ctx, audit.Event{
		Kind:     audit.KindWarning,
		ActorID:  issuerID,
		TargetID: targetID,
		Detail:   fmt.Sprintf("warning %d (count %d): %s", warning.ID, count, reason),
	})

	banned := false
	if count >= e.threshold {
		banned, err = e.applyBan(ctx, issuerID, targetID, count)
		if err != nil {
			return warning, false, err
		}
	}
	return warning, banned, nil
}

func (e *Engine) applyBan(ctx context.Context, issuerID, targetID int64, count int) (bool, error) {
	banReason := fmt.Sprintf("warning threshold reached (%d warnings)", count)
	expiresAt := e.now().UTC().Add(e.banDuration)

	applied, err := e.members.SetBan(ctx, targetID, banReason, expiresAt)
	if err != nil {
		return false, fmt.Errorf("failed to ban member %d: %w", targetID, err)
	}
	if !applied {
		return false, nil
	}

	if e.metrics != nil {
		e.metrics.BansAppliedTotal.Inc()
	}
	e.record(ctx, audit.Event{
		Kind:     audit.KindBan,
		ActorID:  issuerID,
		TargetID: targetID,
		Detail:   banReason,
	})
	return true, nil
}

// Acknowledge marks one of the member's own warnings as seen. The call
// is idempotent: acknowledging an already-acknowledged warning succeeds
// without changing the recorded timestamp. The warning count is not
// reduced.
func (e *Engine) Acknowledge(ctx context.Context, memberID, warningID int64) (*Warning, error) {
	warning, err := e.warnings.FindByID(ctx, warningID)
	if err != nil {
		return nil, err
	}
	if warning.TargetID != memberID {
		return nil, ErrNotWarningTarget
	}

	flipped, err := e.warnings.Acknowledge(ctx, warningID, e.now())
	if err != nil {
		return nil, err
	}
	if flipped {
		e.record(ctx, audit.Event{
			Kind:     audit.KindWarningAcked,
			ActorID:  memberID,
			TargetID: memberID,
			Detail:   fmt.Sprintf("warning %d acknowledged", warningID),
		})
	}
	return e.warnings.FindByID(ctx, warningID)
}

// WarningsFor lists a member's warnings, newest first
func (e *Engine) WarningsFor(ctx context.Context, memberID int64) ([]*Warning, error) {
	return e.warnings.ListByTarget(ctx, memberID)
}

// StateOf derives the member's moderation state
func (e *Engine) StateOf(ctx context.Context, memberID int64) (State, error) {
	m, err := e.members.FindByID(ctx, memberID)
	if err != nil {
		return "", err
	}
	return StateFor(m, e.now()), nil
}

// LiftExpiredBans clears every ban whose expiry has passed, returning
// the number lifted. Called by the periodic sweep job.
func (e *Engine) LiftExpiredBans(ctx context.Context) (int64, error) {
	lifted, err := e.members.LiftExpiredBans(ctx, e.now().UTC())
	if err != nil {
		return 0, err
	}
	if lifted > 0 {
		if e.metrics != nil {
			e.metrics.BansLiftedTotal.Add(float64(lifted))
		}
		e.record(ctx, audit.Event{
			Kind:   audit.KindBanLifted,
			Detail: fmt.Sprintf("%d expired bans lifted", lifted),
		})
	}
	return lifted, nil
}

// record writes to the audit trail, logging failures instead of
// propagating them.
func (e *Engine) record(ctx context.Context, event audit.Event) {
	if err := e.recorder.Record(ctx, event); err != nil {
		observability.FromContext(ctx).WithError(err).Warn("failed to record audit event")
	}
}
