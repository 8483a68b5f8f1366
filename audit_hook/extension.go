// Package audithook bridges Drip lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import an
// audit backend directly. Callers inject a RecorderFunc adapter at wiring
// time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/xraph/drip/access"
	"github.com/xraph/drip/plugin"
	"github.com/xraph/drip/stream"
	"github.com/xraph/drip/types"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin             = (*Extension)(nil)
	_ plugin.OnStreamCreated    = (*Extension)(nil)
	_ plugin.OnStreamClaimed    = (*Extension)(nil)
	_ plugin.OnStreamCancelled  = (*Extension)(nil)
	_ plugin.OnStreamPaused     = (*Extension)(nil)
	_ plugin.OnStreamResumed    = (*Extension)(nil)
	_ plugin.OnRoleGranted      = (*Extension)(nil)
	_ plugin.OnRoleRevoked      = (*Extension)(nil)
	_ plugin.OnAdminTransferred = (*Extension)(nil)
	_ plugin.OnContractPaused   = (*Extension)(nil)
	_ plugin.OnFeeRateChanged   = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Actor      string         `json:"actor,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges Drip lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Stream lifecycle hooks
// ──────────────────────────────────────────────────

// OnStreamCreated implements plugin.OnStreamCreated.
func (e *Extension) OnStreamCreated(ctx context.Context, s *stream.Stream) error {
	return e.record(ctx, ActionStreamCreated, SeverityInfo, OutcomeSuccess,
		ResourceStream, streamID(s), CategoryPayment, s.Sender,
		"sender", string(s.Sender),
		"recipient", string(s.Recipient),
		"total_amount", uint64(s.TotalAmount),
		"fee", uint64(s.Fee),
		"start_block", uint64(s.StartBlock),
		"end_block", uint64(s.EndBlock),
	)
}

// OnStreamClaimed implements plugin.OnStreamClaimed.
func (e *Extension) OnStreamClaimed(ctx context.Context, s *stream.Stream, amount types.Amount, completed bool) error {
	action := ActionStreamClaimed
	if completed {
		action = ActionStreamCompleted
	}
	return e.record(ctx, action, SeverityInfo, OutcomeSuccess,
		ResourceStream, streamID(s), CategoryPayment, s.Recipient,
		"amount", uint64(amount),
		"claimed_amount", uint64(s.ClaimedAmount),
	)
}

// OnStreamCancelled implements plugin.OnStreamCancelled.
func (e *Extension) OnStreamCancelled(ctx context.Context, s *stream.Stream, settlement stream.Settlement) error {
	return e.record(ctx, ActionStreamCancelled, SeverityWarning, OutcomeSuccess,
		ResourceStream, streamID(s), CategoryPayment, s.Sender,
		"claimed", uint64(settlement.Claimed),
		"refunded", uint64(settlement.Refunded),
	)
}

// OnStreamPaused implements plugin.OnStreamPaused.
func (e *Extension) OnStreamPaused(ctx context.Context, s *stream.Stream) error {
	return e.record(ctx, ActionStreamPaused, SeverityInfo, OutcomeSuccess,
		ResourceStream, streamID(s), CategoryPayment, s.Sender,
	)
}

// OnStreamResumed implements plugin.OnStreamResumed.
func (e *Extension) OnStreamResumed(ctx context.Context, s *stream.Stream, pausedBlocks uint64) error {
	return e.record(ctx, ActionStreamResumed, SeverityInfo, OutcomeSuccess,
		ResourceStream, streamID(s), CategoryPayment, s.Sender,
		"paused_blocks", pausedBlocks,
		"end_block", uint64(s.EndBlock),
	)
}

// ──────────────────────────────────────────────────
// Access hooks
// ──────────────────────────────────────────────────

// OnRoleGranted implements plugin.OnRoleGranted.
func (e *Extension) OnRoleGranted(ctx context.Context, role access.Role, identity, by types.Identity) error {
	return e.record(ctx, ActionRoleGranted, SeverityWarning, OutcomeSuccess,
		ResourceRole, string(identity), CategoryAccess, by,
		"role", role.String(),
	)
}

// OnRoleRevoked implements plugin.OnRoleRevoked.
func (e *Extension) OnRoleRevoked(ctx context.Context, role access.Role, identity, by types.Identity) error {
	return e.record(ctx, ActionRoleRevoked, SeverityWarning, OutcomeSuccess,
		ResourceRole, string(identity), CategoryAccess, by,
		"role", role.String(),
	)
}

// OnAdminTransferred implements plugin.OnAdminTransferred.
func (e *Extension) OnAdminTransferred(ctx context.Context, from, to types.Identity) error {
	return e.record(ctx, ActionAdminTransferred, SeverityCritical, OutcomeSuccess,
		ResourceRole, string(to), CategoryAccess, to,
		"from", string(from),
		"to", string(to),
	)
}

// ──────────────────────────────────────────────────
// Contract hooks
// ──────────────────────────────────────────────────

// OnContractPaused implements plugin.OnContractPaused.
func (e *Extension) OnContractPaused(ctx context.Context, paused bool, by types.Identity) error {
	action := ActionContractUnpaused
	if paused {
		action = ActionContractPaused
	}
	return e.record(ctx, action, SeverityCritical, OutcomeSuccess,
		ResourceContract, "", CategoryGovernance, by,
	)
}

// OnFeeRateChanged implements plugin.OnFeeRateChanged.
func (e *Extension) OnFeeRateChanged(ctx context.Context, oldRate, newRate uint64) error {
	return e.record(ctx, ActionFeeRateChanged, SeverityWarning, OutcomeSuccess,
		ResourceContract, "", CategoryGovernance, "",
		"old_rate", oldRate,
		"new_rate", newRate,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

func streamID(s *stream.Stream) string {
	return strconv.FormatUint(s.ID, 10)
}

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	actor types.Identity,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Actor:      string(actor),
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
