// Package plugin provides an extensible plugin system for Drip.
// Plugins hook into committed actions; they run after the state change is
// durable and can never affect its outcome.
package plugin

import (
	"context"

	"github.com/xraph/drip/access"
	"github.com/xraph/drip/event"
	"github.com/xraph/drip/stream"
	"github.com/xraph/drip/types"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine any) error
}

// OnShutdown is called when the engine stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Event log hook
// ──────────────────────────────────────────────────

// OnEvent receives every committed event record in order.
type OnEvent interface {
	Plugin
	OnEvent(ctx context.Context, e *event.Event) error
}

// ──────────────────────────────────────────────────
// Stream lifecycle hooks
// ──────────────────────────────────────────────────

// OnStreamCreated is called when a stream is created.
type OnStreamCreated interface {
	Plugin
	OnStreamCreated(ctx context.Context, s *stream.Stream) error
}

// OnStreamClaimed is called when a recipient withdraws vested value.
type OnStreamClaimed interface {
	Plugin
	OnStreamClaimed(ctx context.Context, s *stream.Stream, amount types.Amount, completed bool) error
}

// OnStreamCancelled is called when a sender cancels a stream.
type OnStreamCancelled interface {
	Plugin
	OnStreamCancelled(ctx context.Context, s *stream.Stream, settlement stream.Settlement) error
}

// OnStreamPaused is called when a sender pauses a stream.
type OnStreamPaused interface {
	Plugin
	OnStreamPaused(ctx context.Context, s *stream.Stream) error
}

// OnStreamResumed is called when a sender resumes a stream.
type OnStreamResumed interface {
	Plugin
	OnStreamResumed(ctx context.Context, s *stream.Stream, pausedBlocks uint64) error
}

// ──────────────────────────────────────────────────
// Access control hooks
// ──────────────────────────────────────────────────

// OnRoleGranted is called when an admin grants a role.
type OnRoleGranted interface {
	Plugin
	OnRoleGranted(ctx context.Context, role access.Role, identity, by types.Identity) error
}

// OnRoleRevoked is called when an admin revokes a role.
type OnRoleRevoked interface {
	Plugin
	OnRoleRevoked(ctx context.Context, role access.Role, identity, by types.Identity) error
}

// OnAdminTransferred is called when a pending admin transfer is accepted.
type OnAdminTransferred interface {
	Plugin
	OnAdminTransferred(ctx context.Context, from, to types.Identity) error
}

// ──────────────────────────────────────────────────
// Contract hooks
// ──────────────────────────────────────────────────

// OnContractPaused is called when value-moving operations are paused or
// unpaused.
type OnContractPaused interface {
	Plugin
	OnContractPaused(ctx context.Context, paused bool, by types.Identity) error
}

// OnFeeRateChanged is called when the default fee rate changes.
type OnFeeRateChanged interface {
	Plugin
	OnFeeRateChanged(ctx context.Context, oldRate, newRate uint64) error
}
