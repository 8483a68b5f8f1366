// Package store defines the unified persistence contract for Drip.
//
// Reads are served per record type. Writes are collected in a Changeset by
// the engine's unit of work and applied atomically by Commit, so a failed
// operation leaves no trace.
package store

import (
	"context"

	"github.com/xraph/drip/access"
	"github.com/xraph/drip/event"
	"github.com/xraph/drip/stream"
	"github.com/xraph/drip/types"
)

// Store is the unified storage interface for all Drip records.
// Instead of embedding the sub-interfaces, we explicitly declare all methods
// to keep the contract readable in one place.
type Store interface {
	// Stream methods
	GetStream(ctx context.Context, streamID uint64) (*stream.Stream, error)
	ListStreams(ctx context.Context, opts stream.ListOpts) ([]*stream.Stream, error)
	GetAggregate(ctx context.Context, identity types.Identity) (*stream.Aggregate, error)
	GetGlobals(ctx context.Context) (*stream.Globals, error)

	// Access methods
	GetRoles(ctx context.Context, identity types.Identity) (access.RoleSet, error)
	ListRoleHolders(ctx context.Context, role access.Role) ([]*access.Assignment, error)
	GetPendingTransfer(ctx context.Context, from types.Identity) (*access.PendingTransfer, error)

	// Event methods
	ListEvents(ctx context.Context, opts event.ListOpts) ([]*event.Event, error)

	// Commit applies every write in cs atomically.
	Commit(ctx context.Context, cs *Changeset) error

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ stream.Store = Store(nil)
	_ access.Store = Store(nil)
	_ event.Store  = Store(nil)
)

// Changeset is the set of writes produced by one operation.
type Changeset struct {
	Streams    map[uint64]*stream.Stream
	Aggregates map[types.Identity]*stream.Aggregate
	Globals    *stream.Globals
	Roles      map[types.Identity]access.RoleSet
	// Pending maps the initiating admin to its transfer; nil deletes it.
	Pending map[types.Identity]*access.PendingTransfer
	Events  []*event.Event
}

// NewChangeset returns an empty changeset.
func NewChangeset() *Changeset {
	return &Changeset{
		Streams:    make(map[uint64]*stream.Stream),
		Aggregates: make(map[types.Identity]*stream.Aggregate),
		Roles:      make(map[types.Identity]access.RoleSet),
		Pending:    make(map[types.Identity]*access.PendingTransfer),
	}
}

// Empty reports whether the changeset holds no writes.
func (cs *Changeset) Empty() bool {
	return len(cs.Streams) == 0 &&
		len(cs.Aggregates) == 0 &&
		cs.Globals == nil &&
		len(cs.Roles) == 0 &&
		len(cs.Pending) == 0 &&
		len(cs.Events) == 0
}
