package stream

import (
	"context"

	"github.com/xraph/drip/types"
)

// Store defines the read side of stream persistence.
type Store interface {
	GetStream(ctx context.Context, streamID uint64) (*Stream, error)
	ListStreams(ctx context.Context, opts ListOpts) ([]*Stream, error)
	// GetAggregate returns an empty aggregate for an unknown identity.
	GetAggregate(ctx context.Context, identity types.Identity) (*Aggregate, error)
	// GetGlobals returns a zero record before initialization.
	GetGlobals(ctx context.Context) (*Globals, error)
}
