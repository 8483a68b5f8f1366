package drip

import (
	"context"

	"github.com/xraph/drip/types"
)

type callerKey struct{}

// WithCaller returns a context carrying the identity on whose behalf the
// operation runs.
func WithCaller(ctx context.Context, identity types.Identity) context.Context {
	return context.WithValue(ctx, callerKey{}, identity)
}

// CallerFrom extracts the caller identity set by WithCaller.
func CallerFrom(ctx context.Context) (types.Identity, bool) {
	identity, ok := ctx.Value(callerKey{}).(types.Identity)
	return identity, ok && identity != ""
}
