package event

import "context"

// Store defines the read side of the event log. Events are appended by the
// store changeset together with the mutation they describe.
type Store interface {
	// ListEvents returns events in commit order.
	ListEvents(ctx context.Context, opts ListOpts) ([]*Event, error)
}
