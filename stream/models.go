// Package stream defines payment streams, per-identity aggregates, global
// counters and the vesting arithmetic that governs them.
package stream

import (
	"slices"

	"github.com/xraph/drip/types"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusPaused, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// Stream is a linear release of escrowed value from Sender to Recipient
// between StartBlock and EndBlock.
type Stream struct {
	types.Entity
	ID              uint64         `json:"id"`
	Sender          types.Identity `json:"sender"`
	Recipient       types.Identity `json:"recipient"`
	TotalAmount     types.Amount   `json:"total_amount"`
	AmountPerBlock  types.Amount   `json:"amount_per_block"`
	StartBlock      types.Height   `json:"start_block"`
	EndBlock        types.Height   `json:"end_block"`
	LastClaimBlock  types.Height   `json:"last_claim_block"`
	ClaimedAmount   types.Amount   `json:"claimed_amount"`
	Status          Status         `json:"status"`
	PauseStartBlock *types.Height  `json:"pause_start_block,omitempty"`
	PausedDuration  uint64         `json:"paused_duration"`
	FeeRate         uint64         `json:"fee_rate"`
	Fee             types.Amount   `json:"fee"`
	Metadata        string         `json:"metadata,omitempty"`
	CreatedBlock    types.Height   `json:"created_block"`
}

// Clone returns a deep copy.
func (s *Stream) Clone() *Stream {
	c := *s
	if s.PauseStartBlock != nil {
		h := *s.PauseStartBlock
		c.PauseStartBlock = &h
	}
	return &c
}

// Remaining returns the amount not yet paid to the recipient.
func (s *Stream) Remaining() types.Amount {
	return s.TotalAmount.Sub(s.ClaimedAmount)
}

// Duration returns the current length of the schedule in blocks.
func (s *Stream) Duration() uint64 {
	return s.EndBlock.Since(s.StartBlock)
}

// Aggregate indexes the streams an identity sent and receives, with running
// totals. It is updated only inside stream operations.
type Aggregate struct {
	types.Entity
	Identity       types.Identity `json:"identity"`
	Created        []uint64       `json:"created"`
	Receiving      []uint64       `json:"receiving"`
	CreatedCount   uint64         `json:"created_count"`
	ReceivingCount uint64         `json:"receiving_count"`
	ActiveOutgoing uint64         `json:"active_outgoing"`
	VolumeSent     types.Amount   `json:"volume_sent"`
	// VolumeReceived is the net scheduled to this identity at creation.
	VolumeReceived types.Amount   `json:"volume_received"`
}

// NewAggregate returns an empty aggregate for identity.
func NewAggregate(identity types.Identity) *Aggregate {
	return &Aggregate{Identity: identity}
}

// Clone returns a deep copy.
func (a *Aggregate) Clone() *Aggregate {
	c := *a
	c.Created = slices.Clone(a.Created)
	c.Receiving = slices.Clone(a.Receiving)
	return &c
}

// Globals holds engine-wide configuration and statistics.
// A zero NextID means the record has not been initialized.
type Globals struct {
	NextID        uint64       `json:"next_id"`
	Paused        bool         `json:"paused"`
	FeeRate       uint64       `json:"fee_rate"`
	TotalStreams  uint64       `json:"total_streams"`
	ActiveStreams uint64       `json:"active_streams"`
	TotalVolume   types.Amount `json:"total_volume"`
	TotalFees     types.Amount `json:"total_fees"`
	TotalClaimed  types.Amount `json:"total_claimed"`
	TotalRefunded types.Amount `json:"total_refunded"`
	EventSeq      uint64       `json:"event_seq"`

	TreasuryLocked bool   `json:"treasury_locked"`
	EmergencyState string `json:"emergency_state,omitempty"`
}

// Initialized reports whether the record has been seeded.
func (g *Globals) Initialized() bool { return g.NextID != 0 }

// Clone returns a copy.
func (g *Globals) Clone() *Globals {
	c := *g
	return &c
}

// ListOpts filters stream listings. Zero fields match everything.
type ListOpts struct {
	Sender    types.Identity
	Recipient types.Identity
	Status    Status
	Limit     int
	Offset    int
}

// Matches reports whether s satisfies the filter fields of o.
func (o ListOpts) Matches(s *Stream) bool {
	if o.Sender != "" && s.Sender != o.Sender {
		return false
	}
	if o.Recipient != "" && s.Recipient != o.Recipient {
		return false
	}
	if o.Status != "" && s.Status != o.Status {
		return false
	}
	return true
}

// Page applies Offset and Limit to an id-ordered result.
func Page[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
