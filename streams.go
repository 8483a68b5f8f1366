package drip

import (
	"context"
	"fmt"
	"math"

	"github.com/xraph/drip/event"
	"github.com/xraph/drip/stream"
	"github.com/xraph/drip/types"
)

// CreateParams describes a new stream. The caller is the sender.
type CreateParams struct {
	Recipient  types.Identity `json:"recipient"`
	Amount     types.Amount   `json:"amount"`
	Duration   uint64         `json:"duration"`
	StartDelay uint64         `json:"start_delay"`
	Metadata   string         `json:"metadata,omitempty"`
}

// CancelResult reports how a cancelled stream was settled.
type CancelResult = stream.Settlement

// ──────────────────────────────────────────────────
// Stream lifecycle
// ──────────────────────────────────────────────────

// CreateStream escrows Amount from the caller and opens a stream that
// releases the post-fee amount to Recipient over Duration blocks, starting
// StartDelay blocks from now. It returns the new stream id.
func (e *Engine) CreateStream(ctx context.Context, p CreateParams) (uint64, error) {
	var streamID uint64

	err := e.run(ctx, func(u *unit) error {
		g, err := u.globals()
		if err != nil {
			return err
		}
		if g.Paused {
			return ErrContractPaused
		}

		l := e.limits
		switch {
		case p.Amount < l.MinAmount:
			return fmt.Errorf("%w: %d < %d", ErrAmountTooSmall, p.Amount, l.MinAmount)
		case p.Amount > l.MaxAmount:
			return fmt.Errorf("%w: %d > %d", ErrAmountTooLarge, p.Amount, l.MaxAmount)
		case p.Duration < l.MinDuration || p.Duration > l.MaxDuration:
			return fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidDuration, p.Duration, l.MinDuration, l.MaxDuration)
		case p.Recipient == u.caller:
			return ErrSelfStream
		}

		sender, err := u.aggregate(u.caller)
		if err != nil {
			return err
		}
		if sender.ActiveOutgoing >= l.MaxActiveStreams {
			return fmt.Errorf("%w: %d active", ErrTooManyStreams, sender.ActiveOutgoing)
		}

		if err := p.Recipient.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidRecipient, err)
		}
		if p.Recipient == e.escrow || p.Recipient == e.treasury {
			return fmt.Errorf("%w: %s is a system account", ErrInvalidRecipient, p.Recipient)
		}
		if p.StartDelay > l.MaxStartDelay {
			return fmt.Errorf("%w: %d > %d", ErrStartDelayTooLong, p.StartDelay, l.MaxStartDelay)
		}
		if len(p.Metadata) > l.MaxMetadataLen {
			return fmt.Errorf("%w: %d > %d bytes", ErrMetadataTooLong, len(p.Metadata), l.MaxMetadataLen)
		}

		terms := stream.ComputeTerms(p.Amount, g.FeeRate, p.Duration)
		if terms.AmountPerBlock == 0 {
			return ErrZeroRate
		}

		recipient, err := u.aggregate(p.Recipient)
		if err != nil {
			return err
		}
		if len(sender.Created) >= l.MaxIndexedStreams || len(recipient.Receiving) >= l.MaxIndexedStreams {
			return ErrIndexFull
		}

		if g.NextID == math.MaxUint64 {
			return ErrIDSpaceExceeded
		}
		streamID = g.NextID
		g.NextID++

		start := u.now.Add(p.StartDelay)
		s := &stream.Stream{
			Entity:         types.NewEntity(),
			ID:             streamID,
			Sender:         u.caller,
			Recipient:      p.Recipient,
			TotalAmount:    terms.Net,
			AmountPerBlock: terms.AmountPerBlock,
			StartBlock:     start,
			EndBlock:       start.Add(p.Duration),
			LastClaimBlock: start,
			Status:         stream.StatusActive,
			FeeRate:        g.FeeRate,
			Fee:            terms.Fee,
			Metadata:       p.Metadata,
			CreatedBlock:   u.now,
		}
		u.cs.Streams[streamID] = s

		sender.Created = append(sender.Created, streamID)
		sender.CreatedCount++
		sender.ActiveOutgoing++
		if sender.VolumeSent, err = addAmount(sender.VolumeSent, terms.Gross); err != nil {
			return err
		}
		sender.Touch()

		recipient.Receiving = append(recipient.Receiving, streamID)
		recipient.ReceivingCount++
		if recipient.VolumeReceived, err = addAmount(recipient.VolumeReceived, terms.Net); err != nil {
			return err
		}
		recipient.Touch()

		g.TotalStreams++
		g.ActiveStreams++
		if g.TotalVolume, err = addAmount(g.TotalVolume, terms.Gross); err != nil {
			return err
		}
		if g.TotalFees, err = addAmount(g.TotalFees, terms.Fee); err != nil {
			return err
		}

		memo := fmt.Sprintf("stream %d", streamID)
		u.transfer(terms.Gross, u.caller, e.escrow, memo+" escrow")
		u.transfer(terms.Fee, e.escrow, e.treasury, memo+" fee")

		u.after(func(ctx context.Context) {
			e.plugins.EmitStreamCreated(ctx, s)
		})
		return u.emit(event.StreamCreated, streamID, map[string]any{
			"sender":           string(s.Sender),
			"recipient":        string(s.Recipient),
			"amount":           uint64(terms.Gross),
			"fee":              uint64(terms.Fee),
			"net":              uint64(terms.Net),
			"amount_per_block": uint64(terms.AmountPerBlock),
			"start_block":      uint64(s.StartBlock),
			"end_block":        uint64(s.EndBlock),
		})
	})
	if err != nil {
		return 0, err
	}

	e.logger.Debug("stream created", "stream_id", streamID, "amount", p.Amount)
	return streamID, nil
}

// CalculateClaimable returns what the recipient could withdraw at height at.
// It has no side effects.
func (e *Engine) CalculateClaimable(ctx context.Context, streamID uint64, at types.Height) (stream.Claimable, error) {
	s, err := e.GetStream(ctx, streamID)
	if err != nil {
		return stream.Claimable{}, err
	}
	return stream.ComputeClaimable(s, at), nil
}

// ClaimableNow is CalculateClaimable at the current block height.
func (e *Engine) ClaimableNow(ctx context.Context, streamID uint64) (stream.Claimable, error) {
	now, err := e.BlockHeight(ctx)
	if err != nil {
		return stream.Claimable{}, err
	}
	return e.CalculateClaimable(ctx, streamID, now)
}

// ClaimStream pays the caller everything vested since the last claim.
// The caller must be the recipient of an active stream.
func (e *Engine) ClaimStream(ctx context.Context, streamID uint64) (stream.Claimable, error) {
	var claimed stream.Claimable

	err := e.run(ctx, func(u *unit) error {
		g, err := u.globals()
		if err != nil {
			return err
		}
		if g.Paused {
			return ErrContractPaused
		}

		s, err := u.stream(streamID)
		if err != nil {
			return err
		}
		if u.caller != s.Recipient {
			return ErrNotRecipient
		}
		if s.Status != stream.StatusActive {
			return fmt.Errorf("%w: %s", ErrStreamNotActive, s.Status)
		}

		c := stream.ComputeClaimable(s, u.now)
		if c.Amount == 0 {
			return ErrNothingToClaim
		}

		completed := s.ApplyClaim(c, u.now)
		if g.TotalClaimed, err = addAmount(g.TotalClaimed, c.Amount); err != nil {
			return err
		}
		if completed {
			if err := u.retire(s); err != nil {
				return err
			}
		}

		u.transfer(c.Amount, e.escrow, s.Recipient, fmt.Sprintf("stream %d claim", streamID))

		u.after(func(ctx context.Context) {
			e.plugins.EmitStreamClaimed(ctx, s, c.Amount, completed)
		})
		claimed = c
		return u.emit(event.StreamClaimed, streamID, map[string]any{
			"amount":         uint64(c.Amount),
			"claimed_amount": uint64(s.ClaimedAmount),
			"completed":      completed,
		})
	})
	return claimed, err
}

// CancelStream ends a stream. The recipient receives everything vested up to
// now and the remainder returns to the sender. The caller must be the sender.
func (e *Engine) CancelStream(ctx context.Context, streamID uint64) (CancelResult, error) {
	var result CancelResult

	err := e.run(ctx, func(u *unit) error {
		g, err := u.globals()
		if err != nil {
			return err
		}
		if g.Paused {
			return ErrContractPaused
		}

		s, err := u.stream(streamID)
		if err != nil {
			return err
		}
		if u.caller != s.Sender {
			return ErrNotSender
		}
		if s.Status.Terminal() {
			return fmt.Errorf("%w: %s", ErrStreamFinalized, s.Status)
		}

		settlement := s.Cancel(u.now)
		if err := u.retire(s); err != nil {
			return err
		}
		if g.TotalClaimed, err = addAmount(g.TotalClaimed, settlement.Claimed); err != nil {
			return err
		}
		if g.TotalRefunded, err = addAmount(g.TotalRefunded, settlement.Refunded); err != nil {
			return err
		}

		memo := fmt.Sprintf("stream %d cancel", streamID)
		u.transfer(settlement.Claimed, e.escrow, s.Recipient, memo+" payout")
		u.transfer(settlement.Refunded, e.escrow, s.Sender, memo+" refund")

		u.after(func(ctx context.Context) {
			e.plugins.EmitStreamCancelled(ctx, s, settlement)
		})
		result = settlement
		return u.emit(event.StreamCancelled, streamID, map[string]any{
			"claimed":  uint64(settlement.Claimed),
			"refunded": uint64(settlement.Refunded),
		})
	})
	return result, err
}

// PauseStream stops accrual on an active stream. The caller must be the sender.
func (e *Engine) PauseStream(ctx context.Context, streamID uint64) error {
	return e.run(ctx, func(u *unit) error {
		s, err := u.stream(streamID)
		if err != nil {
			return err
		}
		if u.caller != s.Sender {
			return ErrNotSender
		}
		if s.Status != stream.StatusActive {
			return fmt.Errorf("%w: %s", ErrStreamNotActive, s.Status)
		}

		s.Pause(u.now)

		u.after(func(ctx context.Context) {
			e.plugins.EmitStreamPaused(ctx, s)
		})
		return u.emit(event.StreamPaused, streamID, map[string]any{
			"pause_start_block": uint64(u.now),
		})
	})
}

// ResumeStream reactivates a paused stream, pushing its schedule out by the
// paused span. The caller must be the sender.
func (e *Engine) ResumeStream(ctx context.Context, streamID uint64) error {
	return e.run(ctx, func(u *unit) error {
		s, err := u.stream(streamID)
		if err != nil {
			return err
		}
		if u.caller != s.Sender {
			return ErrNotSender
		}
		if s.Status != stream.StatusPaused {
			return fmt.Errorf("%w: %s", ErrStreamNotPaused, s.Status)
		}

		span := s.Resume(u.now)

		u.after(func(ctx context.Context) {
			e.plugins.EmitStreamResumed(ctx, s, span)
		})
		return u.emit(event.StreamResumed, streamID, map[string]any{
			"paused_blocks":    span,
			"paused_duration":  s.PausedDuration,
			"end_block":        uint64(s.EndBlock),
			"last_claim_block": uint64(s.LastClaimBlock),
		})
	})
}

// retire removes a stream that reached a terminal state from the active
// counters.
func (u *unit) retire(s *stream.Stream) error {
	g, err := u.globals()
	if err != nil {
		return err
	}
	sender, err := u.aggregate(s.Sender)
	if err != nil {
		return err
	}

	if g.ActiveStreams > 0 {
		g.ActiveStreams--
	}
	if sender.ActiveOutgoing > 0 {
		sender.ActiveOutgoing--
	}
	sender.Touch()
	return nil
}

// ──────────────────────────────────────────────────
// Read accessors
// ──────────────────────────────────────────────────

// GetStream returns a stream by id.
func (e *Engine) GetStream(ctx context.Context, streamID uint64) (*stream.Stream, error) {
	s, err := e.store.GetStream(ctx, streamID)
	if err != nil {
		return nil, storeError("get stream", err)
	}
	return s, nil
}

// ListStreams returns streams matching opts in id order.
func (e *Engine) ListStreams(ctx context.Context, opts stream.ListOpts) ([]*stream.Stream, error) {
	streams, err := e.store.ListStreams(ctx, opts)
	if err != nil {
		return nil, storeError("list streams", err)
	}
	return streams, nil
}

// GetAggregate returns an identity's stream index and totals. Unknown
// identities have an empty aggregate.
func (e *Engine) GetAggregate(ctx context.Context, identity types.Identity) (*stream.Aggregate, error) {
	a, err := e.store.GetAggregate(ctx, identity)
	if err != nil {
		return nil, storeError("get aggregate", err)
	}
	return a, nil
}

// ListEvents returns committed events matching opts in commit order.
func (e *Engine) ListEvents(ctx context.Context, opts event.ListOpts) ([]*event.Event, error) {
	events, err := e.store.ListEvents(ctx, opts)
	if err != nil {
		return nil, storeError("list events", err)
	}
	return events, nil
}

// Stats is a snapshot of global configuration and statistics.
type Stats struct {
	stream.Globals
	Height          types.Height   `json:"height"`
	Limits          Limits         `json:"limits"`
	EscrowAccount   types.Identity `json:"escrow_account"`
	TreasuryAccount types.Identity `json:"treasury_account"`
}

// Stats returns global configuration and statistics.
func (e *Engine) Stats(ctx context.Context) (*Stats, error) {
	g, err := e.store.GetGlobals(ctx)
	if err != nil {
		return nil, storeError("get globals", err)
	}
	now, err := e.BlockHeight(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{
		Globals:         *g,
		Height:          now,
		Limits:          e.limits,
		EscrowAccount:   e.escrow,
		TreasuryAccount: e.treasury,
	}, nil
}
