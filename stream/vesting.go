package stream

import "github.com/xraph/drip/types"

// BasisPoints is the fee denominator.
const BasisPoints = 10_000

// Terms are the amounts derived from a gross deposit at creation.
type Terms struct {
	Gross          types.Amount
	Fee            types.Amount
	Net            types.Amount
	AmountPerBlock types.Amount
}

// ComputeTerms splits gross into fee and net and derives the per-block rate.
// duration must be non-zero.
func ComputeTerms(gross types.Amount, feeRate, duration uint64) Terms {
	fee := gross.MulDiv(feeRate, BasisPoints)
	net := gross.Sub(fee)
	return Terms{
		Gross:          gross,
		Fee:            fee,
		Net:            net,
		AmountPerBlock: net.Div(duration),
	}
}

// Claimable is the vested, unpaid amount of a stream at a height.
type Claimable struct {
	Amount types.Amount `json:"amount"`
	Ended  bool         `json:"ended"`
	At     types.Height `json:"at"`
}

// ComputeClaimable returns what the recipient could withdraw at height at.
//
// Terminal streams yield zero and ended. A paused stream is evaluated at its
// pause start, so the preview never includes paused time and is reported as
// not ended. Once the schedule has ended the whole unpaid remainder is
// claimable, which settles the units lost to the floored per-block rate.
// Before that the amount is capped to the unpaid remainder.
func ComputeClaimable(s *Stream, at types.Height) Claimable {
	if s.Status.Terminal() {
		return Claimable{Ended: true, At: at}
	}

	current := at
	if s.Status == StatusPaused && s.PauseStartBlock != nil && *s.PauseStartBlock < current {
		current = *s.PauseStartBlock
	}

	if current < s.StartBlock {
		return Claimable{At: at}
	}

	effective := min(current, s.EndBlock)
	if effective >= s.EndBlock && s.Status != StatusPaused {
		return Claimable{Amount: s.Remaining(), Ended: true, At: at}
	}

	if effective <= s.LastClaimBlock {
		return Claimable{At: at}
	}

	elapsed := effective.Since(s.LastClaimBlock)
	raw := s.AmountPerBlock.Mul(elapsed)

	return Claimable{
		Amount: raw.Min(s.Remaining()),
		At:     at,
	}
}

// ApplyClaim records a payout of c at now. It reports whether the stream
// completed.
func (s *Stream) ApplyClaim(c Claimable, now types.Height) bool {
	s.LastClaimBlock = now
	s.ClaimedAmount += c.Amount
	if c.Ended {
		s.Status = StatusCompleted
	}
	s.Touch()
	return c.Ended
}

// Settlement is the outcome of cancelling a stream.
type Settlement struct {
	Claimed  types.Amount `json:"claimed"`
	Refunded types.Amount `json:"refunded"`
}

// Cancel crystallizes vesting at now: everything vested goes to the
// recipient and the rest returns to the sender.
func (s *Stream) Cancel(now types.Height) Settlement {
	c := ComputeClaimable(s, now)
	refund := s.TotalAmount.Sub(s.ClaimedAmount).Sub(c.Amount)

	s.ClaimedAmount += c.Amount
	s.LastClaimBlock = now
	s.Status = StatusCancelled
	s.PauseStartBlock = nil
	s.Touch()

	return Settlement{Claimed: c.Amount, Refunded: refund}
}

// Pause marks the stream paused at now.
func (s *Stream) Pause(now types.Height) {
	h := now
	s.Status = StatusPaused
	s.PauseStartBlock = &h
	s.Touch()
}

// Resume reactivates a paused stream at now and returns the paused span.
//
// The schedule end moves out by the span and so does the last claim mark,
// clamped to the new end, so blocks spent paused never vest and the total
// payable over the stream's life is unchanged.
func (s *Stream) Resume(now types.Height) uint64 {
	var span uint64
	if s.PauseStartBlock != nil {
		span = now.Since(*s.PauseStartBlock)
	}

	s.Status = StatusActive
	s.PauseStartBlock = nil
	s.PausedDuration += span
	s.EndBlock = s.EndBlock.Add(span)
	s.LastClaimBlock = min(s.LastClaimBlock.Add(span), s.EndBlock)
	s.Touch()

	return span
}
