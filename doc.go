// Package drip provides programmable, time-released payment streams for Go
// applications.
//
// A sender escrows value and a recipient accrues the right to withdraw it
// linearly over a span of block heights. Drip is designed as a library, not a
// service. Import it directly into the application that hosts the ledger. It
// provides:
//
//   - Linear vesting with integer-only arithmetic and per-stream fee capture
//   - Claim, cancel, pause and resume with a strict stream state machine
//   - Capability-based access control over a fixed role set
//   - A two-phase admin hand-over guarded by a block delay
//   - All-or-nothing operations spanning the store and the asset ledger
//   - An ordered event log plus post-commit plugin hooks
//
// # Quick Start
//
//	import (
//	    "github.com/xraph/drip"
//	    "github.com/xraph/drip/store/badger"
//	)
//
//	st, err := badger.Open(badger.Options{Dir: "/var/lib/drip"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	engine := drip.New(st,
//	    drip.WithClock(chainClock),
//	    drip.WithAssetLedger(assets),
//	    drip.WithBootstrapAdmin("SP2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKNRV9EJ7"),
//	)
//	if err := engine.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Stop()
//
// # Streams
//
// Every mutating call runs on behalf of the identity carried in the context:
//
//	ctx = drip.WithCaller(ctx, sender)
//	streamID, err := engine.CreateStream(ctx, drip.CreateParams{
//	    Recipient: recipient,
//	    Amount:    1_000_000,
//	    Duration:  4_320,
//	})
//
// The fee is taken from the deposit up front; the remaining net amount is
// released at floor(net / duration) per block, and a claim at or after the
// end block also pays the units left over by that rounding. The recipient
// withdraws with ClaimStream; the sender may PauseStream, ResumeStream or
// CancelStream.
// Resuming pushes the schedule out by the paused span, and paused blocks
// never vest.
//
// # Time
//
// Drip has no wall clock. The injected Clock reports the host ledger's block
// height, which must never decrease. ManualClock drives tests.
//
// # Errors
//
// Every failure is a *Error with a Kind (authorization, validation,
// state_conflict, resource_exhausted, external_transfer_failure, not_found,
// internal) and a stable numeric code. A failed operation has no effect on
// the store, the asset ledger or the event log.
package drip
