// Package asset defines the collaborator that moves the pegged asset between
// identities, and an in-process implementation of it.
package asset

import (
	"context"
	"errors"

	"github.com/xraph/drip/id"
	"github.com/xraph/drip/types"
)

// ErrInsufficientBalance is returned when the source cannot cover a transfer.
var ErrInsufficientBalance = errors.New("asset: insufficient balance")

// ErrInvalidTransfer is returned for zero amounts or identical endpoints.
var ErrInvalidTransfer = errors.New("asset: invalid transfer")

// Transfer moves Amount from From to To.
type Transfer struct {
	ID     id.TransferID  `json:"id"`
	Amount types.Amount   `json:"amount"`
	From   types.Identity `json:"from"`
	To     types.Identity `json:"to"`
	Memo   string         `json:"memo,omitempty"`
}

// Reverse returns the compensating transfer.
func (t Transfer) Reverse() Transfer {
	return Transfer{
		ID:     id.NewTransferID(),
		Amount: t.Amount,
		From:   t.To,
		To:     t.From,
		Memo:   "reverse " + t.ID.String(),
	}
}

// Ledger is the asset transfer collaborator.
type Ledger interface {
	Transfer(ctx context.Context, t Transfer) error
	Balance(ctx context.Context, identity types.Identity) (types.Amount, error)
}

// Batcher is implemented by ledgers that can apply several transfers as one
// all-or-nothing unit.
type Batcher interface {
	TransferBatch(ctx context.Context, batch []Transfer) error
}
