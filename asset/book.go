package asset

import (
	"context"
	"fmt"
	"sync"

	"github.com/xraph/drip/types"
)

// Book is an in-process Ledger holding balances in memory.
// It supports atomic batches.
type Book struct {
	mu       sync.RWMutex
	balances map[types.Identity]types.Amount
	journal  []Transfer
}

var (
	_ Ledger  = (*Book)(nil)
	_ Batcher = (*Book)(nil)
)

// NewBook returns an empty book.
func NewBook() *Book {
	return &Book{balances: make(map[types.Identity]types.Amount)}
}

// Mint credits amount to identity out of thin air.
func (b *Book) Mint(identity types.Identity, amount types.Amount) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	next, err := b.balances[identity].Add(amount)
	if err != nil {
		return fmt.Errorf("asset: mint %s: %w", identity, err)
	}
	b.balances[identity] = next
	return nil
}

// Balance implements Ledger.
func (b *Book) Balance(_ context.Context, identity types.Identity) (types.Amount, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.balances[identity], nil
}

// Transfer implements Ledger.
func (b *Book) Transfer(ctx context.Context, t Transfer) error {
	return b.TransferBatch(ctx, []Transfer{t})
}

// TransferBatch implements Batcher. Either every transfer applies or none.
func (b *Book) TransferBatch(ctx context.Context, batch []Transfer) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	staged := make(map[types.Identity]types.Amount)
	get := func(i types.Identity) types.Amount {
		if v, ok := staged[i]; ok {
			return v
		}
		return b.balances[i]
	}

	for _, t := range batch {
		if t.Amount == 0 || t.From == t.To {
			return fmt.Errorf("%w: %s -> %s amount %d", ErrInvalidTransfer, t.From, t.To, t.Amount)
		}
		from := get(t.From)
		if from < t.Amount {
			return fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientBalance, t.From, from, t.Amount)
		}
		to, err := get(t.To).Add(t.Amount)
		if err != nil {
			return fmt.Errorf("asset: credit %s: %w", t.To, err)
		}
		staged[t.From] = from - t.Amount
		staged[t.To] = to
	}

	for i, v := range staged {
		b.balances[i] = v
	}
	b.journal = append(b.journal, batch...)
	return nil
}

// Journal returns the applied transfers in order.
func (b *Book) Journal() []Transfer {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Transfer, len(b.journal))
	copy(out, b.journal)
	return out
}

// Total returns the sum of all balances.
func (b *Book) Total() types.Amount {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var total types.Amount
	for _, v := range b.balances {
		total += v
	}
	return total
}
