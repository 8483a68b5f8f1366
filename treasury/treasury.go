// Package treasury manages the account that collects stream fees.
//
// Balances live in the asset ledger and the lock flag lives in the engine's
// globals, so a restart keeps withdrawals blocked. Authorization, the lock
// check and the transfer itself run inside one engine operation, which also
// writes the event record.
package treasury

import (
	"context"
	"log/slog"

	"github.com/xraph/drip"
	"github.com/xraph/drip/asset"
	"github.com/xraph/drip/types"
)

// Backend holds the treasury state. *drip.Engine implements it.
type Backend interface {
	TreasuryAccount() types.Identity
	Assets() asset.Ledger
	TreasuryLocked(ctx context.Context) (bool, error)
	SetTreasuryLocked(ctx context.Context, locked bool) error
	WithdrawTreasury(ctx context.Context, amount types.Amount, to types.Identity) (asset.Transfer, error)
}

var _ Backend = (*drip.Engine)(nil)

// Treasury is the fee sink.
type Treasury struct {
	backend Backend
	logger  *slog.Logger
}

// Option configures a Treasury.
type Option func(*Treasury)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Treasury) { t.logger = logger }
}

// New creates a treasury over backend.
func New(backend Backend, opts ...Option) *Treasury {
	t := &Treasury{
		backend: backend,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Account returns the sink identity.
func (t *Treasury) Account() types.Identity { return t.backend.TreasuryAccount() }

// Locked reports whether withdrawals are blocked.
func (t *Treasury) Locked(ctx context.Context) (bool, error) {
	return t.backend.TreasuryLocked(ctx)
}

// Lock blocks withdrawals. The caller needs access-treasury or
// emergency-stop.
func (t *Treasury) Lock(ctx context.Context) error {
	if err := t.backend.SetTreasuryLocked(ctx, true); err != nil {
		return err
	}
	t.logger.Warn("treasury locked", "by", caller(ctx))
	return nil
}

// Unlock allows withdrawals again. The caller needs access-treasury or
// emergency-stop.
func (t *Treasury) Unlock(ctx context.Context) error {
	if err := t.backend.SetTreasuryLocked(ctx, false); err != nil {
		return err
	}
	t.logger.Info("treasury unlocked", "by", caller(ctx))
	return nil
}

// Withdraw moves amount from the treasury to to. The caller needs
// access-treasury and the treasury must be unlocked.
func (t *Treasury) Withdraw(ctx context.Context, amount types.Amount, to types.Identity) (asset.Transfer, error) {
	tr, err := t.backend.WithdrawTreasury(ctx, amount, to)
	if err != nil {
		return asset.Transfer{}, err
	}

	t.logger.Info("treasury withdrawal",
		"transfer", tr.ID.String(),
		"amount", amount,
		"to", to,
		"by", caller(ctx),
	)
	return tr, nil
}

// Balance returns the treasury's balance in the asset ledger.
func (t *Treasury) Balance(ctx context.Context) (types.Amount, error) {
	return t.backend.Assets().Balance(ctx, t.Account())
}

func caller(ctx context.Context) types.Identity {
	identity, _ := drip.CallerFrom(ctx)
	return identity
}
