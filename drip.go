package drip

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/xraph/drip/access"
	"github.com/xraph/drip/asset"
	"github.com/xraph/drip/plugin"
	"github.com/xraph/drip/store"
	"github.com/xraph/drip/types"
)

// Default account identities.
const (
	DefaultEscrowAccount   types.Identity = "drip.escrow"
	DefaultTreasuryAccount types.Identity = "drip.treasury"
	DefaultFeeRate         uint64         = 25
)

// Limits bounds stream parameters and admin hand-over timing.
type Limits struct {
	MinAmount          types.Amount `json:"min_amount" mapstructure:"min_amount" yaml:"min_amount"`
	MaxAmount          types.Amount `json:"max_amount" mapstructure:"max_amount" yaml:"max_amount"`
	MinDuration        uint64       `json:"min_duration" mapstructure:"min_duration" yaml:"min_duration"`
	MaxDuration        uint64       `json:"max_duration" mapstructure:"max_duration" yaml:"max_duration"`
	MaxStartDelay      uint64       `json:"max_start_delay" mapstructure:"max_start_delay" yaml:"max_start_delay"`
	MaxActiveStreams   uint64       `json:"max_active_streams" mapstructure:"max_active_streams" yaml:"max_active_streams"`
	MaxIndexedStreams  int          `json:"max_indexed_streams" mapstructure:"max_indexed_streams" yaml:"max_indexed_streams"`
	MaxMetadataLen     int          `json:"max_metadata_len" mapstructure:"max_metadata_len" yaml:"max_metadata_len"`
	AdminTransferDelay uint64       `json:"admin_transfer_delay" mapstructure:"admin_transfer_delay" yaml:"admin_transfer_delay"`
	MaxFeeRate         uint64       `json:"max_fee_rate" mapstructure:"max_fee_rate" yaml:"max_fee_rate"`
}

// DefaultLimits returns the production limits. Durations are in blocks;
// 144 blocks is roughly one day.
func DefaultLimits() Limits {
	return Limits{
		MinAmount:          1_000,
		MaxAmount:          100_000_000_000,
		MinDuration:        1,
		MaxDuration:        52_560,
		MaxStartDelay:      4_320,
		MaxActiveStreams:   100,
		MaxIndexedStreams:  500,
		MaxMetadataLen:     256,
		AdminTransferDelay: 144,
		MaxFeeRate:         1_000,
	}
}

// Validate checks that the limits are internally consistent.
func (l Limits) Validate() error {
	switch {
	case l.MinAmount == 0 || l.MinAmount > l.MaxAmount:
		return ValidationError{Field: "min_amount", Message: "must be positive and not above max_amount"}
	case l.MinDuration == 0 || l.MinDuration > l.MaxDuration:
		return ValidationError{Field: "min_duration", Message: "must be positive and not above max_duration"}
	case l.MaxActiveStreams == 0:
		return ValidationError{Field: "max_active_streams", Message: "must be positive"}
	case l.MaxIndexedStreams <= 0:
		return ValidationError{Field: "max_indexed_streams", Message: "must be positive"}
	case l.MaxMetadataLen < 0:
		return ValidationError{Field: "max_metadata_len", Message: "must not be negative"}
	case l.MaxFeeRate > 10_000:
		return ValidationError{Field: "max_fee_rate", Message: "must not exceed 10000 basis points"}
	}
	return nil
}

// Engine is the stream ledger and access-control engine.
type Engine struct {
	store   store.Store
	assets  asset.Ledger
	clock   Clock
	plugins *plugin.Registry
	logger  *slog.Logger

	// Operations are serialized, as on the host ledger.
	mu      sync.Mutex
	started atomic.Bool

	// Configuration
	limits         Limits
	feeRate        uint64
	escrow         types.Identity
	treasury       types.Identity
	bootstrapAdmin types.Identity
	skipMigrate    bool
}

// New creates a new Engine instance.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:    s,
		assets:   asset.NewBook(),
		clock:    NewManualClock(0),
		plugins:  plugin.NewRegistry(),
		logger:   slog.Default(),
		limits:   DefaultLimits(),
		feeRate:  DefaultFeeRate,
		escrow:   DefaultEscrowAccount,
		treasury: DefaultTreasuryAccount,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithClock sets the block height source.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithAssetLedger sets the asset transfer collaborator.
func WithAssetLedger(l asset.Ledger) Option {
	return func(e *Engine) {
		e.assets = l
	}
}

// WithLimits replaces the default limits.
func WithLimits(l Limits) Option {
	return func(e *Engine) {
		e.limits = l
	}
}

// WithFeeRate sets the initial fee rate in basis points. It applies only
// when the store has not been initialized yet.
func WithFeeRate(bps uint64) Option {
	return func(e *Engine) {
		e.feeRate = bps
	}
}

// WithEscrowAccount sets the identity holding escrowed value.
func WithEscrowAccount(identity types.Identity) Option {
	return func(e *Engine) {
		e.escrow = identity
	}
}

// WithTreasuryAccount sets the identity receiving fees.
func WithTreasuryAccount(identity types.Identity) Option {
	return func(e *Engine) {
		e.treasury = identity
	}
}

// WithBootstrapAdmin grants Admin to identity on Start if nobody holds it.
func WithBootstrapAdmin(identity types.Identity) Option {
	return func(e *Engine) {
		e.bootstrapAdmin = identity
	}
}

// WithoutMigrate skips store migration on Start, for stores whose schema
// is managed elsewhere.
func WithoutMigrate() Option {
	return func(e *Engine) {
		e.skipMigrate = true
	}
}

// Start migrates the store, seeds global state and initializes plugins.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.limits.Validate(); err != nil {
		return err
	}
	if e.feeRate > e.limits.MaxFeeRate {
		return fmt.Errorf("%w: %d > %d", ErrInvalidFeeRate, e.feeRate, e.limits.MaxFeeRate)
	}
	if e.escrow == e.treasury {
		return ValidationError{Field: "treasury_account", Message: "must differ from escrow account"}
	}

	if !e.skipMigrate {
		if err := e.store.Migrate(ctx); err != nil {
			return storeError("migrate", err)
		}
	}

	if err := e.seed(ctx); err != nil {
		return err
	}
	e.started.Store(true)

	// Initialize plugins
	e.plugins.EmitInit(ctx, e)

	e.logger.Info("drip started",
		"fee_rate", e.feeRate,
		"escrow", e.escrow,
		"treasury", e.treasury,
		"plugins", e.plugins.Count(),
	)

	return nil
}

// seed initializes globals and the bootstrap admin in one unit.
func (e *Engine) seed(ctx context.Context) error {
	return e.apply(ctx, e.bootstrapAdmin, func(u *unit) error {
		g, err := u.globals()
		if err != nil {
			return err
		}
		if !g.Initialized() {
			g.NextID = 1
			g.FeeRate = e.feeRate
		}

		if e.bootstrapAdmin == "" {
			return nil
		}
		if err := e.bootstrapAdmin.Validate(); err != nil {
			return fmt.Errorf("%w: bootstrap admin: %w", ErrInvalidIdentity, err)
		}
		admins, err := e.store.ListRoleHolders(ctx, access.RoleAdmin)
		if err != nil {
			return storeError("list admins", err)
		}
		if len(admins) > 0 {
			return nil
		}
		return u.grant(access.RoleAdmin, e.bootstrapAdmin)
	})
}

// Stop shuts down the Engine.
func (e *Engine) Stop() error {
	e.started.Store(false)

	ctx := context.Background()
	e.plugins.EmitShutdown(ctx)

	return e.store.Close()
}

// Plugins returns the plugin registry.
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Assets returns the asset transfer collaborator.
func (e *Engine) Assets() asset.Ledger { return e.assets }

// Limits returns the configured limits.
func (e *Engine) Limits() Limits { return e.limits }

// EscrowAccount returns the identity holding escrowed value.
func (e *Engine) EscrowAccount() types.Identity { return e.escrow }

// TreasuryAccount returns the identity receiving fees.
func (e *Engine) TreasuryAccount() types.Identity { return e.treasury }

// BlockHeight reads the injected clock.
func (e *Engine) BlockHeight(ctx context.Context) (types.Height, error) {
	h, err := e.clock.BlockHeight(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrClockUnavailable, err)
	}
	return h, nil
}
