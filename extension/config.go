package extension

import (
	"github.com/xraph/drip"
)

// Store backends the extension can build on its own.
const (
	StoreMemory   = "memory"
	StoreBadger   = "badger"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Config holds the Drip extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.drip" or "drip" keys).
type Config struct {
	// DisableRoutes prevents building the HTTP API.
	DisableRoutes bool `json:"disable_routes" mapstructure:"disable_routes" yaml:"disable_routes"`

	// DisableMigrate prevents store migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// BasePath is the URL prefix for drip routes (default: "/drip").
	BasePath string `json:"base_path" mapstructure:"base_path" yaml:"base_path"`

	// Store selects the backend built when none is provided programmatically:
	// "memory" (default), "badger", "sqlite" or "postgres".
	Store string `json:"store" mapstructure:"store" yaml:"store"`

	// BadgerDir is the data directory for the badger store.
	BadgerDir string `json:"badger_dir" mapstructure:"badger_dir" yaml:"badger_dir"`

	// DSN is the connection string for the sqlite and postgres stores.
	DSN string `json:"-" mapstructure:"dsn" yaml:"dsn"`

	// BootstrapAdmin receives the admin role on first start.
	BootstrapAdmin string `json:"bootstrap_admin" mapstructure:"bootstrap_admin" yaml:"bootstrap_admin"`

	// FeeRate is the initial fee rate in basis points (default: 25).
	FeeRate uint64 `json:"fee_rate" mapstructure:"fee_rate" yaml:"fee_rate"`

	// EscrowAccount and TreasuryAccount name the engine's own accounts.
	EscrowAccount   string `json:"escrow_account" mapstructure:"escrow_account" yaml:"escrow_account"`
	TreasuryAccount string `json:"treasury_account" mapstructure:"treasury_account" yaml:"treasury_account"`

	// Limits bounds stream parameters. Zero uses drip.DefaultLimits.
	Limits drip.Limits `json:"limits" mapstructure:"limits" yaml:"limits"`

	// JWTSecret enables bearer authentication on the HTTP API.
	JWTSecret string `json:"-" mapstructure:"jwt_secret" yaml:"jwt_secret"`

	// JWTIssuer, when set, must match the token's "iss" claim.
	JWTIssuer string `json:"jwt_issuer" mapstructure:"jwt_issuer" yaml:"jwt_issuer"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BasePath:        "/drip",
		Store:           StoreMemory,
		FeeRate:         drip.DefaultFeeRate,
		EscrowAccount:   string(drip.DefaultEscrowAccount),
		TreasuryAccount: string(drip.DefaultTreasuryAccount),
		Limits:          drip.DefaultLimits(),
	}
}
