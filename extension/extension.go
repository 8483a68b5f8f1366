// Package extension provides the Forge extension adapter for Drip.
//
// It implements the forge.Extension interface to integrate Drip
// into a Forge application with automatic dependency discovery,
// DI registration, and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.drip" or "drip" keys.
package extension

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/drip"
	"github.com/xraph/drip/api"
	"github.com/xraph/drip/emergency"
	"github.com/xraph/drip/store"
	"github.com/xraph/drip/store/badger"
	"github.com/xraph/drip/store/memory"
	"github.com/xraph/drip/store/postgres"
	"github.com/xraph/drip/store/sqlite"
	"github.com/xraph/drip/treasury"
	"github.com/xraph/drip/types"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "drip"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Block-height payment streams with role-based access control"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Drip as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config    Config
	engine    *drip.Engine
	store     store.Store
	treasury  *treasury.Treasury
	emergency *emergency.Coordinator
	server    *api.Server
	dripOpts  []drip.Option
}

// New creates a new Drip Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Drip engine.
// This is nil until Register is called.
func (e *Extension) Engine() *drip.Engine { return e.engine }

// Treasury returns the fee treasury.
func (e *Extension) Treasury() *treasury.Treasury { return e.treasury }

// Emergency returns the emergency coordinator.
func (e *Extension) Emergency() *emergency.Coordinator { return e.emergency }

// Handler returns the HTTP API, or nil when routes are disabled.
func (e *Extension) Handler() http.Handler {
	if e.server == nil {
		return nil
	}
	return e.server
}

// Register implements [forge.Extension]. It loads configuration,
// initializes the drip engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if err := e.build(); err != nil {
		return err
	}

	c := fapp.Container()
	if err := vessel.Provide(c, func() (*drip.Engine, error) {
		return e.engine, nil
	}); err != nil {
		return err
	}
	if err := vessel.Provide(c, func() (*treasury.Treasury, error) {
		return e.treasury, nil
	}); err != nil {
		return err
	}
	if err := vessel.Provide(c, func() (*emergency.Coordinator, error) {
		return e.emergency, nil
	}); err != nil {
		return err
	}
	if e.server != nil {
		return vessel.Provide(c, func() (*api.Server, error) {
			return e.server, nil
		})
	}
	return nil
}

// build constructs the store, engine, collaborators and HTTP API from the
// resolved config.
func (e *Extension) build() error {
	if e.store == nil {
		s, err := e.openStore()
		if err != nil {
			return err
		}
		e.store = s
	}

	e.engine = drip.New(e.store, e.buildDripOpts()...)
	e.treasury = treasury.New(e.engine)
	e.emergency = emergency.New(e.engine, emergency.WithTreasury(e.treasury))

	if e.config.DisableRoutes {
		return nil
	}

	opts := []api.Option{
		api.WithBasePath(e.config.BasePath),
		api.WithTreasury(e.treasury),
		api.WithEmergency(e.emergency),
	}
	if e.config.JWTSecret != "" {
		auth, err := api.NewAuthenticator([]byte(e.config.JWTSecret), e.config.JWTIssuer)
		if err != nil {
			return err
		}
		opts = append(opts, api.WithAuthenticator(auth))
	}
	e.server = api.New(e.engine, opts...)
	return nil
}

func (e *Extension) openStore() (store.Store, error) {
	switch e.config.Store {
	case "", StoreMemory:
		return memory.New(), nil
	case StoreBadger:
		if e.config.BadgerDir == "" {
			return nil, errors.New("drip: badger store requires badger_dir")
		}
		s, err := badger.Open(badger.Options{Dir: e.config.BadgerDir})
		if err != nil {
			return nil, err
		}
		return s, nil
	case StoreSQLite:
		if e.config.DSN == "" {
			return nil, errors.New("drip: sqlite store requires dsn")
		}
		s, err := sqlite.Open(context.Background(), e.config.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	case StorePostgres:
		if e.config.DSN == "" {
			return nil, errors.New("drip: postgres store requires dsn")
		}
		s, err := postgres.Open(context.Background(), e.config.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("drip: unknown store %q", e.config.Store)
	}
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("drip: extension not initialized")
	}

	if err := e.engine.Start(ctx); err != nil {
		return err
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("drip: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildDripOpts constructs drip.Option values from the resolved config.
func (e *Extension) buildDripOpts() []drip.Option {
	opts := make([]drip.Option, 0, len(e.dripOpts)+6)

	opts = append(opts,
		drip.WithLimits(e.config.Limits),
		drip.WithFeeRate(e.config.FeeRate),
		drip.WithEscrowAccount(types.Identity(e.config.EscrowAccount)),
		drip.WithTreasuryAccount(types.Identity(e.config.TreasuryAccount)),
	)
	if e.config.BootstrapAdmin != "" {
		opts = append(opts, drip.WithBootstrapAdmin(types.Identity(e.config.BootstrapAdmin)))
	}
	if e.config.DisableMigrate {
		opts = append(opts, drip.WithoutMigrate())
	}

	// Append any pass-through drip options.
	opts = append(opts, e.dripOpts...)

	return opts
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("drip: configuration is required but not found in config files; " +
				"ensure 'extensions.drip' or 'drip' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("drip: configuration loaded",
		forge.F("disable_routes", e.config.DisableRoutes),
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("base_path", e.config.BasePath),
		forge.F("store", e.config.Store),
		forge.F("fee_rate", e.config.FeeRate),
		forge.F("jwt", e.config.JWTSecret != ""),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()

	for _, key := range []string{"extensions.drip", "drip"} {
		if !cm.IsSet(key) {
			continue
		}
		var cfg Config
		if err := cm.Bind(key, &cfg); err == nil {
			e.Logger().Debug("drip: loaded config from file",
				forge.F("key", key),
			)
			return cfg, true
		}
		e.Logger().Warn("drip: failed to bind config",
			forge.F("key", key),
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.BasePath == "" {
		cfg.BasePath = defaults.BasePath
	}
	if cfg.Store == "" {
		cfg.Store = defaults.Store
	}
	if cfg.FeeRate == 0 {
		cfg.FeeRate = defaults.FeeRate
	}
	if cfg.EscrowAccount == "" {
		cfg.EscrowAccount = defaults.EscrowAccount
	}
	if cfg.TreasuryAccount == "" {
		cfg.TreasuryAccount = defaults.TreasuryAccount
	}
	if cfg.Limits == (drip.Limits{}) {
		cfg.Limits = defaults.Limits
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic values fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableRoutes {
		yamlConfig.DisableRoutes = true
	}
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}

	fill := func(dst *string, src string) {
		if *dst == "" && src != "" {
			*dst = src
		}
	}
	fill(&yamlConfig.BasePath, programmaticConfig.BasePath)
	fill(&yamlConfig.Store, programmaticConfig.Store)
	fill(&yamlConfig.BadgerDir, programmaticConfig.BadgerDir)
	fill(&yamlConfig.DSN, programmaticConfig.DSN)
	fill(&yamlConfig.BootstrapAdmin, programmaticConfig.BootstrapAdmin)
	fill(&yamlConfig.EscrowAccount, programmaticConfig.EscrowAccount)
	fill(&yamlConfig.TreasuryAccount, programmaticConfig.TreasuryAccount)
	fill(&yamlConfig.JWTSecret, programmaticConfig.JWTSecret)
	fill(&yamlConfig.JWTIssuer, programmaticConfig.JWTIssuer)

	if yamlConfig.FeeRate == 0 && programmaticConfig.FeeRate != 0 {
		yamlConfig.FeeRate = programmaticConfig.FeeRate
	}
	if yamlConfig.Limits == (drip.Limits{}) {
		yamlConfig.Limits = programmaticConfig.Limits
	}

	// Fill remaining zeros with defaults.
	return mergeWithDefaults(yamlConfig)
}
