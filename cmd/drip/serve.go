package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/xraph/drip"
	"github.com/xraph/drip/api"
	"github.com/xraph/drip/asset"
	audithook "github.com/xraph/drip/audit_hook"
	"github.com/xraph/drip/emergency"
	"github.com/xraph/drip/kafkasink"
	"github.com/xraph/drip/observability"
	dripprom "github.com/xraph/drip/observability/prometheus"
	"github.com/xraph/drip/store"
	"github.com/xraph/drip/store/badger"
	"github.com/xraph/drip/store/memory"
	"github.com/xraph/drip/store/postgres"
	"github.com/xraph/drip/store/sqlite"
	"github.com/xraph/drip/treasury"
	"github.com/xraph/drip/types"
)

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, newLogger(cmd.ErrOrStderr(), cfg.Log))
		},
	}

	cmd.Flags().String("listen", "", "HTTP listen address")
	_ = v.BindPFlag("http.listen", cmd.Flags().Lookup("listen"))
	return cmd
}

// node is a fully wired engine with its HTTP surface.
type node struct {
	engine  *drip.Engine
	book    *asset.Book
	handler http.Handler
}

func openStore(ctx context.Context, cfg StoreConfig, logger *slog.Logger) (store.Store, error) {
	switch cfg.Driver {
	case "badger":
		s, err := badger.Open(badger.Options{Dir: cfg.Dir, Logger: logger})
		if err != nil {
			return nil, err
		}
		return s, nil
	case "sqlite":
		s, err := sqlite.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres":
		s, err := postgres.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return memory.New(), nil
	}
}

// errVolatileAssets is returned when a durable store already holds engine
// state. Balances live in the in-process asset book, so escrow and wallets
// would start empty while the store still owes recipients.
var errVolatileAssets = errors.New("store holds state from a previous run but the asset book is in memory")

// checkFreshStore refuses a durable store that was already seeded.
func checkFreshStore(ctx context.Context, cfg StoreConfig, st store.Store) error {
	if !cfg.Durable() {
		return nil
	}
	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate store: %w", err)
	}
	g, err := st.GetGlobals(ctx)
	if err != nil {
		return fmt.Errorf("read globals: %w", err)
	}
	if g.Initialized() {
		return fmt.Errorf("%s store: %w", cfg.Driver, errVolatileAssets)
	}
	return nil
}

func newClock(cfg ClockConfig) (*drip.IntervalClock, error) {
	genesis, err := cfg.GenesisTime()
	if err != nil {
		return nil, fmt.Errorf("clock genesis: %w", err)
	}
	clock, err := drip.NewIntervalClock(genesis, cfg.BlockInterval)
	if err != nil {
		return nil, err
	}
	clock.Base = types.Height(cfg.BaseHeight)
	return clock, nil
}

// buildNode wires storage, plugins, collaborators and routes. The clock is
// passed in so tests can drive it.
func buildNode(ctx context.Context, cfg *Config, clock drip.Clock, logger *slog.Logger) (*node, error) {
	st, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := checkFreshStore(ctx, cfg.Store, st); err != nil {
		_ = st.Close()
		return nil, err
	}

	book := asset.NewBook()
	for who, amount := range cfg.Balances {
		if err := book.Mint(types.Identity(who), types.Amount(amount)); err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("seed balance %s: %w", who, err)
		}
	}

	opts := []drip.Option{
		drip.WithLogger(logger),
		drip.WithClock(clock),
		drip.WithAssetLedger(book),
		drip.WithBootstrapAdmin(types.Identity(cfg.Engine.BootstrapAdmin)),
		drip.WithFeeRate(cfg.Engine.FeeRate),
		drip.WithEscrowAccount(types.Identity(cfg.Engine.EscrowAccount)),
		drip.WithTreasuryAccount(types.Identity(cfg.Engine.TreasuryAccount)),
		drip.WithPlugin(audithook.New(auditLogger(logger), audithook.WithLogger(logger))),
	}

	var registry *prometheus.Registry
	if cfg.Metrics.Enabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics := observability.NewMetricsExtension(dripprom.NewFactory(registry))
		opts = append(opts, drip.WithPlugin(metrics))
	}

	if len(cfg.Kafka.Brokers) > 0 {
		sink, err := kafkasink.New(cfg.Kafka.Brokers, cfg.Kafka.Topic, nil, kafkasink.WithLogger(logger))
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		opts = append(opts, drip.WithPlugin(sink))
	}

	engine := drip.New(st, opts...)
	tr := treasury.New(engine, treasury.WithLogger(logger))
	em := emergency.New(engine, emergency.WithTreasury(tr), emergency.WithLogger(logger))

	auth, err := api.NewAuthenticator([]byte(cfg.Auth.JWTSecret), cfg.Auth.Issuer)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	server := api.New(engine,
		api.WithAuthenticator(auth),
		api.WithBasePath(cfg.HTTP.BasePath),
		api.WithLogger(logger),
		api.WithTreasury(tr),
		api.WithEmergency(em),
	)

	root := mux.NewRouter()
	if registry != nil {
		root.Handle(cfg.Metrics.Path, promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	}
	root.PathPrefix("/").Handler(server)

	return &node{engine: engine, book: book, handler: root}, nil
}

func auditLogger(logger *slog.Logger) audithook.Recorder {
	return audithook.RecorderFunc(func(_ context.Context, e *audithook.AuditEvent) error {
		logger.Info("audit",
			"action", e.Action,
			"resource", e.Resource,
			"resource_id", e.ResourceID,
			"actor", e.Actor,
			"outcome", e.Outcome,
			"severity", e.Severity,
		)
		return nil
	})
}

func serve(ctx context.Context, cfg *Config, logger *slog.Logger) error {
	clock, err := newClock(cfg.Clock)
	if err != nil {
		return err
	}
	n, err := buildNode(ctx, cfg, clock, logger)
	if err != nil {
		return err
	}
	if err := n.engine.Start(ctx); err != nil {
		_ = n.engine.Stop()
		return err
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Listen,
		Handler:           n.handler,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("http listening", "addr", cfg.HTTP.Listen, "base_path", cfg.HTTP.BasePath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err = <-errc:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		logger.Warn("http shutdown", "error", serr)
	}

	if serr := n.engine.Stop(); serr != nil && err == nil {
		err = serr
	}
	return err
}
