package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config is the standalone server configuration. It is read from an
// optional file and DRIP_* environment variables, e.g. DRIP_HTTP_LISTEN.
type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Store   StoreConfig   `mapstructure:"store"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Clock   ClockConfig   `mapstructure:"clock"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`

	// Balances seeds the in-memory asset book at startup.
	Balances map[string]uint64 `mapstructure:"balances"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

type HTTPConfig struct {
	Listen            string        `mapstructure:"listen" validate:"required,hostname_port"`
	BasePath          string        `mapstructure:"base_path"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" validate:"gt=0"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret" validate:"required,min=16"`
	Issuer    string        `mapstructure:"issuer"`
	TokenTTL  time.Duration `mapstructure:"token_ttl" validate:"gt=0"`
}

type StoreConfig struct {
	Driver string `mapstructure:"driver" validate:"oneof=memory badger sqlite postgres"`
	Dir    string `mapstructure:"dir" validate:"required_if=Driver badger"`
	DSN    string `mapstructure:"dsn" validate:"required_if=Driver sqlite,required_if=Driver postgres"`
}

// Durable reports whether the driver keeps state across restarts.
func (c StoreConfig) Durable() bool { return c.Driver != "memory" }

type EngineConfig struct {
	BootstrapAdmin  string `mapstructure:"bootstrap_admin" validate:"required,max=128"`
	FeeRate         uint64 `mapstructure:"fee_rate" validate:"lte=10000"`
	EscrowAccount   string `mapstructure:"escrow_account" validate:"required,nefield=TreasuryAccount"`
	TreasuryAccount string `mapstructure:"treasury_account" validate:"required"`
}

type ClockConfig struct {
	Genesis       string        `mapstructure:"genesis" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	BlockInterval time.Duration `mapstructure:"block_interval" validate:"gt=0"`
	BaseHeight    uint64        `mapstructure:"base_height"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path" validate:"required_if=Enabled true"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// GenesisTime parses the clock genesis.
func (c ClockConfig) GenesisTime() (time.Time, error) {
	return time.Parse(time.RFC3339, c.Genesis)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("http.listen", "127.0.0.1:8080")
	v.SetDefault("http.base_path", "/drip")
	v.SetDefault("http.read_header_timeout", 10*time.Second)
	v.SetDefault("http.shutdown_timeout", 15*time.Second)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "drip")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.dir", "")
	v.SetDefault("store.dsn", "")
	v.SetDefault("engine.bootstrap_admin", "")
	v.SetDefault("engine.fee_rate", 25)
	v.SetDefault("engine.escrow_account", "drip.escrow")
	v.SetDefault("engine.treasury_account", "drip.treasury")
	v.SetDefault("clock.genesis", "2026-01-01T00:00:00Z")
	v.SetDefault("clock.block_interval", 10*time.Minute)
	v.SetDefault("clock.base_height", 0)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "")
}

// loadConfig reads the config file named by config_file, if any, overlays
// DRIP_* environment variables and validates the result.
func loadConfig(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix("DRIP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file := v.GetString("config_file"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func validateConfig(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.Topic == "" {
			return errors.New("invalid config: Config.Kafka.Topic: required with brokers")
		}
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func newLogger(w io.Writer, c LogConfig) *slog.Logger {
	var level slog.Level
	_ = level.UnmarshalText([]byte(c.Level))

	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
