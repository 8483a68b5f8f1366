package extension

import (
	"github.com/xraph/drip"
	"github.com/xraph/drip/plugin"
	"github.com/xraph/drip/store"
)

// Option configures the Drip Forge extension.
type Option func(*Extension)

// WithStore sets the store for the drip engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithDripOption passes a drip.Option through to the underlying engine.
func WithDripOption(opt drip.Option) Option {
	return func(e *Extension) {
		e.dripOpts = append(e.dripOpts, opt)
	}
}

// WithPlugin registers a drip plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.dripOpts = append(e.dripOpts, drip.WithPlugin(p))
	}
}

// WithClock sets the block height source.
func WithClock(c drip.Clock) Option {
	return func(e *Extension) {
		e.dripOpts = append(e.dripOpts, drip.WithClock(c))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableRoutes prevents building the HTTP API.
func WithDisableRoutes() Option {
	return func(e *Extension) { e.config.DisableRoutes = true }
}

// WithDisableMigrate prevents store migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithBasePath sets the URL prefix for drip routes.
func WithBasePath(path string) Option {
	return func(e *Extension) { e.config.BasePath = path }
}

// WithBootstrapAdmin sets the identity granted admin on first start.
func WithBootstrapAdmin(identity string) Option {
	return func(e *Extension) { e.config.BootstrapAdmin = identity }
}

// WithJWT enables bearer authentication on the HTTP API.
func WithJWT(secret, issuer string) Option {
	return func(e *Extension) {
		e.config.JWTSecret = secret
		e.config.JWTIssuer = issuer
	}
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}
