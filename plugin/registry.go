package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/drip/access"
	"github.com/xraph/drip/event"
	"github.com/xraph/drip/stream"
	"github.com/xraph/drip/types"
)

// DefaultTimeout bounds a single plugin call.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit             []OnInit
	onShutdown         []OnShutdown
	onEvent            []OnEvent
	onStreamCreated    []OnStreamCreated
	onStreamClaimed    []OnStreamClaimed
	onStreamCancelled  []OnStreamCancelled
	onStreamPaused     []OnStreamPaused
	onStreamResumed    []OnStreamResumed
	onRoleGranted      []OnRoleGranted
	onRoleRevoked      []OnRoleRevoked
	onAdminTransferred []OnAdminTransferred
	onContractPaused   []OnContractPaused
	onFeeRateChanged   []OnFeeRateChanged
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-call timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	r.timeout = d
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for duplicate
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnEvent); ok {
		r.onEvent = append(r.onEvent, v)
	}
	if v, ok := p.(OnStreamCreated); ok {
		r.onStreamCreated = append(r.onStreamCreated, v)
	}
	if v, ok := p.(OnStreamClaimed); ok {
		r.onStreamClaimed = append(r.onStreamClaimed, v)
	}
	if v, ok := p.(OnStreamCancelled); ok {
		r.onStreamCancelled = append(r.onStreamCancelled, v)
	}
	if v, ok := p.(OnStreamPaused); ok {
		r.onStreamPaused = append(r.onStreamPaused, v)
	}
	if v, ok := p.(OnStreamResumed); ok {
		r.onStreamResumed = append(r.onStreamResumed, v)
	}
	if v, ok := p.(OnRoleGranted); ok {
		r.onRoleGranted = append(r.onRoleGranted, v)
	}
	if v, ok := p.(OnRoleRevoked); ok {
		r.onRoleRevoked = append(r.onRoleRevoked, v)
	}
	if v, ok := p.(OnAdminTransferred); ok {
		r.onAdminTransferred = append(r.onAdminTransferred, v)
	}
	if v, ok := p.(OnContractPaused); ok {
		r.onContractPaused = append(r.onContractPaused, v)
	}
	if v, ok := p.(OnFeeRateChanged); ok {
		r.onFeeRateChanged = append(r.onFeeRateChanged, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", implementedInterfaces(p),
	)

	return nil
}

var hookTypes = []struct {
	typ  reflect.Type
	name string
}{
	{reflect.TypeFor[OnInit](), "OnInit"},
	{reflect.TypeFor[OnShutdown](), "OnShutdown"},
	{reflect.TypeFor[OnEvent](), "OnEvent"},
	{reflect.TypeFor[OnStreamCreated](), "OnStreamCreated"},
	{reflect.TypeFor[OnStreamClaimed](), "OnStreamClaimed"},
	{reflect.TypeFor[OnStreamCancelled](), "OnStreamCancelled"},
	{reflect.TypeFor[OnStreamPaused](), "OnStreamPaused"},
	{reflect.TypeFor[OnStreamResumed](), "OnStreamResumed"},
	{reflect.TypeFor[OnRoleGranted](), "OnRoleGranted"},
	{reflect.TypeFor[OnRoleRevoked](), "OnRoleRevoked"},
	{reflect.TypeFor[OnAdminTransferred](), "OnAdminTransferred"},
	{reflect.TypeFor[OnContractPaused](), "OnContractPaused"},
	{reflect.TypeFor[OnFeeRateChanged](), "OnFeeRateChanged"},
}

// implementedInterfaces returns the hook names a plugin implements.
func implementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)
	for _, h := range hookTypes {
		if v.Implements(h.typ) {
			interfaces = append(interfaces, h.name)
		}
	}
	return interfaces
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// dispatch calls fn for every plugin in hooks, logging failures.
func dispatch[H Plugin](ctx context.Context, r *Registry, hook string, hooks []H, fn func(H) error) {
	for _, p := range hooks {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return fn(p)
		}); err != nil {
			r.logger.Warn("plugin "+hook+" failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

func snapshot[H any](r *Registry, hooks *[]H) []H {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return *hooks
}

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine any) {
	dispatch(ctx, r, "OnInit", snapshot(r, &r.onInit), func(p OnInit) error {
		return p.OnInit(ctx, engine)
	})
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	dispatch(ctx, r, "OnShutdown", snapshot(r, &r.onShutdown), func(p OnShutdown) error {
		return p.OnShutdown(ctx)
	})
}

// EmitEvent forwards a committed event record.
func (r *Registry) EmitEvent(ctx context.Context, e *event.Event) {
	dispatch(ctx, r, "OnEvent", snapshot(r, &r.onEvent), func(p OnEvent) error {
		return p.OnEvent(ctx, e)
	})
}

// EmitStreamCreated emits a stream created event.
func (r *Registry) EmitStreamCreated(ctx context.Context, s *stream.Stream) {
	dispatch(ctx, r, "OnStreamCreated", snapshot(r, &r.onStreamCreated), func(p OnStreamCreated) error {
		return p.OnStreamCreated(ctx, s)
	})
}

// EmitStreamClaimed emits a stream claimed event.
func (r *Registry) EmitStreamClaimed(ctx context.Context, s *stream.Stream, amount types.Amount, completed bool) {
	dispatch(ctx, r, "OnStreamClaimed", snapshot(r, &r.onStreamClaimed), func(p OnStreamClaimed) error {
		return p.OnStreamClaimed(ctx, s, amount, completed)
	})
}

// EmitStreamCancelled emits a stream cancelled event.
func (r *Registry) EmitStreamCancelled(ctx context.Context, s *stream.Stream, settlement stream.Settlement) {
	dispatch(ctx, r, "OnStreamCancelled", snapshot(r, &r.onStreamCancelled), func(p OnStreamCancelled) error {
		return p.OnStreamCancelled(ctx, s, settlement)
	})
}

// EmitStreamPaused emits a stream paused event.
func (r *Registry) EmitStreamPaused(ctx context.Context, s *stream.Stream) {
	dispatch(ctx, r, "OnStreamPaused", snapshot(r, &r.onStreamPaused), func(p OnStreamPaused) error {
		return p.OnStreamPaused(ctx, s)
	})
}

// EmitStreamResumed emits a stream resumed event.
func (r *Registry) EmitStreamResumed(ctx context.Context, s *stream.Stream, pausedBlocks uint64) {
	dispatch(ctx, r, "OnStreamResumed", snapshot(r, &r.onStreamResumed), func(p OnStreamResumed) error {
		return p.OnStreamResumed(ctx, s, pausedBlocks)
	})
}

// EmitRoleGranted emits a role granted event.
func (r *Registry) EmitRoleGranted(ctx context.Context, role access.Role, identity, by types.Identity) {
	dispatch(ctx, r, "OnRoleGranted", snapshot(r, &r.onRoleGranted), func(p OnRoleGranted) error {
		return p.OnRoleGranted(ctx, role, identity, by)
	})
}

// EmitRoleRevoked emits a role revoked event.
func (r *Registry) EmitRoleRevoked(ctx context.Context, role access.Role, identity, by types.Identity) {
	dispatch(ctx, r, "OnRoleRevoked", snapshot(r, &r.onRoleRevoked), func(p OnRoleRevoked) error {
		return p.OnRoleRevoked(ctx, role, identity, by)
	})
}

// EmitAdminTransferred emits an admin transferred event.
func (r *Registry) EmitAdminTransferred(ctx context.Context, from, to types.Identity) {
	dispatch(ctx, r, "OnAdminTransferred", snapshot(r, &r.onAdminTransferred), func(p OnAdminTransferred) error {
		return p.OnAdminTransferred(ctx, from, to)
	})
}

// EmitContractPaused emits a contract pause state change.
func (r *Registry) EmitContractPaused(ctx context.Context, paused bool, by types.Identity) {
	dispatch(ctx, r, "OnContractPaused", snapshot(r, &r.onContractPaused), func(p OnContractPaused) error {
		return p.OnContractPaused(ctx, paused, by)
	})
}

// EmitFeeRateChanged emits a fee rate change.
func (r *Registry) EmitFeeRateChanged(ctx context.Context, oldRate, newRate uint64) {
	dispatch(ctx, r, "OnFeeRateChanged", snapshot(r, &r.onFeeRateChanged), func(p OnFeeRateChanged) error {
		return p.OnFeeRateChanged(ctx, oldRate, newRate)
	})
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the stream pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
