// Package observability provides a metrics extension for Drip that records
// lifecycle event counts and amounts via a MetricFactory.
package observability

import (
	"context"

	"github.com/xraph/drip/access"
	"github.com/xraph/drip/event"
	"github.com/xraph/drip/plugin"
	"github.com/xraph/drip/stream"
	"github.com/xraph/drip/types"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin             = (*MetricsExtension)(nil)
	_ plugin.OnInit             = (*MetricsExtension)(nil)
	_ plugin.OnEvent            = (*MetricsExtension)(nil)
	_ plugin.OnStreamCreated    = (*MetricsExtension)(nil)
	_ plugin.OnStreamClaimed    = (*MetricsExtension)(nil)
	_ plugin.OnStreamCancelled  = (*MetricsExtension)(nil)
	_ plugin.OnStreamPaused     = (*MetricsExtension)(nil)
	_ plugin.OnStreamResumed    = (*MetricsExtension)(nil)
	_ plugin.OnRoleGranted      = (*MetricsExtension)(nil)
	_ plugin.OnRoleRevoked      = (*MetricsExtension)(nil)
	_ plugin.OnAdminTransferred = (*MetricsExtension)(nil)
	_ plugin.OnContractPaused   = (*MetricsExtension)(nil)
	_ plugin.OnFeeRateChanged   = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a Drip plugin to automatically track stream metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Stream metrics
	StreamCreated   Counter
	StreamClaimed   Counter
	StreamCompleted Counter
	StreamCancelled Counter
	StreamPaused    Counter
	StreamResumed   Counter
	DepositAmount   Histogram
	FeeAmount       Histogram
	ClaimAmount     Histogram
	RefundAmount    Histogram
	PausedBlocks    Histogram

	// Access metrics
	RoleGranted      Counter
	RoleRevoked      Counter
	AdminTransferred Counter

	// Contract metrics
	ContractPaused   Counter
	ContractUnpaused Counter
	FeeRateChanged   Counter

	// Event log
	EventsCommitted Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Stream metrics
		StreamCreated:   factory.Counter("drip.stream.created"),
		StreamClaimed:   factory.Counter("drip.stream.claimed"),
		StreamCompleted: factory.Counter("drip.stream.completed"),
		StreamCancelled: factory.Counter("drip.stream.cancelled"),
		StreamPaused:    factory.Counter("drip.stream.paused"),
		StreamResumed:   factory.Counter("drip.stream.resumed"),
		DepositAmount:   factory.Histogram("drip.stream.deposit.amount"),
		FeeAmount:       factory.Histogram("drip.stream.fee.amount"),
		ClaimAmount:     factory.Histogram("drip.stream.claim.amount"),
		RefundAmount:    factory.Histogram("drip.stream.refund.amount"),
		PausedBlocks:    factory.Histogram("drip.stream.paused.blocks"),

		// Access metrics
		RoleGranted:      factory.Counter("drip.role.granted"),
		RoleRevoked:      factory.Counter("drip.role.revoked"),
		AdminTransferred: factory.Counter("drip.admin.transferred"),

		// Contract metrics
		ContractPaused:   factory.Counter("drip.contract.paused"),
		ContractUnpaused: factory.Counter("drip.contract.unpaused"),
		FeeRateChanged:   factory.Counter("drip.fee_rate.changed"),

		EventsCommitted: factory.Counter("drip.events.committed"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ any) error {
	// No initialization needed
	return nil
}

// OnEvent implements plugin.OnEvent.
func (m *MetricsExtension) OnEvent(_ context.Context, _ *event.Event) error {
	m.EventsCommitted.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Stream lifecycle hooks
// ──────────────────────────────────────────────────

// OnStreamCreated implements plugin.OnStreamCreated.
func (m *MetricsExtension) OnStreamCreated(_ context.Context, s *stream.Stream) error {
	m.StreamCreated.Inc()
	m.DepositAmount.Observe(amount(s.TotalAmount))
	m.FeeAmount.Observe(amount(s.Fee))
	return nil
}

// OnStreamClaimed implements plugin.OnStreamClaimed.
func (m *MetricsExtension) OnStreamClaimed(_ context.Context, _ *stream.Stream, claimed types.Amount, completed bool) error {
	m.StreamClaimed.Inc()
	m.ClaimAmount.Observe(amount(claimed))
	if completed {
		m.StreamCompleted.Inc()
	}
	return nil
}

// OnStreamCancelled implements plugin.OnStreamCancelled.
func (m *MetricsExtension) OnStreamCancelled(_ context.Context, _ *stream.Stream, settlement stream.Settlement) error {
	m.StreamCancelled.Inc()
	m.RefundAmount.Observe(amount(settlement.Refunded))
	if settlement.Claimed > 0 {
		m.ClaimAmount.Observe(amount(settlement.Claimed))
	}
	return nil
}

// OnStreamPaused implements plugin.OnStreamPaused.
func (m *MetricsExtension) OnStreamPaused(_ context.Context, _ *stream.Stream) error {
	m.StreamPaused.Inc()
	return nil
}

// OnStreamResumed implements plugin.OnStreamResumed.
func (m *MetricsExtension) OnStreamResumed(_ context.Context, _ *stream.Stream, pausedBlocks uint64) error {
	m.StreamResumed.Inc()
	m.PausedBlocks.Observe(float64(pausedBlocks))
	return nil
}

// ──────────────────────────────────────────────────
// Access hooks
// ──────────────────────────────────────────────────

// OnRoleGranted implements plugin.OnRoleGranted.
func (m *MetricsExtension) OnRoleGranted(_ context.Context, _ access.Role, _, _ types.Identity) error {
	m.RoleGranted.Inc()
	return nil
}

// OnRoleRevoked implements plugin.OnRoleRevoked.
func (m *MetricsExtension) OnRoleRevoked(_ context.Context, _ access.Role, _, _ types.Identity) error {
	m.RoleRevoked.Inc()
	return nil
}

// OnAdminTransferred implements plugin.OnAdminTransferred.
func (m *MetricsExtension) OnAdminTransferred(_ context.Context, _, _ types.Identity) error {
	m.AdminTransferred.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Contract hooks
// ──────────────────────────────────────────────────

// OnContractPaused implements plugin.OnContractPaused.
func (m *MetricsExtension) OnContractPaused(_ context.Context, paused bool, _ types.Identity) error {
	if paused {
		m.ContractPaused.Inc()
	} else {
		m.ContractUnpaused.Inc()
	}
	return nil
}

// OnFeeRateChanged implements plugin.OnFeeRateChanged.
func (m *MetricsExtension) OnFeeRateChanged(_ context.Context, _, _ uint64) error {
	m.FeeRateChanged.Inc()
	return nil
}

func amount(a types.Amount) float64 { return float64(a) }
