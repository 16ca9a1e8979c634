// Package observability provides OpenTelemetry metrics for the control
// plane: lifecycle transitions, barrier releases, gate outcomes, and
// settlement verdicts.
package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Provider owns the control-plane instruments. A nil Provider is valid
// and records nothing, so callers never branch on configuration.
type Provider struct {
	meter metric.Meter

	transitionCounter metric.Int64Counter
	barrierCounter    metric.Int64Counter
	gateCounter       metric.Int64Counter
	verdictCounter    metric.Int64Counter
	evalDuration      metric.Float64Histogram
}

// New creates a Provider on the given meter; a nil meter selects the
// global provider.
func New(meter metric.Meter) (*Provider, error) {
	if meter == nil {
		meter = otel.GetMeterProvider().Meter("chainbridge/controlplane")
	}
	p := &Provider{meter: meter}

	var err error
	if p.transitionCounter, err = meter.Int64Counter("pac.transitions",
		metric.WithDescription("Lifecycle transitions by from/to state")); err != nil {
		return nil, fmt.Errorf("observability: %w", err)
	}
	if p.barrierCounter, err = meter.Int64Counter("pac.barrier.releases",
		metric.WithDescription("Execution barrier releases")); err != nil {
		return nil, fmt.Errorf("observability: %w", err)
	}
	if p.gateCounter, err = meter.Int64Counter("pac.gate.evaluations",
		metric.WithDescription("Review gate evaluations by gate and outcome")); err != nil {
		return nil, fmt.Errorf("observability: %w", err)
	}
	if p.verdictCounter, err = meter.Int64Counter("pac.settlement.verdicts",
		metric.WithDescription("Settlement verdicts by status")); err != nil {
		return nil, fmt.Errorf("observability: %w", err)
	}
	if p.evalDuration, err = meter.Float64Histogram("pac.settlement.duration_ms",
		metric.WithDescription("Settlement evaluation duration"),
		metric.WithUnit("ms")); err != nil {
		return nil, fmt.Errorf("observability: %w", err)
	}
	return p, nil
}

// RecordTransition counts one lifecycle transition.
func (p *Provider) RecordTransition(ctx context.Context, from, to string) {
	if p == nil {
		return
	}
	p.transitionCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

// RecordBarrierRelease counts one barrier release.
func (p *Provider) RecordBarrierRelease(ctx context.Context, agents int) {
	if p == nil {
		return
	}
	p.barrierCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.Int("agents", agents),
	))
}

// RecordGate counts one gate evaluation.
func (p *Provider) RecordGate(ctx context.Context, gate string, passed bool) {
	if p == nil {
		return
	}
	p.gateCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("gate", gate),
		attribute.Bool("passed", passed),
	))
}

// RecordVerdict counts one settlement verdict and its evaluation time.
func (p *Provider) RecordVerdict(ctx context.Context, status string, elapsed time.Duration) {
	if p == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("status", status))
	p.verdictCounter.Add(ctx, 1, attrs)
	p.evalDuration.Record(ctx, float64(elapsed.Microseconds())/1000.0, attrs)
}
