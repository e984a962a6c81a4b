// Package observe wires metrics for the pipeline.
//
// Instruments hang off an OpenTelemetry meter; with no provider installed the
// global meter is a no-op, so components can record unconditionally.
package observe

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "github.com/solyn-ai/solyn"

// Metrics bundles the pipeline's instruments.
type Metrics struct {
	sessionsActive metric.Int64UpDownCounter
	turnsStarted   metric.Int64Counter
	turnsCompleted metric.Int64Counter
	turnErrors     metric.Int64Counter
	turnDuration   metric.Float64Histogram
	toolDispatches metric.Int64Counter
	bargeIns       metric.Int64Counter
	ttsFlushes     metric.Int64Counter
}

// NewMetrics creates the instrument set on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	m := &Metrics{}
	var err error

	if m.sessionsActive, err = meter.Int64UpDownCounter("solyn.sessions.active",
		metric.WithDescription("Currently connected sessions")); err != nil {
		return nil, fmt.Errorf("observe: sessions gauge: %w", err)
	}
	if m.turnsStarted, err = meter.Int64Counter("solyn.turns.started",
		metric.WithDescription("Response turns started")); err != nil {
		return nil, fmt.Errorf("observe: turns started: %w", err)
	}
	if m.turnsCompleted, err = meter.Int64Counter("solyn.turns.completed",
		metric.WithDescription("Response turns completed successfully")); err != nil {
		return nil, fmt.Errorf("observe: turns completed: %w", err)
	}
	if m.turnErrors, err = meter.Int64Counter("solyn.turns.errors",
		metric.WithDescription("Response turns terminated by an error")); err != nil {
		return nil, fmt.Errorf("observe: turn errors: %w", err)
	}
	if m.turnDuration, err = meter.Float64Histogram("solyn.turn.duration",
		metric.WithDescription("Turn wall-clock duration"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("observe: turn duration: %w", err)
	}
	if m.toolDispatches, err = meter.Int64Counter("solyn.tools.dispatched",
		metric.WithDescription("Tool calls dispatched")); err != nil {
		return nil, fmt.Errorf("observe: tool dispatches: %w", err)
	}
	if m.bargeIns, err = meter.Int64Counter("solyn.bargeins",
		metric.WithDescription("Barge-in interruptions")); err != nil {
		return nil, fmt.Errorf("observe: barge-ins: %w", err)
	}
	if m.ttsFlushes, err = meter.Int64Counter("solyn.tts.flushes",
		metric.WithDescription("TTS segments flushed to the provider")); err != nil {
		return nil, fmt.Errorf("observe: tts flushes: %w", err)
	}
	return m, nil
}

// SessionOpened increments the active-session gauge.
func (m *Metrics) SessionOpened(ctx context.Context) {
	m.sessionsActive.Add(ctx, 1)
}

// SessionClosed decrements the active-session gauge.
func (m *Metrics) SessionClosed(ctx context.Context) {
	m.sessionsActive.Add(ctx, -1)
}

// TurnStarted counts a new response turn.
func (m *Metrics) TurnStarted(ctx context.Context) {
	m.turnsStarted.Add(ctx, 1)
}

// TurnCompleted records a successful turn and its duration.
func (m *Metrics) TurnCompleted(ctx context.Context, d time.Duration) {
	m.turnsCompleted.Add(ctx, 1)
	m.turnDuration.Record(ctx, d.Seconds())
}

// TurnError counts a turn terminated by an error of the given kind.
func (m *Metrics) TurnError(ctx context.Context, kind string) {
	m.turnErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// ToolDispatched counts a tool dispatch by name.
func (m *Metrics) ToolDispatched(ctx context.Context, tool string) {
	m.toolDispatches.Add(ctx, 1, metric.WithAttributes(attribute.String("tool", tool)))
}

// BargeIn counts a barge-in interruption.
func (m *Metrics) BargeIn(ctx context.Context) {
	m.bargeIns.Add(ctx, 1)
}

// TTSFlush counts a flushed synthesis segment.
func (m *Metrics) TTSFlush(ctx context.Context) {
	m.ttsFlushes.Add(ctx, 1)
}

// InitProvider installs a Prometheus-backed meter provider as the global
// provider and returns its shutdown function.
func InitProvider() (shutdown func(context.Context) error, err error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("observe: prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)
	return provider.Shutdown, nil
}
