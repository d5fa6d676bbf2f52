package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "lspkit"

// Resolution outcomes recorded on the resolutions counter.
const (
	OutcomeSystem    = "system"
	OutcomeCached    = "cached"
	OutcomeInstalled = "installed"
	OutcomeExisting  = "existing"
	OutcomeError     = "error"
)

// Metrics holds all lspkit metric instruments. A nil *Metrics records nothing.
type Metrics struct {
	Resolutions     metric.Int64Counter
	Downloads       metric.Int64Counter
	PruneFailures   metric.Int64Counter
	ResolveDuration metric.Float64Histogram
	Labels          metric.Int64Counter
	ReleaseLookups  metric.Int64Counter
}

// NewMetrics creates all metric instruments from the global meter provider.
func NewMetrics() (*Metrics, error) {
	return NewMetricsFrom(otel.GetMeterProvider())
}

// NewMetricsFrom creates all metric instruments from mp.
func NewMetricsFrom(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)
	m := &Metrics{}
	var err error

	m.Resolutions, err = meter.Int64Counter("lspkit.resolutions",
		metric.WithDescription("Number of binary resolutions by outcome"))
	if err != nil {
		return nil, err
	}

	m.Downloads, err = meter.Int64Counter("lspkit.downloads",
		metric.WithDescription("Number of release assets downloaded"))
	if err != nil {
		return nil, err
	}

	m.PruneFailures, err = meter.Int64Counter("lspkit.prune.failures",
		metric.WithDescription("Number of working-area entries that could not be removed"))
	if err != nil {
		return nil, err
	}

	m.ResolveDuration, err = meter.Float64Histogram("lspkit.resolve.duration_seconds",
		metric.WithDescription("Binary resolution duration in seconds"))
	if err != nil {
		return nil, err
	}

	m.Labels, err = meter.Int64Counter("lspkit.labels",
		metric.WithDescription("Number of code labels requested"))
	if err != nil {
		return nil, err
	}

	m.ReleaseLookups, err = meter.Int64Counter("lspkit.release.lookups",
		metric.WithDescription("Number of latest-release lookups by cache result"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordResolution counts one resolution and its duration.
func (m *Metrics) RecordResolution(ctx context.Context, serverID, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("server_id", serverID),
		attribute.String("outcome", outcome),
	)
	m.Resolutions.Add(ctx, 1, attrs)
	m.ResolveDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordDownload counts one asset download attempt.
func (m *Metrics) RecordDownload(ctx context.Context, serverID, version string, ok bool) {
	if m == nil {
		return
	}
	m.Downloads.Add(ctx, 1, metric.WithAttributes(
		attribute.String("server_id", serverID),
		attribute.String("version", version),
		attribute.Bool("ok", ok),
	))
}

// RecordPruneFailure counts one entry that could not be pruned.
func (m *Metrics) RecordPruneFailure(ctx context.Context, serverID string) {
	if m == nil {
		return
	}
	m.PruneFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("server_id", serverID)))
}

// RecordLabel counts one label request. source is "completion" or "symbol".
func (m *Metrics) RecordLabel(ctx context.Context, source string, labeled, cached bool) {
	if m == nil {
		return
	}
	m.Labels.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", source),
		attribute.Bool("labeled", labeled),
		attribute.Bool("cached", cached),
	))
}

// RecordReleaseLookup counts one latest-release lookup.
func (m *Metrics) RecordReleaseLookup(ctx context.Context, repo string, cached bool) {
	if m == nil {
		return
	}
	m.ReleaseLookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("repo", repo),
		attribute.Bool("cached", cached),
	))
}
