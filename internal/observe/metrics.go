// Package observe holds the OpenTelemetry metric instruments recorded by the
// narration, recording and playback engines. Without a configured
// MeterProvider the global no-op provider is used, so recording metrics is
// always safe; InitProvider installs a Prometheus-backed one. Tests should
// build their own Metrics with NewMetrics.
package observe

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "storyecho"

// Metrics holds all metric instruments for the engine.
type Metrics struct {
	// NarrationRequests counts narration attempts per strategy. Attributes:
	//   attribute.String("source", ...), attribute.String("outcome", ...)
	NarrationRequests metric.Int64Counter

	// NarrationFallbacks counts moves from one strategy to the next.
	NarrationFallbacks metric.Int64Counter

	// SegmentsPlayed counts segments reached by playback. Attribute:
	//   attribute.Bool("clip", ...)
	SegmentsPlayed metric.Int64Counter

	// ClipsCaptured counts finished recordings. Attribute:
	//   attribute.String("status", ...)
	ClipsCaptured metric.Int64Counter
}

// NewMetrics creates the instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.NarrationRequests, err = m.Int64Counter("storyecho.narration.requests",
		metric.WithDescription("Narration attempts by source and outcome."),
	); err != nil {
		return nil, err
	}
	if met.NarrationFallbacks, err = m.Int64Counter("storyecho.narration.fallbacks",
		metric.WithDescription("Narrations that moved on to a fallback strategy."),
	); err != nil {
		return nil, err
	}
	if met.SegmentsPlayed, err = m.Int64Counter("storyecho.playback.segments",
		metric.WithDescription("Story segments reached during playback."),
	); err != nil {
		return nil, err
	}
	if met.ClipsCaptured, err = m.Int64Counter("storyecho.recording.clips",
		metric.WithDescription("Finished cue recordings by status."),
	); err != nil {
		return nil, err
	}
	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level instance built on the global
// MeterProvider.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}
