// Package observe provides application-wide observability primitives for
// Socra: OpenTelemetry metrics and the Prometheus exporter bridge.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Socra metrics.
const meterName = "github.com/tadams048/socra"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// LLMStreamDuration tracks full reply streaming latency, first token to
	// end marker.
	LLMStreamDuration metric.Float64Histogram

	// TTSDuration tracks text-to-speech synthesis latency per sentence.
	TTSDuration metric.Float64Histogram

	// ImageGenDuration tracks one image generation attempt, provider call
	// through validation fetch.
	ImageGenDuration metric.Float64Histogram

	// SummaryDuration tracks illustration prompt summarisation latency,
	// including races lost to the timeout.
	SummaryDuration metric.Float64Histogram

	// PlaybackDuration tracks per-chunk audio playback time.
	PlaybackDuration metric.Float64Histogram

	// --- Counters ---

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// TTSFallbacks counts secondary-provider fallbacks by trigger
	// ("unauthorized" or "rate_limited").
	TTSFallbacks metric.Int64Counter

	// TTSCacheHits counts non-streaming synthesis requests served from the
	// memo cache.
	TTSCacheHits metric.Int64Counter

	// ImagesDropped counts image requests dropped at admission. Use with
	// attribute: attribute.String("reason", ...)
	ImagesDropped metric.Int64Counter

	// SummaryFallbacks counts turns where the first-words fallback won the
	// summarisation race.
	SummaryFallbacks metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveGenerations tracks in-flight image generation tasks.
	ActiveGenerations metric.Int64UpDownCounter

	// QueuedChunks tracks audio chunks waiting in the sequencer.
	QueuedChunks metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for streaming-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.LLMStreamDuration, err = m.Float64Histogram("socra.llm.stream.duration",
		metric.WithDescription("Latency of a full streamed LLM reply."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("socra.tts.duration",
		metric.WithDescription("Latency of text-to-speech synthesis per sentence."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ImageGenDuration, err = m.Float64Histogram("socra.imagegen.duration",
		metric.WithDescription("Latency of one image generation attempt including validation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SummaryDuration, err = m.Float64Histogram("socra.summary.duration",
		metric.WithDescription("Latency of illustration prompt summarisation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PlaybackDuration, err = m.Float64Histogram("socra.playback.duration",
		metric.WithDescription("Playback time per audio chunk."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ProviderRequests, err = m.Int64Counter("socra.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.TTSFallbacks, err = m.Int64Counter("socra.tts.fallbacks",
		metric.WithDescription("Total secondary-provider TTS fallbacks by trigger."),
	); err != nil {
		return nil, err
	}
	if met.TTSCacheHits, err = m.Int64Counter("socra.tts.cache_hits",
		metric.WithDescription("Total non-streaming synthesis requests served from cache."),
	); err != nil {
		return nil, err
	}
	if met.ImagesDropped, err = m.Int64Counter("socra.images.dropped",
		metric.WithDescription("Total image requests dropped at admission by reason."),
	); err != nil {
		return nil, err
	}
	if met.SummaryFallbacks, err = m.Int64Counter("socra.summary.fallbacks",
		metric.WithDescription("Total turns resolved with the first-words prompt fallback."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("socra.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveGenerations, err = m.Int64UpDownCounter("socra.images.active_generations",
		metric.WithDescription("Number of in-flight image generation tasks."),
	); err != nil {
		return nil, err
	}
	if met.QueuedChunks, err = m.Int64UpDownCounter("socra.playback.queued_chunks",
		metric.WithDescription("Number of audio chunks waiting in the sequencer."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
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

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordProviderRequest is a convenience method that records a provider
// request counter increment with the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError is a convenience method that records a provider error
// counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordImageDrop is a convenience method that records an admission drop with
// its reason ("max_images", "backlog_full", or "short_prompt").
func (m *Metrics) RecordImageDrop(ctx context.Context, reason string) {
	m.ImagesDropped.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}
