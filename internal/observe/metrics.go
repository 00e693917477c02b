// Package observe provides the OpenTelemetry metrics, tracing helpers and
// HTTP middleware used across Krishi Sahayak.
//
// Instruments are created through the OTel Metrics API. [InitProvider]
// installs a Prometheus exporter bridge so the same instruments can be
// scraped from /metrics. Tests should build their own [Metrics] with
// [NewMetrics] and a ManualReader instead of using [DefaultMetrics].
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope for all application metrics.
const meterName = "github.com/MrWong99/krishi"

// Metrics holds every metric instrument of the application. The OTel types
// do their own synchronisation.
type Metrics struct {
	// ---- stage latency ----

	// CaptureDuration tracks microphone capture time.
	CaptureDuration metric.Float64Histogram

	// STTDuration tracks speech-to-text latency.
	STTDuration metric.Float64Histogram

	// LLMDuration tracks response generation latency.
	LLMDuration metric.Float64Histogram

	// TTSDuration tracks synthesis latency.
	TTSDuration metric.Float64Histogram

	// PlaybackDuration tracks how long a clip took to play.
	PlaybackDuration metric.Float64Histogram

	// ---- counters ----

	// Turns counts completed turns by source (voice, text, preset) and
	// outcome (ok or a failure kind).
	Turns metric.Int64Counter

	// ProviderRequests counts backend calls by provider, kind and status.
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts backend failures by provider and kind.
	ProviderErrors metric.Int64Counter

	// BreakerTransitions counts circuit breaker state changes by breaker
	// name and target state.
	BreakerTransitions metric.Int64Counter

	// RejectedRequests counts submissions refused because a turn was
	// already in progress.
	RejectedRequests metric.Int64Counter

	// ---- gauges ----

	// PlaybackActive is the number of clips currently playing.
	PlaybackActive metric.Int64UpDownCounter

	// ---- http ----

	// HTTPRequestDuration tracks request latency by method, route and status.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets are histogram boundaries in seconds. The upper end covers
// slow LLM calls and full playback of a long answer.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60,
}

// NewMetrics creates every instrument on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	met := &Metrics{}
	var err error

	hist := func(name, desc string) (metric.Float64Histogram, error) {
		return m.Float64Histogram(name,
			metric.WithDescription(desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(latencyBuckets...),
		)
	}
	if met.CaptureDuration, err = hist("krishi.capture.duration", "Microphone capture time."); err != nil {
		return nil, err
	}
	if met.STTDuration, err = hist("krishi.stt.duration", "Latency of speech-to-text transcription."); err != nil {
		return nil, err
	}
	if met.LLMDuration, err = hist("krishi.llm.duration", "Latency of response generation."); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = hist("krishi.tts.duration", "Latency of text-to-speech synthesis."); err != nil {
		return nil, err
	}
	if met.PlaybackDuration, err = hist("krishi.playback.duration", "Time spent playing a response clip."); err != nil {
		return nil, err
	}

	if met.Turns, err = m.Int64Counter("krishi.turns",
		metric.WithDescription("Completed conversation turns by source and outcome."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("krishi.provider.requests",
		metric.WithDescription("Backend requests by provider, kind and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("krishi.provider.errors",
		metric.WithDescription("Backend errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.BreakerTransitions, err = m.Int64Counter("krishi.breaker.transitions",
		metric.WithDescription("Circuit breaker state changes by breaker and target state."),
	); err != nil {
		return nil, err
	}
	if met.RejectedRequests, err = m.Int64Counter("krishi.requests.rejected",
		metric.WithDescription("Submissions refused while another turn was in progress."),
	); err != nil {
		return nil, err
	}

	if met.PlaybackActive, err = m.Int64UpDownCounter("krishi.playback.active",
		metric.WithDescription("Number of clips currently playing."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("krishi.http.request.duration",
		metric.WithDescription("HTTP request latency by method, route and status."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics], created on first use
// from [otel.GetMeterProvider]. Call it after [InitProvider].
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

// Attr is shorthand for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordTurn counts one finished turn.
func (m *Metrics) RecordTurn(ctx context.Context, source, outcome string) {
	m.Turns.Add(ctx, 1, metric.WithAttributes(Attr("source", source), Attr("outcome", outcome)))
}

// RecordProviderCall records the latency of one backend call on h and
// bumps the request and error counters. kind is "stt", "llm" or "tts".
func (m *Metrics) RecordProviderCall(ctx context.Context, h metric.Float64Histogram, provider, kind string, elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		m.ProviderErrors.Add(ctx, 1, metric.WithAttributes(Attr("provider", provider), Attr("kind", kind)))
	}
	m.ProviderRequests.Add(ctx, 1, metric.WithAttributes(
		Attr("provider", provider),
		Attr("kind", kind),
		Attr("status", status),
	))
	h.Record(ctx, elapsed.Seconds(), metric.WithAttributes(Attr("provider", provider)))
}

// RecordBreakerTransition counts one circuit breaker state change.
func (m *Metrics) RecordBreakerTransition(ctx context.Context, name, to string) {
	m.BreakerTransitions.Add(ctx, 1, metric.WithAttributes(Attr("breaker", name), Attr("state", to)))
}
