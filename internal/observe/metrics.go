// Package observe provides application-wide observability primitives for
// gaussvad: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is set up by [InitProvider] so that metrics can be scraped
// from the /metrics endpoint. A package-level default [Metrics] instance
// ([DefaultMetrics]) is provided for convenience; tests should use
// [NewMetrics] with a custom [metric.MeterProvider] to avoid cross-test
// pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/gaussvad/pkg/types"
	"github.com/MrWong99/gaussvad/pkg/vad/gaussian"
)

// meterName is the instrumentation scope name used for all gaussvad metrics.
const meterName = "github.com/MrWong99/gaussvad"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// DetectDuration tracks the wall time of a full batch detection. Use with
	// attribute.String("transform", ...).
	DetectDuration metric.Float64Histogram

	// StageDuration tracks each detection stage. Use with
	// attribute.String("stage", ...).
	StageDuration metric.Float64Histogram

	// --- Counters ---

	// FramesAnalysed counts analysis frames processed, batch and streaming.
	FramesAnalysed metric.Int64Counter

	// FramesSpeech counts analysis frames classified as speech.
	FramesSpeech metric.Int64Counter

	// StreamEvents counts streaming VAD events. Use with
	// attribute.String("type", ...).
	StreamEvents metric.Int64Counter

	// --- Error counters ---

	// DetectErrors counts failed detections. Use with
	// attribute.String("kind", ...) set to one of the error kinds
	// (configuration, insufficient_data, input_size_mismatch, decode, internal).
	DetectErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveStreams tracks the number of open streaming sessions.
	ActiveStreams metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for
// per-recording DSP work, from sub-millisecond frames to long uploads.
var latencyBuckets = []float64{
	0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.DetectDuration, err = m.Float64Histogram("gaussvad.detect.duration",
		metric.WithDescription("Latency of a complete batch detection."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.StageDuration, err = m.Float64Histogram("gaussvad.stage.duration",
		metric.WithDescription("Latency of one detection stage (spectra, noise, snr, decision)."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.FramesAnalysed, err = m.Int64Counter("gaussvad.frames.analysed",
		metric.WithDescription("Total analysis frames processed."),
	); err != nil {
		return nil, err
	}
	if met.FramesSpeech, err = m.Int64Counter("gaussvad.frames.speech",
		metric.WithDescription("Total analysis frames classified as speech."),
	); err != nil {
		return nil, err
	}
	if met.StreamEvents, err = m.Int64Counter("gaussvad.stream.events",
		metric.WithDescription("Total streaming VAD events by type."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.DetectErrors, err = m.Int64Counter("gaussvad.detect.errors",
		metric.WithDescription("Total failed detections by error kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveStreams, err = m.Int64UpDownCounter("gaussvad.active_streams",
		metric.WithDescription("Number of open streaming VAD sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("gaussvad.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
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

// RecordDetection records the duration and frame counters of a successful
// batch detection.
func (m *Metrics) RecordDetection(ctx context.Context, res *types.DetectionResult, elapsed time.Duration, transform string) {
	m.DetectDuration.Record(ctx, elapsed.Seconds(),
		metric.WithAttributes(attribute.String("transform", transform)),
	)
	speech := 0
	for _, s := range res.SpeechFrames {
		if s {
			speech++
		}
	}
	m.FramesAnalysed.Add(ctx, int64(res.FrameCount()))
	m.FramesSpeech.Add(ctx, int64(speech))
}

// RecordError records a failed detection of the given kind.
func (m *Metrics) RecordError(ctx context.Context, kind string) {
	m.DetectErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}

// RecordStreamEvent records one streaming event. analysed is the number of
// analysis frames the event covers; they count as speech when the event
// leaves the stream in a speech segment.
func (m *Metrics) RecordStreamEvent(ctx context.Context, eventType string, analysed int, speech bool) {
	m.StreamEvents.Add(ctx, 1,
		metric.WithAttributes(attribute.String("type", eventType)),
	)
	if analysed <= 0 {
		return
	}
	m.FramesAnalysed.Add(ctx, int64(analysed))
	if speech {
		m.FramesSpeech.Add(ctx, int64(analysed))
	}
}

// StageObserver returns a [gaussian.StageObserver] that records every stage
// duration and adds a span event to the active span in ctx.
func (m *Metrics) StageObserver() gaussian.StageObserver {
	return func(ctx context.Context, stage string, elapsed time.Duration) {
		m.StageDuration.Record(ctx, elapsed.Seconds(),
			metric.WithAttributes(attribute.String("stage", stage)),
		)
		trace.SpanFromContext(ctx).AddEvent("stage "+stage,
			trace.WithAttributes(
				attribute.String("stage", stage),
				attribute.Float64("duration_s", elapsed.Seconds()),
			),
		)
	}
}
