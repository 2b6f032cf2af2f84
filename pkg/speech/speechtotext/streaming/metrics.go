package streaming

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/xaionaro-go/whisperstream/streaming"

// Metrics holds the OpenTelemetry instruments of streaming sessions.
type Metrics struct {
	// Windows counts processed windows; attribute "has_voice".
	Windows metric.Int64Counter

	// InferenceDuration is the latency of the engine, in seconds.
	InferenceDuration metric.Float64Histogram

	WrittenSamples      metric.Int64Counter
	DroppedTranscripts  metric.Int64Counter
	ActiveSessions      metric.Int64UpDownCounter
	TranscriptionErrors metric.Int64Counter
}

var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Windows, err = m.Int64Counter("whisperstream.session.windows",
		metric.WithDescription("Audio windows processed by streaming sessions."),
	); err != nil {
		return nil, err
	}
	if met.InferenceDuration, err = m.Float64Histogram("whisperstream.session.inference.duration",
		metric.WithDescription("Latency of the speech-to-text engine per window."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.WrittenSamples, err = m.Int64Counter("whisperstream.session.samples",
		metric.WithDescription("Audio samples written into streaming sessions."),
	); err != nil {
		return nil, err
	}
	if met.DroppedTranscripts, err = m.Int64Counter("whisperstream.session.transcripts.dropped",
		metric.WithDescription("Transcripts dropped because the output queue was full."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("whisperstream.session.active",
		metric.WithDescription("Streaming sessions currently running."),
	); err != nil {
		return nil, err
	}
	if met.TranscriptionErrors, err = m.Int64Counter("whisperstream.session.errors",
		metric.WithDescription("Sessions terminated by a processing error."),
	); err != nil {
		return nil, err
	}
	return met, nil
}

var (
	defaultMetricsOnce sync.Once
	defaultMetrics     *Metrics
)

// DefaultMetrics uses the global MeterProvider as of the first call.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		m, err := NewMetrics(otel.GetMeterProvider())
		if err != nil {
			m, _ = NewMetrics(noop.NewMeterProvider())
		}
		defaultMetrics = m
	})
	return defaultMetrics
}
