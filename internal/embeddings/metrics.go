package embeddings

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/docsearch/internal/embeddings"

// Metrics records embedding call latency and failures.
type Metrics struct {
	duration metric.Float64Histogram
	errors   metric.Int64Counter
}

// NewMetrics creates instruments on meter, or on the global meter when
// meter is nil. Instrument creation failures are logged and the
// instrument is skipped.
func NewMetrics(meter metric.Meter, logger *zap.Logger) *Metrics {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Metrics{}
	var err error

	m.duration, err = meter.Float64Histogram(
		"docsearch.embedding.duration_seconds",
		metric.WithDescription("Duration of a single embedding call, by provider and model"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		logger.Warn("failed to create duration histogram", zap.Error(err))
	}

	m.errors, err = meter.Int64Counter(
		"docsearch.embedding.errors_total",
		metric.WithDescription("Failed embedding calls by provider and failure kind"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		logger.Warn("failed to create errors counter", zap.Error(err))
	}
	return m
}

// Record stores the outcome of one call.
func (m *Metrics) Record(ctx context.Context, provider, model string, d time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("provider", provider),
		attribute.String("model", model),
	}
	if m.duration != nil {
		m.duration.Record(ctx, d.Seconds(), metric.WithAttributes(attrs...))
	}
	if err != nil && m.errors != nil {
		kind := KindOf(err).String()
		m.errors.Add(ctx, 1, metric.WithAttributes(append(attrs,
			attribute.String("kind", kind),
			attribute.Bool("permanent", IsPermanent(err)),
		)...))
	}
}
