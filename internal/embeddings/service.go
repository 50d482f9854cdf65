package embeddings

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultTimeout bounds a single embedding call.
const DefaultTimeout = 30 * time.Second

// Service is the Embedder the rest of docsearch uses. It adds a per-call
// timeout, a shared rate limit, a span and metrics around a Provider.
type Service struct {
	provider Provider
	limiter  *rate.Limiter
	timeout  time.Duration
	metrics  *Metrics
	tracer   trace.Tracer
	meter    metric.Meter
	logger   *zap.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithRateLimit caps calls per second across all callers. A
// non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) ServiceOption {
	return func(s *Service) {
		if rps <= 0 {
			s.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithTracer(t trace.Tracer) ServiceOption {
	return func(s *Service) { s.tracer = t }
}

func WithMeter(m metric.Meter) ServiceOption {
	return func(s *Service) { s.meter = m }
}

func WithLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// NewService wraps p.
func NewService(p Provider, opts ...ServiceOption) *Service {
	s := &Service{
		provider: p,
		timeout:  DefaultTimeout,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(instrumentationName)
	}
	s.metrics = NewMetrics(s.meter, s.logger)
	return s
}

// Embed returns the embedding of text.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}

	ctx, span := s.tracer.Start(ctx, "embeddings.embed", trace.WithAttributes(
		attribute.String("embedding.provider", s.provider.Name()),
		attribute.String("embedding.model", s.provider.Model()),
		attribute.Int("embedding.input_bytes", len(text)),
	))
	defer span.End()

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			err = &Error{Kind: KindTransport, Provider: s.provider.Name(), Err: err}
			span.RecordError(err)
			span.SetStatus(codes.Error, "rate limiter")
			return nil, err
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	vec, err := s.provider.Embed(callCtx, text)
	s.metrics.Record(ctx, s.provider.Name(), s.provider.Model(), time.Since(start), err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, KindOf(err).String())
		return nil, err
	}
	span.SetAttributes(attribute.Int("embedding.dimension", len(vec)))
	return vec, nil
}

func (s *Service) Name() string  { return s.provider.Name() }
func (s *Service) Model() string { return s.provider.Model() }

// Provider returns the wrapped provider.
func (s *Service) Provider() Provider {
	return s.provider
}

// Timeout is the per-call timeout.
func (s *Service) Timeout() time.Duration {
	return s.timeout
}

func (s *Service) Close() error {
	return s.provider.Close()
}
