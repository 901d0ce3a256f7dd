package validator

import (
	"errors"
	"fmt"

	"github.com/tokenward/go-oidc-verifier/internal/oidc"
	"github.com/tokenward/go-oidc-verifier/internal/transport"
	"github.com/tokenward/go-oidc-verifier/jwks"
)

// TransportMode selects the verifier's transport lifecycle.
type TransportMode int

const (
	// TransportShared uses the single process-wide transport. Suited to
	// cooperative single-threaded callers; construction of the instance
	// is once-guarded and the request path takes no lock.
	TransportShared TransportMode = iota

	// TransportPooled gives this verifier its own transport and
	// connection pool. Give each worker its own verifier in this mode so
	// no connection state crosses workers.
	TransportPooled
)

// Option is how options for the Verifier are set up.
// Options return errors to enable validation during construction.
type Option func(*options) error

type options struct {
	mode              TransportMode
	transport         *transport.Transport
	transportOpts     []transport.Option
	documentCacheSize int
	keyCacheSize      int
	log               transport.Logger
	metrics           transport.Metrics
	tracer            Tracer
}

func defaultOptions() options {
	return options{
		mode:              TransportShared,
		documentCacheSize: oidc.DefaultCacheSize,
		keyCacheSize:      jwks.DefaultCacheSize,
		log:               noopLogger{},
		metrics:           noopMetrics{},
		tracer:            &NoopTracer{},
	}
}

// WithTransportMode selects between the shared and the pooled transport.
func WithTransportMode(mode TransportMode) Option {
	return func(o *options) error {
		if mode != TransportShared && mode != TransportPooled {
			return fmt.Errorf("unknown transport mode %d", mode)
		}
		o.mode = mode
		return nil
	}
}

// WithTransportConfig overrides the environment-derived transport settings.
// Only applies with TransportPooled; the shared transport is configured
// from the environment once for the whole process.
func WithTransportConfig(cfg transport.Config) Option {
	return func(o *options) error {
		o.transportOpts = append(o.transportOpts, transport.WithConfig(cfg))
		return nil
	}
}

// WithDocumentCacheSize bounds the discovery document cache.
func WithDocumentCacheSize(size int) Option {
	return func(o *options) error {
		if size < 1 {
			return errors.New("document cache size must be at least 1")
		}
		o.documentCacheSize = size
		return nil
	}
}

// WithKeyCacheSize bounds the signing key cache.
func WithKeyCacheSize(size int) Option {
	return func(o *options) error {
		if size < 1 {
			return errors.New("key cache size must be at least 1")
		}
		o.keyCacheSize = size
		return nil
	}
}

// WithLogger sets the logger used by the verifier and its resolvers.
func WithLogger(log transport.Logger) Option {
	return func(o *options) error {
		if log == nil {
			return errors.New("logger cannot be nil")
		}
		o.log = log
		return nil
	}
}

// WithMetrics sets the metrics sink used by the verifier and its resolvers.
func WithMetrics(m transport.Metrics) Option {
	return func(o *options) error {
		if m == nil {
			return errors.New("metrics cannot be nil")
		}
		o.metrics = m
		return nil
	}
}

// WithTracer sets the tracer used around each validation.
func WithTracer(t Tracer) Option {
	return func(o *options) error {
		if t == nil {
			return errors.New("tracer cannot be nil")
		}
		o.tracer = t
		return nil
	}
}

// withTransport injects a pre-built transport; used by tests.
func withTransport(t *transport.Transport) Option {
	return func(o *options) error {
		o.transport = t
		return nil
	}
}

// Tracer is a generic tracing interface for the verifier. The root package
// provides an OpenTelemetry-backed implementation that satisfies it.
type Tracer interface {
	StartSpan(operationName string, opts ...interface{}) Span
}

// Span is a single traced operation.
type Span interface {
	Finish()
	SetTag(key string, value interface{})
	LogFields(fields ...interface{})
}

// NoopTracer is a default tracer that does nothing.
type NoopTracer struct{}

// StartSpan returns a span that does nothing.
func (t *NoopTracer) StartSpan(operationName string, opts ...interface{}) Span {
	return &NoopSpan{}
}

// NoopSpan is the span produced by NoopTracer.
type NoopSpan struct{}

func (s *NoopSpan) Finish()                              {}
func (s *NoopSpan) SetTag(key string, value interface{}) {}
func (s *NoopSpan) LogFields(fields ...interface{})      {}

type noopLogger struct{}

func (noopLogger) Debugf(string, ...interface{}) {}
func (noopLogger) Infof(string, ...interface{})  {}
func (noopLogger) Warnf(string, ...interface{})  {}
func (noopLogger) Errorf(string, ...interface{}) {}

type noopMetrics struct{}

func (noopMetrics) IncCounter(string, map[string]string)                {}
func (noopMetrics) ObserveHistogram(string, float64, map[string]string) {}
func (noopMetrics) SetGauge(string, float64, map[string]string)         {}
