package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/kelseyhightower/envconfig"
)

var (
	// ErrTransientNetworkFailure is returned when the retry budget is
	// exhausted without a definitive response. The caller may retry later.
	ErrTransientNetworkFailure = errors.New("transient network failure")

	// ErrRequestRejected is returned for non-retryable HTTP errors
	// (4xx other than 429). It is surfaced without any retry.
	ErrRequestRejected = errors.New("request rejected")
)

// maxResponseBytes bounds response bodies read into memory. Discovery and
// JWKS documents are typically well under 10KB.
const maxResponseBytes = 2 * 1024 * 1024

// Logger is the logging interface the transport and the resolvers built on
// top of it use. The root package provides adapters for common loggers.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Metrics is the metrics interface shared with the resolvers.
type Metrics interface {
	IncCounter(name string, tags map[string]string)
	ObserveHistogram(name string, value float64, tags map[string]string)
	SetGauge(name string, value float64, tags map[string]string)
}

type noopLogger struct{}

func (noopLogger) Debugf(string, ...interface{}) {}
func (noopLogger) Infof(string, ...interface{})  {}
func (noopLogger) Warnf(string, ...interface{})  {}
func (noopLogger) Errorf(string, ...interface{}) {}

type noopMetrics struct{}

func (noopMetrics) IncCounter(string, map[string]string)                {}
func (noopMetrics) ObserveHistogram(string, float64, map[string]string) {}
func (noopMetrics) SetGauge(string, float64, map[string]string)         {}

// Config holds the environment-driven transport settings.
//
// RetryCount is the total number of attempts, not the number of retries
// after the first attempt: with the default of 3, three straight 503s
// exhaust the budget.
type Config struct {
	TimeoutSeconds        int `envconfig:"HTTP_TIMEOUT" default:"30"`
	RetryCount            int `envconfig:"HTTP_RETRY_COUNT" default:"3"`
	RetryBaseDelaySeconds int `envconfig:"HTTP_RETRY_BASE_DELAY" default:"1"`
}

// ConfigFromEnv reads the transport configuration from the environment.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("could not process transport environment config: %w", err)
	}
	return cfg, nil
}

// Timeout returns the configured request timeout.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RetryBaseDelay returns the configured initial backoff delay.
func (c Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelaySeconds) * time.Second
}

// Response is the decoded result of a transport call.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Transport issues HTTP GET and POST requests with a retry/backoff policy.
// Responses with status 429 or 5xx and transient connection errors are
// retried with exponential backoff (doubling, starting at the configured
// base delay), honoring a Retry-After header when the server sends one.
type Transport struct {
	client  *http.Client
	cfg     Config
	log     Logger
	metrics Metrics
}

// Option configures a Transport.
type Option func(*Transport) error

// WithConfig overrides the environment-derived configuration.
func WithConfig(cfg Config) Option {
	return func(t *Transport) error {
		if cfg.RetryCount < 1 {
			return errors.New("retry count must be at least 1")
		}
		t.cfg = cfg
		return nil
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(t *Transport) error {
		if client == nil {
			return errors.New("http client cannot be nil")
		}
		t.client = client
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(log Logger) Option {
	return func(t *Transport) error {
		if log == nil {
			return errors.New("logger cannot be nil")
		}
		t.log = log
		return nil
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(t *Transport) error {
		if m == nil {
			return errors.New("metrics cannot be nil")
		}
		t.metrics = m
		return nil
	}
}

// New builds a Transport with its own connection pool. Worker goroutines
// that must not share connection state should each own one of these.
func New(opts ...Option) (*Transport, error) {
	cfg, err := ConfigFromEnv()
	if err != nil {
		return nil, err
	}

	t := &Transport{
		cfg:     cfg,
		log:     noopLogger{},
		metrics: noopMetrics{},
	}
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, fmt.Errorf("invalid option: %w", err)
		}
	}

	if t.client == nil {
		pool, err := trustStore()
		if err != nil {
			return nil, err
		}
		t.client = &http.Client{
			Timeout: t.cfg.Timeout(),
			Transport: &http.Transport{
				Proxy:           http.ProxyFromEnvironment,
				TLSClientConfig: &tls.Config{RootCAs: pool},
			},
		}
	}

	return t, nil
}

var (
	sharedOnce sync.Once
	shared     *Transport
	sharedErr  error
)

// Shared returns the process-wide Transport, constructing it on first use.
// Construction is once-guarded so concurrent first callers never observe
// two instances; after that the hot path takes no lock.
func Shared() (*Transport, error) {
	sharedOnce.Do(func() {
		shared, sharedErr = New()
	})
	return shared, sharedErr
}

// Close releases idle connections held by this transport's pool.
func (t *Transport) Close() {
	t.client.CloseIdleConnections()
}

// Get issues a GET request with the retry policy applied.
func (t *Transport) Get(ctx context.Context, rawURL string) (*Response, error) {
	return t.do(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	})
}

// PostForm issues a form-encoded POST request with the retry policy applied.
// Repeating a token-endpoint POST is safe by protocol design, so POSTs share
// the GET policy.
func (t *Transport) PostForm(ctx context.Context, rawURL string, form url.Values) (*Response, error) {
	body := form.Encode()
	return t.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
}

func (t *Transport) do(ctx context.Context, newRequest func() (*http.Request, error)) (*Response, error) {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = t.cfg.RetryBaseDelay()
	expo.Multiplier = 2
	expo.RandomizationFactor = 0

	resp, err := backoff.Retry(ctx, func() (*Response, error) {
		req, err := newRequest()
		if err != nil {
			// A request that cannot be built will never succeed on retry.
			return nil, backoff.Permanent(fmt.Errorf("%w: could not build request: %v", ErrRequestRejected, err))
		}

		httpResp, err := t.client.Do(req)
		if err != nil {
			// Connection-level failure, considered transient.
			t.metrics.IncCounter("transport_retry_total", map[string]string{"reason": "connection"})
			t.log.Debugf("request to %s failed, will retry: %v", req.URL, err)
			return nil, err
		}
		defer httpResp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
		if err != nil {
			return nil, fmt.Errorf("could not read response body: %w", err)
		}

		switch {
		case httpResp.StatusCode == http.StatusTooManyRequests || httpResp.StatusCode >= 500:
			t.metrics.IncCounter("transport_retry_total", map[string]string{
				"reason": strconv.Itoa(httpResp.StatusCode),
			})
			if seconds, ok := retryAfter(httpResp.Header); ok {
				t.log.Debugf("request to %s returned %d, honoring Retry-After of %ds", req.URL, httpResp.StatusCode, seconds)
				return nil, backoff.RetryAfter(seconds)
			}
			return nil, fmt.Errorf("request to %s returned status %d", req.URL, httpResp.StatusCode)
		case httpResp.StatusCode >= 400:
			return nil, backoff.Permanent(fmt.Errorf("%w: request to %s returned status %d", ErrRequestRejected, req.URL, httpResp.StatusCode))
		}

		return &Response{
			StatusCode: httpResp.StatusCode,
			Header:     httpResp.Header,
			Body:       body,
		}, nil
	}, backoff.WithBackOff(expo), backoff.WithMaxTries(uint(t.cfg.RetryCount)))

	if err != nil {
		if errors.Is(err, ErrRequestRejected) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrTransientNetworkFailure, err)
	}

	return resp, nil
}

// retryAfter parses a Retry-After header, which may carry either a delay in
// seconds or an HTTP date.
func retryAfter(header http.Header) (int, bool) {
	value := header.Get("Retry-After")
	if value == "" {
		return 0, false
	}

	if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
		return seconds, true
	}

	if at, err := http.ParseTime(value); err == nil {
		if delay := time.Until(at); delay > 0 {
			return int(delay.Seconds()) + 1, true
		}
		return 0, true
	}

	return 0, false
}
