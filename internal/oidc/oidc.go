package oidc

import (
	"context"
	"fmt"
	"mime"
	"net/url"
	"path"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/tokenward/go-oidc-verifier/internal/transport"
)

// DefaultCacheSize bounds the document cache when no size is configured.
const DefaultCacheSize = 128

// WellKnownURI derives the discovery document address for an issuer,
// leaving addresses that already point at a well-known document untouched.
func WellKnownURI(issuer string) (string, error) {
	u, err := url.Parse(issuer)
	if err != nil {
		return "", fmt.Errorf("could not parse issuer address %q: %w", issuer, err)
	}
	if path.Base(u.Path) == "openid-configuration" {
		return issuer, nil
	}
	u.Path = path.Join(u.Path, ".well-known/openid-configuration")
	return u.String(), nil
}

// Resolver fetches, validates and caches discovery documents. Only fully
// valid documents enter the cache; the cache is an LRU keyed by the request
// address and is safe for concurrent use.
type Resolver struct {
	transport *transport.Transport
	cache     *lru.Cache[string, *Document]
	log       transport.Logger
	metrics   transport.Metrics
}

// ResolverOption configures a Resolver.
type ResolverOption func(*resolverConfig)

type resolverConfig struct {
	cacheSize int
	log       transport.Logger
	metrics   transport.Metrics
}

// WithCacheSize bounds the document cache.
func WithCacheSize(size int) ResolverOption {
	return func(c *resolverConfig) {
		c.cacheSize = size
	}
}

// WithLogger sets the resolver logger.
func WithLogger(log transport.Logger) ResolverOption {
	return func(c *resolverConfig) {
		c.log = log
	}
}

// WithMetrics sets the resolver metrics sink.
func WithMetrics(m transport.Metrics) ResolverOption {
	return func(c *resolverConfig) {
		c.metrics = m
	}
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

// NewResolver builds a Resolver on top of the given transport.
func NewResolver(t *transport.Transport, opts ...ResolverOption) (*Resolver, error) {
	cfg := resolverConfig{
		cacheSize: DefaultCacheSize,
		log:       noopLogger{},
		metrics:   noopMetrics{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	cache, err := lru.New[string, *Document](cfg.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("could not build discovery document cache: %w", err)
	}

	return &Resolver{
		transport: t,
		cache:     cache,
		log:       cfg.log,
		metrics:   cfg.metrics,
	}, nil
}

// Resolve returns the discovery document served at address, from the cache
// when possible. Concurrent resolution of the same uncached address may
// fetch more than once; both fetches produce the same validated document,
// so the benign duplicate is accepted instead of serializing every call.
func (r *Resolver) Resolve(ctx context.Context, address string) (*Document, error) {
	if doc, ok := r.cache.Get(address); ok {
		r.metrics.IncCounter("discovery_cache_total", map[string]string{"result": "hit"})
		return doc, nil
	}
	r.metrics.IncCounter("discovery_cache_total", map[string]string{"result": "miss"})

	resp, err := r.transport.Get(ctx, address)
	if err != nil {
		return nil, err
	}

	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return nil, fmt.Errorf("%w: unexpected content type %q from %s", ErrMalformedDocument, resp.Header.Get("Content-Type"), address)
	}

	doc, err := ParseDocument(resp.Body)
	if err != nil {
		return nil, err
	}

	r.cache.Add(address, doc)
	r.log.Debugf("resolved discovery document for issuer %s from %s", doc.Issuer, address)

	return doc, nil
}

// ClearCache drops every cached document, forcing re-resolution.
func (r *Resolver) ClearCache() {
	r.cache.Purge()
}
