package jwks

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/lestrrat-go/jwx/v2/jwk"

	"github.com/tokenward/go-oidc-verifier/internal/transport"
)

// DefaultCacheSize bounds the key cache when no size is configured.
const DefaultCacheSize = 128

// CacheKey identifies a cached signing key. Keys are cached by key id, not
// by token, so all tokens signed by one key share one entry.
type CacheKey struct {
	Issuer string
	KeyID  string
}

// Resolver fetches JWKS documents and caches materialized signing keys.
// It is the sole writer of its cache.
type Resolver struct {
	transport *transport.Transport
	cache     *lru.Cache[CacheKey, jwk.Key]
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

// WithCacheSize bounds the key cache.
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

	cache, err := lru.New[CacheKey, jwk.Key](cfg.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("could not build signing key cache: %w", err)
	}

	return &Resolver{
		transport: t,
		cache:     cache,
		log:       cfg.log,
		metrics:   cfg.metrics,
	}, nil
}

// ResolveSet fetches and parses the key set at jwksURI. Keys that fail
// validation are reported on the returned set, not as an error.
func (r *Resolver) ResolveSet(ctx context.Context, jwksURI string) (*Set, error) {
	resp, err := r.transport.Get(ctx, jwksURI)
	if err != nil {
		return nil, err
	}

	set, err := ParseSet(resp.Body)
	if err != nil {
		return nil, err
	}

	if diag := set.Diagnostics(); diag != nil {
		r.log.Warnf("key set at %s contained invalid keys: %v", jwksURI, diag)
	}

	return set, nil
}

// ResolveKey returns the signing key for (issuer, kid), consulting the
// cache first. On a miss it fetches the issuer's key set, selects the key
// whose kid matches, falls back to the only key for kid-less tokens, and
// caches the materialized result. Concurrent misses on the same key may
// fetch twice; population is idempotent.
func (r *Resolver) ResolveKey(ctx context.Context, issuer, jwksURI, kid string) (jwk.Key, error) {
	cacheKey := CacheKey{Issuer: issuer, KeyID: kid}
	if key, ok := r.cache.Get(cacheKey); ok {
		r.metrics.IncCounter("jwks_key_cache_total", map[string]string{"result": "hit"})
		return key, nil
	}
	r.metrics.IncCounter("jwks_key_cache_total", map[string]string{"result": "miss"})

	set, err := r.ResolveSet(ctx, jwksURI)
	if err != nil {
		return nil, err
	}

	var selected *Key
	switch {
	case kid != "":
		selected, _ = set.Lookup(kid)
	case len(set.Keys) == 1:
		selected = &set.Keys[0]
	}
	if selected == nil {
		return nil, fmt.Errorf("%w: issuer %s, kid %q", ErrKeyNotFound, issuer, kid)
	}

	key, err := selected.Materialize()
	if err != nil {
		return nil, err
	}

	r.cache.Add(cacheKey, key)
	r.log.Debugf("cached signing key for issuer %s, kid %q", issuer, kid)

	return key, nil
}

// ClearCache drops every cached key, forcing re-resolution. Call this on
// suspected key rotation.
func (r *Resolver) ClearCache() {
	r.cache.Purge()
}
