package grpcoidc

import (
	oidcverifier "github.com/tokenward/go-oidc-verifier"
)

// Option configures the Interceptor.
type Option func(*Interceptor)

// WithTokenExtractor sets a custom token extractor.
//
// Default: MetadataTokenExtractor
func WithTokenExtractor(extractor TokenExtractor) Option {
	return func(i *Interceptor) {
		i.tokenExtractor = extractor
	}
}

// WithCredentialsOptional sets whether requests without a token pass
// through without claims.
//
// Default: false (credentials required)
func WithCredentialsOptional(value bool) Option {
	return func(i *Interceptor) {
		i.credentialsOptional = value
	}
}

// WithExcludedMethods excludes the given full gRPC method names from token
// validation.
func WithExcludedMethods(methods []string) Option {
	methodSet := make(map[string]struct{}, len(methods))
	for _, m := range methods {
		methodSet[m] = struct{}{}
	}
	return func(i *Interceptor) {
		i.exclusionChecker = func(method string) bool {
			_, ok := methodSet[method]
			return ok
		}
	}
}

// WithExclusionChecker sets a custom exclusion predicate for gRPC methods.
func WithExclusionChecker(checker ExclusionChecker) Option {
	return func(i *Interceptor) {
		i.exclusionChecker = checker
	}
}

// WithLogger sets an optional logger for the interceptor.
func WithLogger(logger oidcverifier.Logger) Option {
	return func(i *Interceptor) {
		i.logger = logger
	}
}

// WithMetrics sets an optional metrics sink for the interceptor.
func WithMetrics(metrics oidcverifier.Metrics) Option {
	return func(i *Interceptor) {
		i.metrics = metrics
	}
}

// WithTracer sets an optional tracer for the interceptor.
func WithTracer(tracer oidcverifier.Tracer) Option {
	return func(i *Interceptor) {
		i.tracer = tracer
	}
}
