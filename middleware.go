package oidcverifier

import (
	"context"
	"fmt"
	"net/http"
)

// ContextKey is the key used in the request context where the claims of a
// validated token are stored.
type ContextKey struct{}

// ValidateToken takes a raw bearer token and returns the validated claims,
// or an error describing why validation failed. The closure produced by
// validator.Verifier.TokenValidator satisfies this type.
type ValidateToken func(context.Context, string) (interface{}, error)

// ExclusionHandler reports whether a request should skip token validation.
type ExclusionHandler func(r *http.Request) bool

// Middleware guards http.Handlers with bearer token validation. Use New to
// construct it and CheckJWT to wrap a handler.
type Middleware struct {
	validateToken       ValidateToken
	errorHandler        ErrorHandler
	tokenExtractor      TokenExtractor
	exclusionHandler    ExclusionHandler
	credentialsOptional bool
	validateOnOptions   bool
	logger              Logger
	metrics             Metrics
	tracer              Tracer
}

// New constructs a Middleware around the given token validation function.
//
// Example:
//
//	v, err := validator.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	mw, err := oidcverifier.New(
//	    v.TokenValidator(validator.DefaultConfig(), "https://idp.example"),
//	)
func New(validateToken ValidateToken, opts ...Option) (*Middleware, error) {
	if validateToken == nil {
		return nil, ErrValidateTokenNil
	}

	m := &Middleware{
		validateToken:     validateToken,
		errorHandler:      DefaultErrorHandler,
		tokenExtractor:    AuthHeaderTokenExtractor,
		validateOnOptions: true,
		logger:            &NoopLogger{},
		metrics:           &NoopMetrics{},
		tracer:            &NoopTracer{},
	}

	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, fmt.Errorf("invalid option: %w", err)
		}
	}

	return m, nil
}

// CheckJWT wraps next with token validation. On success the claims are
// stored in the request context under ContextKey; on failure the configured
// ErrorHandler writes the response and next is never called.
func (m *Middleware) CheckJWT(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.exclusionHandler != nil && m.exclusionHandler(r) {
			m.logger.Debugf("skipping token validation for excluded URL %s", r.URL.Path)
			next.ServeHTTP(w, r)
			return
		}

		// If we don't validate on OPTIONS and this is OPTIONS
		// then continue onto next without validating.
		if !m.validateOnOptions && r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		token, err := m.tokenExtractor(r)
		if err != nil {
			// This is not ErrJWTMissing because an error here means that the
			// tokenExtractor had an error and _not_ that the token was missing.
			m.logger.Errorf("failed to extract token: %v", err)
			m.errorHandler(w, r, fmt.Errorf("error extracting token: %w", err))
			return
		}

		if token == "" {
			// If credentials are optional continue
			// onto next without validating.
			if m.credentialsOptional {
				next.ServeHTTP(w, r)
				return
			}

			m.metrics.IncCounter("token_check_total", map[string]string{"result": "missing"})
			m.errorHandler(w, r, ErrJWTMissing)
			return
		}

		span := m.tracer.StartSpan("middleware.check_jwt")
		claims, err := m.validateToken(r.Context(), token)
		span.Finish()
		if err != nil {
			m.logger.Warnf("token validation failed: %v", err)
			m.metrics.IncCounter("token_check_total", map[string]string{"result": "invalid"})
			m.errorHandler(w, r, &invalidError{details: err})
			return
		}

		// No err means we have valid claims, so set them
		// into the context and continue onto next.
		m.metrics.IncCounter("token_check_total", map[string]string{"result": "valid"})
		r = r.Clone(context.WithValue(r.Context(), ContextKey{}, claims))
		next.ServeHTTP(w, r)
	})
}
