// Package ginoidc adapts the OIDC verification middleware to Gin.
package ginoidc

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	oidcverifier "github.com/tokenward/go-oidc-verifier"
	"github.com/tokenward/go-oidc-verifier/validator"
)

// DefaultClaimsKey is the Gin context key claims are stored under.
const DefaultClaimsKey = "claims"

var (
	ErrMissingClaims = errors.New("no claims found in context")
	ErrInvalidClaims = errors.New("invalid claims type")
)

type config struct {
	errorHandler   func(*gin.Context, error)
	contextKey     string
	tokenExtractor oidcverifier.TokenExtractor
}

// New creates a Gin middleware that validates bearer tokens with the given
// validation function, typically a validator.Verifier.TokenValidator
// closure. The validation function must be safe for concurrent use.
func New(validateToken oidcverifier.ValidateToken, opts ...Option) (gin.HandlerFunc, error) {
	cfg := &config{
		errorHandler: defaultErrorHandler,
		contextKey:   DefaultClaimsKey,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	middlewareOpts := []oidcverifier.Option{
		oidcverifier.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			c, exists := r.Context().Value(gin.ContextKey).(*gin.Context)
			if !exists || c == nil {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(err.Error()))
				return
			}
			cfg.errorHandler(c, err)
		}),
	}

	if cfg.tokenExtractor != nil {
		middlewareOpts = append(middlewareOpts, oidcverifier.WithTokenExtractor(cfg.tokenExtractor))
	}

	middleware, err := oidcverifier.New(validateToken, middlewareOpts...)
	if err != nil {
		return nil, err
	}

	return func(c *gin.Context) {
		encounteredError := true
		var handler http.HandlerFunc = func(w http.ResponseWriter, r *http.Request) {
			encounteredError = false
			c.Request = r

			if claims, ok := r.Context().Value(oidcverifier.ContextKey{}).(validator.ClaimMap); ok {
				c.Set(cfg.contextKey, claims)
			}

			c.Next()
		}

		// The error handler recovers the Gin context from the request.
		r := c.Request.WithContext(context.WithValue(c.Request.Context(), gin.ContextKey, c))
		middleware.CheckJWT(handler).ServeHTTP(c.Writer, r)

		if encounteredError {
			c.Abort()
		}
	}, nil
}

func defaultErrorHandler(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": err.Error(),
	})
}

// GetClaims retrieves validated claims from the Gin context. An empty
// contextKey falls back to DefaultClaimsKey.
func GetClaims(c *gin.Context, contextKey string) (validator.ClaimMap, error) {
	if contextKey == "" {
		contextKey = DefaultClaimsKey
	}
	claims, exists := c.Get(contextKey)
	if !exists {
		return nil, ErrMissingClaims
	}

	claimMap, ok := claims.(validator.ClaimMap)
	if !ok {
		return nil, ErrInvalidClaims
	}

	return claimMap, nil
}
