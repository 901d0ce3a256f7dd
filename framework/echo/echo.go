// Package echooidc adapts the OIDC verification middleware to Echo.
package echooidc

import (
	"net/http"

	"github.com/labstack/echo/v4"

	oidcverifier "github.com/tokenward/go-oidc-verifier"
	"github.com/tokenward/go-oidc-verifier/validator"
)

// DefaultClaimsKey is the Echo context key claims are stored under.
const DefaultClaimsKey = "claims"

type config struct {
	errorHandler   func(echo.Context, error)
	contextKey     string
	tokenExtractor oidcverifier.TokenExtractor
}

// New creates an Echo middleware that validates bearer tokens with the
// given validation function, typically a validator.Verifier.TokenValidator
// closure. The validation function must be safe for concurrent use.
func New(validateToken oidcverifier.ValidateToken, opts ...Option) (echo.MiddlewareFunc, error) {
	cfg := &config{
		errorHandler: defaultErrorHandler,
		contextKey:   DefaultClaimsKey,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	middlewareOpts := []oidcverifier.Option{
		oidcverifier.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			e := echo.New()
			c := e.NewContext(r, w)
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

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var handlerErr error
			var handler http.HandlerFunc = func(w http.ResponseWriter, r *http.Request) {
				c.SetRequest(r)

				if claims, ok := r.Context().Value(oidcverifier.ContextKey{}).(validator.ClaimMap); ok {
					c.Set(cfg.contextKey, claims)
				}

				handlerErr = next(c)
			}

			middleware.CheckJWT(handler).ServeHTTP(c.Response(), c.Request())

			return handlerErr
		}
	}, nil
}

func defaultErrorHandler(c echo.Context, err error) {
	_ = c.JSON(http.StatusUnauthorized, map[string]string{
		"message": err.Error(),
	})
}

// GetClaims extracts validated claims from the Echo context.
func GetClaims(c echo.Context, contextKey string) (validator.ClaimMap, bool) {
	if contextKey == "" {
		contextKey = DefaultClaimsKey
	}
	claims := c.Get(contextKey)
	if claims == nil {
		return nil, false
	}

	claimMap, ok := claims.(validator.ClaimMap)
	return claimMap, ok
}
