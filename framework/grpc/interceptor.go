// Package grpcoidc adapts the OIDC verification middleware to gRPC server
// interceptors.
package grpcoidc

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	oidcverifier "github.com/tokenward/go-oidc-verifier"
	"github.com/tokenward/go-oidc-verifier/validator"
)

var (
	ErrMissingClaims = errors.New("no claims found in context")
	ErrInvalidClaims = errors.New("invalid claims type")
)

// ExclusionChecker reports whether a full gRPC method name should skip
// token validation.
type ExclusionChecker func(method string) bool

// Interceptor provides bearer token authentication for gRPC servers.
type Interceptor struct {
	validateToken       oidcverifier.ValidateToken
	tokenExtractor      TokenExtractor
	credentialsOptional bool
	exclusionChecker    ExclusionChecker
	logger              oidcverifier.Logger
	metrics             oidcverifier.Metrics
	tracer              oidcverifier.Tracer
}

// New creates an Interceptor around the given token validation function,
// typically a validator.Verifier.TokenValidator closure.
func New(validateToken oidcverifier.ValidateToken, opts ...Option) *Interceptor {
	i := &Interceptor{
		validateToken:  validateToken,
		tokenExtractor: MetadataTokenExtractor,
		logger:         &oidcverifier.NoopLogger{},
		metrics:        &oidcverifier.NoopMetrics{},
		tracer:         &oidcverifier.NoopTracer{},
	}

	for _, opt := range opts {
		opt(i)
	}

	return i
}

// authenticate extracts and validates the token, returning a context that
// carries the claims. All failures map to codes.Unauthenticated.
func (i *Interceptor) authenticate(ctx context.Context, method string) (context.Context, error) {
	if i.exclusionChecker != nil && i.exclusionChecker(method) {
		i.logger.Debugf("method %s excluded from token validation", method)
		return ctx, nil
	}

	start := time.Now()
	span := i.tracer.StartSpan("grpc.authenticate")
	span.SetTag("grpc.method", method)
	defer span.Finish()

	token, err := i.tokenExtractor(ctx)
	if err != nil {
		i.logger.Errorf("failed to extract token for %s: %v", method, err)
		i.metrics.IncCounter("grpc_auth_total", map[string]string{"result": "extraction_error"})
		return nil, status.Errorf(codes.Unauthenticated, "error extracting token: %v", err)
	}

	if token == "" {
		if i.credentialsOptional {
			return ctx, nil
		}
		i.metrics.IncCounter("grpc_auth_total", map[string]string{"result": "missing"})
		return nil, status.Error(codes.Unauthenticated, "token is missing")
	}

	claims, err := i.validateToken(ctx, token)
	if err != nil {
		i.logger.Warnf("token validation failed for %s: %v", method, err)
		i.metrics.IncCounter("grpc_auth_total", map[string]string{"result": "invalid"})
		return nil, status.Errorf(codes.Unauthenticated, "invalid token: %v", err)
	}

	i.metrics.IncCounter("grpc_auth_total", map[string]string{"result": "valid"})
	i.metrics.ObserveHistogram("grpc_auth_duration_seconds", time.Since(start).Seconds(), nil)

	return context.WithValue(ctx, oidcverifier.ContextKey{}, claims), nil
}

// UnaryServerInterceptor returns a unary server interceptor that
// authenticates each request before invoking the handler.
func (i *Interceptor) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		authCtx, err := i.authenticate(ctx, info.FullMethod)
		if err != nil {
			return nil, err
		}
		return handler(authCtx, req)
	}
}

// StreamServerInterceptor returns a stream server interceptor that
// authenticates the stream before invoking the handler.
func (i *Interceptor) StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		authCtx, err := i.authenticate(ss.Context(), info.FullMethod)
		if err != nil {
			return err
		}
		return handler(srv, &wrappedServerStream{ServerStream: ss, ctx: authCtx})
	}
}

// wrappedServerStream overrides the stream context with the
// authenticated one.
type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}

// GetClaims retrieves validated claims from the context.
// Returns nil if no claims are present.
func GetClaims(ctx context.Context) validator.ClaimMap {
	claims, ok := ctx.Value(oidcverifier.ContextKey{}).(validator.ClaimMap)
	if !ok {
		return nil
	}
	return claims
}

// RequireClaims retrieves validated claims from the context. It returns
// ErrMissingClaims when none are present and ErrInvalidClaims when the
// stored value has an unexpected type.
func RequireClaims(ctx context.Context) (validator.ClaimMap, error) {
	claims := ctx.Value(oidcverifier.ContextKey{})
	if claims == nil {
		return nil, ErrMissingClaims
	}
	claimMap, ok := claims.(validator.ClaimMap)
	if !ok {
		return nil, ErrInvalidClaims
	}
	return claimMap, nil
}
