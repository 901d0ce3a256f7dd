package grpcoidc

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc/metadata"
)

// TokenExtractor extracts a bearer token from incoming gRPC metadata. An
// empty string with a nil error means no token was provided.
type TokenExtractor func(ctx context.Context) (string, error)

// MetadataTokenExtractor extracts the token from the "authorization"
// metadata field.
func MetadataTokenExtractor(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", nil // No metadata, so no token.
	}

	values := md.Get("authorization")
	if len(values) == 0 || values[0] == "" {
		return "", nil // No token provided.
	}

	authParts := strings.Fields(values[0])
	if len(authParts) != 2 || strings.ToLower(authParts[0]) != "bearer" {
		return "", errors.New("authorization header format must be 'Bearer {token}'")
	}

	return authParts[1], nil
}

// MetadataFieldTokenExtractor extracts the token from the specified
// metadata field, taken verbatim without a Bearer prefix.
func MetadataFieldTokenExtractor(field string) TokenExtractor {
	return func(ctx context.Context) (string, error) {
		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return "", nil
		}

		values := md.Get(field)
		if len(values) == 0 || values[0] == "" {
			return "", nil
		}

		return values[0], nil
	}
}

// MultiTokenExtractor runs multiple TokenExtractors and returns the first
// non-empty token. An extractor error stops the chain.
func MultiTokenExtractor(extractors ...TokenExtractor) TokenExtractor {
	return func(ctx context.Context) (string, error) {
		for _, ex := range extractors {
			token, err := ex(ctx)
			if err != nil {
				return "", err
			}
			if token != "" {
				return token, nil
			}
		}
		return "", nil
	}
}
