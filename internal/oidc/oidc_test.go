package oidc

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokenward/go-oidc-verifier/internal/transport"
)

func newTestResolver(t *testing.T, opts ...ResolverOption) *Resolver {
	t.Helper()

	tr, err := transport.New(
		transport.WithConfig(transport.Config{TimeoutSeconds: 5, RetryCount: 1}),
		transport.WithHTTPClient(&http.Client{Timeout: 5 * time.Second}),
	)
	require.NoError(t, err)

	resolver, err := NewResolver(tr, opts...)
	require.NoError(t, err)
	return resolver
}

func discoveryHandler(issuer string, calls *atomic.Int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{
			"issuer": %q,
			"token_endpoint": %q,
			"jwks_uri": %q,
			"response_types_supported": ["code"],
			"subject_types_supported": ["public"],
			"id_token_signing_alg_values_supported": ["RS256"]
		}`, issuer, issuer+"/token", issuer+"/jwks.json")
	}
}

func TestWellKnownURI(t *testing.T) {
	testCases := []struct {
		name   string
		issuer string
		want   string
	}{
		{
			name:   "bare issuer",
			issuer: "https://idp.example.com",
			want:   "https://idp.example.com/.well-known/openid-configuration",
		},
		{
			name:   "issuer with path",
			issuer: "https://idp.example.com/tenant/a",
			want:   "https://idp.example.com/tenant/a/.well-known/openid-configuration",
		},
		{
			name:   "issuer with trailing slash",
			issuer: "https://idp.example.com/",
			want:   "https://idp.example.com/.well-known/openid-configuration",
		},
		{
			name:   "already a well-known address",
			issuer: "https://idp.example.com/.well-known/openid-configuration",
			want:   "https://idp.example.com/.well-known/openid-configuration",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			got, err := WellKnownURI(testCase.issuer)
			require.NoError(t, err)
			assert.Equal(t, testCase.want, got)
		})
	}
}

func TestResolve_CachesDocument(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(discoveryHandler("https://idp.example.com", &calls))
	defer server.Close()

	resolver := newTestResolver(t)

	first, err := resolver.Resolve(context.Background(), server.URL)
	require.NoError(t, err)

	// Every further resolution is answered from the cache without
	// touching the network.
	for i := 0; i < 5; i++ {
		doc, err := resolver.Resolve(context.Background(), server.URL)
		require.NoError(t, err)
		assert.Same(t, first, doc)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestResolve_ClearCacheForcesRefetch(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(discoveryHandler("https://idp.example.com", &calls))
	defer server.Close()

	resolver := newTestResolver(t)

	_, err := resolver.Resolve(context.Background(), server.URL)
	require.NoError(t, err)

	resolver.ClearCache()

	_, err = resolver.Resolve(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestResolve_InvalidDocumentIsNotCached(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		// Missing jwks_uri.
		fmt.Fprint(w, `{
			"issuer": "https://idp.example.com",
			"token_endpoint": "https://idp.example.com/token",
			"response_types_supported": ["code"],
			"subject_types_supported": ["public"],
			"id_token_signing_alg_values_supported": ["RS256"]
		}`)
	}))
	defer server.Close()

	resolver := newTestResolver(t)

	for i := 0; i < 2; i++ {
		_, err := resolver.Resolve(context.Background(), server.URL)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrDiscoveryValidation)
	}
	assert.Equal(t, int32(2), calls.Load(), "failed documents must not be cached")
}

func TestResolve_RejectsWrongContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html>not a document</html>")
	}))
	defer server.Close()

	resolver := newTestResolver(t)

	_, err := resolver.Resolve(context.Background(), server.URL)
	assert.ErrorIs(t, err, ErrMalformedDocument)
}

func TestResolve_AcceptsContentTypeWithCharset(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		fmt.Fprint(w, `{
			"issuer": "https://idp.example.com",
			"token_endpoint": "https://idp.example.com/token",
			"jwks_uri": "https://idp.example.com/jwks.json",
			"response_types_supported": ["code"],
			"subject_types_supported": ["public"],
			"id_token_signing_alg_values_supported": ["RS256"]
		}`)
	}))
	defer server.Close()

	resolver := newTestResolver(t)

	doc, err := resolver.Resolve(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "https://idp.example.com", doc.Issuer)
}

func TestResolve_TransportErrorsPropagate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	resolver := newTestResolver(t)

	_, err := resolver.Resolve(context.Background(), server.URL)
	assert.ErrorIs(t, err, transport.ErrRequestRejected)
}
