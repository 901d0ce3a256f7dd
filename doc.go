/*
Package oidcverifier provides HTTP middleware on top of the OIDC token
verification engine in the validator package.

The verifier resolves issuer metadata and signing keys through OpenID
Connect Discovery, caches both, and validates bearer JWTs. This package
wires that into net/http:

	v, err := validator.New()
	if err != nil {
	    log.Fatalf("failed to set up the verifier: %v", err)
	}

	mw, err := oidcverifier.New(
	    v.TokenValidator(validator.DefaultConfig(), "https://idp.example"),
	)
	if err != nil {
	    log.Fatalf("failed to set up the middleware: %v", err)
	}

	handler := mw.CheckJWT(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	    claims, ok := r.Context().Value(oidcverifier.ContextKey{}).(validator.ClaimMap)
	    if !ok {
	        http.Error(w, "failed to get claims", http.StatusInternalServerError)
	        return
	    }
	    fmt.Fprintf(w, "hello %s", claims.Subject())
	}))

	http.ListenAndServe(":8080", handler)

# Token extraction

By default the token is read from the Authorization header as a Bearer
token. CookieTokenExtractor, ParameterTokenExtractor and
MultiTokenExtractor cover the other common placements; pass one with
WithTokenExtractor.

# Error handling

Validation failures reach the configured ErrorHandler wrapped so that
errors.Is(err, ErrJWTInvalid) holds, with the underlying validator error
still reachable through errors.Unwrap. A missing token surfaces as
ErrJWTMissing unless WithCredentialsOptional(true) is set.

# Observability

WithLogger, WithMetrics and WithTracer accept the same adapters the
validator package consumes: NewLogrusLogger, NewZapLogger,
NewZerologLogger, NewPrometheusMetrics and NewOpenTelemetryTracer.

Adapters for the Gin, Echo and gRPC frameworks live under framework/.
*/
package oidcverifier
