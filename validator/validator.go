package validator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"

	"github.com/tokenward/go-oidc-verifier/internal/oidc"
	"github.com/tokenward/go-oidc-verifier/internal/transport"
	"github.com/tokenward/go-oidc-verifier/jwks"
)

// Verifier validates bearer JWTs against an issuer's metadata. It owns the
// discovery document cache and the signing key cache; one Verifier serves
// any number of issuers, and validations are independent and may run
// concurrently.
type Verifier struct {
	transport     *transport.Transport
	ownsTransport bool
	discovery     *oidc.Resolver
	keys          *jwks.Resolver
	log           transport.Logger
	metrics       transport.Metrics
	tracer        Tracer
}

// verification is the per-call working copy. Everything derived during a
// call lands here so the caller's Config is never written to.
type verification struct {
	alg         string
	kid         string
	issuer      string
	jwksURI     string
	allowedAlgs []string
	doc         *oidc.Document
}

// New builds a Verifier. By default it uses the process-wide shared
// transport; see WithTransportMode for the per-worker pooled variant.
func New(opts ...Option) (*Verifier, error) {
	cfg := defaultOptions()
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, fmt.Errorf("invalid option: %w", err)
		}
	}

	t := cfg.transport
	ownsTransport := false
	if t == nil {
		var err error
		switch cfg.mode {
		case TransportShared:
			t, err = transport.Shared()
		case TransportPooled:
			t, err = transport.New(cfg.transportOpts...)
			ownsTransport = true
		default:
			err = fmt.Errorf("unknown transport mode %d", cfg.mode)
		}
		if err != nil {
			return nil, err
		}
	}

	discovery, err := oidc.NewResolver(t,
		oidc.WithCacheSize(cfg.documentCacheSize),
		oidc.WithLogger(cfg.log),
		oidc.WithMetrics(cfg.metrics),
	)
	if err != nil {
		return nil, err
	}

	keys, err := jwks.NewResolver(t,
		jwks.WithCacheSize(cfg.keyCacheSize),
		jwks.WithLogger(cfg.log),
		jwks.WithMetrics(cfg.metrics),
	)
	if err != nil {
		return nil, err
	}

	return &Verifier{
		transport:     t,
		ownsTransport: ownsTransport,
		discovery:     discovery,
		keys:          keys,
		log:           cfg.log,
		metrics:       cfg.metrics,
		tracer:        cfg.tracer,
	}, nil
}

// Validate checks the token against the issuer at issuerAddress under the
// given policy and returns its decoded claims. cfg is read-only input and
// survives the call unmodified. On failure the error matches exactly one
// of the package's sentinel kinds.
func (v *Verifier) Validate(ctx context.Context, token string, cfg Config, issuerAddress string) (ClaimMap, error) {
	span := v.tracer.StartSpan("oidc.validate_token")
	defer span.Finish()

	start := time.Now()
	defer func() {
		v.metrics.ObserveHistogram("token_validation_duration_seconds", time.Since(start).Seconds(), nil)
	}()

	work := verification{}

	msg, err := jws.Parse([]byte(token))
	if err != nil {
		return nil, newValidationError(ErrMalformedToken, ErrorCodeTokenMalformed, "could not parse the token", err)
	}
	sigs := msg.Signatures()
	if len(sigs) == 0 {
		return nil, newValidationError(ErrMalformedToken, ErrorCodeTokenMalformed, "token carries no signature", nil)
	}
	hdr := sigs[0].ProtectedHeaders()
	work.alg = string(hdr.Algorithm())
	work.kid = hdr.KeyID()
	span.SetTag("token.alg", work.alg)

	if cfg.ResolveMetadata {
		address, err := oidc.WellKnownURI(issuerAddress)
		if err != nil {
			return nil, newValidationError(ErrInvalidConfig, ErrorCodeConfigInvalid, "invalid issuer address", err)
		}
		doc, err := v.discovery.Resolve(ctx, address)
		if err != nil {
			return nil, err
		}
		work.doc = doc
		work.issuer = doc.Issuer
		work.jwksURI = doc.JWKSURI
		work.allowedAlgs = doc.IDTokenSigningAlgValuesSupported
	} else {
		work.issuer = cfg.Issuer
		if work.issuer == "" {
			work.issuer = issuerAddress
		}
		work.jwksURI = cfg.JWKSURI
		for _, alg := range cfg.AllowedAlgorithms {
			work.allowedAlgs = append(work.allowedAlgs, string(alg))
		}
	}

	// The allow-list check runs before any cryptographic work so an
	// attacker-chosen algorithm never reaches the primitive.
	if len(work.allowedAlgs) > 0 && !containsString(work.allowedAlgs, work.alg) {
		return nil, newValidationError(
			ErrUnacceptableAlgorithm,
			ErrorCodeUnacceptableAlgorithm,
			fmt.Sprintf("token algorithm %q is not advertised by the issuer", work.alg),
			nil,
		)
	}

	var payload []byte
	if cfg.DecodeOptions.VerifySignature {
		if work.jwksURI == "" {
			return nil, newValidationError(ErrInvalidConfig, ErrorCodeConfigInvalid, "no key set address available for signature verification", nil)
		}
		key, err := v.keys.ResolveKey(ctx, work.issuer, work.jwksURI, work.kid)
		if err != nil {
			return nil, err
		}
		payload, err = jws.Verify([]byte(token), jws.WithKey(jwa.SignatureAlgorithm(work.alg), key))
		if err != nil {
			return nil, newValidationError(ErrSignatureVerificationFailure, ErrorCodeInvalidSignature, "signature verification failed", err)
		}
	} else {
		payload = msg.Payload()
	}

	claims, err := decodeClaims(payload)
	if err != nil {
		return nil, newValidationError(ErrMalformedToken, ErrorCodeTokenMalformed, "could not decode token claims", err)
	}

	if err := checkStandardClaims(claims, cfg, work.issuer); err != nil {
		return nil, err
	}

	if cfg.ClaimsValidator != nil {
		if err := runClaimsValidator(ctx, cfg.ClaimsValidator, claims); err != nil {
			return nil, err
		}
	}

	v.log.Debugf("validated token for issuer %s", work.issuer)
	return claims, nil
}

// ClearCaches drops the discovery document and signing key caches.
func (v *Verifier) ClearCaches() {
	v.discovery.ClearCache()
	v.keys.ClearCache()
}

// Close releases the verifier's transport resources. The shared transport
// is left alone; only a pooled transport owned by this verifier is closed.
func (v *Verifier) Close() {
	if v.ownsTransport {
		v.transport.Close()
	}
}

// TokenValidator returns a validation closure suitable for the middleware
// surfaces, binding the given policy and issuer address.
func (v *Verifier) TokenValidator(cfg Config, issuerAddress string) func(context.Context, string) (interface{}, error) {
	return func(ctx context.Context, token string) (interface{}, error) {
		return v.Validate(ctx, token, cfg, issuerAddress)
	}
}

func checkStandardClaims(claims ClaimMap, cfg Config, issuer string) error {
	now := time.Now()
	leeway := cfg.DecodeOptions.Leeway

	if cfg.DecodeOptions.VerifyExpiry {
		if expiry, ok := claims.Time("exp"); ok && now.Add(-leeway).After(expiry) {
			return newValidationError(ErrTokenExpired, ErrorCodeTokenExpired, "token is expired", nil)
		}
	}

	if cfg.DecodeOptions.VerifyNotBefore {
		if notBefore, ok := claims.Time("nbf"); ok && now.Add(leeway).Before(notBefore) {
			return newValidationError(ErrInvalidNotBefore, ErrorCodeTokenNotYetValid, "token is not valid yet", nil)
		}
	}

	if cfg.DecodeOptions.VerifyAudience {
		if !audienceMatches(claims.Audience(), cfg.Audience) {
			return newValidationError(ErrInvalidAudience, ErrorCodeInvalidAudience, "token audience does not match", nil)
		}
	}

	if cfg.DecodeOptions.VerifyIssuer {
		if iss, _ := claims.Issuer(); iss != issuer {
			return newValidationError(ErrInvalidIssuer, ErrorCodeInvalidIssuer, fmt.Sprintf("token issuer %q does not match %q", iss, issuer), nil)
		}
	}

	return nil
}

// runClaimsValidator dispatches to whichever capability the configured
// validator implements, preferring the suspending variant.
func runClaimsValidator(ctx context.Context, cv interface{}, claims ClaimMap) error {
	var err error
	switch validator := cv.(type) {
	case ContextClaimsValidator:
		err = validator.ValidateClaims(ctx, claims)
	case ClaimsValidator:
		err = validator.Validate(claims)
	default:
		return newValidationError(ErrInvalidConfig, ErrorCodeConfigInvalid,
			fmt.Sprintf("claims validator %T implements neither ClaimsValidator nor ContextClaimsValidator", cv), nil)
	}
	if err != nil {
		return newValidationError(ErrClaimsValidatorRejected, ErrorCodeClaimsRejected, "claims validator rejected token", err)
	}
	return nil
}

func decodeClaims(payload []byte) (ClaimMap, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var claims ClaimMap
	if err := dec.Decode(&claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func audienceMatches(actual, expected []string) bool {
	for _, want := range expected {
		for _, have := range actual {
			if want == have {
				return true
			}
		}
	}
	return false
}

func containsString(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

// numericDate interprets a JSON claim value as an RFC 7519 NumericDate.
func numericDate(value interface{}) (time.Time, bool) {
	switch v := value.(type) {
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return time.Time{}, false
		}
		return time.Unix(int64(f), 0), true
	case float64:
		return time.Unix(int64(v), 0), true
	case int64:
		return time.Unix(v, 0), true
	}
	return time.Time{}, false
}
