package validator

import "time"

// Signature algorithms
const (
	EdDSA = SignatureAlgorithm("EdDSA")
	HS256 = SignatureAlgorithm("HS256") // HMAC using SHA-256
	HS384 = SignatureAlgorithm("HS384") // HMAC using SHA-384
	HS512 = SignatureAlgorithm("HS512") // HMAC using SHA-512
	RS256 = SignatureAlgorithm("RS256") // RSASSA-PKCS-v1.5 using SHA-256
	RS384 = SignatureAlgorithm("RS384") // RSASSA-PKCS-v1.5 using SHA-384
	RS512 = SignatureAlgorithm("RS512") // RSASSA-PKCS-v1.5 using SHA-512
	ES256 = SignatureAlgorithm("ES256") // ECDSA using P-256 and SHA-256
	ES384 = SignatureAlgorithm("ES384") // ECDSA using P-384 and SHA-384
	ES512 = SignatureAlgorithm("ES512") // ECDSA using P-521 and SHA-512
	PS256 = SignatureAlgorithm("PS256") // RSASSA-PSS using SHA256 and MGF1-SHA256
	PS384 = SignatureAlgorithm("PS384") // RSASSA-PSS using SHA384 and MGF1-SHA384
	PS512 = SignatureAlgorithm("PS512") // RSASSA-PSS using SHA512 and MGF1-SHA512
)

// SignatureAlgorithm is a signature algorithm.
type SignatureAlgorithm string

// DecodeOptions controls which standard checks run and the clock-skew
// tolerance applied to the time-based ones.
type DecodeOptions struct {
	VerifySignature bool
	VerifyExpiry    bool
	VerifyNotBefore bool
	VerifyAudience  bool
	VerifyIssuer    bool
	Leeway          time.Duration
}

// Config is the per-call validation policy. It is read-only input: the
// verifier never writes to it, and any state derived during a call (the
// resolved key, the resolved algorithm) lives in a per-call working copy.
type Config struct {
	// ResolveMetadata enables automatic issuer metadata discovery. When
	// false, JWKSURI (or a key supplied some other way), Issuer and
	// AllowedAlgorithms below take its place.
	ResolveMetadata bool

	// Audience is the set of acceptable audiences; the token must carry
	// at least one of them when audience verification is on.
	Audience []string

	// DecodeOptions selects the standard claim checks and leeway.
	DecodeOptions DecodeOptions

	// ClaimsValidator optionally runs after the standard checks. It must
	// implement ClaimsValidator or ContextClaimsValidator.
	ClaimsValidator interface{}

	// JWKSURI is the key set address used when ResolveMetadata is false.
	JWKSURI string

	// Issuer is the expected iss claim when ResolveMetadata is false.
	// Ignored when metadata is resolved; the document's issuer wins.
	Issuer string

	// AllowedAlgorithms is the signing algorithm allow-list used when
	// ResolveMetadata is false. With metadata resolution the issuer's
	// advertised id_token_signing_alg_values_supported is used instead.
	AllowedAlgorithms []SignatureAlgorithm
}

// DefaultConfig returns a Config with every standard check enabled,
// automatic metadata resolution, and no leeway.
func DefaultConfig() Config {
	return Config{
		ResolveMetadata: true,
		DecodeOptions: DecodeOptions{
			VerifySignature: true,
			VerifyExpiry:    true,
			VerifyNotBefore: true,
			VerifyAudience:  true,
			VerifyIssuer:    true,
		},
	}
}
