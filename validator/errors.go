package validator

import (
	"errors"

	"github.com/tokenward/go-oidc-verifier/internal/oidc"
	"github.com/tokenward/go-oidc-verifier/internal/transport"
	"github.com/tokenward/go-oidc-verifier/jwks"
)

// Sentinel errors for every failure kind. Errors returned by Validate
// compare equal to exactly one of these via errors.Is, so callers can
// branch on the kind (for example, distinguish expiry from tampering).
var (
	// ErrTransientNetworkFailure means the transport exhausted its retry
	// budget; the caller may retry later.
	ErrTransientNetworkFailure = transport.ErrTransientNetworkFailure

	// ErrRequestRejected means a non-retryable HTTP error (4xx other
	// than 429).
	ErrRequestRejected = transport.ErrRequestRejected

	// ErrMalformedDocument means the discovery response did not parse.
	ErrMalformedDocument = oidc.ErrMalformedDocument

	// ErrDiscoveryValidationFailure means a discovery field was missing or
	// invalid. errors.As with *oidc.ValidationError exposes the field.
	ErrDiscoveryValidationFailure = oidc.ErrDiscoveryValidation

	// ErrMalformedKeySet means the JWKS response did not parse.
	ErrMalformedKeySet = jwks.ErrMalformedKeySet

	// ErrKeyNotFound means no key in the issuer's set matches the token's
	// key id.
	ErrKeyNotFound = jwks.ErrKeyNotFound

	// ErrMalformedToken means the compact JWT could not be parsed at all.
	ErrMalformedToken = errors.New("malformed token")

	// ErrUnacceptableAlgorithm means the token's alg is not in the
	// issuer's advertised signing algorithm set. This is checked before
	// any cryptographic verification.
	ErrUnacceptableAlgorithm = errors.New("unacceptable signing algorithm")

	// ErrSignatureVerificationFailure means the signature did not verify
	// with the resolved key.
	ErrSignatureVerificationFailure = errors.New("signature verification failed")

	// ErrTokenExpired means the exp claim is in the past beyond leeway.
	ErrTokenExpired = errors.New("token expired")

	// ErrInvalidAudience means no expected audience is in the aud claim.
	ErrInvalidAudience = errors.New("invalid audience claim")

	// ErrInvalidIssuer means the iss claim does not match the resolved
	// issuer.
	ErrInvalidIssuer = errors.New("invalid issuer claim")

	// ErrInvalidNotBefore means the nbf claim is in the future beyond
	// leeway.
	ErrInvalidNotBefore = errors.New("token not valid yet")

	// ErrClaimsValidatorRejected means the caller-supplied claims
	// validator returned an error.
	ErrClaimsValidatorRejected = errors.New("claims validator rejected token")

	// ErrInvalidConfig means the supplied Config cannot be acted on, for
	// example signature verification without any key set address.
	ErrInvalidConfig = errors.New("invalid validation config")
)

// Machine-readable error codes carried by ValidationError.
const (
	ErrorCodeTokenMalformed        = "token_malformed"
	ErrorCodeUnacceptableAlgorithm = "unacceptable_algorithm"
	ErrorCodeInvalidSignature      = "invalid_signature"
	ErrorCodeTokenExpired          = "token_expired"
	ErrorCodeInvalidAudience       = "invalid_audience"
	ErrorCodeInvalidIssuer         = "invalid_issuer"
	ErrorCodeTokenNotYetValid      = "token_not_yet_valid"
	ErrorCodeClaimsRejected        = "claims_rejected"
	ErrorCodeConfigInvalid         = "config_invalid"
)

// ValidationError wraps a validation failure with a machine-readable code.
// It can be used for logging, metrics, and error responses.
type ValidationError struct {
	// Code is a machine-readable error code (e.g. "token_expired").
	Code string

	// Message is a human-readable error message.
	Message string

	// Details contains the underlying error, if any.
	Details error

	kind error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Details != nil {
		return e.Message + ": " + e.Details.Error()
	}
	return e.Message
}

// Is allows the error to be compared with its sentinel kind.
func (e *ValidationError) Is(target error) bool {
	return target == e.kind
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ValidationError) Unwrap() error {
	return e.Details
}

func newValidationError(kind error, code, message string, details error) *ValidationError {
	return &ValidationError{
		Code:    code,
		Message: message,
		Details: details,
		kind:    kind,
	}
}
