package validator

import (
	"context"
	"time"
)

// ClaimMap is the decoded payload of a validated token.
type ClaimMap map[string]interface{}

// Subject returns the sub claim, if present.
func (c ClaimMap) Subject() (string, bool) {
	s, ok := c["sub"].(string)
	return s, ok
}

// Issuer returns the iss claim, if present.
func (c ClaimMap) Issuer() (string, bool) {
	s, ok := c["iss"].(string)
	return s, ok
}

// Audience returns the aud claim normalized to a slice. The claim may be
// carried as a single string or an array of strings on the wire.
func (c ClaimMap) Audience() []string {
	switch aud := c["aud"].(type) {
	case string:
		return []string{aud}
	case []interface{}:
		out := make([]string, 0, len(aud))
		for _, v := range aud {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Time returns the named claim interpreted as a NumericDate.
func (c ClaimMap) Time(name string) (time.Time, bool) {
	return numericDate(c[name])
}

// ClaimsValidator is the blocking variant of the caller-supplied claims
// check, invoked after the standard claims have been verified.
type ClaimsValidator interface {
	Validate(claims ClaimMap) error
}

// ContextClaimsValidator is the suspending variant: it receives the call's
// context and may block on I/O, honoring cancellation. The verifier
// dispatches to whichever variant the configured validator implements,
// so callers never adapt one to the other.
type ContextClaimsValidator interface {
	ValidateClaims(ctx context.Context, claims ClaimMap) error
}

// ClaimsValidatorFunc adapts a plain function to ClaimsValidator.
type ClaimsValidatorFunc func(claims ClaimMap) error

// Validate implements ClaimsValidator.
func (f ClaimsValidatorFunc) Validate(claims ClaimMap) error {
	return f(claims)
}

// ContextClaimsValidatorFunc adapts a plain function to
// ContextClaimsValidator.
type ContextClaimsValidatorFunc func(ctx context.Context, claims ClaimMap) error

// ValidateClaims implements ContextClaimsValidator.
func (f ContextClaimsValidatorFunc) ValidateClaims(ctx context.Context, claims ClaimMap) error {
	return f(ctx, claims)
}
