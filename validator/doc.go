/*
Package validator verifies bearer JWTs against OpenID Connect issuer
metadata.

A Verifier resolves the issuer's discovery document and signing keys
(both cached in bounded LRUs), rejects tokens whose algorithm the issuer
does not advertise before any cryptographic work, verifies the signature
with lestrrat-go/jwx, and checks the standard claims under a per-call
read-only Config:

	v, err := validator.New()
	if err != nil {
	    log.Fatal(err)
	}

	claims, err := v.Validate(ctx, token, validator.DefaultConfig(), "https://idp.example")
	if err != nil {
	    switch {
	    case errors.Is(err, validator.ErrTokenExpired):
	        // expired, not tampered
	    case errors.Is(err, validator.ErrSignatureVerificationFailure):
	        // tampered or wrong key
	    }
	}

Custom claim policies implement ClaimsValidator, or ContextClaimsValidator
when the check needs to block on I/O; the verifier dispatches to whichever
the supplied value implements.

Two transport lifecycles are supported: the default shared process-wide
transport, and a per-verifier pooled transport for thread-parallel workers
that must not share connection state (see WithTransportMode).
*/
package validator
