/*
Package oidc implements OpenID Connect Discovery 1.0 resolution.

It fetches an issuer's metadata document from the well-known address,
validates the required fields and the issuer/endpoint URL rules, and caches
fully valid documents in a bounded LRU keyed by the request address.

	https://issuer.example.com/.well-known/openid-configuration

Validation failures carry the failing field:

	doc, err := resolver.Resolve(ctx, address)
	var verr *oidc.ValidationError
	if errors.As(err, &verr) {
	    log.Printf("field %s: %s", verr.Field, verr.Reason)
	}

Documents that fail validation are never cached, so a provider that fixes
its metadata is picked up on the next resolution.
*/
package oidc
