/*
Package jwks implements JSON Web Key Set (RFC 7517) retrieval and caching.

It parses key sets with case-sensitive parameter names (including the
x5t#S256 thumbprint, which round-trips exactly), validates every key entry
against its key type's required parameters, and skips invalid entries
instead of failing the whole set:

	set, err := resolver.ResolveSet(ctx, jwksURI)
	if err != nil {
	    // The whole document was malformed or unreachable.
	}
	if diag := set.Diagnostics(); diag != nil {
	    // One or more individual keys were dropped; the rest are usable.
	}

Signing keys are cached in a bounded LRU keyed by (issuer, kid), never by
the token string, so every token signed with one key shares a single
cache entry:

	key, err := resolver.ResolveKey(ctx, issuer, jwksURI, kid)

On key rotation, ClearCache forces re-resolution.
*/
package jwks
