package jwks

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

var (
	// ErrMalformedKeySet is returned when a JWKS response cannot be parsed
	// as a JSON object with a "keys" array.
	ErrMalformedKeySet = errors.New("malformed key set")

	// ErrKeyNotFound is returned when no key in the set matches the
	// requested key id.
	ErrKeyNotFound = errors.New("no matching key found in key set")
)

// Key is a JSON Web Key per RFC 7517. Parameter names are case-sensitive
// and round-trip exactly on re-serialization, including the x5t#S256 name.
type Key struct {
	KeyType   string   `json:"kty"`
	Use       string   `json:"use,omitempty"`
	KeyOps    []string `json:"key_ops,omitempty"`
	Algorithm string   `json:"alg,omitempty"`
	KeyID     string   `json:"kid,omitempty"`
	X5U       string   `json:"x5u,omitempty"`
	X5C       []string `json:"x5c,omitempty"`
	X5T       string   `json:"x5t,omitempty"`
	X5TS256   string   `json:"x5t#S256,omitempty"`

	// RSA material.
	N string `json:"n,omitempty"`
	E string `json:"e,omitempty"`

	// EC material.
	Curve string `json:"crv,omitempty"`
	X     string `json:"x,omitempty"`
	Y     string `json:"y,omitempty"`

	// Symmetric material. A pointer so that a present-but-empty value
	// survives re-serialization.
	K *string `json:"k,omitempty"`
}

// Set is an ordered collection of keys, unique by key id where a key id is
// present. Entries that failed validation are recorded in Skipped rather
// than failing the whole set.
type Set struct {
	Keys []Key `json:"keys"`

	Skipped []SkippedKey `json:"-"`
}

// SkippedKey describes a key entry that was dropped during parsing.
type SkippedKey struct {
	Index  int
	KeyID  string
	Reason error
}

// Diagnostics rolls the skipped-key reasons into a single non-fatal error,
// or nil when every key parsed cleanly.
func (s *Set) Diagnostics() error {
	var result *multierror.Error
	for _, sk := range s.Skipped {
		result = multierror.Append(result, fmt.Errorf("key %d (kid %q): %w", sk.Index, sk.KeyID, sk.Reason))
	}
	return result.ErrorOrNil()
}

// Lookup returns the key with the given key id.
func (s *Set) Lookup(kid string) (*Key, bool) {
	for i := range s.Keys {
		if s.Keys[i].KeyID == kid {
			return &s.Keys[i], true
		}
	}
	return nil, false
}

var validKeyOps = map[string]bool{
	"sign":       true,
	"verify":     true,
	"encrypt":    true,
	"decrypt":    true,
	"wrapKey":    true,
	"unwrapKey":  true,
	"deriveKey":  true,
	"deriveBits": true,
}

var validCurves = map[string]bool{
	"P-256": true,
	"P-384": true,
	"P-521": true,
}

// ParseSet decodes a JWKS document. A malformed individual key does not
// invalidate the whole set: the bad entry is skipped and recorded with its
// reason, and the remaining keys are returned.
func ParseSet(data []byte) (*Set, error) {
	var raw struct {
		Keys []json.RawMessage `json:"keys"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedKeySet, err)
	}
	if raw.Keys == nil {
		return nil, fmt.Errorf(`%w: missing "keys" member`, ErrMalformedKeySet)
	}

	multiKey := len(raw.Keys) > 1
	seen := make(map[string]bool, len(raw.Keys))
	set := &Set{Keys: make([]Key, 0, len(raw.Keys))}

	for i, rawKey := range raw.Keys {
		var key Key
		if err := json.Unmarshal(rawKey, &key); err != nil {
			set.Skipped = append(set.Skipped, SkippedKey{Index: i, Reason: err})
			continue
		}

		if err := key.validate(multiKey); err != nil {
			set.Skipped = append(set.Skipped, SkippedKey{Index: i, KeyID: key.KeyID, Reason: err})
			continue
		}

		if key.KeyID != "" {
			if seen[key.KeyID] {
				set.Skipped = append(set.Skipped, SkippedKey{Index: i, KeyID: key.KeyID, Reason: errors.New("duplicate key id")})
				continue
			}
			seen[key.KeyID] = true
		}

		set.Keys = append(set.Keys, key)
	}

	return set, nil
}

func (k *Key) validate(multiKey bool) error {
	if k.KeyType == "" {
		return errors.New(`missing required parameter "kty"`)
	}

	if k.Use != "" && len(k.KeyOps) > 0 {
		return errors.New(`"use" and "key_ops" are mutually exclusive`)
	}
	if err := validateUse(k.Use); err != nil {
		return err
	}
	for _, op := range k.KeyOps {
		if !validKeyOps[op] {
			return fmt.Errorf("unknown key operation %q", op)
		}
	}

	if multiKey && k.KeyID == "" {
		return errors.New("key id is required in a multi-key set")
	}

	switch k.KeyType {
	case "RSA":
		if err := requireBase64URL("n", k.N); err != nil {
			return err
		}
		if err := requireBase64URL("e", k.E); err != nil {
			return err
		}
	case "EC":
		if !validCurves[k.Curve] {
			return fmt.Errorf("unsupported curve %q", k.Curve)
		}
		if err := requireBase64URL("x", k.X); err != nil {
			return err
		}
		if err := requireBase64URL("y", k.Y); err != nil {
			return err
		}
	case "oct":
		if k.K == nil {
			return errors.New(`missing required parameter "k"`)
		}
		// Empty symmetric key values are permitted.
		if _, err := base64.RawURLEncoding.DecodeString(*k.K); err != nil {
			return fmt.Errorf(`parameter "k" is not valid base64url: %v`, err)
		}
	default:
		return fmt.Errorf("unsupported key type %q", k.KeyType)
	}

	return nil
}

// validateUse accepts the registered "sig" and "enc" values or a custom
// URI-shaped value.
func validateUse(use string) error {
	switch use {
	case "", "sig", "enc":
		return nil
	}
	if strings.Contains(use, ":") {
		return nil
	}
	return fmt.Errorf(`unknown key use %q`, use)
}

func requireBase64URL(name, value string) error {
	if value == "" {
		return fmt.Errorf("missing required parameter %q", name)
	}
	if _, err := base64.RawURLEncoding.DecodeString(value); err != nil {
		return fmt.Errorf("parameter %q is not valid base64url: %v", name, err)
	}
	return nil
}

// Materialize converts the key to a jwk.Key that the verification primitive
// accepts. The conversion round-trips through the key's exact wire form.
func (k *Key) Materialize() (jwk.Key, error) {
	raw, err := json.Marshal(k)
	if err != nil {
		return nil, fmt.Errorf("could not serialize key %q: %w", k.KeyID, err)
	}

	key, err := jwk.ParseKey(raw)
	if err != nil {
		return nil, fmt.Errorf("could not materialize key %q: %w", k.KeyID, err)
	}

	return key, nil
}
