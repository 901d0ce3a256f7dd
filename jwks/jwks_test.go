package jwks

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rsaKeyJSON(t *testing.T, kid string) map[string]interface{} {
	t.Helper()

	private, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	return map[string]interface{}{
		"kty": "RSA",
		"use": "sig",
		"alg": "RS256",
		"kid": kid,
		"n":   base64.RawURLEncoding.EncodeToString(private.N.Bytes()),
		"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(private.E)).Bytes()),
	}
}

func setJSON(t *testing.T, keys ...interface{}) []byte {
	t.Helper()

	data, err := json.Marshal(map[string]interface{}{"keys": keys})
	require.NoError(t, err)
	return data
}

func TestParseSet_Valid(t *testing.T) {
	data := setJSON(t, rsaKeyJSON(t, "key-1"), rsaKeyJSON(t, "key-2"))

	set, err := ParseSet(data)
	require.NoError(t, err)
	require.Len(t, set.Keys, 2)
	assert.Empty(t, set.Skipped)
	assert.NoError(t, set.Diagnostics())

	key, ok := set.Lookup("key-2")
	require.True(t, ok)
	assert.Equal(t, "RSA", key.KeyType)

	_, ok = set.Lookup("key-3")
	assert.False(t, ok)
}

func TestParseSet_SkipsInvalidKeys(t *testing.T) {
	data := setJSON(t,
		rsaKeyJSON(t, "good-1"),
		map[string]interface{}{"kty": "RSA", "kid": "bad-n", "n": "!!!not-base64url!!!", "e": "AQAB"},
		rsaKeyJSON(t, "good-2"),
		map[string]interface{}{"kty": "Mystery", "kid": "bad-kty"},
	)

	set, err := ParseSet(data)
	require.NoError(t, err, "invalid individual keys must not fail the whole set")
	require.Len(t, set.Keys, 2)
	require.Len(t, set.Skipped, 2)

	assert.Equal(t, "bad-n", set.Skipped[0].KeyID)
	assert.Equal(t, 1, set.Skipped[0].Index)
	assert.Equal(t, "bad-kty", set.Skipped[1].KeyID)

	diag := set.Diagnostics()
	require.Error(t, diag)
	assert.Contains(t, diag.Error(), "bad-n")
	assert.Contains(t, diag.Error(), "bad-kty")
}

func TestParseSet_Malformed(t *testing.T) {
	for _, data := range []string{"", "not json", `{}`, `{"keys": null}`} {
		t.Run(fmt.Sprintf("%q", data), func(t *testing.T) {
			_, err := ParseSet([]byte(data))
			assert.ErrorIs(t, err, ErrMalformedKeySet)
		})
	}
}

func TestParseSet_KeyIDRules(t *testing.T) {
	t.Run("kid required in a multi-key set", func(t *testing.T) {
		anonymous := rsaKeyJSON(t, "")
		delete(anonymous, "kid")
		data := setJSON(t, rsaKeyJSON(t, "key-1"), anonymous)

		set, err := ParseSet(data)
		require.NoError(t, err)
		require.Len(t, set.Keys, 1)
		require.Len(t, set.Skipped, 1)
		assert.Contains(t, set.Skipped[0].Reason.Error(), "key id is required")
	})

	t.Run("kid optional for a single key", func(t *testing.T) {
		anonymous := rsaKeyJSON(t, "")
		delete(anonymous, "kid")
		data := setJSON(t, anonymous)

		set, err := ParseSet(data)
		require.NoError(t, err)
		assert.Len(t, set.Keys, 1)
		assert.Empty(t, set.Skipped)
	})

	t.Run("duplicate kid is skipped", func(t *testing.T) {
		data := setJSON(t, rsaKeyJSON(t, "key-1"), rsaKeyJSON(t, "key-1"))

		set, err := ParseSet(data)
		require.NoError(t, err)
		require.Len(t, set.Keys, 1)
		require.Len(t, set.Skipped, 1)
		assert.Contains(t, set.Skipped[0].Reason.Error(), "duplicate key id")
	})
}

func TestKeyValidate_UseAndKeyOps(t *testing.T) {
	base := func() map[string]interface{} { return rsaKeyJSON(t, "key-1") }

	testCases := []struct {
		name    string
		mutate  func(key map[string]interface{})
		wantErr string
	}{
		{
			name:   "sig use",
			mutate: func(key map[string]interface{}) { key["use"] = "sig" },
		},
		{
			name:   "enc use",
			mutate: func(key map[string]interface{}) { key["use"] = "enc" },
		},
		{
			name:   "custom URI use",
			mutate: func(key map[string]interface{}) { key["use"] = "urn:example:custom" },
		},
		{
			name:    "unknown bare use",
			mutate:  func(key map[string]interface{}) { key["use"] = "signing" },
			wantErr: "unknown key use",
		},
		{
			name: "key_ops instead of use",
			mutate: func(key map[string]interface{}) {
				delete(key, "use")
				key["key_ops"] = []string{"verify", "sign"}
			},
		},
		{
			name: "use and key_ops together",
			mutate: func(key map[string]interface{}) {
				key["key_ops"] = []string{"verify"}
			},
			wantErr: "mutually exclusive",
		},
		{
			name: "unknown key op",
			mutate: func(key map[string]interface{}) {
				delete(key, "use")
				key["key_ops"] = []string{"attest"}
			},
			wantErr: "unknown key operation",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			key := base()
			testCase.mutate(key)

			set, err := ParseSet(setJSON(t, key))
			require.NoError(t, err)

			if testCase.wantErr == "" {
				assert.Len(t, set.Keys, 1)
				assert.Empty(t, set.Skipped)
			} else {
				require.Len(t, set.Skipped, 1)
				assert.Contains(t, set.Skipped[0].Reason.Error(), testCase.wantErr)
			}
		})
	}
}

func TestKeyValidate_Curves(t *testing.T) {
	ecKey := func(crv string) map[string]interface{} {
		return map[string]interface{}{
			"kty": "EC",
			"crv": crv,
			"kid": "ec-key",
			"x":   base64.RawURLEncoding.EncodeToString([]byte("x-coordinate-bytes-padding-32x32")),
			"y":   base64.RawURLEncoding.EncodeToString([]byte("y-coordinate-bytes-padding-32x32")),
		}
	}

	for _, crv := range []string{"P-256", "P-384", "P-521"} {
		t.Run(crv+" accepted", func(t *testing.T) {
			set, err := ParseSet(setJSON(t, ecKey(crv)))
			require.NoError(t, err)
			assert.Len(t, set.Keys, 1)
		})
	}

	t.Run("secp256k1 rejected", func(t *testing.T) {
		set, err := ParseSet(setJSON(t, ecKey("secp256k1")))
		require.NoError(t, err)
		require.Len(t, set.Skipped, 1)
		assert.Contains(t, set.Skipped[0].Reason.Error(), "unsupported curve")
	})
}

func TestKeyValidate_Symmetric(t *testing.T) {
	t.Run("empty k is permitted", func(t *testing.T) {
		set, err := ParseSet(setJSON(t, map[string]interface{}{"kty": "oct", "kid": "sym", "k": ""}))
		require.NoError(t, err)
		require.Len(t, set.Keys, 1)
		require.NotNil(t, set.Keys[0].K)
		assert.Equal(t, "", *set.Keys[0].K)
	})

	t.Run("missing k is rejected", func(t *testing.T) {
		set, err := ParseSet(setJSON(t, map[string]interface{}{"kty": "oct", "kid": "sym"}))
		require.NoError(t, err)
		require.Len(t, set.Skipped, 1)
		assert.Contains(t, set.Skipped[0].Reason.Error(), `"k"`)
	})
}

func TestKey_RoundTripPreservesParameterNames(t *testing.T) {
	original := []byte(`{
		"kty": "RSA",
		"use": "sig",
		"kid": "thumb",
		"n": "sXchQvWQ5Kk",
		"e": "AQAB",
		"x5t": "dGh1bWI",
		"x5t#S256": "c2hhLTI1Ni10aHVtYg"
	}`)

	var key Key
	require.NoError(t, json.Unmarshal(original, &key))
	assert.Equal(t, "c2hhLTI1Ni10aHVtYg", key.X5TS256)

	reserialized, err := json.Marshal(&key)
	require.NoError(t, err)
	assert.JSONEq(t, string(original), string(reserialized))

	var reparsed Key
	require.NoError(t, json.Unmarshal(reserialized, &reparsed))
	if diff := cmp.Diff(key, reparsed); diff != "" {
		t.Fatalf("round trip changed the key (-want +got):\n%s", diff)
	}
}

func TestKey_EmptySymmetricKeyRoundTrips(t *testing.T) {
	original := []byte(`{"kty":"oct","kid":"sym","k":""}`)

	var key Key
	require.NoError(t, json.Unmarshal(original, &key))

	reserialized, err := json.Marshal(&key)
	require.NoError(t, err)
	assert.JSONEq(t, string(original), string(reserialized))
}

func TestKey_Materialize(t *testing.T) {
	t.Run("valid RSA key", func(t *testing.T) {
		set, err := ParseSet(setJSON(t, rsaKeyJSON(t, "key-1")))
		require.NoError(t, err)
		require.Len(t, set.Keys, 1)

		key, err := set.Keys[0].Materialize()
		require.NoError(t, err)
		assert.Equal(t, "key-1", key.KeyID())
	})
}
