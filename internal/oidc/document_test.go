package oidc

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDocumentJSON(t *testing.T, mutate func(doc map[string]interface{})) []byte {
	t.Helper()

	doc := map[string]interface{}{
		"issuer":                                "https://idp.example.com",
		"authorization_endpoint":                "https://idp.example.com/authorize",
		"token_endpoint":                        "https://idp.example.com/token",
		"jwks_uri":                              "https://idp.example.com/jwks.json",
		"response_types_supported":              []string{"code", "code id_token"},
		"subject_types_supported":               []string{"public"},
		"id_token_signing_alg_values_supported": []string{"RS256", "ES256"},
	}
	if mutate != nil {
		mutate(doc)
	}

	data, err := json.Marshal(doc)
	require.NoError(t, err)
	return data
}

func TestParseDocument_Valid(t *testing.T) {
	doc, err := ParseDocument(validDocumentJSON(t, nil))
	require.NoError(t, err)

	assert.Equal(t, "https://idp.example.com", doc.Issuer)
	assert.Equal(t, "https://idp.example.com/token", doc.TokenEndpoint)
	assert.Equal(t, "https://idp.example.com/jwks.json", doc.JWKSURI)
	assert.Equal(t, []string{"public"}, doc.SubjectTypesSupported)
	assert.True(t, doc.SupportsAlgorithm("RS256"))
	assert.True(t, doc.SupportsAlgorithm("ES256"))
	assert.False(t, doc.SupportsAlgorithm("HS256"))
}

func TestParseDocument_RequiredFields(t *testing.T) {
	required := []string{
		"issuer",
		"token_endpoint",
		"jwks_uri",
		"response_types_supported",
		"subject_types_supported",
		"id_token_signing_alg_values_supported",
	}

	for _, field := range required {
		t.Run("missing "+field, func(t *testing.T) {
			data := validDocumentJSON(t, func(doc map[string]interface{}) {
				delete(doc, field)
			})

			_, err := ParseDocument(data)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrDiscoveryValidation)

			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, field, validationErr.Field, "failure must name the missing field")
		})

		t.Run("null "+field, func(t *testing.T) {
			data := validDocumentJSON(t, func(doc map[string]interface{}) {
				doc[field] = nil
			})

			_, err := ParseDocument(data)
			require.Error(t, err)

			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, field, validationErr.Field)
		})
	}
}

func TestParseDocument_Malformed(t *testing.T) {
	for _, data := range []string{"", "not json", `["array"]`, `"string"`} {
		t.Run(fmt.Sprintf("%q", data), func(t *testing.T) {
			_, err := ParseDocument([]byte(data))
			assert.ErrorIs(t, err, ErrMalformedDocument)
		})
	}
}

func TestParseDocument_IssuerRules(t *testing.T) {
	testCases := []struct {
		name    string
		issuer  string
		wantErr bool
	}{
		{name: "https issuer", issuer: "https://idp.example.com"},
		{name: "https issuer with path", issuer: "https://idp.example.com/tenant/a"},
		{name: "http localhost", issuer: "http://localhost:8080"},
		{name: "http loopback v4", issuer: "http://127.0.0.1:8080"},
		{name: "http loopback v6", issuer: "http://[::1]:8080"},
		{name: "http non-loopback", issuer: "http://idp.example.com", wantErr: true},
		{name: "relative", issuer: "/path/only", wantErr: true},
		{name: "query string", issuer: "https://idp.example.com?tenant=a", wantErr: true},
		{name: "fragment", issuer: "https://idp.example.com#frag", wantErr: true},
		{name: "other scheme", issuer: "ftp://idp.example.com", wantErr: true},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			data := validDocumentJSON(t, func(doc map[string]interface{}) {
				doc["issuer"] = testCase.issuer
			})

			_, err := ParseDocument(data)
			if testCase.wantErr {
				require.Error(t, err)
				var validationErr *ValidationError
				require.ErrorAs(t, err, &validationErr)
				assert.Equal(t, "issuer", validationErr.Field)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseDocument_SubjectTypes(t *testing.T) {
	t.Run("pairwise accepted", func(t *testing.T) {
		data := validDocumentJSON(t, func(doc map[string]interface{}) {
			doc["subject_types_supported"] = []string{"public", "pairwise"}
		})
		_, err := ParseDocument(data)
		assert.NoError(t, err)
	})

	t.Run("unknown rejected", func(t *testing.T) {
		data := validDocumentJSON(t, func(doc map[string]interface{}) {
			doc["subject_types_supported"] = []string{"public", "ephemeral"}
		})
		_, err := ParseDocument(data)
		var validationErr *ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Equal(t, "subject_types_supported", validationErr.Field)
	})

	t.Run("empty rejected", func(t *testing.T) {
		data := validDocumentJSON(t, func(doc map[string]interface{}) {
			doc["subject_types_supported"] = []string{}
		})
		_, err := ParseDocument(data)
		assert.ErrorIs(t, err, ErrDiscoveryValidation)
	})
}

func TestParseDocument_ResponseTypes(t *testing.T) {
	testCases := []struct {
		name          string
		responseTypes []string
		wantErr       bool
	}{
		{name: "single code", responseTypes: []string{"code"}},
		{name: "combination", responseTypes: []string{"code id_token token"}},
		{name: "standalone none", responseTypes: []string{"code", "none"}},
		{name: "none combined", responseTypes: []string{"code none"}, wantErr: true},
		{name: "unknown component", responseTypes: []string{"code device"}, wantErr: true},
		{name: "empty", responseTypes: []string{}, wantErr: true},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			data := validDocumentJSON(t, func(doc map[string]interface{}) {
				doc["response_types_supported"] = testCase.responseTypes
			})

			_, err := ParseDocument(data)
			if testCase.wantErr {
				assert.ErrorIs(t, err, ErrDiscoveryValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseDocument_EndpointURLs(t *testing.T) {
	t.Run("relative endpoint rejected", func(t *testing.T) {
		data := validDocumentJSON(t, func(doc map[string]interface{}) {
			doc["token_endpoint"] = "/token"
		})
		_, err := ParseDocument(data)
		var validationErr *ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Equal(t, "token_endpoint", validationErr.Field)
	})

	t.Run("optional endpoint may be absent", func(t *testing.T) {
		data := validDocumentJSON(t, func(doc map[string]interface{}) {
			delete(doc, "authorization_endpoint")
		})
		_, err := ParseDocument(data)
		assert.NoError(t, err)
	})
}

func TestParseDocument_PreservesExtraFields(t *testing.T) {
	data := validDocumentJSON(t, func(doc map[string]interface{}) {
		doc["device_authorization_endpoint"] = "https://idp.example.com/device"
		doc["custom_claim_mapping"] = map[string]string{"role": "groups"}
	})

	doc, err := ParseDocument(data)
	require.NoError(t, err)
	require.Contains(t, doc.Extra, "device_authorization_endpoint")
	require.Contains(t, doc.Extra, "custom_claim_mapping")
	assert.NotContains(t, doc.Extra, "issuer", "known fields stay out of Extra")
	assert.JSONEq(t, `"https://idp.example.com/device"`, string(doc.Extra["device_authorization_endpoint"]))
}
