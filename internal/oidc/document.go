package oidc

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

var (
	// ErrMalformedDocument is returned when a discovery response cannot be
	// parsed as a JSON object.
	ErrMalformedDocument = errors.New("malformed discovery document")

	// ErrDiscoveryValidation is the sentinel all field-level validation
	// failures compare equal to via errors.Is.
	ErrDiscoveryValidation = errors.New("discovery document validation failed")
)

// ValidationError reports which discovery field failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("discovery document validation failed: field %q: %s", e.Field, e.Reason)
}

// Is makes every ValidationError match ErrDiscoveryValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrDiscoveryValidation
}

// Document is an issuer's metadata per OpenID Connect Discovery 1.0.
// It is immutable once constructed; fields outside the core vocabulary are
// preserved verbatim in Extra.
type Document struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint,omitempty"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	UserinfoEndpoint                  string   `json:"userinfo_endpoint,omitempty"`
	JWKSURI                           string   `json:"jwks_uri"`
	RegistrationEndpoint              string   `json:"registration_endpoint,omitempty"`
	RevocationEndpoint                string   `json:"revocation_endpoint,omitempty"`
	IntrospectionEndpoint             string   `json:"introspection_endpoint,omitempty"`
	EndSessionEndpoint                string   `json:"end_session_endpoint,omitempty"`
	ScopesSupported                   []string `json:"scopes_supported,omitempty"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported,omitempty"`
	SubjectTypesSupported             []string `json:"subject_types_supported"`
	IDTokenSigningAlgValuesSupported  []string `json:"id_token_signing_alg_values_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported,omitempty"`
	ClaimsSupported                   []string `json:"claims_supported,omitempty"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported,omitempty"`

	// Extra holds provider-specific fields outside the core vocabulary.
	Extra map[string]json.RawMessage `json:"-"`
}

// requiredFields are the discovery fields that must be present and non-null.
var requiredFields = []string{
	"issuer",
	"token_endpoint",
	"jwks_uri",
	"response_types_supported",
	"subject_types_supported",
	"id_token_signing_alg_values_supported",
}

// knownFields is every field the Document struct captures directly.
var knownFields = map[string]bool{
	"issuer":                                true,
	"authorization_endpoint":                true,
	"token_endpoint":                        true,
	"userinfo_endpoint":                     true,
	"jwks_uri":                              true,
	"registration_endpoint":                 true,
	"revocation_endpoint":                   true,
	"introspection_endpoint":                true,
	"end_session_endpoint":                  true,
	"scopes_supported":                      true,
	"response_types_supported":              true,
	"grant_types_supported":                 true,
	"subject_types_supported":               true,
	"id_token_signing_alg_values_supported": true,
	"token_endpoint_auth_methods_supported": true,
	"claims_supported":                      true,
	"code_challenge_methods_supported":      true,
}

var validSubjectTypes = map[string]bool{
	"public":   true,
	"pairwise": true,
}

// validResponseTypeComponents is the OIDC response-type vocabulary. A
// response_types_supported entry is a space-separated combination of these,
// except "none" which only appears alone.
var validResponseTypeComponents = map[string]bool{
	"code":     true,
	"id_token": true,
	"token":    true,
	"none":     true,
}

// ParseDocument decodes and validates a discovery document. A document that
// fails validation is never returned partially constructed.
func ParseDocument(data []byte) (*Document, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}

	for _, field := range requiredFields {
		value, ok := raw[field]
		if !ok || string(value) == "null" {
			return nil, &ValidationError{Field: field, Reason: "required field is missing"}
		}
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	for name, value := range raw {
		if knownFields[name] {
			continue
		}
		if doc.Extra == nil {
			doc.Extra = make(map[string]json.RawMessage)
		}
		doc.Extra[name] = value
	}

	if err := doc.validate(); err != nil {
		return nil, err
	}

	return &doc, nil
}

func (d *Document) validate() error {
	if err := validateIssuer(d.Issuer); err != nil {
		return err
	}

	endpoints := map[string]string{
		"authorization_endpoint": d.AuthorizationEndpoint,
		"token_endpoint":         d.TokenEndpoint,
		"userinfo_endpoint":      d.UserinfoEndpoint,
		"jwks_uri":               d.JWKSURI,
		"registration_endpoint":  d.RegistrationEndpoint,
		"revocation_endpoint":    d.RevocationEndpoint,
		"introspection_endpoint": d.IntrospectionEndpoint,
		"end_session_endpoint":   d.EndSessionEndpoint,
	}
	for field, value := range endpoints {
		if value == "" {
			continue
		}
		if err := validateEndpointURL(field, value); err != nil {
			return err
		}
	}

	if len(d.SubjectTypesSupported) == 0 {
		return &ValidationError{Field: "subject_types_supported", Reason: "must not be empty"}
	}
	for _, st := range d.SubjectTypesSupported {
		if !validSubjectTypes[st] {
			return &ValidationError{Field: "subject_types_supported", Reason: fmt.Sprintf("unknown subject type %q", st)}
		}
	}

	if len(d.ResponseTypesSupported) == 0 {
		return &ValidationError{Field: "response_types_supported", Reason: "must not be empty"}
	}
	for _, rt := range d.ResponseTypesSupported {
		if err := validateResponseType(rt); err != nil {
			return err
		}
	}

	if len(d.IDTokenSigningAlgValuesSupported) == 0 {
		return &ValidationError{Field: "id_token_signing_alg_values_supported", Reason: "must not be empty"}
	}

	return nil
}

// validateIssuer checks the issuer identifier rules: an absolute HTTPS URL
// (plain HTTP only for loopback hosts) without query or fragment.
func validateIssuer(issuer string) error {
	u, err := url.Parse(issuer)
	if err != nil {
		return &ValidationError{Field: "issuer", Reason: fmt.Sprintf("not a valid URL: %v", err)}
	}
	if !u.IsAbs() || u.Host == "" {
		return &ValidationError{Field: "issuer", Reason: "must be an absolute URL with a host"}
	}
	if u.RawQuery != "" {
		return &ValidationError{Field: "issuer", Reason: "must not contain a query string"}
	}
	if u.Fragment != "" || u.RawFragment != "" {
		return &ValidationError{Field: "issuer", Reason: "must not contain a fragment"}
	}
	switch u.Scheme {
	case "https":
	case "http":
		if !isLoopbackHost(u.Hostname()) {
			return &ValidationError{Field: "issuer", Reason: "must use https outside loopback"}
		}
	default:
		return &ValidationError{Field: "issuer", Reason: fmt.Sprintf("unsupported scheme %q", u.Scheme)}
	}
	return nil
}

func validateEndpointURL(field, value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return &ValidationError{Field: field, Reason: fmt.Sprintf("not a valid URL: %v", err)}
	}
	if !u.IsAbs() || u.Host == "" {
		return &ValidationError{Field: field, Reason: "must be an absolute URL with a host"}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &ValidationError{Field: field, Reason: fmt.Sprintf("unsupported scheme %q", u.Scheme)}
	}
	return nil
}

func validateResponseType(responseType string) error {
	components := strings.Split(responseType, " ")
	for _, c := range components {
		if !validResponseTypeComponents[c] {
			return &ValidationError{Field: "response_types_supported", Reason: fmt.Sprintf("unknown response type component %q", c)}
		}
		if c == "none" && len(components) > 1 {
			return &ValidationError{Field: "response_types_supported", Reason: `"none" cannot be combined with other response types`}
		}
	}
	return nil
}

func isLoopbackHost(host string) bool {
	if host == "localhost" {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}

// SupportsAlgorithm reports whether the issuer advertises the given signing
// algorithm for ID tokens.
func (d *Document) SupportsAlgorithm(alg string) bool {
	for _, a := range d.IDTokenSigningAlgValuesSupported {
		if a == alg {
			return true
		}
	}
	return false
}
