// Package discovery is a thin, immutable view over an OpenID Connect
// discovery document (the ".well-known/openid-configuration" body) plus
// its absolute cache expiry.
package discovery

import (
	json "github.com/goccy/go-json"
)

// Data wraps a parsed discovery document. Only jwks_uri is consumed by the
// rest of tokenguard; the other accessors exist because the document is a
// JSON object with well-known fields an operator may want to inspect.
type Data struct {
	doc       map[string]any
	expiresAt int64 // epoch-ms
}

// Parse decodes body as a JSON object and pairs it with the supplied
// absolute expiry (computed by the caller from the HTTP response's
// Cache-Control header, see the jwks/oidc package).
func Parse(body []byte, expiresAt int64) (*Data, error) {
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, err
	}
	return &Data{doc: doc, expiresAt: expiresAt}, nil
}

// ExpiresAt returns the absolute epoch-ms expiry for this discovery
// document, satisfying the cache's expiry-extractor contract.
func (d *Data) ExpiresAt() int64 { return d.expiresAt }

func (d *Data) stringField(key string) (string, bool) {
	v, ok := d.doc[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

func (d *Data) stringSliceField(key string) ([]string, bool) {
	v, ok := d.doc[key]
	if !ok {
		return nil, false
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out, true
}

// Issuer returns the "issuer" field.
func (d *Data) Issuer() (string, bool) { return d.stringField("issuer") }

// JwksURI returns the "jwks_uri" field, the only field the OIDC JWKS
// handler actually consumes.
func (d *Data) JwksURI() (string, bool) { return d.stringField("jwks_uri") }

// TokenEndpoint returns the "token_endpoint" field.
func (d *Data) TokenEndpoint() (string, bool) { return d.stringField("token_endpoint") }

// AuthorizationEndpoint returns the "authorization_endpoint" field.
func (d *Data) AuthorizationEndpoint() (string, bool) { return d.stringField("authorization_endpoint") }

// IDTokenSigningAlgValuesSupported returns "id_token_signing_alg_values_supported".
func (d *Data) IDTokenSigningAlgValuesSupported() ([]string, bool) {
	return d.stringSliceField("id_token_signing_alg_values_supported")
}

// SubjectTypesSupported returns "subject_types_supported".
func (d *Data) SubjectTypesSupported() ([]string, bool) {
	return d.stringSliceField("subject_types_supported")
}

// ResponseTypesSupported returns "response_types_supported".
func (d *Data) ResponseTypesSupported() ([]string, bool) {
	return d.stringSliceField("response_types_supported")
}
