// Package compactjwt parses and exposes accessors for the three-part
// compact JWS serialisation used by JWTs (RFC 7519 §3).
package compactjwt

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
)

// ErrMalformed covers every way a compact-serialised token can fail to
// parse: wrong segment count, bad base64url, or a segment that isn't a JSON
// object.
var ErrMalformed = errors.New("compactjwt: malformed token")

// JWT is an immutable, parsed compact JWT. The zero value is not usable;
// construct with Parse.
type JWT struct {
	header       map[string]any
	payload      map[string]any
	signingInput string
	signature    string // base64url segment, may be empty
}

// Parse splits raw on ".", requires exactly three segments, base64url
// decodes the header and payload segments, and requires both to decode to
// JSON objects. The signature segment is kept verbatim (it may be empty, as
// for alg=none tokens) and is not required to decode here.
func Parse(raw string) (*JWT, error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: expected 3 segments, got %d", ErrMalformed, len(parts))
	}

	header, err := decodeObject(parts[0])
	if err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrMalformed, err)
	}
	payload, err := decodeObject(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: payload: %v", ErrMalformed, err)
	}

	return &JWT{
		header:       header,
		payload:      payload,
		signingInput: parts[0] + "." + parts[1],
		signature:    parts[2],
	}, nil
}

func decodeObject(segment string) (map[string]any, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(segment)
	if err != nil {
		return nil, fmt.Errorf("base64url decode: %w", err)
	}
	var obj map[string]any
	if err := json.Unmarshal(decoded, &obj); err != nil {
		return nil, fmt.Errorf("not a JSON object: %w", err)
	}
	return obj, nil
}

// SigningInput returns the exact "header.payload" concatenation that forms
// the signature base string.
func (j *JWT) SigningInput() string { return j.signingInput }

// SignatureSegment returns the raw base64url signature segment, unmodified
// (possibly empty).
func (j *JWT) SignatureSegment() string { return j.signature }

// SignatureBytes base64url-decodes the signature segment.
func (j *JWT) SignatureBytes() ([]byte, error) {
	b, err := base64.RawURLEncoding.DecodeString(j.signature)
	if err != nil {
		return nil, fmt.Errorf("%w: signature: %v", ErrMalformed, err)
	}
	return b, nil
}

// Header returns the raw decoded header object.
func (j *JWT) Header() map[string]any { return j.header }

// Payload returns the raw decoded payload object.
func (j *JWT) Payload() map[string]any { return j.payload }

// HasClaims reports whether the payload carries at least one claim, used by
// the validator's minimal claim presence check.
func (j *JWT) HasClaims() bool { return len(j.payload) > 0 }

// Alg returns the header's "alg" value.
func (j *JWT) Alg() (string, bool) { return stringField(j.header, "alg") }

// Kid returns the header's "kid" value.
func (j *JWT) Kid() (string, bool) { return stringField(j.header, "kid") }

// Issuer returns the payload's "iss" claim.
func (j *JWT) Issuer() (string, bool) { return stringField(j.payload, "iss") }

// Subject returns the payload's "sub" claim.
func (j *JWT) Subject() (string, bool) { return stringField(j.payload, "sub") }

// Expiry returns the payload's "exp" claim as epoch seconds.
func (j *JWT) Expiry() (int64, bool) { return numberField(j.payload, "exp") }

// NotBefore returns the payload's "nbf" claim as epoch seconds.
func (j *JWT) NotBefore() (int64, bool) { return numberField(j.payload, "nbf") }

// Audience normalises the "aud" claim: a scalar string yields a
// one-element slice, an array yields the string-valued entries in order,
// and anything else (including absence) yields (nil, false).
func (j *JWT) Audience() ([]string, bool) {
	raw, ok := j.payload["aud"]
	if !ok {
		return nil, false
	}
	switch v := raw.(type) {
	case string:
		return []string{v}, true
	case []any:
		out := make([]string, 0, len(v))
		for _, elem := range v {
			if s, ok := elem.(string); ok {
				out = append(out, s)
			}
		}
		return out, true
	default:
		return nil, false
	}
}

func stringField(obj map[string]any, key string) (string, bool) {
	raw, ok := obj[key]
	if !ok {
		return "", false
	}
	s, ok := raw.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

func numberField(obj map[string]any, key string) (int64, bool) {
	raw, ok := obj[key]
	if !ok {
		return 0, false
	}
	switch n := raw.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}
