// Package jwk implements parsed, immutable public key material for a
// single JSON Web Key (RFC 7517), enforcing the invariants tokenguard
// requires before a key may be used to verify a signature.
package jwk

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
	jwxjwk "github.com/lestrrat-go/jwx/v2/jwk"

	"github.com/coves-labs/tokenguard/internal/jose/algorithm"
)

// ErrInvalid is returned when a JWK's JSON shape is invalid: missing kid,
// unrecognised/missing kty, an alg/kty family mismatch, or missing required
// key material for the declared kty.
var ErrInvalid = errors.New("jwk: invalid key")

// Kty is the JSON Web Key Type, restricted to the three types tokenguard
// recognises.
type Kty string

const (
	KtyRSA Kty = "RSA"
	KtyEC  Kty = "EC"
	KtyOKP Kty = "OKP"
)

// JWK is immutable once constructed.
type JWK struct {
	kid       string
	use       string
	kty       Kty
	curve     string
	publicKey crypto.PublicKey
	expiresAt int64 // epoch-ms
}

// Kid returns the key id.
func (k *JWK) Kid() string { return k.kid }

// Use returns the declared "use" value, or "" if absent.
func (k *JWK) Use() string { return k.use }

// Kty returns the key type.
func (k *JWK) Kty() Kty { return k.kty }

// PublicKey returns the parsed crypto.PublicKey (*rsa.PublicKey,
// *ecdsa.PublicKey, or ed25519.PublicKey).
func (k *JWK) PublicKey() crypto.PublicKey { return k.publicKey }

// ExpiresAt returns the absolute expiry in epoch-milliseconds, as supplied
// by the caller when the key was parsed (derived from the JWKS HTTP
// response's cache lifetime, not from any field in the key itself).
func (k *JWK) ExpiresAt() int64 { return k.expiresAt }

func familyFor(kty Kty) algorithm.Family {
	switch kty {
	case KtyRSA:
		return algorithm.FamilyRSA
	case KtyEC:
		return algorithm.FamilyECDSA
	case KtyOKP:
		return algorithm.FamilyEdDSA
	default:
		return ""
	}
}

// Parse constructs a JWK from one key object within a JWKS "keys" array
// (or a single standalone key document). expiresAt is the absolute
// epoch-ms expiry computed by the caller from the HTTP response that
// delivered the key; it is not read from the key material.
func Parse(data []byte, expiresAt int64) (*JWK, error) {
	var shape map[string]any
	if err := json.Unmarshal(data, &shape); err != nil {
		return nil, fmt.Errorf("%w: not a JSON object: %v", ErrInvalid, err)
	}

	kid, _ := shape["kid"].(string)
	if kid == "" {
		return nil, fmt.Errorf("%w: missing kid", ErrInvalid)
	}

	ktyRaw, _ := shape["kty"].(string)
	kty := Kty(ktyRaw)
	switch kty {
	case KtyRSA, KtyEC, KtyOKP:
	default:
		return nil, fmt.Errorf("%w: unrecognised kty %q", ErrInvalid, ktyRaw)
	}

	if err := requireFields(shape, kty); err != nil {
		return nil, err
	}

	if algName, ok := shape["alg"].(string); ok && algName != "" {
		desc, err := algorithm.Lookup(algName)
		if err != nil {
			return nil, fmt.Errorf("%w: alg %q: %v", ErrInvalid, algName, err)
		}
		if desc.Family != familyFor(kty) {
			return nil, fmt.Errorf("%w: alg %q family %q does not match kty %q", ErrInvalid, algName, desc.Family, kty)
		}
	}

	use, _ := shape["use"].(string)
	curve, _ := shape["crv"].(string)

	pub, err := extractPublicKey(data, kty, curve)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	return &JWK{
		kid:       kid,
		use:       use,
		kty:       kty,
		curve:     curve,
		publicKey: pub,
		expiresAt: expiresAt,
	}, nil
}

func requireFields(shape map[string]any, kty Kty) error {
	has := func(key string) bool {
		s, ok := shape[key].(string)
		return ok && s != ""
	}
	switch kty {
	case KtyRSA:
		if !has("n") || !has("e") {
			return fmt.Errorf("%w: RSA key missing n/e", ErrInvalid)
		}
	case KtyEC:
		if !has("crv") || !has("x") || !has("y") {
			return fmt.Errorf("%w: EC key missing crv/x/y", ErrInvalid)
		}
	case KtyOKP:
		if !has("crv") || !has("x") {
			return fmt.Errorf("%w: OKP key missing crv/x", ErrInvalid)
		}
	}
	return nil
}

// extractPublicKey delegates the low-level base64url/big-integer/point
// decoding to lestrrat-go/jwx's jwk package, which already implements RFC
// 7518's field-to-key mapping for RSA and EC; tokenguard's own invariant
// checks (above) run first so a structurally-invalid key never reaches it.
func extractPublicKey(data []byte, kty Kty, curve string) (crypto.PublicKey, error) {
	key, err := jwxjwk.ParseKey(data)
	if err != nil {
		return nil, fmt.Errorf("parse key material: %w", err)
	}

	switch kty {
	case KtyRSA:
		var pub rsa.PublicKey
		if err := key.Raw(&pub); err != nil {
			return nil, fmt.Errorf("extract RSA public key: %w", err)
		}
		return &pub, nil
	case KtyEC:
		var pub ecdsa.PublicKey
		if err := key.Raw(&pub); err != nil {
			return nil, fmt.Errorf("extract EC public key: %w", err)
		}
		return &pub, nil
	case KtyOKP:
		switch curve {
		case "Ed25519", "Ed448":
			var pub ed25519.PublicKey
			if err := key.Raw(&pub); err != nil {
				return nil, fmt.Errorf("extract OKP public key: %w", err)
			}
			return pub, nil
		default:
			return nil, fmt.Errorf("unsupported OKP curve %q", curve)
		}
	default:
		return nil, fmt.Errorf("unsupported kty %q", kty)
	}
}
