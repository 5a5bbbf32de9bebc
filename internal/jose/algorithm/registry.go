// Package algorithm implements the closed registry of JOSE signing
// algorithms recognised by tokenguard (RFC 7518).
package algorithm

import (
	"crypto"
	"errors"
	"fmt"

	"github.com/lestrrat-go/jwx/v2/jwa"
)

// ErrUnknown is returned when a textual alg name is not in the registry.
var ErrUnknown = errors.New("algorithm: unknown alg")

// Family groups algorithms by their underlying cryptographic primitive.
type Family string

const (
	FamilyRSA    Family = "RSA"
	FamilyECDSA  Family = "ECDSA"
	FamilyEdDSA  Family = "EdDSA"
	FamilyHMAC   Family = "HMAC"
	FamilyNone   Family = "None"
)

// PSSParams carries the RSA-PSS parameters required to verify a PS*
// signature: the salt length matches the hash output length per RFC 7518
// §3.5, and MGF1 uses the same hash.
type PSSParams struct {
	SaltLength int
	MGFHash    crypto.Hash
}

// Descriptor is an immutable description of one supported algorithm.
type Descriptor struct {
	Name          string // external name, e.g. "RS256"
	Family        Family
	Hash          crypto.Hash
	MinKeyBits    int // 0 when not applicable (EdDSA, none)
	Curve         string
	PSS           *PSSParams // non-nil only for PS256/384/512
	jwaAlgorithm  jwa.SignatureAlgorithm
}

// JWA returns the github.com/lestrrat-go/jwx/v2/jwa constant backing this
// descriptor, for interop with code that consumes the jwx ecosystem.
func (d Descriptor) JWA() jwa.SignatureAlgorithm {
	return d.jwaAlgorithm
}

var registry = buildRegistry()

func buildRegistry() map[string]Descriptor {
	reg := map[string]Descriptor{
		"none": {Name: "none", Family: FamilyNone, jwaAlgorithm: jwa.NoSignature},

		"HS256": {Name: "HS256", Family: FamilyHMAC, Hash: crypto.SHA256, MinKeyBits: 256, jwaAlgorithm: jwa.HS256},
		"HS384": {Name: "HS384", Family: FamilyHMAC, Hash: crypto.SHA384, MinKeyBits: 384, jwaAlgorithm: jwa.HS384},
		"HS512": {Name: "HS512", Family: FamilyHMAC, Hash: crypto.SHA512, MinKeyBits: 512, jwaAlgorithm: jwa.HS512},

		"RS256": {Name: "RS256", Family: FamilyRSA, Hash: crypto.SHA256, MinKeyBits: 2048, jwaAlgorithm: jwa.RS256},
		"RS384": {Name: "RS384", Family: FamilyRSA, Hash: crypto.SHA384, MinKeyBits: 2048, jwaAlgorithm: jwa.RS384},
		"RS512": {Name: "RS512", Family: FamilyRSA, Hash: crypto.SHA512, MinKeyBits: 2048, jwaAlgorithm: jwa.RS512},

		"PS256": {Name: "PS256", Family: FamilyRSA, Hash: crypto.SHA256, MinKeyBits: 2048,
			PSS: &PSSParams{SaltLength: crypto.SHA256.Size(), MGFHash: crypto.SHA256}, jwaAlgorithm: jwa.PS256},
		"PS384": {Name: "PS384", Family: FamilyRSA, Hash: crypto.SHA384, MinKeyBits: 2048,
			PSS: &PSSParams{SaltLength: crypto.SHA384.Size(), MGFHash: crypto.SHA384}, jwaAlgorithm: jwa.PS384},
		"PS512": {Name: "PS512", Family: FamilyRSA, Hash: crypto.SHA512, MinKeyBits: 2048,
			PSS: &PSSParams{SaltLength: crypto.SHA512.Size(), MGFHash: crypto.SHA512}, jwaAlgorithm: jwa.PS512},

		"ES256": {Name: "ES256", Family: FamilyECDSA, Hash: crypto.SHA256, MinKeyBits: 256, Curve: "P-256", jwaAlgorithm: jwa.ES256},
		"ES384": {Name: "ES384", Family: FamilyECDSA, Hash: crypto.SHA384, MinKeyBits: 384, Curve: "P-384", jwaAlgorithm: jwa.ES384},
		"ES512": {Name: "ES512", Family: FamilyECDSA, Hash: crypto.SHA512, MinKeyBits: 521, Curve: "P-521", jwaAlgorithm: jwa.ES512},

		"EdDSA": {Name: "EdDSA", Family: FamilyEdDSA, Curve: "Ed25519", jwaAlgorithm: jwa.EdDSA},
	}
	return reg
}

// Lookup returns the descriptor for a textual alg name, or ErrUnknown.
func Lookup(name string) (Descriptor, error) {
	d, ok := registry[name]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrUnknown, name)
	}
	return d, nil
}

// DefaultPermitted returns the validator's default permitted-algorithm set:
// {RS256, RS384, RS512}.
func DefaultPermitted() map[string]struct{} {
	return map[string]struct{}{
		"RS256": {},
		"RS384": {},
		"RS512": {},
	}
}

// CurveBitSize maps an EC curve name to its coordinate size in bytes, used
// to size the fixed-width P1363 ECDSA signature.
func CurveBitSize(curve string) (int, error) {
	switch curve {
	case "P-256":
		return 32, nil
	case "P-384":
		return 48, nil
	case "P-521":
		return 66, nil
	default:
		return 0, fmt.Errorf("algorithm: unsupported curve %q", curve)
	}
}
