package jwk

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/coves-labs/tokenguard/internal/jose/algorithm"
)

// ErrVerificationFailed wraps the cause when a signature check could not be
// attempted (wrong key type, unsupported family or curve); a signature that
// simply does not match is reported as (false, nil). The Validator maps
// both outcomes to *SignatureInvalid.
var ErrVerificationFailed = errors.New("jwk: signature verification failed")

// Verify reports whether sig is a valid signature over signedData under
// this key, for the given algorithm descriptor. A false return (rather
// than an error) means the signature was well-formed but did not match;
// an error means the key/algorithm/signature shape made verification
// impossible to even attempt. Both are treated identically by callers: a
// signature that doesn't verify and one that couldn't be checked both mean
// the token is rejected.
func (k *JWK) Verify(desc algorithm.Descriptor, sig, signedData []byte) (bool, error) {
	switch desc.Family {
	case algorithm.FamilyRSA:
		return k.verifyRSA(desc, sig, signedData)
	case algorithm.FamilyECDSA:
		return k.verifyECDSA(desc, sig, signedData)
	case algorithm.FamilyEdDSA:
		return k.verifyEdDSA(sig, signedData)
	default:
		return false, fmt.Errorf("%w: unsupported algorithm family %q for JWK verification", ErrVerificationFailed, desc.Family)
	}
}

func (k *JWK) verifyRSA(desc algorithm.Descriptor, sig, signedData []byte) (bool, error) {
	pub, ok := k.publicKey.(*rsa.PublicKey)
	if !ok {
		return false, fmt.Errorf("%w: key is not an RSA public key", ErrVerificationFailed)
	}

	h := desc.Hash.New()
	h.Write(signedData)
	hashed := h.Sum(nil)

	if desc.PSS != nil {
		opts := &rsa.PSSOptions{SaltLength: desc.PSS.SaltLength, Hash: desc.PSS.MGFHash}
		if err := rsa.VerifyPSS(pub, desc.Hash, hashed, sig, opts); err != nil {
			return false, nil
		}
		return true, nil
	}

	if err := rsa.VerifyPKCS1v15(pub, desc.Hash, hashed, sig); err != nil {
		return false, nil
	}
	return true, nil
}

// verifyECDSA verifies the fixed-width r||s (P1363/IEEE) signature format
// used by JWS (RFC 7518 §3.4), not the ASN.1/DER format produced by
// crypto/ecdsa.SignASN1.
func (k *JWK) verifyECDSA(desc algorithm.Descriptor, sig, signedData []byte) (bool, error) {
	pub, ok := k.publicKey.(*ecdsa.PublicKey)
	if !ok {
		return false, fmt.Errorf("%w: key is not an ECDSA public key", ErrVerificationFailed)
	}

	coordSize, err := algorithm.CurveBitSize(desc.Curve)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}
	if len(sig) != 2*coordSize {
		return false, nil
	}

	r := new(big.Int).SetBytes(sig[:coordSize])
	s := new(big.Int).SetBytes(sig[coordSize:])

	h := desc.Hash.New()
	h.Write(signedData)
	hashed := h.Sum(nil)

	return ecdsa.Verify(pub, hashed, r, s), nil
}

func (k *JWK) verifyEdDSA(sig, signedData []byte) (bool, error) {
	pub, ok := k.publicKey.(ed25519.PublicKey)
	if !ok {
		return false, fmt.Errorf("%w: key is not an Ed25519 public key", ErrVerificationFailed)
	}
	return ed25519.Verify(pub, signedData, sig), nil
}
