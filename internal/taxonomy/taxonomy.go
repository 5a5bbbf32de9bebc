// Package taxonomy defines the sentinel error taxonomy shared by every
// tokenguard component that can reject a token or a key-fetch attempt.
// Sentinel values are compared with errors.Is; callers that need the
// coarse, client-safe message wrap these with validator.ValidationError.
package taxonomy

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformed covers structure, encoding, or JSON shape failures, and
	// also stands in for an unknown or non-permitted algorithm so clients
	// cannot probe the server's configured algorithm set.
	ErrMalformed = errors.New("malformed token")
	// ErrAlgorithmNone is returned when the header declares alg=none.
	ErrAlgorithmNone = errors.New("alg=none is never accepted")
	// ErrUntrustedIssuer is returned when an issuer fails regex allow-listing.
	ErrUntrustedIssuer = errors.New("untrusted issuer")
	// ErrUpstream covers HTTP failure, connection failure, or non-2xx status
	// from a discovery or JWKS fetch.
	ErrUpstream = errors.New("upstream fetch failed")
	// ErrKeyNotFound is returned when the requested kid is absent from a
	// fetched JWKS.
	ErrKeyNotFound = errors.New("key not found")
	// ErrSignatureInvalid is returned when cryptographic verification
	// returns false or errors.
	ErrSignatureInvalid = errors.New("signature invalid")
	// ErrMissingClaim is the sentinel wrapped by *MissingClaimError.
	ErrMissingClaim = errors.New("missing required claim")
	// ErrNotYetValid is returned when nbf is in the future beyond leeway.
	ErrNotYetValid = errors.New("token not yet valid")
	// ErrExpired is returned when exp is in the past beyond leeway.
	ErrExpired = errors.New("token expired")
	// ErrAudienceMismatch is returned when no requested audience matches.
	ErrAudienceMismatch = errors.New("audience mismatch")
	// ErrConfiguration is returned for misconfiguration at construction or
	// invocation time.
	ErrConfiguration = errors.New("configuration error")
)

// MissingClaimError names the specific absent claim while still satisfying
// errors.Is(err, ErrMissingClaim).
type MissingClaimError struct {
	Claim string
}

func (e *MissingClaimError) Error() string {
	return fmt.Sprintf("missing required claim %q", e.Claim)
}

func (e *MissingClaimError) Is(target error) bool {
	return target == ErrMissingClaim
}

// MissingClaim constructs a MissingClaimError for the named claim.
func MissingClaim(claim string) error {
	return &MissingClaimError{Claim: claim}
}
