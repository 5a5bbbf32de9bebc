// Package validator implements the top-level JWT validation orchestration:
// parsing, algorithm policy, issuer trust, key resolution, cryptographic
// verification, and claim checks, in that order, short-circuiting on the
// first failure.
package validator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/coves-labs/tokenguard/internal/jose/algorithm"
	"github.com/coves-labs/tokenguard/internal/jose/compactjwt"
	"github.com/coves-labs/tokenguard/internal/jose/jwk"
	"github.com/coves-labs/tokenguard/internal/taxonomy"
	"github.com/coves-labs/tokenguard/internal/telemetry"
)

// JWKSHandler is the capability a Validator is built against; both
// internal/jwks/oidc.Handler and internal/jwks/static.Handler satisfy it.
type JWKSHandler interface {
	ValidateIssuer(issuer string) error
	FindJwk(ctx context.Context, issuer, kid string) (*jwk.JWK, error)
}

// Clock returns the current epoch-seconds. Tests substitute a fake clock.
type Clock func() int64

func systemClock() int64 { return time.Now().Unix() }

// Validator is the token-validation orchestrator. It owns exactly one
// JWKSHandler for its lifetime and a mutable Config shared across calls.
type Validator struct {
	handler JWKSHandler
	config  *Config
	clock   Clock
	log     *slog.Logger
	metrics telemetry.Recorder
}

// Option configures a Validator at construction time.
type Option func(*Validator)

// WithLogger overrides the validator's logger (default slog.Default()).
func WithLogger(logger *slog.Logger) Option {
	return func(v *Validator) {
		if logger != nil {
			v.log = logger
		}
	}
}

// WithMetrics injects a telemetry.Recorder (default telemetry.NoopRecorder{}).
func WithMetrics(recorder telemetry.Recorder) Option {
	return func(v *Validator) {
		if recorder != nil {
			v.metrics = recorder
		}
	}
}

// WithClock overrides the validator's notion of "now", for deterministic
// tests of the temporal checks.
func WithClock(clock Clock) Option {
	return func(v *Validator) {
		if clock != nil {
			v.clock = clock
		}
	}
}

// New constructs a Validator with the default Config.
func New(handler JWKSHandler, opts ...Option) *Validator {
	v := &Validator{
		handler: handler,
		config:  NewConfig(),
		clock:   systemClock,
		log:     slog.Default(),
		metrics: telemetry.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Config returns the Validator's mutable policy, for setting permitted
// algorithms, required-claim flags, and leeway after construction.
func (v *Validator) Config() *Config { return v.config }

// Result is the successful outcome of ValidateToken: the parsed token plus
// the JWK that verified it, for callers that want to inspect either.
type Result struct {
	Token *compactjwt.JWT
	Key   *jwk.JWK
}

// ValidateToken runs phases A through I against raw. requiredAudiences
// must be non-nil unless ignoreRequiredAud is true and the caller passes
// an empty slice; see Phase H below.
func (v *Validator) ValidateToken(ctx context.Context, raw string, requiredAudiences []string, ignoreRequiredAud bool) (*Result, error) {
	correlationID := uuid.NewString()
	log := v.log.With("correlation_id", correlationID)

	result, err := v.validate(ctx, raw, requiredAudiences, ignoreRequiredAud, log)
	if err != nil {
		log.Warn("token validation failed", "error", err)
		v.metrics.ObserveValidation(outcomeOf(err))
		return nil, err
	}
	v.metrics.ObserveValidation("success")
	return result, nil
}

func (v *Validator) validate(ctx context.Context, raw string, requiredAudiences []string, ignoreRequiredAud bool, log *slog.Logger) (*Result, error) {
	// Phase A: parse.
	token, err := compactjwt.Parse(raw)
	if err != nil {
		return nil, wrap(fmt.Errorf("%w: %v", taxonomy.ErrMalformed, err))
	}

	// Phase B: algorithm.
	algName, ok := token.Alg()
	if !ok {
		return nil, wrap(fmt.Errorf("%w: missing alg header", taxonomy.ErrMalformed))
	}
	desc, err := algorithm.Lookup(algName)
	if err != nil {
		return nil, wrap(fmt.Errorf("%w: %v", taxonomy.ErrMalformed, err))
	}
	if desc.Family == algorithm.FamilyNone {
		return nil, wrap(taxonomy.ErrAlgorithmNone)
	}
	if !v.config.isPermitted(algName) {
		return nil, wrap(fmt.Errorf("%w: alg %q not permitted", taxonomy.ErrMalformed, algName))
	}

	// Phase C: minimal claim presence.
	if !token.HasClaims() {
		return nil, wrap(fmt.Errorf("%w: payload carries no claims", taxonomy.ErrMalformed))
	}

	// Phase D: issuer.
	issuer, ok := token.Issuer()
	if !ok {
		return nil, wrap(fmt.Errorf("%w: missing iss claim", taxonomy.ErrMalformed))
	}
	if err := v.handler.ValidateIssuer(issuer); err != nil {
		return nil, wrap(fmt.Errorf("%w: %v", taxonomy.ErrUntrustedIssuer, err))
	}

	// Phase E: key resolution.
	kid, _ := token.Kid()
	key, err := v.handler.FindJwk(ctx, issuer, kid)
	if err != nil {
		return nil, wrap(err)
	}

	// Phase F: cryptographic verification.
	if token.SignatureSegment() == "" {
		return nil, wrap(fmt.Errorf("%w: empty signature segment", taxonomy.ErrMalformed))
	}
	sig, err := token.SignatureBytes()
	if err != nil {
		return nil, wrap(fmt.Errorf("%w: %v", taxonomy.ErrMalformed, err))
	}
	valid, err := key.Verify(desc, sig, []byte(token.SigningInput()))
	if err != nil || !valid {
		return nil, wrap(taxonomy.ErrSignatureInvalid)
	}

	// Phase G: temporal checks.
	requireExp, requireNbf, leeway := v.config.snapshot()
	now := v.clock()

	if nbf, ok := token.NotBefore(); ok {
		if nbf > now+leeway {
			return nil, wrap(taxonomy.ErrNotYetValid)
		}
	} else if requireNbf {
		return nil, wrap(taxonomy.MissingClaim("nbf"))
	}

	if exp, ok := token.Expiry(); ok {
		if exp < now-leeway {
			return nil, wrap(taxonomy.ErrExpired)
		}
	} else if requireExp {
		return nil, wrap(taxonomy.MissingClaim("exp"))
	}

	// Phase H: audience.
	if requiredAudiences == nil || (len(requiredAudiences) == 0 && !ignoreRequiredAud) {
		return nil, wrap(fmt.Errorf("%w: requiredAudiences must be supplied unless ignoreRequiredAud is set", taxonomy.ErrConfiguration))
	}
	if !(ignoreRequiredAud && len(requiredAudiences) == 0) {
		tokenAud, ok := token.Audience()
		if !ok || !intersects(tokenAud, requiredAudiences) {
			return nil, wrap(taxonomy.ErrAudienceMismatch)
		}
	}

	// Phase I: subject.
	if sub, ok := token.Subject(); !ok || sub == "" {
		return nil, wrap(taxonomy.MissingClaim("sub"))
	}

	log.Debug("token validated", "issuer", issuer, "kid", kid, "alg", algName)
	return &Result{Token: token, Key: key}, nil
}

func intersects(a, b []string) bool {
	set := make(map[string]struct{}, len(b))
	for _, s := range b {
		set[s] = struct{}{}
	}
	for _, s := range a {
		if _, ok := set[s]; ok {
			return true
		}
	}
	return false
}

func outcomeOf(err error) string {
	for _, candidate := range []struct {
		name string
		err  error
	}{
		{"malformed", taxonomy.ErrMalformed},
		{"algorithm_none", taxonomy.ErrAlgorithmNone},
		{"untrusted_issuer", taxonomy.ErrUntrustedIssuer},
		{"upstream", taxonomy.ErrUpstream},
		{"key_not_found", taxonomy.ErrKeyNotFound},
		{"signature_invalid", taxonomy.ErrSignatureInvalid},
		{"missing_claim", taxonomy.ErrMissingClaim},
		{"not_yet_valid", taxonomy.ErrNotYetValid},
		{"expired", taxonomy.ErrExpired},
		{"audience_mismatch", taxonomy.ErrAudienceMismatch},
		{"configuration", taxonomy.ErrConfiguration},
	} {
		if errors.Is(err, candidate.err) {
			return candidate.name
		}
	}
	return "unknown"
}
