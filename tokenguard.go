// Package tokenguard validates JWTs against keys published via OpenID
// Connect Discovery or registered statically, per RFC 7515, RFC 7517, RFC
// 7518, and RFC 7519. It enforces a permitted-algorithm allowlist, verifies
// the signature against the declared kid, and checks exp/nbf/aud/sub.
package tokenguard

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/coves-labs/tokenguard/internal/jose/compactjwt"
	"github.com/coves-labs/tokenguard/internal/jose/jwk"
	"github.com/coves-labs/tokenguard/internal/jwks/oidc"
	"github.com/coves-labs/tokenguard/internal/jwks/static"
	"github.com/coves-labs/tokenguard/internal/taxonomy"
	"github.com/coves-labs/tokenguard/internal/telemetry"
	"github.com/coves-labs/tokenguard/internal/validator"
)

// Re-exported sentinel errors, the public error taxonomy. Callers compare
// a ValidateToken failure against these with errors.Is.
var (
	ErrMalformed        = taxonomy.ErrMalformed
	ErrAlgorithmNone    = taxonomy.ErrAlgorithmNone
	ErrUntrustedIssuer  = taxonomy.ErrUntrustedIssuer
	ErrUpstream         = taxonomy.ErrUpstream
	ErrKeyNotFound      = taxonomy.ErrKeyNotFound
	ErrSignatureInvalid = taxonomy.ErrSignatureInvalid
	ErrMissingClaim     = taxonomy.ErrMissingClaim
	ErrNotYetValid      = taxonomy.ErrNotYetValid
	ErrExpired          = taxonomy.ErrExpired
	ErrAudienceMismatch = taxonomy.ErrAudienceMismatch
	ErrConfiguration    = taxonomy.ErrConfiguration
)

// Token is the parsed JWT returned by a successful validation; the key
// that verified it is returned separately as a *JWK.
type Token = compactjwt.JWT

// JWK is a parsed, verified-capable JSON Web Key.
type JWK = jwk.JWK

// Validator validates compact JWTs against a JWKS source.
type Validator struct {
	inner *validator.Validator
}

// Option configures a Validator.
type Option func(*validator.Validator)

// WithLogger overrides the validator's logger (default slog.Default()).
func WithLogger(logger *slog.Logger) Option { return Option(validator.WithLogger(logger)) }

// WithMetrics injects a telemetry.Recorder (default: discard everything).
func WithMetrics(recorder telemetry.Recorder) Option { return Option(validator.WithMetrics(recorder)) }

// NewOIDCValidator builds a Validator backed by OpenID Connect Discovery.
// issuerRegexes lists the fully-anchored patterns an issuer must match to
// be trusted; defaultJwkCacheSeconds is used when a discovery or JWKS
// fetch carries no usable Cache-Control max-age.
func NewOIDCValidator(httpClient *http.Client, issuerRegexes []string, defaultJwkCacheSeconds int, opts ...Option) (*Validator, error) {
	handler, err := oidc.NewHandler(oidc.NewHTTPClient(httpClient), issuerRegexes, defaultJwkCacheSeconds)
	if err != nil {
		return nil, err
	}
	return &Validator{inner: validator.New(handler, toValidatorOpts(opts)...)}, nil
}

// NewStaticValidator builds a Validator backed by a caller-managed,
// in-memory key set. Use its AddKey/RemoveKey methods to register keys.
func NewStaticValidator(issuerRegexes []string, opts ...Option) (*Validator, *StaticKeySet, error) {
	handler, err := static.NewHandler(issuerRegexes)
	if err != nil {
		return nil, nil, err
	}
	return &Validator{inner: validator.New(handler, toValidatorOpts(opts)...)}, &StaticKeySet{handler: handler}, nil
}

func toValidatorOpts(opts []Option) []validator.Option {
	out := make([]validator.Option, len(opts))
	for i, o := range opts {
		out[i] = validator.Option(o)
	}
	return out
}

// StaticKeySet manages the keys backing a static Validator.
type StaticKeySet struct {
	handler *static.Handler
}

// AddKey registers a JWK under issuer, parsed from its raw JSON
// representation, with expiresAt as its absolute epoch-ms expiry (use a
// far-future value for keys with no natural rotation schedule).
func (s *StaticKeySet) AddKey(issuer string, rawJWK []byte, expiresAt int64) error {
	key, err := jwk.Parse(rawJWK, expiresAt)
	if err != nil {
		return err
	}
	s.handler.AddKey(issuer, key)
	return nil
}

// RemoveKey deregisters the key for issuer+kid.
func (s *StaticKeySet) RemoveKey(issuer, kid string) {
	s.handler.RemoveKey(issuer, kid)
}

// SetPermittedAlgorithms replaces the Validator's permitted-algorithm set.
// The default is {RS256, RS384, RS512}.
func (v *Validator) SetPermittedAlgorithms(names []string) {
	v.inner.Config().SetPermittedAlgorithms(names)
}

// AddPermittedAlgorithm adds a single algorithm to the permitted set.
func (v *Validator) AddPermittedAlgorithm(name string) {
	v.inner.Config().AddPermittedAlgorithm(name)
}

// SetRequireExp sets whether a token without an exp claim is rejected.
// Default true.
func (v *Validator) SetRequireExp(require bool) { v.inner.Config().SetRequireExp(require) }

// SetRequireNbf sets whether a token without an nbf claim is rejected.
// Default true.
func (v *Validator) SetRequireNbf(require bool) { v.inner.Config().SetRequireNbf(require) }

// SetTimeLeewaySeconds sets the clock-skew tolerance applied to exp/nbf
// checks. Default 0.
func (v *Validator) SetTimeLeewaySeconds(seconds int64) {
	v.inner.Config().SetTimeLeewaySeconds(seconds)
}

// ValidateToken parses and validates raw, resolving its signing key
// through the Validator's configured JWKS source. requiredAudiences must
// be non-nil unless ignoreRequiredAud is true and an empty slice is
// passed. On success it returns the parsed token and the JWK that
// verified it; on failure the returned error wraps one of the sentinel
// errors above.
func (v *Validator) ValidateToken(ctx context.Context, raw string, requiredAudiences []string, ignoreRequiredAud bool) (*Token, *JWK, error) {
	res, err := v.inner.ValidateToken(ctx, raw, requiredAudiences, ignoreRequiredAud)
	if err != nil {
		return nil, nil, err
	}
	return res.Token, res.Key, nil
}
