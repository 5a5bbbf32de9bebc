// Package httpmw adapts a tokenguard Validator into net/http middleware.
package httpmw

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/coves-labs/tokenguard/internal/jose/compactjwt"
	"github.com/coves-labs/tokenguard/internal/jose/jwk"
	"github.com/coves-labs/tokenguard/internal/taxonomy"
	"github.com/coves-labs/tokenguard/internal/validator"
)

type contextKey string

const (
	tokenKey contextKey = "tokenguard_token"
	jwkKey   contextKey = "tokenguard_jwk"
)

// Auth is Bearer-token authentication middleware backed by a
// validator.Validator.
type Auth struct {
	validator         *validator.Validator
	requiredAudiences []string
	ignoreRequiredAud bool
	log               *slog.Logger
}

// Option configures an Auth at construction time.
type Option func(*Auth)

// WithLogger overrides the middleware's logger (default slog.Default()).
func WithLogger(logger *slog.Logger) Option {
	return func(a *Auth) {
		if logger != nil {
			a.log = logger
		}
	}
}

// New builds Auth. requiredAudiences is passed through to ValidateToken on
// every request; pass an empty, non-nil slice and ignoreRequiredAud=true to
// skip the audience check entirely (a nil slice is rejected as a
// configuration error).
func New(v *validator.Validator, requiredAudiences []string, ignoreRequiredAud bool, opts ...Option) *Auth {
	a := &Auth{
		validator:         v,
		requiredAudiences: requiredAudiences,
		ignoreRequiredAud: ignoreRequiredAud,
		log:               slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RequireAuth rejects requests without a valid Bearer token with 401. On
// success the parsed token and verifying key are attached to the request
// context, retrievable with Token and Key.
func (a *Auth) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := extractBearerToken(r.Header.Get("Authorization"))
		if !ok {
			a.writeAuthError(w, http.StatusUnauthorized, "missing_token", "missing or malformed Authorization header")
			return
		}

		result, err := a.validator.ValidateToken(r.Context(), raw, a.requiredAudiences, a.ignoreRequiredAud)
		if err != nil {
			a.writeAuthError(w, http.StatusUnauthorized, outcomeCode(err), "token rejected")
			return
		}

		ctx := context.WithValue(r.Context(), tokenKey, result.Token)
		ctx = context.WithValue(ctx, jwkKey, result.Key)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalAuth attaches token/key to the context when a valid Bearer token
// is present, but never rejects the request.
func (a *Auth) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := extractBearerToken(r.Header.Get("Authorization"))
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		result, err := a.validator.ValidateToken(r.Context(), raw, a.requiredAudiences, a.ignoreRequiredAud)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), tokenKey, result.Token)
		ctx = context.WithValue(ctx, jwkKey, result.Key)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Token retrieves the validated token from a request's context, if any.
func Token(r *http.Request) (*compactjwt.JWT, bool) {
	t, ok := r.Context().Value(tokenKey).(*compactjwt.JWT)
	return t, ok
}

// Key retrieves the verifying JWK from a request's context, if any.
func Key(r *http.Request) (*jwk.JWK, bool) {
	k, ok := r.Context().Value(jwkKey).(*jwk.JWK)
	return k, ok
}

func extractBearerToken(authHeader string) (string, bool) {
	if authHeader == "" {
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}

func outcomeCode(err error) string {
	for _, candidate := range []struct {
		code string
		err  error
	}{
		{"malformed", taxonomy.ErrMalformed},
		{"algorithm_none", taxonomy.ErrAlgorithmNone},
		{"untrusted_issuer", taxonomy.ErrUntrustedIssuer},
		{"upstream_unavailable", taxonomy.ErrUpstream},
		{"key_not_found", taxonomy.ErrKeyNotFound},
		{"signature_invalid", taxonomy.ErrSignatureInvalid},
		{"missing_claim", taxonomy.ErrMissingClaim},
		{"not_yet_valid", taxonomy.ErrNotYetValid},
		{"expired", taxonomy.ErrExpired},
		{"audience_mismatch", taxonomy.ErrAudienceMismatch},
	} {
		if errors.Is(err, candidate.err) {
			return candidate.code
		}
	}
	return "invalid_token"
}

func (a *Auth) writeAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer error="`+code+`"`)
	w.WriteHeader(status)
	body, err := json.Marshal(map[string]string{"error": code, "message": message})
	if err != nil {
		return
	}
	if _, err := w.Write(body); err != nil {
		a.log.Warn("write auth error response", "error", err)
	}
}
