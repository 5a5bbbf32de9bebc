// Package static implements the static (non-discovery) JWKS handler: an
// in-memory map of issuer+kid to pre-registered JWK, for deployments that
// distribute keys out-of-band rather than via OpenID Connect Discovery.
package static

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/coves-labs/tokenguard/internal/jose/jwk"
	"github.com/coves-labs/tokenguard/internal/taxonomy"
)

const keySeparator = "\x00"

// Handler is the static implementation of the JWKS-handler capability, the
// counterpart of internal/jwks/oidc for deployments that register keys
// directly instead of discovering them.
type Handler struct {
	issuerRegexes []*regexp.Regexp

	mu   sync.RWMutex
	keys map[string]*jwk.JWK // keyed by issuer + sentinel + kid
}

// Option configures a Handler at construction time.
type Option func(*Handler)

// NewHandler constructs a Handler. If issuerRegexes is empty, it defaults
// to a single pattern matching any issuer ("."+"*").
func NewHandler(issuerRegexes []string, opts ...Option) (*Handler, error) {
	h := &Handler{keys: make(map[string]*jwk.JWK)}
	for _, opt := range opts {
		opt(h)
	}

	patterns := issuerRegexes
	if len(patterns) == 0 {
		patterns = []string{".*"}
	}

	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: issuer regex %q: %v", taxonomy.ErrConfiguration, pattern, err)
		}
		h.issuerRegexes = append(h.issuerRegexes, re)
	}
	if len(h.issuerRegexes) == 0 {
		return nil, fmt.Errorf("%w: no valid issuer regex configured", taxonomy.ErrConfiguration)
	}

	return h, nil
}

func storageKey(issuer, kid string) string {
	return issuer + keySeparator + kid
}

func fullyMatches(re *regexp.Regexp, s string) bool {
	loc := re.FindStringIndex(s)
	return loc != nil && loc[0] == 0 && loc[1] == len(s)
}

// ValidateIssuer reports whether issuer matches any configured regex.
func (h *Handler) ValidateIssuer(issuer string) error {
	for _, re := range h.issuerRegexes {
		if fullyMatches(re, issuer) {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", taxonomy.ErrUntrustedIssuer, issuer)
}

// AddKey registers key under issuer, keyed by its own kid. A later AddKey
// for the same issuer+kid overwrites the previous entry.
func (h *Handler) AddKey(issuer string, key *jwk.JWK) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.keys[storageKey(issuer, key.Kid())] = key
}

// RemoveKey deregisters the key for issuer+kid, if present.
func (h *Handler) RemoveKey(issuer, kid string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.keys, storageKey(issuer, kid))
}

// FindJwk returns the registered key for issuer+kid. Unlike the OIDC
// handler this never performs I/O or blocks on ctx; it accepts one only so
// both handler implementations satisfy the validator's JWKSHandler
// interface.
func (h *Handler) FindJwk(ctx context.Context, issuer, kid string) (*jwk.JWK, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	key, ok := h.keys[storageKey(issuer, kid)]
	if !ok {
		return nil, fmt.Errorf("%w: no static key registered for issuer %q kid %q", taxonomy.ErrKeyNotFound, issuer, kid)
	}
	return key, nil
}
