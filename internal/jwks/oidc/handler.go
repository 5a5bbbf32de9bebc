// Package oidc implements the OpenID Connect discovery-based JWKS handler:
// it performs OpenID Connect Discovery, enforces issuer allow-listing, and
// serves JWKs out of the async single-flight caches in internal/cache.
package oidc

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/coves-labs/tokenguard/internal/cache"
	"github.com/coves-labs/tokenguard/internal/jose/discovery"
	"github.com/coves-labs/tokenguard/internal/jose/jwk"
	"github.com/coves-labs/tokenguard/internal/taxonomy"
	"github.com/coves-labs/tokenguard/internal/telemetry"
)

// Handler is the OIDC-discovery implementation of the JWKS-handler
// capability, one of two variants alongside the static handler in
// internal/jwks/static.
type Handler struct {
	getter             HTTPGetter
	issuerRegexes      []*regexp.Regexp
	defaultCacheSeconds int

	discoveryCache *cache.Cache[*discovery.Data]

	kidCachesMu sync.Mutex
	kidCaches   map[string]*cache.Cache[*jwk.JWK] // keyed by jwks_uri

	kidCacheCapacity int
	log              *slog.Logger
	metrics          telemetry.Recorder
}

// Option configures a Handler at construction time.
type Option func(*Handler)

// WithLogger overrides the handler's logger (default slog.Default()).
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.log = logger
		}
	}
}

// WithMetrics injects a telemetry.Recorder (default telemetry.NoopRecorder{}).
func WithMetrics(recorder telemetry.Recorder) Option {
	return func(h *Handler) {
		if recorder != nil {
			h.metrics = recorder
		}
	}
}

// WithCacheCapacity bounds the discovery cache and every per-jwks_uri
// kid-cache to at most capacity entries (LRU eviction), guarding against
// unbounded memory growth from a flood of distinct, regex-allow-listed
// issuers.
func WithCacheCapacity(capacity int) Option {
	return func(h *Handler) { h.kidCacheCapacity = capacity }
}

// NewHandler constructs an OIDC JWKS Handler. issuerRegexes must contain at
// least one regex that compiles; uncompilable or empty entries are dropped
// with a warning. If none remain, construction fails with
// taxonomy.ErrConfiguration.
func NewHandler(getter HTTPGetter, issuerRegexes []string, defaultJwkCacheDurationSeconds int, opts ...Option) (*Handler, error) {
	h := &Handler{
		getter:              getter,
		defaultCacheSeconds: defaultJwkCacheDurationSeconds,
		kidCaches:           make(map[string]*cache.Cache[*jwk.JWK]),
		log:                 slog.Default(),
		metrics:             telemetry.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(h)
	}

	for _, pattern := range issuerRegexes {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			h.log.Warn("dropping uncompilable issuer regex", "pattern", pattern, "error", err)
			continue
		}
		h.issuerRegexes = append(h.issuerRegexes, re)
	}
	if len(h.issuerRegexes) == 0 {
		return nil, fmt.Errorf("%w: no valid issuer regex configured", taxonomy.ErrConfiguration)
	}

	h.discoveryCache = cache.New[*discovery.Data]("oidc-discovery", func(d *discovery.Data) int64 {
		return d.ExpiresAt()
	}, discoveryCacheOpts(h)...)

	return h, nil
}

func discoveryCacheOpts(h *Handler) []cache.Option[*discovery.Data] {
	opts := []cache.Option[*discovery.Data]{cache.WithLogger[*discovery.Data](h.log)}
	if h.kidCacheCapacity > 0 {
		opts = append(opts, cache.WithCapacity[*discovery.Data](h.kidCacheCapacity))
	}
	return opts
}

func fullyMatches(re *regexp.Regexp, s string) bool {
	loc := re.FindStringIndex(s)
	return loc != nil && loc[0] == 0 && loc[1] == len(s)
}

// ValidateIssuer succeeds if issuer was previously accepted (its discovery
// document is already cached; a once-accepted issuer is not re-evaluated
// against the regex list on every call, even if the operator later
// narrows the regex set) or if any configured regex fully matches it.
func (h *Handler) ValidateIssuer(issuer string) error {
	if h.discoveryCache.Contains(issuer) {
		return nil
	}
	for _, re := range h.issuerRegexes {
		if fullyMatches(re, issuer) {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", taxonomy.ErrUntrustedIssuer, issuer)
}

func discoveryURL(issuer string) string {
	base := issuer
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + ".well-known/openid-configuration"
}

// PerformOpenIDDiscovery fetches and caches issuer's discovery document.
func (h *Handler) PerformOpenIDDiscovery(ctx context.Context, issuer string) (*discovery.Data, error) {
	if err := h.ValidateIssuer(issuer); err != nil {
		return nil, err
	}

	url := discoveryURL(issuer)
	return h.discoveryCache.Get(ctx, issuer, func(ctx context.Context) (*discovery.Data, error) {
		return h.fetchDiscovery(ctx, url)
	})
}

func (h *Handler) fetchDiscovery(ctx context.Context, url string) (*discovery.Data, error) {
	start := time.Now()
	requestTime := start.UnixMilli()

	resp, err := h.getter.Get(ctx, url)
	if err != nil {
		h.metrics.ObserveUpstreamFetch(hostOf(url), time.Since(start), false)
		return nil, fmt.Errorf("%w: GET %s: %v", taxonomy.ErrUpstream, url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		h.metrics.ObserveUpstreamFetch(hostOf(url), time.Since(start), false)
		return nil, fmt.Errorf("%w: GET %s returned status %d", taxonomy.ErrUpstream, url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		h.metrics.ObserveUpstreamFetch(hostOf(url), time.Since(start), false)
		return nil, fmt.Errorf("%w: reading body of %s: %v", taxonomy.ErrUpstream, url, err)
	}

	expiresAt := computeExpiry(requestTime, resp.Header, h.defaultCacheSeconds, h.log)
	data, err := discovery.Parse(body, expiresAt)
	if err != nil {
		h.metrics.ObserveUpstreamFetch(hostOf(url), time.Since(start), false)
		return nil, fmt.Errorf("%w: discovery document at %s is not a JSON object: %v", taxonomy.ErrMalformed, url, err)
	}

	h.metrics.ObserveUpstreamFetch(hostOf(url), time.Since(start), true)
	h.log.Info("fetched OIDC discovery document", "url", url, "expires_at_ms", expiresAt)
	return data, nil
}

type jwksDocument struct {
	Keys []json.RawMessage `json:"keys"`
}

func (h *Handler) kidCacheFor(jwksURI string) *cache.Cache[*jwk.JWK] {
	h.kidCachesMu.Lock()
	defer h.kidCachesMu.Unlock()
	if c, ok := h.kidCaches[jwksURI]; ok {
		return c
	}
	opts := []cache.Option[*jwk.JWK]{cache.WithLogger[*jwk.JWK](h.log)}
	if h.kidCacheCapacity > 0 {
		opts = append(opts, cache.WithCapacity[*jwk.JWK](h.kidCacheCapacity))
	}
	c := cache.New[*jwk.JWK]("jwks:"+jwksURI, func(k *jwk.JWK) int64 { return k.ExpiresAt() }, opts...)
	h.kidCaches[jwksURI] = c
	return c
}

// FindJwkInDiscovery resolves kid against the JWKS referenced by
// discoveryData's jwks_uri.
func (h *Handler) FindJwkInDiscovery(ctx context.Context, discoveryData *discovery.Data, kid string) (*jwk.JWK, error) {
	jwksURI, ok := discoveryData.JwksURI()
	if !ok || strings.TrimSpace(jwksURI) == "" {
		return nil, fmt.Errorf("%w: discovery document has no jwks_uri", taxonomy.ErrMalformed)
	}

	kidCache := h.kidCacheFor(jwksURI)
	return kidCache.Get(ctx, kid, func(ctx context.Context) (*jwk.JWK, error) {
		return h.fetchAndPopulateKeys(ctx, jwksURI, kid, kidCache)
	})
}

func (h *Handler) fetchAndPopulateKeys(ctx context.Context, jwksURI, kid string, kidCache *cache.Cache[*jwk.JWK]) (*jwk.JWK, error) {
	start := time.Now()
	requestTime := start.UnixMilli()

	resp, err := h.getter.Get(ctx, jwksURI)
	if err != nil {
		h.metrics.ObserveUpstreamFetch(hostOf(jwksURI), time.Since(start), false)
		return nil, fmt.Errorf("%w: GET %s: %v", taxonomy.ErrUpstream, jwksURI, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		h.metrics.ObserveUpstreamFetch(hostOf(jwksURI), time.Since(start), false)
		return nil, fmt.Errorf("%w: GET %s returned status %d", taxonomy.ErrUpstream, jwksURI, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		h.metrics.ObserveUpstreamFetch(hostOf(jwksURI), time.Since(start), false)
		return nil, fmt.Errorf("%w: reading body of %s: %v", taxonomy.ErrUpstream, jwksURI, err)
	}

	var doc jwksDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		h.metrics.ObserveUpstreamFetch(hostOf(jwksURI), time.Since(start), false)
		return nil, fmt.Errorf("%w: JWKS body at %s is not a JSON object: %v", taxonomy.ErrMalformed, jwksURI, err)
	}

	expiresAt := computeExpiry(requestTime, resp.Header, h.defaultCacheSeconds, h.log)
	h.metrics.ObserveUpstreamFetch(hostOf(jwksURI), time.Since(start), true)

	var found *jwk.JWK
	for _, raw := range doc.Keys {
		parsed, err := jwk.Parse(raw, expiresAt)
		if err != nil {
			h.log.Warn("skipping unparsable JWK in JWKS response", "url", jwksURI, "error", err)
			continue
		}
		if parsed.Kid() == kid {
			found = parsed
			continue
		}
		kidCache.Put(parsed.Kid(), parsed)
	}

	if found == nil {
		return nil, fmt.Errorf("%w: kid %q not present in JWKS at %s", taxonomy.ErrKeyNotFound, kid, jwksURI)
	}
	h.log.Info("fetched JWKS", "url", jwksURI, "keys", len(doc.Keys), "expires_at_ms", expiresAt)
	return found, nil
}

// FindJwk is the composite operation: discovery, then key lookup.
func (h *Handler) FindJwk(ctx context.Context, issuer, kid string) (*jwk.JWK, error) {
	discoveryData, err := h.PerformOpenIDDiscovery(ctx, issuer)
	if err != nil {
		return nil, err
	}
	return h.FindJwkInDiscovery(ctx, discoveryData, kid)
}

func hostOf(rawURL string) string {
	if i := strings.Index(rawURL, "://"); i >= 0 {
		rest := rawURL[i+3:]
		if j := strings.IndexByte(rest, '/'); j >= 0 {
			return rest[:j]
		}
		return rest
	}
	return rawURL
}
