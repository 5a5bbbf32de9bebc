// Package testissuer self-hosts a minimal OpenID Connect discovery
// document and JWKS endpoint, plus a token minter, for exercising an
// OIDC-backed Validator without a real identity provider. It exists for
// tests and for the demo server's self-contained mode; it is not part of
// tokenguard's validation path.
package testissuer

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"

	json "github.com/goccy/go-json"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// Issuer is an in-process fake OpenID provider: it serves its own
// discovery document and JWKS, and can mint tokens signed by the key it
// advertises.
type Issuer struct {
	server  *httptest.Server
	priv    *rsa.PrivateKey
	kid     string
	issuer  string
	maxAge  int
}

// New starts an httptest server exposing "/.well-known/openid-configuration"
// and "/jwks.json", backed by a freshly generated RS256 key with the given
// kid. maxAgeSeconds is advertised via Cache-Control on both endpoints.
func New(kid string, maxAgeSeconds int) (*Issuer, error) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("generate signing key: %w", err)
	}

	iss := &Issuer{priv: priv, kid: kid, maxAge: maxAgeSeconds}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", iss.handleDiscovery)
	mux.HandleFunc("/jwks.json", iss.handleJWKS)
	iss.server = httptest.NewServer(mux)
	iss.issuer = iss.server.URL
	return iss, nil
}

// Close shuts down the underlying httptest server.
func (i *Issuer) Close() { i.server.Close() }

// URL returns the issuer's base URL, usable both as the "iss" claim and as
// an issuer-regex target.
func (i *Issuer) URL() string { return i.issuer }

func (i *Issuer) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	doc := map[string]any{
		"issuer":                                i.issuer,
		"jwks_uri":                              i.issuer + "/jwks.json",
		"id_token_signing_alg_values_supported": []string{"RS256"},
		"subject_types_supported":               []string{"public"},
		"response_types_supported":              []string{"code"},
	}
	w.Header().Set("Cache-Control", fmt.Sprintf("max-age=%d", i.maxAge))
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(doc)
}

func (i *Issuer) handleJWKS(w http.ResponseWriter, r *http.Request) {
	pub, err := jwk.FromRaw(&i.priv.PublicKey)
	if err != nil {
		http.Error(w, "failed to build public jwk", http.StatusInternalServerError)
		return
	}
	if err := pub.Set(jwk.KeyIDKey, i.kid); err != nil {
		http.Error(w, "failed to set kid", http.StatusInternalServerError)
		return
	}
	if err := pub.Set(jwk.AlgorithmKey, "RS256"); err != nil {
		http.Error(w, "failed to set alg", http.StatusInternalServerError)
		return
	}

	set := jwk.NewSet()
	if err := set.AddKey(pub); err != nil {
		http.Error(w, "failed to build jwks", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Cache-Control", fmt.Sprintf("max-age=%d", i.maxAge))
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(set)
}

// MintToken signs an RS256 token carrying claims, with "iss" and "kid"
// filled in automatically. claims must not set "iss".
func (i *Issuer) MintToken(claims map[string]any) (string, error) {
	header := map[string]any{"alg": "RS256", "kid": i.kid, "typ": "JWT"}
	body := make(map[string]any, len(claims)+1)
	for k, v := range claims {
		body[k] = v
	}
	body["iss"] = i.issuer

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return "", err
	}
	payloadJSON, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	signingInput := b64(headerJSON) + "." + b64(payloadJSON)
	sig, err := signRS256(i.priv, signingInput)
	if err != nil {
		return "", err
	}
	return signingInput + "." + b64(sig), nil
}

func b64(b []byte) string { return base64.RawURLEncoding.EncodeToString(b) }
