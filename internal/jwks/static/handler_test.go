package static

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"testing"

	"github.com/coves-labs/tokenguard/internal/jose/jwk"
	"github.com/coves-labs/tokenguard/internal/taxonomy"
)

func testJWK(t *testing.T, kid string) *jwk.JWK {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	n := base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes())
	e := base64.RawURLEncoding.EncodeToString([]byte{1, 0, 1})
	raw := fmt.Sprintf(`{"kty":"RSA","kid":%q,"alg":"RS256","n":%q,"e":%q}`, kid, n, e)
	parsed, err := jwk.Parse([]byte(raw), 1<<62)
	if err != nil {
		t.Fatal(err)
	}
	return parsed
}

func TestNewHandlerDefaultsToMatchAnyIssuer(t *testing.T) {
	h, err := NewHandler(nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := h.ValidateIssuer("https://anything.example"); err != nil {
		t.Errorf("expected default regex to match any issuer, got %v", err)
	}
}

func TestNewHandlerRejectsAllUncompilableRegexes(t *testing.T) {
	_, err := NewHandler([]string{"("})
	if !errors.Is(err, taxonomy.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}

func TestAddFindRemoveKey(t *testing.T) {
	h, err := NewHandler([]string{"^https://issuer\\.example$"})
	if err != nil {
		t.Fatal(err)
	}

	key := testJWK(t, "k1")
	h.AddKey("https://issuer.example", key)

	got, err := h.FindJwk(context.Background(), "https://issuer.example", "k1")
	if err != nil {
		t.Fatalf("FindJwk: %v", err)
	}
	if got.Kid() != "k1" {
		t.Errorf("kid = %q, want k1", got.Kid())
	}

	h.RemoveKey("https://issuer.example", "k1")
	if _, err := h.FindJwk(context.Background(), "https://issuer.example", "k1"); !errors.Is(err, taxonomy.ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound after RemoveKey, got %v", err)
	}
}

func TestFindJwkMissingKeyReturnsKeyNotFound(t *testing.T) {
	h, err := NewHandler(nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.FindJwk(context.Background(), "https://issuer.example", "absent"); !errors.Is(err, taxonomy.ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestValidateIssuerRejectsUnmatched(t *testing.T) {
	h, err := NewHandler([]string{"^https://only\\.example$"})
	if err != nil {
		t.Fatal(err)
	}
	if err := h.ValidateIssuer("https://other.example"); !errors.Is(err, taxonomy.ErrUntrustedIssuer) {
		t.Errorf("expected ErrUntrustedIssuer, got %v", err)
	}
}

func TestKeysAreIsolatedPerIssuer(t *testing.T) {
	h, err := NewHandler(nil)
	if err != nil {
		t.Fatal(err)
	}
	key := testJWK(t, "shared-kid")
	h.AddKey("https://a.example", key)

	if _, err := h.FindJwk(context.Background(), "https://b.example", "shared-kid"); !errors.Is(err, taxonomy.ErrKeyNotFound) {
		t.Errorf("expected a key registered under issuer a to be invisible under issuer b, got %v", err)
	}
}
