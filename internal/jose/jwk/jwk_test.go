package jwk

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/coves-labs/tokenguard/internal/jose/algorithm"
)

func b64u(b []byte) string { return base64.RawURLEncoding.EncodeToString(b) }

func rsaJWKJSON(t *testing.T, kid string) (string, *rsa.PrivateKey) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	n := b64u(priv.PublicKey.N.Bytes())
	e := b64u(big.NewInt(int64(priv.PublicKey.E)).Bytes())
	return fmt.Sprintf(`{"kty":"RSA","kid":%q,"use":"sig","alg":"RS256","n":%q,"e":%q}`, kid, n, e), priv
}

func ecJWKJSON(t *testing.T, kid, crv string, curve elliptic.Curve) (string, *ecdsa.PrivateKey) {
	t.Helper()
	priv, err := ecdsa.GenerateKey(curve, rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	size, err := algorithm.CurveBitSize(crv)
	if err != nil {
		t.Fatal(err)
	}
	x := make([]byte, size)
	y := make([]byte, size)
	priv.PublicKey.X.FillBytes(x)
	priv.PublicKey.Y.FillBytes(y)
	return fmt.Sprintf(`{"kty":"EC","kid":%q,"crv":%q,"x":%q,"y":%q}`, kid, crv, b64u(x), b64u(y)), priv
}

func okpJWKJSON(t *testing.T, kid string) (string, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	return fmt.Sprintf(`{"kty":"OKP","kid":%q,"crv":"Ed25519","x":%q}`, kid, b64u(pub)), priv
}

func TestParseRSA(t *testing.T) {
	raw, _ := rsaJWKJSON(t, "key1")
	k, err := Parse([]byte(raw), 1000)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if k.Kid() != "key1" || k.Kty() != KtyRSA || k.ExpiresAt() != 1000 {
		t.Errorf("unexpected key: kid=%s kty=%s exp=%d", k.Kid(), k.Kty(), k.ExpiresAt())
	}
	if _, ok := k.PublicKey().(*rsa.PublicKey); !ok {
		t.Error("expected *rsa.PublicKey")
	}
}

func TestParseEC(t *testing.T) {
	raw, _ := ecJWKJSON(t, "key1", "P-256", elliptic.P256())
	k, err := Parse([]byte(raw), 0)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if k.Kty() != KtyEC {
		t.Errorf("Kty() = %s", k.Kty())
	}
}

func TestParseOKP(t *testing.T) {
	raw, _ := okpJWKJSON(t, "key1")
	k, err := Parse([]byte(raw), 0)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if k.Kty() != KtyOKP {
		t.Errorf("Kty() = %s", k.Kty())
	}
}

func TestParseMissingKid(t *testing.T) {
	raw, _ := rsaJWKJSON(t, "")
	_, err := Parse([]byte(raw), 0)
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("error = %v, want ErrInvalid", err)
	}
}

func TestParseUnknownKty(t *testing.T) {
	_, err := Parse([]byte(`{"kty":"oct","kid":"a","k":"xx"}`), 0)
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("error = %v, want ErrInvalid", err)
	}
}

func TestParseAlgKtyFamilyMismatch(t *testing.T) {
	raw := `{"kty":"EC","kid":"a","crv":"P-256","alg":"RS256","x":"AA","y":"AA"}`
	_, err := Parse([]byte(raw), 0)
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("error = %v, want ErrInvalid", err)
	}
}

func TestParseMissingRequiredFields(t *testing.T) {
	_, err := Parse([]byte(`{"kty":"RSA","kid":"a","n":"AA"}`), 0)
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("error = %v, want ErrInvalid (missing e)", err)
	}
}

func TestVerifyRSA(t *testing.T) {
	raw, priv := rsaJWKJSON(t, "key1")
	k, err := Parse([]byte(raw), 0)
	if err != nil {
		t.Fatal(err)
	}
	desc, _ := algorithm.Lookup("RS256")
	data := []byte("signed-data")
	h := desc.Hash.New()
	h.Write(data)
	hashed := h.Sum(nil)
	sig, err := rsa.SignPKCS1v15(rand.Reader, priv, desc.Hash, hashed)
	if err != nil {
		t.Fatal(err)
	}
	ok, err := k.Verify(desc, sig, data)
	if err != nil || !ok {
		t.Fatalf("Verify() = %v, %v, want true, nil", ok, err)
	}

	tampered := append([]byte{}, sig...)
	tampered[0] ^= 0xFF
	ok, _ = k.Verify(desc, tampered, data)
	if ok {
		t.Error("expected tampered signature to fail verification")
	}
}

func TestVerifyECDSA(t *testing.T) {
	raw, priv := ecJWKJSON(t, "key1", "P-256", elliptic.P256())
	k, err := Parse([]byte(raw), 0)
	if err != nil {
		t.Fatal(err)
	}
	desc, _ := algorithm.Lookup("ES256")
	data := []byte("signed-data")
	h := desc.Hash.New()
	h.Write(data)
	hashed := h.Sum(nil)
	r, s, err := ecdsa.Sign(rand.Reader, priv, hashed)
	if err != nil {
		t.Fatal(err)
	}
	size, _ := algorithm.CurveBitSize("P-256")
	sig := make([]byte, 2*size)
	r.FillBytes(sig[:size])
	s.FillBytes(sig[size:])

	ok, err := k.Verify(desc, sig, data)
	if err != nil || !ok {
		t.Fatalf("Verify() = %v, %v, want true, nil", ok, err)
	}
}

func TestVerifyEdDSA(t *testing.T) {
	raw, priv := okpJWKJSON(t, "key1")
	k, err := Parse([]byte(raw), 0)
	if err != nil {
		t.Fatal(err)
	}
	desc, _ := algorithm.Lookup("EdDSA")
	data := []byte("signed-data")
	sig := ed25519.Sign(priv, data)

	ok, err := k.Verify(desc, sig, data)
	if err != nil || !ok {
		t.Fatalf("Verify() = %v, %v, want true, nil", ok, err)
	}
}
