// tokenguard-keygen generates a signing keypair and the corresponding
// public JWK for one of tokenguard's supported algorithm families. The
// private key is printed for the caller to feed into their own token
// issuer; tokenguard itself only ever consumes the public half.
//
// Usage:
//
//	go run ./cmd/tokenguard-keygen -alg RS256 -kid my-key-1
package main

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"flag"
	"fmt"
	"log"
	"os"

	json "github.com/goccy/go-json"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

func main() {
	alg := flag.String("alg", "RS256", "algorithm: RS256, RS384, RS512, PS256, PS384, PS512, ES256, ES384, ES512, or EdDSA")
	kid := flag.String("kid", "tokenguard-key-1", "key id to embed in the generated JWK")
	save := flag.Bool("save", false, "write the private and public JWKs to tokenguard-private.json / tokenguard-public.json")
	flag.Parse()

	privJWK, pubJWK, err := generate(*alg, *kid)
	if err != nil {
		log.Fatalf("generate: %v", err)
	}

	privJSON, err := json.MarshalIndent(privJWK, "", "  ")
	if err != nil {
		log.Fatalf("marshal private key: %v", err)
	}
	pubJSON, err := json.MarshalIndent(pubJWK, "", "  ")
	if err != nil {
		log.Fatalf("marshal public key: %v", err)
	}

	fmt.Printf("Generated a %s keypair with kid %q.\n\n", *alg, *kid)
	fmt.Println("Private JWK (feed this to your token issuer):")
	fmt.Println(string(privJSON))
	fmt.Println("\nPublic JWK (register this with a tokenguard StaticKeySet, or serve it at your jwks_uri):")
	fmt.Println(string(pubJSON))

	if *save {
		if err := os.WriteFile("tokenguard-private.json", privJSON, 0o600); err != nil {
			log.Fatalf("write private key: %v", err)
		}
		if err := os.WriteFile("tokenguard-public.json", pubJSON, 0o644); err != nil {
			log.Fatalf("write public key: %v", err)
		}
		fmt.Println("\nWrote tokenguard-private.json and tokenguard-public.json.")
	}
}

func generate(alg, kid string) (priv jwk.Key, pub jwk.Key, err error) {
	var privateKey any

	switch alg {
	case "RS256", "RS384", "RS512", "PS256", "PS384", "PS512":
		privateKey, err = rsa.GenerateKey(rand.Reader, 2048)
	case "ES256":
		privateKey, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	case "ES384":
		privateKey, err = ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	case "ES512":
		privateKey, err = ecdsa.GenerateKey(elliptic.P521(), rand.Reader)
	case "EdDSA":
		_, sk, genErr := ed25519.GenerateKey(rand.Reader)
		privateKey, err = sk, genErr
	default:
		return nil, nil, fmt.Errorf("unsupported algorithm %q", alg)
	}
	if err != nil {
		return nil, nil, err
	}

	priv, err = jwk.FromRaw(privateKey)
	if err != nil {
		return nil, nil, fmt.Errorf("build private JWK: %w", err)
	}
	if err := priv.Set(jwk.KeyIDKey, kid); err != nil {
		return nil, nil, err
	}
	if err := priv.Set(jwk.AlgorithmKey, alg); err != nil {
		return nil, nil, err
	}
	if err := priv.Set(jwk.KeyUsageKey, "sig"); err != nil {
		return nil, nil, err
	}

	pub, err = jwk.PublicKeyOf(priv)
	if err != nil {
		return nil, nil, fmt.Errorf("derive public JWK: %w", err)
	}
	return priv, pub, nil
}
