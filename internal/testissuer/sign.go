package testissuer

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
)

func signRS256(priv *rsa.PrivateKey, signingInput string) ([]byte, error) {
	sum := sha256.Sum256([]byte(signingInput))
	return rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA256, sum[:])
}
