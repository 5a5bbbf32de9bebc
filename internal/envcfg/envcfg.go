// Package envcfg loads small configuration values from the environment for
// tokenguard's demo binaries.
package envcfg

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
)

// GetBase64OrPlain retrieves an environment variable that may carry a
// "base64:" prefix. This avoids shell-escaping and newline pitfalls when
// passing JSON key material (a JWK, a PEM block) through process
// environments.
func GetBase64OrPlain(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", nil
	}
	if rest, ok := strings.CutPrefix(value, "base64:"); ok {
		decoded, err := base64.StdEncoding.DecodeString(rest)
		if err != nil {
			return "", fmt.Errorf("invalid base64 encoding for %s: %w", key, err)
		}
		return string(decoded), nil
	}
	return value, nil
}
