package oidc

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
)

// computeExpiry derives a cache expiry from a fetch response's
// Cache-Control headers: the smallest positive max-age directive across
// every header wins; malformed values are logged and ignored, non-positive
// values are ignored; if no valid max-age is found, defaultSeconds is used.
func computeExpiry(requestTimeMillis int64, header http.Header, defaultSeconds int, log *slog.Logger) int64 {
	seconds := defaultSeconds
	found := false

	for _, line := range header.Values("Cache-Control") {
		for _, directive := range strings.Split(line, ",") {
			directive = strings.TrimSpace(directive)
			if directive == "" {
				continue
			}
			name, value, hasValue := strings.Cut(directive, "=")
			name = strings.TrimSpace(name)
			if !strings.EqualFold(name, "max-age") || !hasValue {
				continue
			}
			value = strings.Trim(strings.TrimSpace(value), `"`)
			parsed, err := strconv.Atoi(value)
			if err != nil {
				log.Warn("ignoring malformed max-age directive", "value", value, "error", err)
				continue
			}
			if parsed <= 0 {
				continue
			}
			if !found || parsed < seconds {
				seconds = parsed
				found = true
			}
		}
	}

	return requestTimeMillis + int64(seconds)*1000
}
