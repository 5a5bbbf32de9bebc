// tokenguard-server is a minimal resource server demonstrating tokenguard
// as HTTP middleware: it validates Bearer tokens against either a static
// JWK registered at startup or a live OpenID Connect issuer, and serves a
// protected route plus Prometheus metrics.
//
// Usage:
//
//	go run ./cmd/tokenguard-server                                    # self-hosted demo issuer
//	TOKENGUARD_ISSUER_REGEX='^https://accounts\.example\.com$' go run ./cmd/tokenguard-server
//	TOKENGUARD_STATIC_JWK=... TOKENGUARD_STATIC_ISSUER=... go run ./cmd/tokenguard-server
package main

import (
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/coves-labs/tokenguard/internal/envcfg"
	"github.com/coves-labs/tokenguard/internal/httpmw"
	"github.com/coves-labs/tokenguard/internal/jose/jwk"
	"github.com/coves-labs/tokenguard/internal/jwks/oidc"
	"github.com/coves-labs/tokenguard/internal/jwks/static"
	"github.com/coves-labs/tokenguard/internal/telemetry"
	"github.com/coves-labs/tokenguard/internal/testissuer"
	"github.com/coves-labs/tokenguard/internal/validator"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	issuerRegex := os.Getenv("TOKENGUARD_ISSUER_REGEX")
	audience := os.Getenv("TOKENGUARD_AUDIENCE")
	if audience == "" {
		audience = "tokenguard-demo"
	}

	registry := prometheus.NewRegistry()
	recorder := telemetry.NewPrometheusRecorder(registry)

	var (
		v          *validator.Validator
		teardown   func()
	)

	staticJWK, err := envcfg.GetBase64OrPlain("TOKENGUARD_STATIC_JWK")
	if err != nil {
		log.Fatalf("read TOKENGUARD_STATIC_JWK: %v", err)
	}

	switch {
	case staticJWK != "":
		staticIssuer := os.Getenv("TOKENGUARD_STATIC_ISSUER")
		if staticIssuer == "" {
			log.Fatal("TOKENGUARD_STATIC_ISSUER must be set when TOKENGUARD_STATIC_JWK is configured")
		}
		handler, err := static.NewHandler([]string{"^" + regexp.QuoteMeta(staticIssuer) + "$"})
		if err != nil {
			log.Fatalf("build static jwks handler: %v", err)
		}
		key, err := jwk.Parse([]byte(staticJWK), farFutureExpiry())
		if err != nil {
			log.Fatalf("parse TOKENGUARD_STATIC_JWK: %v", err)
		}
		handler.AddKey(staticIssuer, key)
		v = validator.New(handler, validator.WithLogger(logger), validator.WithMetrics(recorder))
		logger.Info("static validator ready", "issuer", staticIssuer, "kid", key.Kid())
	case issuerRegex == "":
		logger.Warn("TOKENGUARD_ISSUER_REGEX not set; starting a self-hosted demo issuer")
		issuer, err := testissuer.New("demo-kid", 300)
		if err != nil {
			log.Fatalf("start demo issuer: %v", err)
		}
		teardown = issuer.Close

		handler, err := oidc.NewHandler(oidc.NewHTTPClient(nil), []string{"^" + regexp.QuoteMeta(issuer.URL()) + "$"}, 300,
			oidc.WithLogger(logger), oidc.WithMetrics(recorder))
		if err != nil {
			log.Fatalf("build jwks handler: %v", err)
		}
		v = validator.New(handler, validator.WithLogger(logger), validator.WithMetrics(recorder))

		token, err := issuer.MintToken(map[string]any{
			"sub": "demo-user",
			"aud": audience,
			"exp": time.Now().Add(time.Hour).Unix(),
			"nbf": time.Now().Unix(),
		})
		if err != nil {
			log.Fatalf("mint demo token: %v", err)
		}
		logger.Info("demo issuer ready", "issuer", issuer.URL(), "demo_bearer_token", token)
	default:
		handler, err := oidc.NewHandler(oidc.NewHTTPClient(nil), []string{issuerRegex}, 300,
			oidc.WithLogger(logger), oidc.WithMetrics(recorder))
		if err != nil {
			log.Fatalf("build jwks handler: %v", err)
		}
		v = validator.New(handler, validator.WithLogger(logger), validator.WithMetrics(recorder))
	}
	if teardown != nil {
		defer teardown()
	}

	auth := httpmw.New(v, []string{audience}, false, httpmw.WithLogger(logger))

	r := chi.NewRouter()
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.Warn("failed to write health check response", "error", err)
		}
	})
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth)
		r.Get("/whoami", handleWhoami)
	})

	port := os.Getenv("TOKENGUARD_PORT")
	if port == "" {
		port = "8443"
	}
	if _, err := strconv.Atoi(port); err != nil {
		log.Fatalf("invalid TOKENGUARD_PORT %q: %v", port, err)
	}

	fmt.Printf("tokenguard-server starting on port %s\n", port)
	log.Fatal(http.ListenAndServe(":"+port, r))
}

func handleWhoami(w http.ResponseWriter, r *http.Request) {
	token, ok := httpmw.Token(r)
	if !ok {
		http.Error(w, "no token in context", http.StatusInternalServerError)
		return
	}
	key, _ := httpmw.Key(r)

	sub, _ := token.Subject()
	iss, _ := token.Issuer()
	resp := map[string]string{"sub": sub, "iss": iss}
	if key != nil {
		resp["kid"] = key.Kid()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("encode whoami response: %v", err)
	}
}

// farFutureExpiry satisfies jwk.Parse's required expiry argument for a
// statically configured key, which has no Cache-Control-driven lifetime of
// its own.
func farFutureExpiry() int64 {
	return time.Now().AddDate(100, 0, 0).UnixMilli()
}
