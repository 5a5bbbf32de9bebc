package oidc

import (
	"context"
	"net/http"
	"time"
)

// HTTPGetter is the outbound HTTP GET capability the handler is built
// against, an external collaborator: tokenguard depends only on this
// narrow interface, not on any particular client implementation, so
// callers can substitute retries, tracing, or a fake transport in tests.
type HTTPGetter interface {
	Get(ctx context.Context, url string) (*http.Response, error)
}

// stdlibClient adapts *http.Client to HTTPGetter.
type stdlibClient struct {
	client *http.Client
}

// NewHTTPClient wraps an *http.Client as an HTTPGetter. If client is nil, a
// client with a 10 second timeout is used.
func NewHTTPClient(client *http.Client) HTTPGetter {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &stdlibClient{client: client}
}

func (s *stdlibClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return s.client.Do(req)
}
