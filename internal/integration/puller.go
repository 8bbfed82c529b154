// Package integration defines the Syncer contract the periodic drivers run
// and a generic HTTP puller for integrations that expose a fetch endpoint.
package integration

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Syncer pulls fresh state from one external integration. The resilience
// core treats it as opaque: it either succeeds or fails with an error.
type Syncer interface {
	Name() string
	Sync(ctx context.Context) error
}

// SyncFunc adapts a plain function to the Syncer interface.
type SyncFunc struct {
	SyncerName string
	Fn         func(ctx context.Context) error
}

func (s SyncFunc) Name() string                   { return s.SyncerName }
func (s SyncFunc) Sync(ctx context.Context) error { return s.Fn(ctx) }

// HTTPPuller is a Syncer that GETs the integration's URL and treats any
// non-2xx response as a failure.
type HTTPPuller struct {
	name   string
	url    string
	client *http.Client
}

// NewHTTPPuller creates a puller. timeout <= 0 defaults to 30s.
func NewHTTPPuller(name, url string, timeout time.Duration) *HTTPPuller {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPPuller{
		name:   name,
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Name returns the integration name.
func (p *HTTPPuller) Name() string { return p.name }

// Sync performs one pull.
func (p *HTTPPuller) Sync(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return fmt.Errorf("pull %s: %w", p.name, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("pull %s: %w", p.name, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("pull %s: unexpected status %d", p.name, resp.StatusCode)
	}
	return nil
}
