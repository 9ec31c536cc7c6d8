package connectivity

import (
	"context"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

// Provider reports whether the server is reachable.
type Provider interface {
	Online(ctx context.Context) bool
}

// Static is a Provider with a forced answer. Used for --offline and tests.
type Static struct {
	online atomic.Bool
}

// NewStatic creates a Static provider.
func NewStatic(online bool) *Static {
	s := &Static{}
	s.online.Store(online)
	return s
}

// Online returns the forced answer.
func (s *Static) Online(context.Context) bool {
	return s.online.Load()
}

// Set changes the forced answer.
func (s *Static) Set(online bool) {
	s.online.Store(online)
}

// DefaultProbeTimeout bounds a single probe.
const DefaultProbeTimeout = 2 * time.Second

// HTTPProbe reports online when a HEAD of the health endpoint gets any
// answer below 500.
type HTTPProbe struct {
	url    string
	client *http.Client
}

// NewHTTPProbe probes baseURL + path.
func NewHTTPProbe(baseURL, path string) *HTTPProbe {
	return &HTTPProbe{
		url:    strings.TrimRight(baseURL, "/") + path,
		client: &http.Client{Timeout: DefaultProbeTimeout},
	}
}

// Online performs the probe.
func (p *HTTPProbe) Online(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}
