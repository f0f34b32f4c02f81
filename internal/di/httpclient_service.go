package di

import (
	"fmt"
	"net/http"

	"github.com/samber/do/v2"
	"golang.org/x/net/http2"
)

// HTTPClientService wraps the shared HTTP client. The fetch handler and
// the realtime stream share one transport, so both endpoints reuse a
// single dial pool.
type HTTPClientService struct {
	Client *http.Client
}

// NewHTTPClient creates the shared HTTP/2-capable client. The client
// itself carries no timeout: the fetch handler bounds its calls with a
// per-request context, and the realtime stream is deliberately unbounded.
func NewHTTPClient(_ do.Injector) (*HTTPClientService, error) {
	transport := &http.Transport{}
	if err := http2.ConfigureTransport(transport); err != nil {
		return nil, fmt.Errorf("failed to configure http2 transport: %w", err)
	}

	return &HTTPClientService{Client: &http.Client{Transport: transport}}, nil
}

// Shutdown implements do.Shutdowner, closing idle connections.
func (s *HTTPClientService) Shutdown() error {
	s.Client.CloseIdleConnections()
	return nil
}
