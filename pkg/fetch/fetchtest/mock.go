// Package fetchtest provides an in-memory fetch.HTTPFetcher for tests that
// need deterministic multi-host scenarios without real listeners.
package fetchtest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/Sriram-PR/recon-crawler/pkg/fetch"
	"github.com/Sriram-PR/recon-crawler/pkg/utils"
)

type route struct {
	status int
	header http.Header
	body   []byte
	err    error
}

// MockFetcher serves canned responses keyed by exact URL. Unknown URLs answer 404.
type MockFetcher struct {
	mu     sync.Mutex
	routes map[string]route
	calls  []string
}

// NewMockFetcher creates an empty MockFetcher
func NewMockFetcher() *MockFetcher {
	return &MockFetcher{routes: make(map[string]route)}
}

// Set registers a response for rawURL
func (m *MockFetcher) Set(rawURL string, status int, body string) *MockFetcher {
	return m.SetWithHeader(rawURL, status, body, nil)
}

// SetWithHeader registers a response with headers for rawURL
func (m *MockFetcher) SetWithHeader(rawURL string, status int, body string, header http.Header) *MockFetcher {
	if header == nil {
		header = http.Header{}
	}
	m.mu.Lock()
	m.routes[rawURL] = route{status: status, header: header, body: []byte(body)}
	m.mu.Unlock()
	return m
}

// SetRedirect registers a redirect answer for rawURL
func (m *MockFetcher) SetRedirect(rawURL string, status int, location string) *MockFetcher {
	h := http.Header{}
	h.Set("Location", location)
	return m.SetWithHeader(rawURL, status, "", h)
}

// SetError makes fetches of rawURL fail with err
func (m *MockFetcher) SetError(rawURL string, err error) *MockFetcher {
	m.mu.Lock()
	m.routes[rawURL] = route{err: err}
	m.mu.Unlock()
	return m
}

// Fetch implements fetch.HTTPFetcher
func (m *MockFetcher) Fetch(ctx context.Context, rawURL string) (*fetch.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrRequestCreation, err)
	}

	m.mu.Lock()
	m.calls = append(m.calls, rawURL)
	r, ok := m.routes[rawURL]
	m.mu.Unlock()

	if !ok {
		return &fetch.Response{URL: u, StatusCode: http.StatusNotFound, Status: "404 Not Found", Header: http.Header{}}, nil
	}
	if r.err != nil {
		return nil, r.err
	}
	return &fetch.Response{
		URL:        u,
		StatusCode: r.status,
		Status:     fmt.Sprintf("%d %s", r.status, http.StatusText(r.status)),
		Header:     r.header.Clone(),
		Body:       append([]byte(nil), r.body...),
	}, nil
}

// Calls returns every requested URL in request order
func (m *MockFetcher) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// CallCount returns how often rawURL was requested
func (m *MockFetcher) CallCount(rawURL string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == rawURL {
			n++
		}
	}
	return n
}
