package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonwraymond/querycache/registry"
	"github.com/jonwraymond/querycache/resilience"
)

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 4 << 10

// HTTP is a JSON origin rooted at a base URL.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Context: every request is bound to the caller's context.
//   - Errors: non-2xx responses return *StatusError, wrapped with
//     resilience.Permanent unless the status is retryable.
type HTTP struct {
	base    *url.URL
	client  *http.Client
	signer  *TokenSigner
	headers http.Header
}

// Option configures HTTP.
type Option func(*HTTP)

// WithHTTPClient sets the underlying client.
func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTP) {
		if c != nil {
			h.client = c
		}
	}
}

// WithSigner authenticates every request with s.
func WithSigner(s *TokenSigner) Option {
	return func(h *HTTP) { h.signer = s }
}

// WithHeader adds a header to every request.
func WithHeader(name, value string) Option {
	return func(h *HTTP) { h.headers.Add(name, value) }
}

// New creates an HTTP origin. Request paths are resolved against baseURL.
func New(baseURL string, opts ...Option) (*HTTP, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBaseURL, err)
	}
	if !base.IsAbs() {
		return nil, ErrInvalidBaseURL
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	h := &HTTP{
		base:    base,
		client:  &http.Client{Timeout: 30 * time.Second},
		headers: make(http.Header),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h, nil
}

// Do sends body (when non-nil) as JSON and decodes the response into out
// (when non-nil).
func (h *HTTP) Do(ctx context.Context, method, path string, body, out any) error {
	ref, err := url.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return resilience.Permanent(fmt.Errorf("transport: path %q: %w", path, err))
	}
	target := h.base.ResolveReference(ref)

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return resilience.Permanent(fmt.Errorf("transport: encode request: %w", err))
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return resilience.Permanent(fmt.Errorf("transport: %w", err))
	}
	for name, values := range h.headers {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if h.signer != nil {
		if err := h.signer.Apply(req); err != nil {
			return resilience.Permanent(fmt.Errorf("transport: sign request: %w", err))
		}
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return classify(&StatusError{
			Method:     method,
			URL:        target.String(),
			StatusCode: resp.StatusCode,
			Body:       string(data),
		})
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resilience.Permanent(fmt.Errorf("transport: decode %s: %w", target, err))
	}
	return nil
}

// GetJSON fetches path and decodes it as M.
func GetJSON[M any](ctx context.Context, h *HTTP, path string) (M, error) {
	var out M
	err := h.Do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// SendJSON sends body with method to path and decodes the response as M.
func SendJSON[M any](ctx context.Context, h *HTTP, method, path string, body any) (M, error) {
	var out M
	err := h.Do(ctx, method, path, body, &out)
	return out, err
}

// Fetcher returns a query fetch function that GETs the path built from
// each query key.
func Fetcher[M any](h *HTTP, path func(q registry.QueryKey[M]) string) func(context.Context, registry.QueryKey[M]) (M, error) {
	return func(ctx context.Context, q registry.QueryKey[M]) (M, error) {
		return GetJSON[M](ctx, h, path(q))
	}
}
