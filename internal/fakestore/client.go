// Package fakestore is a client for the Fake Store REST API
// (https://fakestoreapi.com) and any service exposing the same read-only
// product endpoints.
//
// Failures are reported as *NetworkError, *HTTPError or *ParseError. A missing
// product matches product.ErrNotFound via errors.Is.
package fakestore

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/product"
)

// DefaultBaseURL is the public Fake Store API.
const DefaultBaseURL = "https://fakestoreapi.com"

// maxBodySize caps response bodies; the full public catalog is ~10 KiB.
const maxBodySize = 8 << 20

var _ product.Source = (*Client)(nil)

// Config holds client settings.
type Config struct {
	// BaseURL is the API root; DefaultBaseURL when empty.
	BaseURL string
	// Timeout bounds each request including reading the body. Zero disables it.
	Timeout   time.Duration
	UserAgent string
	// Transport is the underlying round tripper; http.DefaultTransport when nil.
	Transport http.RoundTripper
}

// Client reads products from the remote source.
type Client struct {
	base      *url.URL
	http      *http.Client
	userAgent string
}

// New returns a Client with an otelhttp-instrumented transport. Nil providers
// fall back to the global ones.
func New(cfg Config, tp trace.TracerProvider, mp metric.MeterProvider) (*Client, error) {
	raw := cfg.BaseURL
	if raw == "" {
		raw = DefaultBaseURL
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, errors.Errorf("base url %q: scheme must be http or https", raw)
	}

	var opts []otelhttp.Option
	if tp != nil {
		opts = append(opts, otelhttp.WithTracerProvider(tp))
	}
	if mp != nil {
		opts = append(opts, otelhttp.WithMeterProvider(mp))
	}
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	return &Client{
		base: base,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(transport, opts...),
		},
		userAgent: cfg.UserAgent,
	}, nil
}

// List returns the full catalog in API order.
func (c *Client) List(ctx context.Context) ([]product.Product, error) {
	u, body, err := c.get(ctx, "products")
	if err != nil {
		return nil, err
	}
	products, err := decodeProducts(body)
	if err != nil {
		return nil, &ParseError{URL: u, Err: err}
	}
	return products, nil
}

// GetByID returns one product. The public API answers unknown ids with an
// empty 200 response; that is reported as product.ErrNotFound too.
func (c *Client) GetByID(ctx context.Context, id string) (*product.Product, error) {
	if id == "" || id == "." || id == ".." {
		return nil, errors.Wrapf(product.ErrNotFound, "invalid id %q", id)
	}

	u, body, err := c.get(ctx, "products", url.PathEscape(id))
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, errors.Wrapf(product.ErrNotFound, "GET %s: empty response", u)
	}

	p, err := decodeProduct(jx.DecodeBytes(trimmed))
	if err != nil {
		return nil, &ParseError{URL: u, Err: err}
	}
	return &p, nil
}

// Categories returns the category names known to the source.
func (c *Client) Categories(ctx context.Context) ([]string, error) {
	u, body, err := c.get(ctx, "products", "categories")
	if err != nil {
		return nil, err
	}
	categories, err := decodeStrings(body)
	if err != nil {
		return nil, &ParseError{URL: u, Err: err}
	}
	return categories, nil
}

// Ping checks that the source answers with a well-formed response.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Categories(ctx)
	return err
}

func (c *Client) get(ctx context.Context, elem ...string) (string, []byte, error) {
	u := c.base.JoinPath(elem...).String()
	lg := zctx.From(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return u, nil, &NetworkError{Op: "build request", URL: u, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return u, nil, &NetworkError{Op: "GET", URL: u, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	lg.Debug("Product source response",
		zap.String("url", u),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return u, nil, &HTTPError{StatusCode: resp.StatusCode, URL: u}
	}
	if err != nil {
		return u, nil, &NetworkError{Op: "read body", URL: u, Err: err}
	}
	return u, body, nil
}
