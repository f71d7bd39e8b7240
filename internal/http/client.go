package http

import (
	"context"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	gulperrors "github.com/ligustah/gulp/internal/errors"
)

// Options configures the HTTP client.
type Options struct {
	// MaxIdleConnsPerHost sets the maximum idle connections per host.
	// Default: 4
	MaxIdleConnsPerHost int

	// DialTimeout bounds establishing the TCP connection.
	// Default: 30s
	DialTimeout time.Duration

	// TLSHandshakeTimeout bounds the TLS handshake.
	// Default: 10s
	TLSHandshakeTimeout time.Duration

	// ResponseHeaderTimeout bounds the wait for response headers once the
	// request is written. It does not limit reading the body.
	// Default: 30s
	ResponseHeaderTimeout time.Duration

	// UserAgent is sent with every request.
	UserAgent string

	// Transport replaces the tuned transport, mostly for tests.
	Transport http.RoundTripper
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		MaxIdleConnsPerHost:   4,
		DialTimeout:           30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		UserAgent:             "gulp",
	}
}

// Response is an open, successful GET response.
type Response struct {
	Body       io.ReadCloser
	StatusCode int

	// ContentLength is the advertised body size, or -1 if unknown.
	ContentLength int64

	ContentType  string
	ETag         string
	LastModified time.Time
}

// Client is an HTTP client for streaming single-file downloads.
type Client struct {
	client *http.Client
	opts   Options
}

// NewClient creates a new HTTP client with the given options. Zero fields
// fall back to DefaultOptions.
func NewClient(opts Options) *Client {
	def := DefaultOptions()
	if opts.MaxIdleConnsPerHost <= 0 {
		opts.MaxIdleConnsPerHost = def.MaxIdleConnsPerHost
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = def.DialTimeout
	}
	if opts.TLSHandshakeTimeout <= 0 {
		opts.TLSHandshakeTimeout = def.TLSHandshakeTimeout
	}
	if opts.ResponseHeaderTimeout <= 0 {
		opts.ResponseHeaderTimeout = def.ResponseHeaderTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = def.UserAgent
	}

	transport := opts.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   opts.DialTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConnsPerHost:   opts.MaxIdleConnsPerHost,
			MaxIdleConns:          opts.MaxIdleConnsPerHost * 2,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   opts.TLSHandshakeTimeout,
			ResponseHeaderTimeout: opts.ResponseHeaderTimeout,
			DisableCompression:    true, // byte counts must match Content-Length
		}
	}

	return &Client{
		// No client timeout: it would cap the body read of large files.
		client: &http.Client{Transport: transport},
		opts:   opts,
	}
}

// Get performs a single GET request. No retries are attempted.
//
// The returned error is classified: InvalidInput if the request cannot be
// built, Canceled if ctx ended, Network for transport failures and
// HTTPStatus for non-2xx responses. On error the body is already closed.
func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, gulperrors.NewInvalidInputError("create request", url, err)
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		if cerr := gulperrors.FromContext(ctx, "get", url); cerr != nil {
			return nil, cerr
		}
		return nil, gulperrors.NewNetworkError("get", url, err)
	}

	if err := checkStatusCode(url, resp.StatusCode); err != nil {
		// Drain a little so the connection can be reused.
		_, _ = io.CopyN(io.Discard, resp.Body, 64*1024)
		resp.Body.Close()
		return nil, err
	}

	r := &Response{
		Body:          resp.Body,
		StatusCode:    resp.StatusCode,
		ContentLength: TotalSize(resp),
		ContentType:   resp.Header.Get("Content-Type"),
		ETag:          cleanETag(resp.Header.Get("ETag")),
	}
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			r.LastModified = t
		}
	}
	return r, nil
}

// TotalSize returns the advertised body size of resp, or -1 when the server
// did not send a usable Content-Length.
func TotalSize(resp *http.Response) int64 {
	if resp.ContentLength >= 0 {
		return resp.ContentLength
	}
	return ParseContentLength(resp.Header.Get("Content-Length"))
}

// ParseContentLength parses a Content-Length header value. Empty,
// non-numeric, negative or overflowing values yield -1.
func ParseContentLength(v string) int64 {
	v = strings.TrimSpace(v)
	if v == "" {
		return -1
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return -1
	}
	return n
}

// checkStatusCode returns a classified error for non-success status codes.
func checkStatusCode(url string, code int) error {
	if code >= 200 && code < 300 {
		return nil
	}
	return gulperrors.NewHTTPStatusError("get", url, code)
}

// cleanETag removes quotes from an ETag value.
func cleanETag(etag string) string {
	etag = strings.TrimPrefix(etag, "W/")
	etag = strings.Trim(etag, `"`)
	return etag
}
