// Package httpclient provides the small HTTP client used for playlist and
// channel-list fetches: bounded retries, transparent decompression and
// structured logging with credential obfuscation.
package httpclient

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"go.uber.org/zap"
)

var ErrMaxRetries = errors.New("max retries exceeded")

const (
	DefaultTimeout              = 10 * time.Second
	DefaultRetryAttempts        = 1
	DefaultRetryDelay           = 500 * time.Millisecond
	DefaultAcceptEncodingHeader = "gzip, deflate, br"
	DefaultUserAgentHeader      = "fpstreamer/1.0"

	// MaxBodySize caps how much of a response body GetBody will read.
	MaxBodySize = 4 << 20
)

const (
	HeaderAcceptEncoding  = "Accept-Encoding"
	HeaderContentEncoding = "Content-Encoding"
	HeaderUserAgent       = "User-Agent"

	EncodingGzip    = "gzip"
	EncodingDeflate = "deflate"
	EncodingBrotli  = "br"
)

// Config holds the configuration for the HTTP client.
type Config struct {
	// Timeout is the overall per-attempt request timeout.
	Timeout time.Duration

	// RetryAttempts is the number of retries after the first attempt.
	RetryAttempts int

	// RetryDelay is the pause between attempts.
	RetryDelay time.Duration

	// RetryAllStatuses retries every non-2xx response, not just the
	// transient ones. The last response is returned as is.
	RetryAllStatuses bool

	UserAgent string

	// BaseClient is the underlying http.Client to use.
	// If nil, a default client is created.
	BaseClient *http.Client
}

// DefaultConfig returns a Config with one retry, matching how playlists are fetched.
func DefaultConfig() Config {
	return Config{
		Timeout:       DefaultTimeout,
		RetryAttempts: DefaultRetryAttempts,
		RetryDelay:    DefaultRetryDelay,
		UserAgent:     DefaultUserAgentHeader,
	}
}

// Client is an HTTP client with retry support.
type Client struct {
	config Config
	client *http.Client
	logger *zap.Logger
}

// New creates a client with the given configuration.
func New(cfg Config, logger *zap.Logger) *Client {
	baseClient := cfg.BaseClient
	if baseClient == nil {
		baseClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		config: cfg,
		client: baseClient,
		logger: logger,
	}
}

// Do executes a request, retrying transport errors and retryable status codes.
// The request must have no body or a body that can be replayed via GetBody.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if req.Header.Get(HeaderUserAgent) == "" && c.config.UserAgent != "" {
		req.Header.Set(HeaderUserAgent, c.config.UserAgent)
	}
	if req.Header.Get(HeaderAcceptEncoding) == "" {
		req.Header.Set(HeaderAcceptEncoding, DefaultAcceptEncodingHeader)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.RetryAttempts; attempt++ {
		if attempt > 0 {
			c.logger.Debug("retrying request",
				zap.Int("attempt", attempt),
				zap.String("url", obfuscateURL(req.URL)),
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.config.RetryDelay):
			}
		}

		start := time.Now()
		resp, err := c.client.Do(req.Clone(ctx))
		duration := time.Since(start)

		if err != nil {
			lastErr = err
			c.logger.Warn("request failed",
				zap.String("url", obfuscateURL(req.URL)),
				zap.String("method", req.Method),
				zap.Duration("duration", duration),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil, err
			}
			continue
		}

		if isRetryableStatus(resp.StatusCode) {
			lastErr = fmt.Errorf("retryable status code: %d", resp.StatusCode)
			c.logger.Warn("retryable status code",
				zap.String("url", obfuscateURL(req.URL)),
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt),
			)
			resp.Body.Close()
			continue
		}

		if c.config.RetryAllStatuses && !isSuccess(resp.StatusCode) && attempt < c.config.RetryAttempts {
			c.logger.Warn("unsuccessful status code",
				zap.String("url", obfuscateURL(req.URL)),
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt),
			)
			resp.Body.Close()
			continue
		}

		c.logger.Debug("request completed",
			zap.String("url", obfuscateURL(req.URL)),
			zap.Int("status", resp.StatusCode),
			zap.Duration("duration", duration),
		)
		resp.Body = c.wrapDecompression(resp)
		return resp, nil
	}

	return nil, fmt.Errorf("%w: %v", ErrMaxRetries, lastErr)
}

// Get performs a GET request with optional extra headers.
func (c *Client) Get(ctx context.Context, rawURL string, headers http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return c.Do(ctx, req)
}

// GetBody fetches a URL and returns its decoded body. Non-2xx responses are errors.
func (c *Client) GetBody(ctx context.Context, rawURL string, headers http.Header) ([]byte, error) {
	resp, err := c.Get(ctx, rawURL, headers)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, &StatusError{Code: resp.StatusCode, Body: string(snippet)}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	return body, nil
}

// StatusError reports a non-success HTTP status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

func (c *Client) wrapDecompression(resp *http.Response) io.ReadCloser {
	encoding := resp.Header.Get(HeaderContentEncoding)
	if encoding == "" {
		return resp.Body
	}

	switch strings.ToLower(encoding) {
	case EncodingGzip:
		reader, err := gzip.NewReader(resp.Body)
		if err != nil {
			c.logger.Warn("failed to create gzip reader, returning raw body", zap.Error(err))
			return resp.Body
		}
		return &decompressReader{reader: reader, closer: resp.Body}
	case EncodingDeflate:
		return &decompressReader{reader: flate.NewReader(resp.Body), closer: resp.Body}
	case EncodingBrotli:
		return &decompressReader{reader: brotli.NewReader(resp.Body), closer: resp.Body}
	default:
		return resp.Body
	}
}

type decompressReader struct {
	reader io.Reader
	closer io.Closer
}

func (d *decompressReader) Read(p []byte) (int, error) {
	return d.reader.Read(p)
}

func (d *decompressReader) Close() error {
	if closer, ok := d.reader.(io.Closer); ok {
		closer.Close()
	}
	return d.closer.Close()
}

func isSuccess(code int) bool {
	return code >= 200 && code <= 299
}

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// obfuscateURL hides credentials in userinfo and common secret query parameters.
func obfuscateURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	sanitized := *u
	if sanitized.User != nil {
		sanitized.User = url.User("***")
	}
	query := sanitized.Query()
	for _, param := range []string{"password", "pass", "token", "key", "secret", "signature"} {
		if query.Has(param) {
			query.Set(param, "***")
		}
	}
	sanitized.RawQuery = query.Encode()
	return sanitized.String()
}
