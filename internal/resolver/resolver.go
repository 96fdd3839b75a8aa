// Package resolver expands a configured source URL into the concrete media
// URLs a decoder can open.
package resolver

import (
	"context"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/RenatoCabral2022/WhatsWebService/fpstreamer/internal/httpclient"
	"github.com/RenatoCabral2022/WhatsWebService/fpstreamer/internal/metrics"
)

// Fetcher retrieves a playlist body.
type Fetcher interface {
	GetBody(ctx context.Context, rawURL string, headers http.Header) ([]byte, error)
}

// NewFetcher returns the HTTP client used for playlist downloads. Any failed
// fetch, whatever the status, is tried once more.
func NewFetcher(timeout time.Duration, logger *zap.Logger) *httpclient.Client {
	cfg := httpclient.DefaultConfig()
	cfg.Timeout = timeout
	cfg.RetryAttempts = 1
	cfg.RetryAllStatuses = true
	return httpclient.New(cfg, logger)
}

// Resolver turns source URLs into candidate lists. Resolve never fails:
// any problem degrades to the original URL.
type Resolver struct {
	fetcher      Fetcher
	logger       *zap.Logger
	blockPrivate bool
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithBlockPrivateTargets drops playlist entries that point at private or
// reserved addresses.
func WithBlockPrivateTargets(block bool) Option {
	return func(r *Resolver) { r.blockPrivate = block }
}

// New creates a Resolver using fetcher for playlist downloads.
func New(fetcher Fetcher, logger *zap.Logger, opts ...Option) *Resolver {
	r := &Resolver{fetcher: fetcher, logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns a non-empty, ordered list of URLs to try for rawURL.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) []string {
	logger := r.logger.With(zap.String("url", rawURL))

	if mms := ExpandMMS(rawURL); len(mms) > 0 {
		return mms
	}

	var (
		candidates []string
		err        error
	)
	switch ext := extension(rawURL); ext {
	case ".m3u":
		candidates, err = r.fetchAndParse(ctx, rawURL, func(b []byte) ([]string, error) { return ParseM3U(b), nil })
	case ".pls":
		candidates, err = r.fetchAndParse(ctx, rawURL, func(b []byte) ([]string, error) { return ParsePLS(b), nil })
	case ".xspf":
		candidates, err = r.fetchAndParse(ctx, rawURL, ParseXSPF)
	default:
		return []string{rawURL}
	}

	if err != nil {
		metrics.ResolveFailuresTotal.Inc()
		logger.Error("playlist resolution failed, using source url", zap.Error(err))
		return []string{rawURL}
	}

	if r.blockPrivate {
		candidates = r.filterPrivate(candidates, logger)
	}
	if len(candidates) == 0 {
		metrics.ResolveFailuresTotal.Inc()
		logger.Warn("playlist has no usable entries, using source url")
		return []string{rawURL}
	}

	logger.Info("playlist resolved", zap.Strings("candidates", candidates))
	return candidates
}

func (r *Resolver) fetchAndParse(ctx context.Context, rawURL string, parse func([]byte) ([]string, error)) ([]string, error) {
	body, err := r.fetcher.GetBody(ctx, rawURL, nil)
	if err != nil {
		return nil, err
	}
	return parse(body)
}

func (r *Resolver) filterPrivate(candidates []string, logger *zap.Logger) []string {
	kept := candidates[:0:0]
	for _, c := range candidates {
		if err := ValidateURL(c); err != nil {
			logger.Warn("dropping playlist entry", zap.String("entry", c), zap.Error(err))
			continue
		}
		kept = append(kept, c)
	}
	return kept
}

func extension(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return strings.ToLower(path.Ext(u.Path))
}
