// Package channels fetches the stream list from the signed remote channel
// listing API.
package channels

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/RenatoCabral2022/WhatsWebService/fpstreamer/internal/config"
	"github.com/RenatoCabral2022/WhatsWebService/fpstreamer/internal/httpclient"
)

var (
	ErrUnexpectedStatus = errors.New("unexpected status from channel api")
	ErrMalformedListing = errors.New("malformed channel listing")
)

// Fetcher performs a GET and returns the body of a 2xx response.
type Fetcher interface {
	GetBody(ctx context.Context, rawURL string, headers http.Header) ([]byte, error)
}

// Client lists the channels of one bucket.
type Client struct {
	fetcher Fetcher
	remote  config.RemoteConfig
	logger  *zap.Logger
	now     func() time.Time
}

// NewClient creates a client for the bucket named in remote.
func NewClient(fetcher Fetcher, remote config.RemoteConfig, logger *zap.Logger) *Client {
	return &Client{
		fetcher: fetcher,
		remote:  remote,
		logger:  logger,
		now:     time.Now,
	}
}

// Item is one channel object in the listing.
type Item struct {
	URL        string          `json:"url"`
	ACRID      string          `json:"acr_id"`
	ID         json.RawMessage `json:"id"`
	ProgramID  *int            `json:"program_id"`
	Timeshift  int             `json:"timeshift"`
	Host       string          `json:"host"`
	Port       int             `json:"port"`
	RecordHost string          `json:"record_host"`
	RecordPort int             `json:"record_port"`
}

type listing struct {
	Items []Item `json:"items"`
}

// List fetches the bucket's channels and maps them to stream entries.
func (c *Client) List(ctx context.Context) ([]config.StreamEntry, error) {
	path := "/v1/buckets/" + url.PathEscape(c.remote.Bucket) + "/channels"
	headers := SignedHeaders(http.MethodGet, path, c.remote.AccessKey, c.remote.AccessSecret, c.remote.SignatureVersion, c.now())

	body, err := c.fetcher.GetBody(ctx, strings.TrimRight(c.remote.Endpoint, "/")+path, headers)
	if err != nil {
		var statusErr *httpclient.StatusError
		if errors.As(err, &statusErr) {
			return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, statusErr.Code)
		}
		return nil, fmt.Errorf("fetching channel list: %w", err)
	}

	var l listing
	if err := json.Unmarshal(body, &l); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedListing, err)
	}
	if l.Items == nil {
		return nil, fmt.Errorf("%w: missing items", ErrMalformedListing)
	}

	entries := make([]config.StreamEntry, 0, len(l.Items))
	for _, it := range l.Items {
		entries = append(entries, it.entry())
	}
	c.logger.Info("fetched remote channel list",
		zap.String("bucket", c.remote.Bucket),
		zap.Int("channels", len(entries)),
	)
	return entries, nil
}

func (it Item) entry() config.StreamEntry {
	return config.StreamEntry{
		URL:        it.URL,
		ACRID:      it.ACRID,
		ID:         rawID(it.ID),
		ProgramID:  it.ProgramID,
		Timeshift:  it.Timeshift,
		Host:       it.Host,
		Port:       it.Port,
		RecordHost: it.RecordHost,
		RecordPort: it.RecordPort,
	}
}

// rawID accepts both string and numeric ids.
func rawID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// Sign returns the base64 HMAC-SHA1 of the request description.
func Sign(method, path, accessKey, secret, version, timestamp string) string {
	msg := strings.Join([]string{method, path, accessKey, version, timestamp}, "\n")
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write([]byte(msg))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// SignedHeaders builds the authentication headers for one request.
func SignedHeaders(method, path, accessKey, secret, version string, now time.Time) http.Header {
	timestamp := strconv.FormatFloat(float64(now.UnixMilli())/1000, 'f', 3, 64)
	h := make(http.Header)
	h.Set("access-key", accessKey)
	h.Set("signature-version", version)
	h.Set("signature", Sign(method, path, accessKey, secret, version, timestamp))
	h.Set("timestamp", timestamp)
	return h
}
