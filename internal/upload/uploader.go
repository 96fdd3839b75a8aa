package upload

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/RenatoCabral2022/WhatsWebService/fpstreamer/internal/metrics"
)

// Upload kinds, used in logs and metric labels.
const (
	KindLive   = "live"
	KindRecord = "record"
)

// Target is a fingerprint backend address.
type Target struct {
	Host string
	Port int
}

func (t Target) String() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// Uploader sends one framed message per TCP connection and reads one reply.
// It never retries; the caller decides what a failure means for its buffers.
type Uploader struct {
	timeout time.Duration
	logger  *zap.Logger
}

// New creates an Uploader. timeout bounds connect, write and read together.
func New(timeout time.Duration, logger *zap.Logger) *Uploader {
	return &Uploader{timeout: timeout, logger: logger}
}

// UploadLive sends a live fingerprint for the channel signature.
func (u *Uploader) UploadLive(target Target, signature string, fp []byte) error {
	msg, err := EncodeLive(signature, fp)
	if err != nil {
		return err
	}
	logger := u.logger.With(
		zap.String("channel", signature),
		zap.Int("fpLen", len(fp)),
	)
	return u.exchange(KindLive, target, msg, logger)
}

// UploadRecord sends a record fingerprint tagged with detail ("<stream id>:<unix ts>").
func (u *Uploader) UploadRecord(target Target, signature, detail string, fp []byte) error {
	msg, err := EncodeRecord(signature, detail, fp)
	if err != nil {
		return err
	}
	logger := u.logger.With(
		zap.String("channel", signature),
		zap.Int("fpLen", len(fp)),
		zap.String("detail", detail),
	)
	return u.exchange(KindRecord, target, msg, logger)
}

func (u *Uploader) exchange(kind string, target Target, msg []byte, logger *zap.Logger) error {
	start := time.Now()
	resp, err := u.roundTrip(target, msg)
	ms := float64(time.Since(start).Microseconds()) / 1000.0
	metrics.UploadLatency.WithLabelValues(kind).Observe(ms)

	if err != nil {
		metrics.UploadsTotal.WithLabelValues(kind, "error").Inc()
		logger.Error("upload failed",
			zap.String("kind", kind),
			zap.String("server", target.String()),
			zap.Error(err),
		)
		return err
	}

	metrics.UploadsTotal.WithLabelValues(kind, "success").Inc()
	logger.Info("upload complete",
		zap.String("kind", kind),
		zap.Int32("status", resp.Status),
		zap.String("message", resp.Message),
		zap.Float64("ms", ms),
	)
	return nil
}

func (u *Uploader) roundTrip(target Target, msg []byte) (*Response, error) {
	conn, err := net.DialTimeout("tcp", target.String(), u.timeout)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", target, err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(u.timeout)); err != nil {
		return nil, fmt.Errorf("set deadline: %w", err)
	}
	if _, err := conn.Write(msg); err != nil {
		return nil, fmt.Errorf("write: %w", err)
	}
	return ReadResponse(conn)
}
