package ingest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/RenatoCabral2022/WhatsWebService/fpstreamer/internal/audio"
	"github.com/RenatoCabral2022/WhatsWebService/fpstreamer/internal/config"
	"github.com/RenatoCabral2022/WhatsWebService/fpstreamer/internal/metrics"
)

// DefaultRetryDelay is the pause after a failed decode call.
const DefaultRetryDelay = time.Second

// Resolver expands a source URL into the candidates to decode.
type Resolver interface {
	Resolve(ctx context.Context, rawURL string) []string
}

// Sink receives captured chunks in order.
type Sink interface {
	Push(Chunk)
}

// CaptureWorker keeps one channel's decoder running. It resolves the source
// into candidates and decodes them in turn, wrapping around, until the
// stream ends gracefully or the worker is stopped.
type CaptureWorker struct {
	channel    config.ChannelConfig
	resolver   Resolver
	decoder    Decoder
	sink       Sink
	logger     *zap.Logger
	retryDelay time.Duration

	stopped  atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once

	chunks    atomic.Int64
	bytesRead atomic.Int64

	mu         sync.Mutex
	state      string
	candidates []string
	current    string
	lastError  string
}

// NewCaptureWorker creates a worker for ch that pushes chunks into sink.
func NewCaptureWorker(ch config.ChannelConfig, resolver Resolver, decoder Decoder, sink Sink, logger *zap.Logger) *CaptureWorker {
	return &CaptureWorker{
		channel:    ch,
		resolver:   resolver,
		decoder:    decoder,
		sink:       sink,
		logger:     logger.With(zap.String("component", "capture")),
		retryDelay: DefaultRetryDelay,
		stopCh:     make(chan struct{}),
		state:      StateIdle,
	}
}

// SetRetryDelay overrides the pause between failed decode calls.
func (w *CaptureWorker) SetRetryDelay(d time.Duration) {
	w.retryDelay = d
}

// Run blocks until the worker stops. Cancelling ctx is a stop request; an
// in-flight decode call is not interrupted and finishes on its own terms.
func (w *CaptureWorker) Run(ctx context.Context) {
	unwatch := context.AfterFunc(ctx, w.Stop)
	defer unwatch()
	defer w.setState(StateStopped)

	decodeCtx := context.WithoutCancel(ctx)

	w.setState(StateResolving)
	candidates := w.resolve(ctx)
	w.setState(StateDecoding)

	for pass := 0; !w.stopped.Load(); pass++ {
		if pass > 0 {
			candidates = w.resolve(ctx)
		}
		for _, target := range candidates {
			if w.stopped.Load() {
				return
			}
			if w.decode(decodeCtx, target) {
				w.Stop()
				return
			}
			w.sleep()
		}
	}
}

// decode runs one decode call and reports whether the stream ended.
func (w *CaptureWorker) decode(ctx context.Context, target string) bool {
	w.mu.Lock()
	w.current = target
	w.mu.Unlock()

	logger := w.logger.With(zap.String("url", target))
	logger.Info("decoding stream")

	res := w.decoder.Decode(ctx, DecodeParams{
		URL:         target,
		Slice:       w.channel.Slice,
		ProgramID:   w.channel.ProgramID,
		OpenTimeout: w.channel.DownloadTimeout,
		ReadTimeout: w.channel.DownloadTimeout,
		Debug:       w.channel.DecoderDebug,
	}, w.onChunk)

	if res.EndOfStream() {
		logger.Info("stream ended, capture stopping", zap.String("message", res.Message))
		return true
	}

	metrics.DecodeErrorsTotal.WithLabelValues(w.channel.ACRID).Inc()
	w.mu.Lock()
	w.lastError = res.Message
	w.mu.Unlock()
	logger.Error("decode failed",
		zap.Int("code", res.Code),
		zap.String("message", res.Message),
	)
	return false
}

func (w *CaptureWorker) onChunk(c Chunk) bool {
	if w.stopped.Load() {
		return false
	}
	if c.IsVideo {
		return true
	}
	if err := audio.ValidateChunk(c.Data); err != nil {
		w.logger.Warn("dropping chunk", zap.Int("bytes", len(c.Data)), zap.Error(err))
		return true
	}
	w.chunks.Add(1)
	w.bytesRead.Add(int64(len(c.Data)))
	metrics.ChunksCapturedTotal.WithLabelValues(w.channel.ACRID).Inc()
	w.sink.Push(c)
	return !w.stopped.Load()
}

func (w *CaptureWorker) resolve(ctx context.Context) []string {
	candidates := w.resolver.Resolve(ctx, w.channel.URL)
	if len(candidates) == 0 {
		candidates = []string{w.channel.URL}
	}
	w.mu.Lock()
	w.candidates = candidates
	w.mu.Unlock()
	w.logger.Debug("resolved source", zap.Strings("candidates", candidates))
	return candidates
}

func (w *CaptureWorker) sleep() {
	t := time.NewTimer(w.retryDelay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-w.stopCh:
	}
}

// Stop asks the worker to stop. Safe to call more than once.
func (w *CaptureWorker) Stop() {
	w.stopped.Store(true)
	w.stopOnce.Do(func() { close(w.stopCh) })
}

// State returns the current lifecycle state.
func (w *CaptureWorker) State() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Status returns a snapshot of the worker.
func (w *CaptureWorker) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Status{
		State:      w.state,
		SourceURL:  w.channel.URL,
		Candidates: append([]string(nil), w.candidates...),
		Current:    w.current,
		Chunks:     w.chunks.Load(),
		BytesRead:  w.bytesRead.Load(),
		LastError:  w.lastError,
	}
}

func (w *CaptureWorker) setState(s string) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}
