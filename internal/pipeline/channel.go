package pipeline

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/RenatoCabral2022/WhatsWebService/fpstreamer/internal/config"
	"github.com/RenatoCabral2022/WhatsWebService/fpstreamer/internal/fingerprint"
	"github.com/RenatoCabral2022/WhatsWebService/fpstreamer/internal/ingest"
	"github.com/RenatoCabral2022/WhatsWebService/fpstreamer/internal/metrics"
	"github.com/RenatoCabral2022/WhatsWebService/fpstreamer/internal/upload"
)

// Channel pipeline states.
const (
	StateIdle     = "idle"
	StateRunning  = "running"
	StateStopping = "stopping"
	StateStopped  = "stopped"
)

// Deps are the collaborators shared by every channel of a group.
type Deps struct {
	Resolver  ingest.Resolver
	Decoder   ingest.Decoder
	Generator fingerprint.Generator
	// Uploader is optional; by default each channel gets its own with the
	// channel's upload timeout.
	Uploader Uploader
}

// Channel owns one capture worker, one fingerprint worker and the queue
// between them.
type Channel struct {
	cfg     config.ChannelConfig
	queue   *Queue
	capture *ingest.CaptureWorker
	fp      *FingerprintWorker
	logger  *zap.Logger

	mu     sync.Mutex
	state  string
	cancel context.CancelFunc
	done   chan struct{}
}

// NewChannel builds the pipeline for cfg without starting it.
func NewChannel(cfg config.ChannelConfig, deps Deps, logger *zap.Logger) *Channel {
	logger = logger.With(zap.String("channel", cfg.ACRID))
	up := deps.Uploader
	if up == nil {
		up = upload.New(cfg.UploadTimeout, logger)
	}
	q := NewQueue(cfg.ACRID)
	return &Channel{
		cfg:     cfg,
		queue:   q,
		capture: ingest.NewCaptureWorker(cfg, deps.Resolver, deps.Decoder, q, logger),
		fp:      NewFingerprintWorker(cfg, q, deps.Generator, up, logger),
		logger:  logger,
		state:   StateIdle,
		done:    make(chan struct{}),
	}
}

// Start launches both workers and returns immediately. Cancelling ctx has
// the same effect as Stop. Starting twice is a no-op.
func (c *Channel) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateIdle {
		return
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.state = StateRunning
	metrics.ActivePipelines.Inc()
	c.logger.Info("channel pipeline starting", zap.String("url", c.cfg.URL))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		// Capture ending on its own lets the fingerprint worker drain
		// what is already queued.
		defer c.queue.Close()
		c.capture.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		c.fp.Run(ctx)
	}()
	go func() {
		wg.Wait()
		c.cancel()
		c.mu.Lock()
		c.state = StateStopped
		c.mu.Unlock()
		metrics.ActivePipelines.Dec()
		c.logger.Info("channel pipeline stopped")
		close(c.done)
	}()
}

// Stop signals both workers. It does not wait; use Wait for that.
func (c *Channel) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateIdle:
		c.state = StateStopped
		close(c.done)
	case StateRunning:
		c.state = StateStopping
		c.capture.Stop()
		c.cancel()
	}
}

// Wait blocks until both workers have exited.
func (c *Channel) Wait() {
	<-c.done
}

// Done is closed once both workers have exited.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// State returns the pipeline state.
func (c *Channel) State() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ChannelStatus is a snapshot of one channel pipeline.
type ChannelStatus struct {
	ACRID       string        `json:"acrId"`
	StreamID    string        `json:"streamId,omitempty"`
	State       string        `json:"state"`
	QueueDepth  int           `json:"queueDepth"`
	Capture     ingest.Status `json:"capture"`
	Fingerprint WorkerStatus  `json:"fingerprint"`
}

// Status can be called from any goroutine.
func (c *Channel) Status() ChannelStatus {
	return ChannelStatus{
		ACRID:       c.cfg.ACRID,
		StreamID:    c.cfg.StreamID,
		State:       c.State(),
		QueueDepth:  c.queue.Len(),
		Capture:     c.capture.Status(),
		Fingerprint: c.fp.Status(),
	}
}
