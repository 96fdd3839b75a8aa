package pipeline

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/RenatoCabral2022/WhatsWebService/fpstreamer/internal/config"
	"github.com/RenatoCabral2022/WhatsWebService/fpstreamer/internal/fingerprint"
	"github.com/RenatoCabral2022/WhatsWebService/fpstreamer/internal/ingest"
	"github.com/RenatoCabral2022/WhatsWebService/fpstreamer/internal/metrics"
	"github.com/RenatoCabral2022/WhatsWebService/fpstreamer/internal/upload"
	"github.com/RenatoCabral2022/WhatsWebService/fpstreamer/internal/window"
)

// Uploader delivers fingerprints to the backend.
type Uploader interface {
	UploadLive(target upload.Target, signature string, fp []byte) error
	UploadRecord(target upload.Target, signature, detail string, fp []byte) error
}

// FingerprintWorker drains a channel's queue into the live and record
// windows and uploads fingerprints of them.
//
// After a successful live upload the live window shrinks to the pre-roll;
// after a failure it keeps growing, up to its maximum, so the next attempt
// carries more audio. A record window is uploaded once it spans the record
// interval and is emptied on success.
type FingerprintWorker struct {
	channel   config.ChannelConfig
	queue     *Queue
	generator fingerprint.Generator
	uploader  Uploader
	logger    *zap.Logger
	now       func() time.Time

	live   *window.Window
	record *window.Window

	liveBytes         atomic.Int64
	recordBytes       atomic.Int64
	liveUploads       atomic.Int64
	liveFailures      atomic.Int64
	recordUploads     atomic.Int64
	recordFailures    atomic.Int64
	emptyFingerprints atomic.Int64
}

// NewFingerprintWorker creates a worker for ch reading from queue.
func NewFingerprintWorker(ch config.ChannelConfig, queue *Queue, gen fingerprint.Generator, up Uploader, logger *zap.Logger) *FingerprintWorker {
	w := &FingerprintWorker{
		channel:   ch,
		queue:     queue,
		generator: gen,
		uploader:  up,
		logger:    logger.With(zap.String("component", "fingerprint")),
		now:       time.Now,
		live:      window.NewSeconds(ch.MaxWindow),
	}
	if ch.RecordEnabled() {
		w.record = window.NewSeconds(ch.RecordMaxWindow)
	}
	return w
}

// Run processes chunks until ctx is done or the queue is closed and empty.
func (w *FingerprintWorker) Run(ctx context.Context) {
	w.logger.Info("fingerprint worker running")
	defer w.logger.Info("fingerprint worker stopped")

	for ctx.Err() == nil {
		chunk, err := w.queue.Pop(ctx)
		if err != nil {
			return
		}
		w.process(ctx, chunk)
	}
}

func (w *FingerprintWorker) process(ctx context.Context, chunk ingest.Chunk) {
	w.live.Append(chunk.Data)
	if w.live.Len() >= w.channel.FingerprintWindowBytes() {
		w.uploadLive(ctx)
	}
	w.liveBytes.Store(int64(w.live.Len()))
	metrics.LiveWindowBytes.WithLabelValues(w.channel.ACRID).Set(float64(w.live.Len()))

	if w.record == nil {
		return
	}
	w.record.Append(chunk.Data)
	if w.record.Len() >= w.channel.RecordIntervalBytes() {
		w.uploadRecord(ctx)
	}
	w.recordBytes.Store(int64(w.record.Len()))
	metrics.RecordWindowBytes.WithLabelValues(w.channel.ACRID).Set(float64(w.record.Len()))
}

func (w *FingerprintWorker) uploadLive(ctx context.Context) {
	uploaded := true
	if fp := w.fingerprint(ctx, upload.KindLive, w.live.Snapshot()); len(fp) > 0 {
		target := upload.Target(w.channel.Server)
		if err := w.uploader.UploadLive(target, w.channel.ACRID, fp); err != nil {
			uploaded = false
			w.liveFailures.Add(1)
		} else {
			w.liveUploads.Add(1)
		}
	}

	if uploaded {
		w.live.KeepLast(w.channel.PreRollBytes())
	} else {
		w.live.Cap()
	}
}

func (w *FingerprintWorker) uploadRecord(ctx context.Context) {
	fp := w.fingerprint(ctx, upload.KindRecord, w.record.Snapshot())
	if len(fp) > 0 {
		detail := w.channel.StreamID + ":" + strconv.FormatInt(w.now().Unix(), 10)
		target := upload.Target(w.channel.RecordServer)
		if err := w.uploader.UploadRecord(target, w.channel.ACRID, detail, fp); err == nil {
			w.recordUploads.Add(1)
			w.record.Reset()
			return
		}
		w.recordFailures.Add(1)
	}
	w.record.Cap()
}

// fingerprint returns nil when the generator fails, times out or has nothing
// to say; all mean there is nothing to upload this cycle.
func (w *FingerprintWorker) fingerprint(ctx context.Context, kind string, pcm []byte) []byte {
	if w.channel.FingerprintTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.channel.FingerprintTimeout)
		defer cancel()
	}
	fp, err := w.generator.Create(ctx, pcm, false)
	if err != nil {
		w.logger.Warn("fingerprint failed",
			zap.String("kind", kind),
			zap.Int("pcmLen", len(pcm)),
			zap.Error(err),
		)
		fp = nil
	}
	if len(fp) == 0 {
		w.emptyFingerprints.Add(1)
		metrics.FingerprintsEmptyTotal.WithLabelValues(kind).Inc()
	}
	return fp
}

// WorkerStatus is a snapshot of a fingerprint worker.
type WorkerStatus struct {
	LiveWindowBytes   int64 `json:"liveWindowBytes"`
	RecordWindowBytes int64 `json:"recordWindowBytes"`
	LiveUploads       int64 `json:"liveUploads"`
	LiveFailures      int64 `json:"liveFailures"`
	RecordUploads     int64 `json:"recordUploads"`
	RecordFailures    int64 `json:"recordFailures"`
	EmptyFingerprints int64 `json:"emptyFingerprints"`
}

// Status can be called from any goroutine.
func (w *FingerprintWorker) Status() WorkerStatus {
	return WorkerStatus{
		LiveWindowBytes:   w.liveBytes.Load(),
		RecordWindowBytes: w.recordBytes.Load(),
		LiveUploads:       w.liveUploads.Load(),
		LiveFailures:      w.liveFailures.Load(),
		RecordUploads:     w.recordUploads.Load(),
		RecordFailures:    w.recordFailures.Load(),
		EmptyFingerprints: w.emptyFingerprints.Load(),
	}
}
