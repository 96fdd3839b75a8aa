package ingest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/RenatoCabral2022/WhatsWebService/fpstreamer/internal/config"
)

type staticResolver struct {
	mu    sync.Mutex
	urls  []string
	calls int
}

func (r *staticResolver) Resolve(_ context.Context, _ string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.urls
}

func (r *staticResolver) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// scriptedDecoder replays one step per call; the last step repeats.
type scriptedDecoder struct {
	mu      sync.Mutex
	steps   []decodeStep
	targets []string
}

type decodeStep struct {
	chunks [][]byte
	result Result
}

func (d *scriptedDecoder) Decode(_ context.Context, p DecodeParams, onChunk ChunkFunc) Result {
	d.mu.Lock()
	d.targets = append(d.targets, p.URL)
	step := d.steps[0]
	if len(d.steps) > 1 {
		d.steps = d.steps[1:]
	}
	d.mu.Unlock()

	for _, c := range step.chunks {
		if !onChunk(Chunk{Data: c}) {
			return Result{Code: CodeEndOfStream, Message: "stopped"}
		}
	}
	return step.result
}

func (d *scriptedDecoder) Targets() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.targets...)
}

type sliceSink struct {
	mu     sync.Mutex
	chunks [][]byte
}

func (s *sliceSink) Push(c Chunk) {
	s.mu.Lock()
	s.chunks = append(s.chunks, c.Data)
	s.mu.Unlock()
}

func (s *sliceSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chunks)
}

func testChannel() config.ChannelConfig {
	return config.ChannelConfig{
		URL:             "http://radio.example.com/live.m3u",
		ACRID:           "capture-test",
		ProgramID:       config.NoProgram,
		Slice:           2 * time.Second,
		DownloadTimeout: 10 * time.Second,
	}
}

func runWorker(t *testing.T, w *CaptureWorker) <-chan struct{} {
	t.Helper()
	done := make(chan struct{})
	go func() {
		w.Run(context.Background())
		close(done)
	}()
	return done
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("capture worker did not stop")
	}
}

func TestCaptureEndOfStreamStopsPermanently(t *testing.T) {
	res := &staticResolver{urls: []string{"http://a", "http://b"}}
	dec := &scriptedDecoder{steps: []decodeStep{
		{chunks: [][]byte{make([]byte, 32000), make([]byte, 32000)}, result: Result{Code: CodeEndOfStream}},
	}}
	sink := &sliceSink{}
	w := NewCaptureWorker(testChannel(), res, dec, sink, zap.NewNop())
	w.SetRetryDelay(time.Millisecond)

	waitDone(t, runWorker(t, w))

	assert.Equal(t, []string{"http://a"}, dec.Targets())
	assert.Equal(t, 2, sink.Len())
	assert.Equal(t, StateStopped, w.State())
	assert.Equal(t, int64(2), w.Status().Chunks)
}

func TestCaptureRetriesErrorsAndWrapsCandidates(t *testing.T) {
	res := &staticResolver{urls: []string{"http://a", "http://b"}}
	fail := decodeStep{result: Result{Code: CodeDecodeFailed, Message: "connection refused"}}
	dec := &scriptedDecoder{steps: []decodeStep{fail, fail, fail, {result: Result{Code: CodeEndOfStream}}}}
	w := NewCaptureWorker(testChannel(), res, dec, &sliceSink{}, zap.NewNop())
	w.SetRetryDelay(time.Millisecond)

	waitDone(t, runWorker(t, w))

	assert.Equal(t, []string{"http://a", "http://b", "http://a", "http://b"}, dec.Targets())
	assert.Equal(t, 2, res.Calls())
	assert.Equal(t, "connection refused", w.Status().LastError)
}

func TestCaptureStoppedBeforeRun(t *testing.T) {
	res := &staticResolver{urls: []string{"http://a"}}
	sink := &sliceSink{}
	dec := &scriptedDecoder{steps: []decodeStep{{chunks: [][]byte{make([]byte, 16000)}, result: Result{Code: CodeDecodeFailed}}}}
	w := NewCaptureWorker(testChannel(), res, dec, sink, zap.NewNop())
	w.Stop()
	w.Stop()

	waitDone(t, runWorker(t, w))
	assert.Empty(t, dec.Targets())
	assert.Zero(t, sink.Len())
}

func TestCaptureStopMidDecode(t *testing.T) {
	res := &staticResolver{urls: []string{"http://a"}}
	sink := &sliceSink{}
	var w *CaptureWorker
	dec := &scriptedDecoder{steps: []decodeStep{{result: Result{Code: CodeDecodeFailed}}}}
	w = NewCaptureWorker(testChannel(), res, DecoderFunc(func(ctx context.Context, p DecodeParams, onChunk ChunkFunc) Result {
		dec.Decode(ctx, p, onChunk)
		assert.True(t, onChunk(Chunk{Data: make([]byte, 2)}))
		w.Stop()
		assert.False(t, onChunk(Chunk{Data: make([]byte, 2)}))
		return Result{Code: CodeDecodeFailed}
	}), sink, zap.NewNop())
	w.SetRetryDelay(time.Hour)

	waitDone(t, runWorker(t, w))
	assert.Len(t, dec.Targets(), 1)
	assert.Equal(t, 1, sink.Len())
}

func TestCaptureContextCancelStops(t *testing.T) {
	res := &staticResolver{urls: []string{"http://a"}}
	dec := &scriptedDecoder{steps: []decodeStep{{result: Result{Code: CodeOpenTimeout}}}}
	w := NewCaptureWorker(testChannel(), res, dec, &sliceSink{}, zap.NewNop())
	w.SetRetryDelay(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(dec.Targets()) > 0 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	waitDone(t, done)
}

func TestCaptureDropsMisalignedChunks(t *testing.T) {
	res := &staticResolver{urls: []string{"http://a"}}
	dec := &scriptedDecoder{steps: []decodeStep{
		{chunks: [][]byte{make([]byte, 3), make([]byte, 4)}, result: Result{Code: CodeEndOfStream}},
	}}
	sink := &sliceSink{}
	w := NewCaptureWorker(testChannel(), res, dec, sink, zap.NewNop())

	waitDone(t, runWorker(t, w))
	assert.Equal(t, 1, sink.Len())
}

func TestCaptureFallsBackToSourceURL(t *testing.T) {
	res := &staticResolver{}
	dec := &scriptedDecoder{steps: []decodeStep{{result: Result{Code: CodeEndOfStream}}}}
	w := NewCaptureWorker(testChannel(), res, dec, &sliceSink{}, zap.NewNop())

	waitDone(t, runWorker(t, w))
	assert.Equal(t, []string{testChannel().URL}, dec.Targets())
}
