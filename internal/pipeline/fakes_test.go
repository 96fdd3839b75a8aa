package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/RenatoCabral2022/WhatsWebService/fpstreamer/internal/audio"
	"github.com/RenatoCabral2022/WhatsWebService/fpstreamer/internal/config"
	"github.com/RenatoCabral2022/WhatsWebService/fpstreamer/internal/ingest"
	"github.com/RenatoCabral2022/WhatsWebService/fpstreamer/internal/upload"
)

var errBackendDown = errors.New("backend down")

type uploadCall struct {
	kind      string
	target    upload.Target
	signature string
	detail    string
	fp        []byte
}

// fakeUploader records calls; fail decides the outcome of each one.
type fakeUploader struct {
	mu    sync.Mutex
	calls []uploadCall
	fail  func(kind string, n int) bool
}

func (u *fakeUploader) UploadLive(target upload.Target, signature string, fp []byte) error {
	return u.record(uploadCall{kind: upload.KindLive, target: target, signature: signature, fp: fp})
}

func (u *fakeUploader) UploadRecord(target upload.Target, signature, detail string, fp []byte) error {
	return u.record(uploadCall{kind: upload.KindRecord, target: target, signature: signature, detail: detail, fp: fp})
}

func (u *fakeUploader) record(c uploadCall) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	n := 0
	for _, prev := range u.calls {
		if prev.kind == c.kind {
			n++
		}
	}
	u.calls = append(u.calls, c)
	if u.fail != nil && u.fail(c.kind, n) {
		return errBackendDown
	}
	return nil
}

func (u *fakeUploader) Calls(kind string) []uploadCall {
	u.mu.Lock()
	defer u.mu.Unlock()
	var out []uploadCall
	for _, c := range u.calls {
		if c.kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// recordingGenerator returns a short fingerprint and remembers every input.
type recordingGenerator struct {
	mu     sync.Mutex
	inputs [][]byte
	empty  bool
	err    error
}

func (g *recordingGenerator) Create(_ context.Context, pcm []byte, _ bool) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inputs = append(g.inputs, pcm)
	if g.err != nil {
		return nil, g.err
	}
	if g.empty {
		return nil, nil
	}
	return []byte{0xF0, byte(len(pcm) >> 16), byte(len(pcm) >> 8), byte(len(pcm))}, nil
}

func (g *recordingGenerator) Inputs() [][]byte {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([][]byte(nil), g.inputs...)
}

// blockingGenerator hangs until its context ends, like a stuck fingerprint
// program. entered is closed on the first call.
type blockingGenerator struct {
	once    sync.Once
	entered chan struct{}
}

func newBlockingGenerator() *blockingGenerator {
	return &blockingGenerator{entered: make(chan struct{})}
}

func (g *blockingGenerator) Create(ctx context.Context, _ []byte, _ bool) ([]byte, error) {
	g.once.Do(func() { close(g.entered) })
	<-ctx.Done()
	return nil, ctx.Err()
}

type passthroughResolver struct{}

func (passthroughResolver) Resolve(_ context.Context, rawURL string) []string {
	return []string{rawURL}
}

// finiteDecoder emits n slices of test tone, then ends the stream.
func finiteDecoder(n int) ingest.Decoder {
	return ingest.DecoderFunc(func(_ context.Context, p ingest.DecodeParams, onChunk ingest.ChunkFunc) ingest.Result {
		for i := 0; i < n; i++ {
			if !onChunk(ingest.Chunk{Data: audio.Tone(p.Slice, audio.ToneFrequency)}) {
				break
			}
		}
		return ingest.Result{Code: ingest.CodeEndOfStream}
	})
}

// endlessDecoder emits small chunks until asked to stop.
func endlessDecoder() ingest.Decoder {
	return ingest.DecoderFunc(func(_ context.Context, _ ingest.DecodeParams, onChunk ingest.ChunkFunc) ingest.Result {
		for onChunk(ingest.Chunk{Data: audio.Tone(100*time.Millisecond, audio.ToneFrequency)}) {
			time.Sleep(time.Millisecond)
		}
		return ingest.Result{Code: ingest.CodeEndOfStream}
	})
}

func testChannelConfig(acrID string) config.ChannelConfig {
	return config.ChannelConfig{
		URL:               "http://radio.example.com/" + acrID,
		ACRID:             acrID,
		StreamID:          "42",
		ProgramID:         config.NoProgram,
		Server:            config.ServerConfig{Host: "fp.example.com", Port: 9000},
		RecordServer:      config.ServerConfig{Host: "rec.example.com", Port: 9001},
		Slice:             2 * time.Second,
		FingerprintWindow: 6 * time.Second,
		MaxWindow:         12 * time.Second,
		UploadTimeout:     time.Second,
		DownloadTimeout:   time.Second,
		RecordInterval:    6 * time.Second,
		RecordMaxWindow:   10 * time.Second,
	}
}
