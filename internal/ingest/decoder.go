// Package ingest captures live audio: a Decoder turns a media URL into PCM
// chunks and a CaptureWorker keeps one channel's decoder running.
package ingest

import (
	"context"
	"time"
)

// Capture worker lifecycle states.
const (
	StateIdle      = "idle"
	StateResolving = "resolving"
	StateDecoding  = "decoding"
	StateStopped   = "stopped"
)

// Decode result codes. CodeEndOfStream is the only success; everything else
// is an error the capture worker retries.
const (
	CodeEndOfStream  = 0
	CodeStartFailed  = 1
	CodeOpenTimeout  = 2
	CodeReadTimeout  = 3
	CodeDecodeFailed = 4
	CodeCancelled    = 5
)

// Chunk is one capture slice of decoded PCM. Ownership passes to whoever
// receives it.
type Chunk struct {
	Data    []byte
	IsVideo bool
}

// ChunkFunc receives decoded chunks in order. Returning false asks the
// decoder to stop.
type ChunkFunc func(Chunk) bool

// DecodeParams describes one decode call.
type DecodeParams struct {
	URL         string
	Slice       time.Duration
	ProgramID   int
	OpenTimeout time.Duration
	ReadTimeout time.Duration
	Debug       bool
}

// Result is the outcome of a decode call.
type Result struct {
	Code    int
	Message string
}

// EndOfStream reports whether the decoder finished gracefully.
func (r Result) EndOfStream() bool {
	return r.Code == CodeEndOfStream
}

// Decoder decodes a stream URL into fixed-duration PCM chunks until the
// stream ends, an error occurs, or the callback asks it to stop.
type Decoder interface {
	Decode(ctx context.Context, p DecodeParams, onChunk ChunkFunc) Result
}

// Status is a snapshot of a capture worker.
type Status struct {
	State      string   `json:"state"`
	SourceURL  string   `json:"sourceUrl"`
	Candidates []string `json:"candidates,omitempty"`
	Current    string   `json:"current,omitempty"`
	Chunks     int64    `json:"chunks"`
	BytesRead  int64    `json:"bytesRead"`
	LastError  string   `json:"lastError,omitempty"`
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc func(ctx context.Context, p DecodeParams, onChunk ChunkFunc) Result

func (f DecoderFunc) Decode(ctx context.Context, p DecodeParams, onChunk ChunkFunc) Result {
	return f(ctx, p, onChunk)
}
