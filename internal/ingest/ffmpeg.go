package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/RenatoCabral2022/WhatsWebService/fpstreamer/internal/audio"
)

const (
	progressInterval = time.Minute
	stderrTailSize   = 2048
)

// FFmpegDecoder decodes any URL ffmpeg can open into 8kHz mono s16le PCM,
// delivered in slices of DecodeParams.Slice.
type FFmpegDecoder struct {
	path   string
	logger *zap.Logger
}

// NewFFmpegDecoder creates a decoder running the ffmpeg binary at path.
func NewFFmpegDecoder(path string, logger *zap.Logger) *FFmpegDecoder {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpegDecoder{path: path, logger: logger}
}

// Args returns the ffmpeg command line for p.
func (d *FFmpegDecoder) Args(p DecodeParams) []string {
	logLevel := "error"
	if p.Debug {
		logLevel = "info"
	}
	args := []string{
		"-nostdin",
		"-hide_banner", "-loglevel", logLevel,
	}
	if p.ReadTimeout > 0 {
		args = append(args, "-rw_timeout", strconv.FormatInt(p.ReadTimeout.Microseconds(), 10))
	}
	args = append(args, "-i", p.URL)
	if p.ProgramID >= 0 {
		args = append(args, "-map", fmt.Sprintf("0:p:%d:a:0", p.ProgramID))
	}
	return append(args,
		"-vn",
		"-ac", strconv.Itoa(audio.Channels),
		"-ar", strconv.Itoa(audio.SampleRate),
		"-f", "s16le",
		"pipe:1",
	)
}

// Decode runs ffmpeg until the stream ends or onChunk returns false.
// If nothing arrives within OpenTimeout, or a later read stalls for
// ReadTimeout, ffmpeg is killed and a timeout code is returned.
func (d *FFmpegDecoder) Decode(ctx context.Context, p DecodeParams, onChunk ChunkFunc) Result {
	sliceBytes := audio.BytesFor(p.Slice)
	if sliceBytes == 0 {
		return Result{Code: CodeStartFailed, Message: "slice duration too short"}
	}
	logger := d.logger.With(zap.String("url", p.URL))

	cmd := exec.CommandContext(ctx, d.path, d.Args(p)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Result{Code: CodeStartFailed, Message: fmt.Sprintf("stdout pipe: %v", err)}
	}
	stderr := &tailBuffer{max: stderrTailSize}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return Result{Code: CodeStartFailed, Message: fmt.Sprintf("ffmpeg start: %v", err)}
	}
	logger.Debug("decode started", zap.Int("sliceBytes", sliceBytes))

	var timeoutCode atomic.Int32
	kill := func(code int32) func() {
		return func() {
			if timeoutCode.CompareAndSwap(0, code) {
				cmd.Process.Kill()
			}
		}
	}
	var watchdog *time.Timer
	if p.OpenTimeout > 0 {
		watchdog = time.AfterFunc(p.OpenTimeout, kill(CodeOpenTimeout))
	}

	var (
		bytesRead int64
		lastLog   = time.Now()
		stopped   bool
		readErr   error
	)
	for {
		buf := make([]byte, sliceBytes)
		n, err := io.ReadFull(stdout, buf)
		if n > 0 {
			// Data arrived: the open deadline no longer applies.
			if watchdog != nil {
				watchdog.Stop()
				watchdog = nil
			}
			if p.ReadTimeout > 0 {
				watchdog = time.AfterFunc(p.ReadTimeout, kill(CodeReadTimeout))
			}
		}
		if n > 0 {
			bytesRead += int64(n)
			n -= n % audio.BytesPerSample
			if n > 0 && !onChunk(Chunk{Data: buf[:n]}) {
				stopped = true
				cmd.Process.Kill()
				break
			}
			if time.Since(lastLog) >= progressInterval {
				logger.Info("decode progress", zap.Int64("bytesRead", bytesRead))
				lastLog = time.Now()
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				readErr = err
			}
			break
		}
	}
	if watchdog != nil {
		watchdog.Stop()
	}

	waitErr := cmd.Wait()

	switch {
	case stopped:
		return Result{Code: CodeEndOfStream, Message: "stopped by consumer"}
	case timeoutCode.Load() == CodeOpenTimeout:
		return Result{Code: CodeOpenTimeout, Message: fmt.Sprintf("no audio within %s", p.OpenTimeout)}
	case timeoutCode.Load() == CodeReadTimeout:
		return Result{Code: CodeReadTimeout, Message: fmt.Sprintf("read stalled for %s", p.ReadTimeout)}
	case ctx.Err() != nil:
		return Result{Code: CodeCancelled, Message: ctx.Err().Error()}
	case readErr != nil:
		return Result{Code: CodeDecodeFailed, Message: readErr.Error()}
	case waitErr != nil:
		return Result{Code: CodeDecodeFailed, Message: describeExit(waitErr, stderr.String())}
	}
	logger.Info("decode reached end of stream", zap.Int64("bytesRead", bytesRead))
	return Result{Code: CodeEndOfStream, Message: "end of stream"}
}

func describeExit(err error, stderr string) string {
	msg := err.Error()
	if tail := strings.TrimSpace(stderr); tail != "" {
		msg += ": " + tail
	}
	return msg
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
