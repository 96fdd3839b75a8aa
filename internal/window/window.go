// Package window holds the rolling PCM sample windows that feed the
// fingerprint generator.
package window

import (
	"time"

	"github.com/RenatoCabral2022/WhatsWebService/fpstreamer/internal/audio"
)

// Window is a rolling buffer of contiguous 8kHz mono s16le audio. Its length
// never exceeds the configured maximum; excess is discarded from the oldest end.
// A Window is owned by a single fingerprint worker and is not safe for
// concurrent use.
type Window struct {
	buf []byte
	max int
}

// New creates a window that holds at most maxBytes of PCM.
func New(maxBytes int) *Window {
	if maxBytes < 0 {
		maxBytes = 0
	}
	return &Window{
		buf: make([]byte, 0, maxBytes),
		max: maxBytes,
	}
}

// NewSeconds creates a window bounded by a duration of audio.
func NewSeconds(max time.Duration) *Window {
	return New(audio.BytesFor(max))
}

// Append adds PCM to the newest end, dropping the oldest bytes beyond the maximum.
func (w *Window) Append(data []byte) {
	if len(data) >= w.max {
		w.buf = append(w.buf[:0], data[len(data)-w.max:]...)
		return
	}
	if over := len(w.buf) + len(data) - w.max; over > 0 {
		w.discard(over)
	}
	w.buf = append(w.buf, data...)
}

// KeepLast discards everything except the most recent n bytes.
func (w *Window) KeepLast(n int) {
	if n < 0 {
		n = 0
	}
	if len(w.buf) > n {
		w.discard(len(w.buf) - n)
	}
}

// Cap trims the window to its configured maximum.
func (w *Window) Cap() {
	w.KeepLast(w.max)
}

// Reset empties the window.
func (w *Window) Reset() {
	w.buf = w.buf[:0]
}

// Snapshot returns a copy of the window contents, oldest byte first.
func (w *Window) Snapshot() []byte {
	out := make([]byte, len(w.buf))
	copy(out, w.buf)
	return out
}

// Len returns the number of buffered bytes.
func (w *Window) Len() int {
	return len(w.buf)
}

// Max returns the configured maximum in bytes.
func (w *Window) Max() int {
	return w.max
}

// Duration returns how much audio is currently buffered.
func (w *Window) Duration() time.Duration {
	return audio.DurationOf(len(w.buf))
}

func (w *Window) discard(n int) {
	kept := copy(w.buf, w.buf[n:])
	w.buf = w.buf[:kept]
}
