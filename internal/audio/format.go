package audio

import (
	"fmt"
	"time"
)

// PCM format expected by the fingerprint generator: 8kHz, mono, s16le.
// The decoder is forced to this format, and window arithmetic relies on it.
const (
	SampleRate     = 8000
	Channels       = 1
	BytesPerSample = 2
	BytesPerSecond = SampleRate * Channels * BytesPerSample
)

// BytesFor converts a duration to a PCM byte count, rounded down to a whole sample.
func BytesFor(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	n := int(int64(d) * BytesPerSecond / int64(time.Second))
	return n - n%BytesPerSample
}

// DurationOf returns the playback duration of n bytes of PCM.
func DurationOf(n int) time.Duration {
	return time.Duration(int64(n) * int64(time.Second) / BytesPerSecond)
}

// ValidateChunk checks that a decoded buffer is plausible s16le mono PCM.
func ValidateChunk(chunk []byte) error {
	if len(chunk) == 0 {
		return fmt.Errorf("empty pcm chunk")
	}
	if len(chunk)%(BytesPerSample*Channels) != 0 {
		return fmt.Errorf("pcm chunk of %d bytes is not sample aligned", len(chunk))
	}
	return nil
}
