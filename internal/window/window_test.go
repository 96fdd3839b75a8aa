package window

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RenatoCabral2022/WhatsWebService/fpstreamer/internal/audio"
)

func fill(n int, b byte) []byte {
	return bytes.Repeat([]byte{b}, n)
}

func TestNewSeconds(t *testing.T) {
	w := NewSeconds(12 * time.Second)
	assert.Equal(t, 12*audio.BytesPerSecond, w.Max())
	assert.Equal(t, 0, w.Len())
	assert.Empty(t, w.Snapshot())
}

func TestAppendConcatenates(t *testing.T) {
	w := NewSeconds(12 * time.Second)
	a := fill(audio.BytesPerSecond*2, 0x01)
	b := fill(audio.BytesPerSecond*2, 0x02)
	c := fill(audio.BytesPerSecond*2, 0x03)
	w.Append(a)
	w.Append(b)
	w.Append(c)

	want := append(append(append([]byte{}, a...), b...), c...)
	assert.Equal(t, want, w.Snapshot())
	assert.Equal(t, 6*time.Second, w.Duration())
}

func TestAppendDropsOldest(t *testing.T) {
	w := New(10)
	w.Append(fill(6, 0xAA))
	w.Append(fill(6, 0xBB))

	snap := w.Snapshot()
	require.Len(t, snap, 10)
	assert.Equal(t, fill(4, 0xAA), snap[:4])
	assert.Equal(t, fill(6, 0xBB), snap[4:])
}

func TestAppendLargerThanMax(t *testing.T) {
	w := New(4)
	w.Append([]byte{1, 2})
	w.Append([]byte{3, 4, 5, 6, 7, 8})
	assert.Equal(t, []byte{5, 6, 7, 8}, w.Snapshot())
}

func TestKeepLast(t *testing.T) {
	w := New(100)
	w.Append([]byte{1, 2, 3, 4, 5, 6})
	w.KeepLast(4)
	assert.Equal(t, []byte{3, 4, 5, 6}, w.Snapshot())

	// no-op when already shorter
	w.KeepLast(10)
	assert.Equal(t, 4, w.Len())

	w.KeepLast(-1)
	assert.Equal(t, 0, w.Len())
}

func TestSnapshotIsCopy(t *testing.T) {
	w := New(8)
	w.Append([]byte{1, 2, 3})
	snap := w.Snapshot()
	snap[0] = 9
	assert.Equal(t, []byte{1, 2, 3}, w.Snapshot())
}

func TestReset(t *testing.T) {
	w := New(8)
	w.Append([]byte{1, 2, 3})
	w.Reset()
	assert.Equal(t, 0, w.Len())
	w.Append([]byte{4})
	assert.Equal(t, []byte{4}, w.Snapshot())
}

func TestNeverExceedsMax(t *testing.T) {
	w := NewSeconds(12 * time.Second)
	chunk := fill(audio.BytesFor(2*time.Second+300*time.Millisecond), 0x7F)
	for i := 0; i < 50; i++ {
		w.Append(chunk)
		require.LessOrEqual(t, w.Len(), w.Max())
	}
	assert.Equal(t, w.Max(), w.Len())
}
