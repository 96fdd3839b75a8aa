// Package pipeline wires capture, fingerprinting and upload for each
// channel and runs a group of channels together.
package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/RenatoCabral2022/WhatsWebService/fpstreamer/internal/ingest"
	"github.com/RenatoCabral2022/WhatsWebService/fpstreamer/internal/metrics"
)

// ErrQueueClosed is returned by Pop once the queue is closed and drained.
var ErrQueueClosed = errors.New("queue closed")

// Queue is an unbounded FIFO of chunks between one producer and one
// consumer. It never drops or reorders chunks.
type Queue struct {
	mu     sync.Mutex
	items  []ingest.Chunk
	closed bool
	ready  chan struct{}
	label  string
}

// NewQueue creates a queue whose depth is reported under label.
func NewQueue(label string) *Queue {
	return &Queue{
		ready: make(chan struct{}, 1),
		label: label,
	}
}

// Push appends c. Pushes after Close are discarded.
func (q *Queue) Push(c ingest.Chunk) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, c)
	depth := len(q.items)
	q.mu.Unlock()

	metrics.QueueDepth.WithLabelValues(q.label).Set(float64(depth))
	q.signal()
}

// Pop blocks until a chunk is available, the queue is closed and empty, or
// ctx is done.
func (q *Queue) Pop(ctx context.Context) (ingest.Chunk, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			c := q.items[0]
			q.items[0] = ingest.Chunk{}
			q.items = q.items[1:]
			depth := len(q.items)
			if depth == 0 {
				q.items = nil
			}
			q.mu.Unlock()
			metrics.QueueDepth.WithLabelValues(q.label).Set(float64(depth))
			return c, nil
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return ingest.Chunk{}, ErrQueueClosed
		}
		select {
		case <-q.ready:
		case <-ctx.Done():
			return ingest.Chunk{}, ctx.Err()
		}
	}
}

// Close wakes the consumer; remaining chunks can still be popped.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

// Len returns the number of queued chunks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
