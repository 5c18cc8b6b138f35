package queue

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultBuffer is the capacity of a MemoryQueue when none is given
const DefaultBuffer = 256

// MemoryQueue is an in-process queue backed by a buffered channel. Work is
// lost on restart and recovered by the sweep.
type MemoryQueue struct {
	ch     chan uuid.UUID
	done   chan struct{}
	mu     sync.RWMutex
	closed bool
	logger *zap.Logger
}

// NewMemory creates a queue holding at most buffer pending ids
func NewMemory(buffer int, logger *zap.Logger) *MemoryQueue {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryQueue{
		ch:     make(chan uuid.UUID, buffer),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Publish enqueues id without blocking
func (q *MemoryQueue) Publish(ctx context.Context, id uuid.UUID) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case q.ch <- id:
		return nil
	default:
		return ErrFull
	}
}

// Ping fails once the queue is closed or full
func (q *MemoryQueue) Ping(ctx context.Context) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}
	if len(q.ch) == cap(q.ch) {
		return ErrFull
	}
	return ctx.Err()
}

// Consume runs h for each id until ctx is done or the queue is closed
func (q *MemoryQueue) Consume(ctx context.Context, h Handler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-q.done:
			return nil
		case id := <-q.ch:
			handle(ctx, h, id, q.logger)
		}
	}
}

// Len returns the number of ids waiting
func (q *MemoryQueue) Len() int {
	return len(q.ch)
}

// Close stops consumers and rejects further publishes
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.done)
	}
	return nil
}
