package bridge

import (
	"errors"
	"fmt"
	"sync"
)

// ErrQueueDone signals that a queue was drained after its write side
// closed.
var ErrQueueDone = errors.New("bridge: queue done")

// Queue is a bounded blocking FIFO. It decouples a fragment producer
// from the delivery path while preserving arrival order: Push blocks
// when the queue is full, Next blocks when it is empty. Closing with
// an error unblocks both sides.
type Queue[T any] struct {
	cond *sync.Cond

	mu         sync.Mutex
	buf        []T
	head, tail int64
	closeWrite bool
	closeErr   error
}

// NewQueue creates a queue holding at most size elements.
func NewQueue[T any](size int) *Queue[T] {
	q := &Queue[T]{buf: make([]T, size)}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends one element, blocking while the queue is full.
func (q *Queue[T]) Push(v T) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		if q.closeErr != nil {
			return fmt.Errorf("bridge: push to closed queue: %w", q.closeErr)
		}
		if q.closeWrite {
			return fmt.Errorf("bridge: push to closed queue: %w", ErrClosed)
		}
		if q.tail-q.head < int64(len(q.buf)) {
			break
		}
		q.cond.Wait()
	}
	q.buf[q.tail%int64(len(q.buf))] = v
	q.tail++
	q.cond.Signal()
	return nil
}

// Next removes and returns the oldest element, blocking while the
// queue is empty. It returns ErrQueueDone once the queue is drained
// after CloseWrite, or the close error after CloseWithError.
func (q *Queue[T]) Next() (v T, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.head == q.tail {
		if q.closeErr != nil {
			err = q.closeErr
			return
		}
		if q.closeWrite {
			err = ErrQueueDone
			return
		}
		q.cond.Wait()
	}
	i := q.head % int64(len(q.buf))
	v = q.buf[i]
	var zero T
	q.buf[i] = zero
	q.head++
	q.cond.Signal()
	return v, nil
}

// CloseWrite stops further pushes while letting buffered elements
// drain.
func (q *Queue[T]) CloseWrite() {
	q.mu.Lock()
	q.closeWrite = true
	q.cond.Broadcast()
	q.mu.Unlock()
}

// CloseWithError tears the queue down. Pending and future operations
// on either side return err. The first close wins.
func (q *Queue[T]) CloseWithError(err error) {
	if err == nil {
		err = ErrClosed
	}
	q.mu.Lock()
	if q.closeErr == nil {
		q.closeErr = err
		q.closeWrite = true
		q.cond.Broadcast()
	}
	q.mu.Unlock()
}

// Len reports how many elements are buffered.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int(q.tail - q.head)
}
