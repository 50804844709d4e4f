package flowbuf

import (
	"context"
	"fmt"
	"runtime"
)

// ContextPublisher is implemented by writers whose blocking publish can
// be bounded by a context.
type ContextPublisher[T any] interface {
	PublishContext(ctx context.Context, fill func(span []T, seq int64), n int) error
}

// writer is the single producer of a Circular. It must be used from one
// goroutine at a time.
type writer[T any] struct {
	buf      *Circular[T]
	reserved int // pending reservation, 0 when idle
	closed   bool
	wait     backoff
	cleanup  runtime.Cleanup
}

func (w *writer[T]) Buffer() Buffer[T] {
	return w.buf
}

// Available returns capacity - (published - slowest reader position),
// less any slots held by a pending reservation.
func (w *writer[T]) Available() int {
	if w.closed {
		return 0
	}
	s := w.buf.seq
	free := int(s.free(s.write.Load()))
	if free < w.reserved {
		return 0
	}
	return free - w.reserved
}

// ReserveOutputRange claims the next n slots and returns them for in-place
// filling. Nothing is visible to readers until Commit. A new reservation
// replaces the pending one; a failed reservation drops it.
func (w *writer[T]) ReserveOutputRange(n int) ([]T, error) {
	if w.closed {
		return nil, ErrClosed
	}
	if n <= 0 {
		return nil, nil
	}
	if n > w.buf.capacity {
		return nil, fmt.Errorf("%w: reserve %d of %d", ErrRequestTooLarge, n, w.buf.capacity)
	}

	start, ok := w.buf.seq.tryClaim(uint64(n))
	if !ok {
		w.reserved = 0
		w.buf.stats.reserveFailures.Add(1)
		return nil, ErrInsufficientSpace
	}
	w.reserved = n
	return w.buf.store.view(start, n), nil
}

// Commit publishes the first n slots of the pending reservation. Commit(0)
// abandons the reservation.
func (w *writer[T]) Commit(n int) error {
	if w.closed {
		return ErrClosed
	}
	if w.reserved == 0 {
		if n == 0 {
			return nil
		}
		return ErrNoReservation
	}
	if n < 0 || n > w.reserved {
		return fmt.Errorf("%w: commit %d of %d reserved", ErrRequestTooLarge, n, w.reserved)
	}

	w.reserved = 0
	if n == 0 {
		w.buf.seq.cancel()
		return nil
	}
	w.publishRange(w.buf.seq.write.Load(), n)
	return nil
}

func (w *writer[T]) Publish(fill func(span []T), n int) error {
	return w.PublishContext(context.Background(), func(span []T, _ int64) { fill(span) }, n)
}

func (w *writer[T]) PublishWithSequence(fill func(span []T, seq int64), n int) error {
	return w.PublishContext(context.Background(), fill, n)
}

// PublishContext waits until n slots are free, fills them and publishes
// them. It returns ctx.Err() if ctx ends first; nothing is published then.
func (w *writer[T]) PublishContext(ctx context.Context, fill func(span []T, seq int64), n int) error {
	if err := w.check(n); err != nil {
		return err
	}
	if n == 0 {
		return nil
	}

	s := w.buf.seq
	start, ok := s.tryClaim(uint64(n))
	if !ok {
		w.buf.stats.publishWaits.Add(1)
		w.wait.reset()
		for !ok {
			if err := ctx.Err(); err != nil {
				return err
			}
			w.wait.wait()
			start, ok = s.tryClaim(uint64(n))
		}
	}

	w.fillAndPublish(fill, start, n)
	return nil
}

func (w *writer[T]) TryPublish(fill func(span []T), n int) bool {
	return w.TryPublishWithSequence(func(span []T, _ int64) { fill(span) }, n)
}

// TryPublishWithSequence publishes n slots if they are free right now.
// On false, fill was not called and the buffer is unchanged.
func (w *writer[T]) TryPublishWithSequence(fill func(span []T, seq int64), n int) bool {
	if err := w.check(n); err != nil {
		w.buf.stats.tryPublishFailures.Add(1)
		return false
	}
	if n == 0 {
		return true
	}

	start, ok := w.buf.seq.tryClaim(uint64(n))
	if !ok {
		w.buf.stats.tryPublishFailures.Add(1)
		return false
	}
	w.fillAndPublish(fill, start, n)
	return true
}

// Close releases the writer slot so the buffer can hand out a new writer.
func (w *writer[T]) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if w.reserved > 0 {
		w.reserved = 0
		w.buf.seq.cancel()
	}
	w.cleanup.Stop()
	w.buf.writerActive.Store(false)
	w.buf.logger.Debug("flowbuf: writer closed", "published", w.buf.seq.write.Load())
	return nil
}

func (w *writer[T]) check(n int) error {
	switch {
	case w.closed:
		return ErrClosed
	case w.reserved > 0:
		return ErrReservationPending
	case n < 0:
		return fmt.Errorf("flowbuf: negative publish size %d", n)
	case n > w.buf.capacity:
		return fmt.Errorf("%w: publish %d of %d", ErrRequestTooLarge, n, w.buf.capacity)
	}
	return nil
}

// fillAndPublish runs fill over the claimed range and publishes it. If
// fill panics the claim is dropped and nothing is published.
func (w *writer[T]) fillAndPublish(fill func(span []T, seq int64), start uint64, n int) {
	published := false
	defer func() {
		if !published {
			w.buf.seq.cancel()
		}
	}()
	fill(w.buf.store.view(start, n), int64(start))
	w.publishRange(start, n)
	published = true
}

// publishRange syncs the mirror of [start, start+n) and advances the write
// cursor past it.
func (w *writer[T]) publishRange(start uint64, n int) {
	w.buf.store.mirror(start, n)
	w.buf.seq.commit(start + uint64(n))
	w.buf.stats.publishes.Add(1)
}
