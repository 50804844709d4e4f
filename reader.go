package flowbuf

import (
	"runtime"
)

// reader is one consumer of a Circular. It must be used from one
// goroutine at a time; different readers are fully independent.
type reader[T any] struct {
	buf     *Circular[T]
	cur     *readCursor
	closed  bool
	cleanup runtime.Cleanup
}

func (r *reader[T]) Buffer() Buffer[T] {
	return r.buf
}

// Get returns up to n published items starting at Position()+1. The view
// aliases the buffer and must not be modified.
func (r *reader[T]) Get(n int) []T {
	if r.closed || n <= 0 {
		return nil
	}
	next := r.cur.next.Load()
	avail := r.buf.seq.write.Load() - next
	if avail == 0 {
		return nil
	}
	if uint64(n) < avail {
		avail = uint64(n)
	}
	return r.buf.store.view(next, int(avail))
}

// Consume marks the next n items as processed.
func (r *reader[T]) Consume(n int) bool {
	if r.closed || n < 0 {
		r.buf.stats.consumeFailures.Add(1)
		return false
	}
	if n == 0 {
		return true
	}
	next := r.cur.next.Load()
	if uint64(n) > r.buf.seq.write.Load()-next {
		r.buf.stats.consumeFailures.Add(1)
		return false
	}
	r.cur.next.Store(next + uint64(n))
	r.buf.stats.consumes.Add(1)
	r.buf.stats.consumedItems.Add(uint64(n))
	return true
}

func (r *reader[T]) Position() int64 {
	return int64(r.cur.next.Load()) - 1
}

func (r *reader[T]) Available() int {
	if r.closed {
		return 0
	}
	return int(r.buf.seq.write.Load() - r.cur.next.Load())
}

// Clone attaches a new reader at the same position.
func (r *reader[T]) Clone() (Reader[T], error) {
	if r.closed {
		return nil, ErrClosed
	}
	return r.buf.newReader(AttachAtHead, r.cur), nil
}

// Close detaches the reader. It is safe to call more than once.
func (r *reader[T]) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.cleanup.Stop()
	if r.buf.seq.detach(r.cur) {
		r.buf.stats.readersDetached.Add(1)
	}
	r.buf.logger.Debug("flowbuf: reader detached",
		"position", r.Position(),
		"readers", r.buf.seq.readerCount())
	return nil
}
