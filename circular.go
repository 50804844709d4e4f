package flowbuf

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Circular is a lock-free broadcast ring buffer with one writer and any
// number of readers. Every reader sees every item published after it
// attached; the writer is held back by the slowest reader.
type Circular[T any] struct {
	seq      *sequencer
	store    storage[T]
	capacity int

	attach       AttachPolicy
	wait         WaitStrategy
	logger       *slog.Logger
	writerActive atomic.Bool
	stats        counters

	metricsReg prometheus.Registerer
	collector  prometheus.Collector
	closed     atomic.Bool
}

// NewCircular creates a buffer holding at least minSize items. The
// capacity is rounded up to a power of two.
func NewCircular[T any](minSize int, opts ...Option) (*Circular[T], error) {
	if minSize <= 0 || minSize > MaxCapacity {
		return nil, fmt.Errorf("%w: requested %d", ErrInvalidCapacity, minSize)
	}
	o := applyOptions(opts...)
	if o.wait.MaxSleep > time.Second {
		o.wait.MaxSleep = time.Second
	}

	store, capacity := newStorage[T](roundCapacity(uint64(minSize)), o.doubleMapping, o.logger)
	b := &Circular[T]{
		seq:      newSequencer(capacity, o.zeroReaders),
		store:    store,
		capacity: int(capacity),
		attach:   o.attach,
		wait:     o.wait,
		logger:   o.logger,
	}

	if o.metricsReg != nil {
		c := newStatsCollector(o.metricsName, b.Stats)
		if err := o.metricsReg.Register(c); err != nil {
			return nil, fmt.Errorf("flowbuf: register metrics for %q: %w", o.metricsName, err)
		}
		b.metricsReg, b.collector = o.metricsReg, c
	}

	b.logger.Debug("flowbuf: buffer created",
		"requested", minSize,
		"capacity", b.capacity,
		"storage", store.kind(),
		"attach", o.attach.String(),
		"zero_readers", o.zeroReaders.String())
	return b, nil
}

// Size returns the allocated capacity.
func (b *Circular[T]) Size() int {
	return b.capacity
}

// NewReader attaches a reader using the buffer's attach policy.
func (b *Circular[T]) NewReader() (Reader[T], error) {
	return b.newReader(b.attach, nil), nil
}

// NewReaderAt attaches a reader using policy instead of the buffer's
// default.
func (b *Circular[T]) NewReaderAt(policy AttachPolicy) (Reader[T], error) {
	if policy != AttachAtHead && policy != AttachAtOldest {
		return nil, fmt.Errorf("flowbuf: unknown attach policy %d", policy)
	}
	return b.newReader(policy, nil), nil
}

func (b *Circular[T]) newReader(policy AttachPolicy, from *readCursor) *reader[T] {
	cur := b.seq.attach(policy, from)
	b.stats.readersAttached.Add(1)

	r := &reader[T]{buf: b, cur: cur}
	r.cleanup = runtime.AddCleanup(r, func(c *readCursor) {
		if b.seq.detach(c) {
			b.stats.readersDetached.Add(1)
			b.logger.Warn("flowbuf: reader collected without Close", "position", int64(c.next.Load())-1)
		}
	}, cur)

	b.logger.Debug("flowbuf: reader attached",
		"position", r.Position(),
		"readers", b.seq.readerCount())
	return r
}

// NewWriter returns the writer of the buffer. Only one writer may be
// open at a time; ErrWriterActive is returned otherwise.
func (b *Circular[T]) NewWriter() (Writer[T], error) {
	if !b.writerActive.CompareAndSwap(false, true) {
		return nil, ErrWriterActive
	}

	w := &writer[T]{buf: b, wait: backoff{cfg: b.wait}}
	w.cleanup = runtime.AddCleanup(w, func(b *Circular[T]) {
		// drop a reservation the collected writer never committed
		b.seq.cancel()
		b.writerActive.Store(false)
	}, b)

	b.logger.Debug("flowbuf: writer opened", "published", b.seq.write.Load())
	return w, nil
}

// Published returns the write cursor, the number of items published so
// far.
func (b *Circular[T]) Published() uint64 {
	return b.seq.write.Load()
}

// Readers returns the number of attached readers.
func (b *Circular[T]) Readers() int {
	return b.seq.readerCount()
}

// Stats returns a snapshot of the buffer statistics.
func (b *Circular[T]) Stats() Stats {
	s := b.stats.snapshot()
	s.Capacity = b.capacity
	s.Readers = b.seq.readerCount()
	s.Published = b.seq.write.Load()
	s.Backlog = b.seq.backlog()
	return s
}

// Close unregisters the buffer's metrics so the registry no longer keeps
// the buffer alive and its name can be registered again. Reader and writer
// handles are not affected. Close is safe to call more than once.
func (b *Circular[T]) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	if b.collector != nil {
		b.metricsReg.Unregister(b.collector)
		b.collector = nil
	}
	b.logger.Debug("flowbuf: buffer closed", "published", b.seq.write.Load())
	return nil
}

var (
	_ Buffer[float32]           = (*Circular[float32])(nil)
	_ Reader[float32]           = (*reader[float32])(nil)
	_ Cloner[float32]           = (*reader[float32])(nil)
	_ Writer[float32]           = (*writer[float32])(nil)
	_ ContextPublisher[float32] = (*writer[float32])(nil)
)
