package flowbuf

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// readCursor is the position of one reader: the sequence of the next
// item it has not consumed yet. Only the owning reader stores to it.
type readCursor struct {
	_    cpu.CacheLinePad
	next atomic.Uint64
	_    cpu.CacheLinePad
}

// sequencer holds the cursor arithmetic shared by the writer and all
// readers of one buffer.
//
// write is the sequence of the next slot to publish; items [0, write)
// are visible. claim is the end of the range the writer is currently
// filling and equals write while the writer is idle. Readers register
// through a copy-on-write slice so the writer never takes a lock.
type sequencer struct {
	_     cpu.CacheLinePad
	write atomic.Uint64 // updated by the single writer only
	_     cpu.CacheLinePad
	claim atomic.Uint64 // updated by the single writer only
	_     cpu.CacheLinePad

	readers atomic.Pointer[[]*readCursor]
	mu      sync.Mutex // serializes attach/detach

	capacity    uint64
	zeroReaders ZeroReaderPolicy
}

func newSequencer(capacity uint64, zeroReaders ZeroReaderPolicy) *sequencer {
	s := &sequencer{
		capacity:    capacity,
		zeroReaders: zeroReaders,
	}
	s.readers.Store(&[]*readCursor{})
	return s
}

// minNext returns the slowest reader position, or false when no reader
// is attached.
func minNext(readers []*readCursor) (uint64, bool) {
	if len(readers) == 0 {
		return 0, false
	}
	lowest := readers[0].next.Load()
	for _, c := range readers[1:] {
		if n := c.next.Load(); n < lowest {
			lowest = n
		}
	}
	return lowest, true
}

// free returns how many slots the writer may fill when its cursor is w:
// capacity - (w - min(next)).
func (s *sequencer) free(w uint64) uint64 {
	lowest, ok := minNext(*s.readers.Load())
	if !ok {
		if s.zeroReaders == BlockWithoutReaders {
			return 0
		}
		return s.capacity
	}
	if lowest > w {
		// a reader cannot be ahead of the writer; treat as caught up
		lowest = w
	}
	used := w - lowest
	if used >= s.capacity {
		return 0
	}
	return s.capacity - used
}

// backlog returns the number of published items still held for the
// slowest reader.
func (s *sequencer) backlog() uint64 {
	w := s.write.Load()
	lowest, ok := minNext(*s.readers.Load())
	if !ok || lowest > w {
		return 0
	}
	return w - lowest
}

// tryClaim reserves [w, w+n) for the writer. The claim is announced
// before the readers are inspected so that a reader attaching
// concurrently either is seen here or sees the claim (see attach).
func (s *sequencer) tryClaim(n uint64) (uint64, bool) {
	w := s.write.Load()
	s.claim.Store(w + n)
	if s.free(w) < n {
		s.claim.Store(w)
		return w, false
	}
	return w, true
}

// commit makes [.., end) visible to readers. The store to write is the
// last effect of a publish.
func (s *sequencer) commit(end uint64) {
	s.write.Store(end)
	s.claim.Store(end)
}

// cancel drops an unpublished claim.
func (s *sequencer) cancel() {
	s.claim.Store(s.write.Load())
}

// attach registers a new read cursor. A non-nil from clones that cursor's
// position; otherwise policy picks the start.
func (s *sequencer) attach(policy AttachPolicy, from *readCursor) *readCursor {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := *s.readers.Load()

	var start uint64
	switch {
	case from != nil:
		start = from.next.Load()
	case policy == AttachAtOldest:
		// with no reader left the retained window is fixed up below
		start, _ = minNext(current)
	default:
		start = s.write.Load()
	}

	c := &readCursor{}
	c.next.Store(start)

	next := make([]*readCursor, len(current), len(current)+1)
	copy(next, current)
	next = append(next, c)
	s.readers.Store(&next)

	// A claim made before the writer could observe c may overwrite slots
	// below claim-capacity; never start there.
	if claim := s.claim.Load(); claim > s.capacity && claim-s.capacity > start {
		c.next.Store(claim - s.capacity)
	}
	return c
}

// detach removes c from the minimum computation. It reports false when c
// was not attached.
func (s *sequencer) detach(c *readCursor) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := *s.readers.Load()
	for i, r := range current {
		if r != c {
			continue
		}
		next := make([]*readCursor, 0, len(current)-1)
		next = append(next, current[:i]...)
		next = append(next, current[i+1:]...)
		s.readers.Store(&next)
		return true
	}
	return false
}

func (s *sequencer) readerCount() int {
	return len(*s.readers.Load())
}
