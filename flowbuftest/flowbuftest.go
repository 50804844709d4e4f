// Package flowbuftest checks that a flowbuf.Buffer implementation honours
// the reader/writer contract: capacity bound, publish visibility, per-reader
// ordering, broadcast independence and try-publish atomicity.
package flowbuftest

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fastrand"

	"github.com/aradilov/flowbuf"
)

// Run executes the conformance suite against buffers built by ctor. The
// implementation must constrain the writer by its readers.
func Run(t *testing.T, ctor flowbuf.Constructor[int32]) {
	t.Run("PublishGetConsume", func(t *testing.T) { testPublishGetConsume(t, ctor) })
	t.Run("TryPublishCapacity", func(t *testing.T) { testTryPublishCapacity(t, ctor) })
	t.Run("SlowestReaderGatesWriter", func(t *testing.T) { testSlowestReaderGates(t, ctor) })
	t.Run("BroadcastIndependence", func(t *testing.T) { testBroadcastIndependence(t, ctor) })
	t.Run("TryPublishAtomicity", func(t *testing.T) { testTryPublishAtomicity(t, ctor) })
	t.Run("ConsumeBeyondAvailable", func(t *testing.T) { testConsumeBeyondAvailable(t, ctor) })
	t.Run("RequestTooLarge", func(t *testing.T) { testRequestTooLarge(t, ctor) })
	t.Run("WriteSequence", func(t *testing.T) { testWriteSequence(t, ctor) })
	t.Run("ReserveCommit", func(t *testing.T) { testReserveCommit(t, ctor) })
	t.Run("WrapAround", func(t *testing.T) { testWrapAround(t, ctor) })
	t.Run("ConcurrentOrdering", func(t *testing.T) { testConcurrentOrdering(t, ctor) })
}

type fixture struct {
	buf flowbuf.Buffer[int32]
	w   flowbuf.Writer[int32]
}

func newFixture(t *testing.T, ctor flowbuf.Constructor[int32], size int) *fixture {
	t.Helper()
	buf, err := ctor(size)
	require.NoError(t, err)
	require.GreaterOrEqual(t, buf.Size(), size)

	w, err := buf.NewWriter()
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return &fixture{buf: buf, w: w}
}

func (f *fixture) reader(t *testing.T) flowbuf.Reader[int32] {
	t.Helper()
	r, err := f.buf.NewReader()
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

// fillFrom writes first, first+1, ... into the span.
func fillFrom(first int32) func(span []int32) {
	return func(span []int32) {
		for i := range span {
			span[i] = first + int32(i)
		}
	}
}

func testPublishGetConsume(t *testing.T, ctor flowbuf.Constructor[int32]) {
	f := newFixture(t, ctor, 8)
	r := f.reader(t)
	assert.Equal(t, int64(-1), r.Position())

	require.NoError(t, f.w.Publish(fillFrom(1), 4))
	assert.Equal(t, 4, r.Available())
	assert.Equal(t, []int32{1, 2, 3, 4}, r.Get(4))
	assert.True(t, r.Consume(4))
	assert.Equal(t, 0, r.Available())
	assert.Equal(t, int64(3), r.Position())
	assert.Empty(t, r.Get(4))
}

func testTryPublishCapacity(t *testing.T, ctor flowbuf.Constructor[int32]) {
	f := newFixture(t, ctor, 8)
	r := f.reader(t)
	size := f.buf.Size()

	called := false
	assert.False(t, f.w.TryPublish(func([]int32) { called = true }, size+2))
	assert.False(t, called, "fill must not run when the request cannot fit")
	assert.Zero(t, r.Available())

	assert.True(t, f.w.TryPublish(fillFrom(0), size))
	assert.Equal(t, size, r.Available())
	assert.Zero(t, f.w.Available())

	assert.False(t, f.w.TryPublish(fillFrom(100), 1))
	require.True(t, r.Consume(1))
	assert.True(t, f.w.TryPublish(fillFrom(100), 1))
	assert.False(t, f.w.TryPublish(fillFrom(101), 1))
}

func testSlowestReaderGates(t *testing.T, ctor flowbuf.Constructor[int32]) {
	f := newFixture(t, ctor, 8)
	a := f.reader(t)
	b := f.reader(t)
	size := f.buf.Size()

	require.NoError(t, f.w.Publish(fillFrom(0), 5))
	require.True(t, a.Consume(5))
	require.True(t, b.Consume(2))

	assert.Equal(t, size-(5-2), f.w.Available())
	assert.Equal(t, 0, a.Available())
	assert.Equal(t, 3, b.Available())
}

func testBroadcastIndependence(t *testing.T, ctor flowbuf.Constructor[int32]) {
	f := newFixture(t, ctor, 16)
	a := f.reader(t)
	b := f.reader(t)

	require.NoError(t, f.w.Publish(fillFrom(10), 6))

	assert.Equal(t, []int32{10, 11, 12}, a.Get(3))
	require.True(t, a.Consume(3))
	assert.Equal(t, 6, b.Available(), "consuming in one reader must not affect another")
	assert.Equal(t, []int32{10, 11, 12, 13, 14, 15}, b.Get(16))

	require.True(t, b.Consume(6))
	assert.Equal(t, 3, a.Available())
	assert.Equal(t, []int32{13, 14, 15}, a.Get(16))
}

func testTryPublishAtomicity(t *testing.T, ctor flowbuf.Constructor[int32]) {
	f := newFixture(t, ctor, 8)
	r := f.reader(t)
	size := f.buf.Size()

	require.NoError(t, f.w.Publish(fillFrom(0), size))
	before := append([]int32(nil), r.Get(size)...)
	avail := f.w.Available()

	ok := f.w.TryPublishWithSequence(func(span []int32, _ int64) {
		for i := range span {
			span[i] = -1
		}
	}, 1)
	assert.False(t, ok)
	assert.Equal(t, before, r.Get(size))
	assert.Equal(t, size, r.Available())
	assert.Equal(t, avail, f.w.Available())
}

func testConsumeBeyondAvailable(t *testing.T, ctor flowbuf.Constructor[int32]) {
	f := newFixture(t, ctor, 8)
	r := f.reader(t)

	require.NoError(t, f.w.Publish(fillFrom(0), 3))
	assert.False(t, r.Consume(4))
	assert.Equal(t, int64(-1), r.Position())
	assert.Equal(t, 3, r.Available())
	assert.True(t, r.Consume(0))
	assert.True(t, r.Consume(3))
	assert.False(t, r.Consume(1))
	assert.Equal(t, int64(2), r.Position())
}

func testRequestTooLarge(t *testing.T, ctor flowbuf.Constructor[int32]) {
	f := newFixture(t, ctor, 8)
	f.reader(t)
	size := f.buf.Size()

	err := f.w.Publish(fillFrom(0), size+1)
	assert.ErrorIs(t, err, flowbuf.ErrRequestTooLarge)

	_, err = f.w.ReserveOutputRange(size + 1)
	assert.ErrorIs(t, err, flowbuf.ErrRequestTooLarge)
}

func testWriteSequence(t *testing.T, ctor flowbuf.Constructor[int32]) {
	f := newFixture(t, ctor, 8)
	r := f.reader(t)

	var seqs []int64
	fill := func(span []int32, seq int64) {
		seqs = append(seqs, seq)
		for i := range span {
			span[i] = int32(seq) + int32(i)
		}
	}
	require.NoError(t, f.w.PublishWithSequence(fill, 3))
	require.True(t, f.w.TryPublishWithSequence(fill, 2))
	assert.Equal(t, []int64{0, 3}, seqs)
	assert.Equal(t, []int32{0, 1, 2, 3, 4}, r.Get(5))
}

func testReserveCommit(t *testing.T, ctor flowbuf.Constructor[int32]) {
	f := newFixture(t, ctor, 8)
	r := f.reader(t)

	span, err := f.w.ReserveOutputRange(4)
	require.NoError(t, err)
	require.Len(t, span, 4)
	fillFrom(7)(span)
	assert.Zero(t, r.Available(), "reserved data must stay invisible")
	assert.Equal(t, f.buf.Size()-4, f.w.Available(), "reserved slots are not free")

	assert.ErrorIs(t, f.w.Publish(fillFrom(0), 1), flowbuf.ErrReservationPending)

	require.NoError(t, f.w.Commit(4))
	assert.Equal(t, []int32{7, 8, 9, 10}, r.Get(4))
	assert.ErrorIs(t, f.w.Commit(1), flowbuf.ErrNoReservation)
}

func testWrapAround(t *testing.T, ctor flowbuf.Constructor[int32]) {
	f := newFixture(t, ctor, 8)
	r := f.reader(t)
	size := f.buf.Size()
	block := size/2 + 1

	next := int32(0)
	for round := 0; round < 8; round++ {
		require.NoError(t, f.w.Publish(fillFrom(next), block))
		got := r.Get(block)
		require.Len(t, got, block, "views must be contiguous across the wrap point")
		for i, v := range got {
			require.Equal(t, next+int32(i), v)
		}
		require.True(t, r.Consume(block))
		next += int32(block)
	}
}

func testConcurrentOrdering(t *testing.T, ctor flowbuf.Constructor[int32]) {
	const (
		items   = 200_000
		readers = 3
	)
	f := newFixture(t, ctor, 1024)
	size := f.buf.Size()

	rs := make([]flowbuf.Reader[int32], readers)
	for i := range rs {
		rs[i] = f.reader(t)
	}

	var wg sync.WaitGroup
	errs := make(chan string, readers)
	wg.Add(readers)
	for _, r := range rs {
		go func(r flowbuf.Reader[int32]) {
			defer wg.Done()
			want := int32(0)
			for want < items {
				got := r.Get(int(fastrand.Uint32n(uint32(size))) + 1)
				for _, v := range got {
					if v != want {
						errs <- "out of order"
						return
					}
					want++
				}
				if !r.Consume(len(got)) {
					errs <- "consume failed"
					return
				}
			}
		}(r)
	}

	sent := int32(0)
	for sent < items {
		n := int32(fastrand.Uint32n(uint32(size/2))) + 1
		if n > items-sent {
			n = items - sent
		}
		require.NoError(t, f.w.Publish(fillFrom(sent), int(n)))
		sent += n
	}

	wg.Wait()
	close(errs)
	for e := range errs {
		t.Error(e)
	}
}
