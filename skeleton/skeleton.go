// Package skeleton is a minimal, non-functional implementation of the
// flowbuf contract. It exists to check that the Buffer, Reader and Writer
// interfaces can be satisfied and as a starting point for new buffer
// implementations. It stores nothing and must not carry real data.
package skeleton

import (
	"github.com/aradilov/flowbuf"
)

type impl[T any] struct {
	data []T
}

// Buffer is a stand-in buffer of fixed size.
type Buffer[T any] struct {
	shared *impl[T]
}

// New returns a skeleton buffer of exactly minSize slots.
func New[T any](minSize int) *Buffer[T] {
	return &Buffer[T]{shared: &impl[T]{data: make([]T, max(minSize, 0))}}
}

// Constructor adapts New to flowbuf.Constructor.
func Constructor[T any](minSize int) (flowbuf.Buffer[T], error) {
	return New[T](minSize), nil
}

func (b *Buffer[T]) Size() int {
	return len(b.shared.data)
}

func (b *Buffer[T]) NewReader() (flowbuf.Reader[T], error) {
	return &reader[T]{shared: b.shared}, nil
}

func (b *Buffer[T]) NewWriter() (flowbuf.Writer[T], error) {
	return &writer[T]{shared: b.shared}, nil
}

type reader[T any] struct {
	shared *impl[T]
}

func (r *reader[T]) Buffer() flowbuf.Buffer[T] {
	return &Buffer[T]{shared: r.shared}
}

func (r *reader[T]) Get(int) []T      { return nil }
func (r *reader[T]) Consume(int) bool { return true }
func (r *reader[T]) Position() int64  { return -1 }
func (r *reader[T]) Available() int   { return 0 }
func (r *reader[T]) Close() error     { return nil }

type writer[T any] struct {
	shared *impl[T]
}

func (w *writer[T]) Buffer() flowbuf.Buffer[T] {
	return &Buffer[T]{shared: w.shared}
}

func (w *writer[T]) ReserveOutputRange(n int) ([]T, error) {
	if n > len(w.shared.data) {
		return nil, flowbuf.ErrRequestTooLarge
	}
	return w.shared.data[:max(n, 0)], nil
}

func (w *writer[T]) Commit(int) error                                         { return nil }
func (w *writer[T]) Publish(func(span []T), int) error                        { return nil }
func (w *writer[T]) PublishWithSequence(func(span []T, seq int64), int) error { return nil }

// TryPublish only succeeds for empty requests.
func (w *writer[T]) TryPublish(_ func(span []T), n int) bool { return n == 0 }

func (w *writer[T]) TryPublishWithSequence(_ func(span []T, seq int64), n int) bool {
	return n == 0
}

// Available reports the whole buffer as free.
func (w *writer[T]) Available() int { return len(w.shared.data) }
func (w *writer[T]) Close() error   { return nil }

var (
	_ flowbuf.Buffer[int32]      = (*Buffer[int32])(nil)
	_ flowbuf.Reader[int32]      = (*reader[int32])(nil)
	_ flowbuf.Writer[int32]      = (*writer[int32])(nil)
	_ flowbuf.Constructor[int32] = Constructor[int32]
)
