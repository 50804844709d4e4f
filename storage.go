package flowbuf

import (
	"errors"
	"log/slog"
	"math/bits"
	"reflect"
)

// MaxCapacity is the largest number of items a buffer can be asked for.
const MaxCapacity = 1 << 30

var errMappingUnsupported = errors.New("double mapping unsupported")

// storage is the fixed slot array of a buffer. Logical sequence k lives
// at physical slot k&mask, and every view of up to capacity items is
// contiguous no matter where it starts.
type storage[T any] interface {
	// view returns n slots starting at sequence pos.
	view(pos uint64, n int) []T
	// mirror propagates n freshly written slots starting at pos to their
	// aliases. It runs before the slots are published.
	mirror(pos uint64, n int)
	kind() string
}

// heapStorage keeps 2*capacity slots where slot i and i+capacity always
// hold the same item, so a view may run past the physical end.
type heapStorage[T any] struct {
	data     []T
	mask     uint64
	capacity uint64
}

func newHeapStorage[T any](capacity uint64) *heapStorage[T] {
	return &heapStorage[T]{
		data:     make([]T, 2*capacity),
		mask:     capacity - 1,
		capacity: capacity,
	}
}

func (h *heapStorage[T]) view(pos uint64, n int) []T {
	p := pos & h.mask
	end := p + uint64(n)
	return h.data[p:end:end]
}

func (h *heapStorage[T]) mirror(pos uint64, n int) {
	p := pos & h.mask
	end := p + uint64(n)
	if end <= h.capacity {
		copy(h.data[p+h.capacity:end+h.capacity], h.data[p:end])
		return
	}
	copy(h.data[p+h.capacity:], h.data[p:h.capacity])
	copy(h.data[:end-h.capacity], h.data[h.capacity:end])
}

func (h *heapStorage[T]) kind() string {
	return "heap"
}

// roundCapacity rounds n up to the next power of two.
func roundCapacity(n uint64) uint64 {
	if n&(n-1) == 0 {
		return n
	}
	return 1 << bits.Len64(n)
}

// newStorage allocates storage for at least capacity items and returns it
// with the capacity actually used.
func newStorage[T any](capacity uint64, doubleMapping bool, logger *slog.Logger) (storage[T], uint64) {
	if doubleMapping {
		m, mapped, err := newMappedStorage[T](capacity)
		if err == nil {
			return m, mapped
		}
		logger.Debug("flowbuf: falling back to heap storage",
			"type", reflect.TypeFor[T]().String(),
			"capacity", capacity,
			"error", err)
	}
	return newHeapStorage[T](capacity), capacity
}

// pointerFree reports whether values of t contain no Go pointers and may
// therefore live in memory the garbage collector does not scan.
func pointerFree(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	case reflect.Array:
		return t.Len() == 0 || pointerFree(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if !pointerFree(t.Field(i).Type) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
