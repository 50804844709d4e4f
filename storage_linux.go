//go:build linux

package flowbuf

import (
	"fmt"
	"reflect"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
)

// mappedStorage maps one memfd twice back to back, so slot i and
// i+capacity are the same memory and no mirror copy is needed.
//
// The mapping is released once the storage becomes unreachable. Views
// handed out must not be used after every handle of the buffer is gone.
type mappedStorage[T any] struct {
	data     []T
	mask     uint64
	capacity uint64
}

type mapping struct {
	base   unsafe.Pointer
	length uintptr
}

func newMappedStorage[T any](capacity uint64) (storage[T], uint64, error) {
	t := reflect.TypeFor[T]()
	size := uint64(t.Size())
	if size == 0 || !pointerFree(t) {
		return nil, 0, fmt.Errorf("%w: %s is not a pointer-free sized type", errMappingUnsupported, t)
	}

	// each half must cover whole pages
	page := uint64(unix.Getpagesize())
	if least := page / gcd(size, page); capacity < least {
		capacity = least
	}
	length := capacity * size

	fd, err := unix.MemfdCreate("flowbuf", unix.MFD_CLOEXEC)
	if err != nil {
		return nil, 0, fmt.Errorf("memfd_create: %w", err)
	}
	defer unix.Close(fd)

	if err := unix.Ftruncate(fd, int64(length)); err != nil {
		return nil, 0, fmt.Errorf("ftruncate: %w", err)
	}

	base, err := unix.MmapPtr(-1, 0, nil, uintptr(2*length), unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, 0, fmt.Errorf("reserve address range: %w", err)
	}
	for half := uint64(0); half < 2; half++ {
		addr := unsafe.Add(base, half*length)
		if _, err := unix.MmapPtr(fd, 0, addr, uintptr(length), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_FIXED); err != nil {
			_ = unix.MunmapPtr(base, uintptr(2*length))
			return nil, 0, fmt.Errorf("map half %d: %w", half, err)
		}
	}

	m := &mappedStorage[T]{
		data:     unsafe.Slice((*T)(base), 2*capacity),
		mask:     capacity - 1,
		capacity: capacity,
	}
	runtime.AddCleanup(m, func(r mapping) {
		_ = unix.MunmapPtr(r.base, r.length)
	}, mapping{base: base, length: uintptr(2 * length)})
	return m, capacity, nil
}

func (m *mappedStorage[T]) view(pos uint64, n int) []T {
	p := pos & m.mask
	end := p + uint64(n)
	return m.data[p:end:end]
}

func (m *mappedStorage[T]) mirror(uint64, int) {}

func (m *mappedStorage[T]) kind() string {
	return "mapped"
}

func gcd(a, b uint64) uint64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
