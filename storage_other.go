//go:build !linux

package flowbuf

func newMappedStorage[T any](uint64) (storage[T], uint64, error) {
	return nil, 0, errMappingUnsupported
}
