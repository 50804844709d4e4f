package skeleton

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aradilov/flowbuf"
)

type nonCompliant[T any] struct{}

func (nonCompliant[T]) Get(int) []T { return nil }

func TestNonCompliantTypeIsRejected(t *testing.T) {
	var v any = nonCompliant[int32]{}

	_, isBuffer := v.(flowbuf.Buffer[int32])
	_, isReader := v.(flowbuf.Reader[int32])
	_, isWriter := v.(flowbuf.Writer[int32])

	assert.False(t, isBuffer)
	assert.False(t, isReader)
	assert.False(t, isWriter)
}

func TestSkeletonShape(t *testing.T) {
	buf, err := Constructor[int32](16)
	require.NoError(t, err)
	assert.Equal(t, 16, buf.Size())

	r, err := buf.NewReader()
	require.NoError(t, err)
	w, err := buf.NewWriter()
	require.NoError(t, err)

	assert.Equal(t, int64(-1), r.Position())
	assert.Zero(t, r.Available())
	assert.Empty(t, r.Get(4))
	assert.Equal(t, 16, r.Buffer().Size())

	span, err := w.ReserveOutputRange(4)
	require.NoError(t, err)
	assert.Len(t, span, 4)

	_, err = w.ReserveOutputRange(17)
	assert.ErrorIs(t, err, flowbuf.ErrRequestTooLarge)

	called := false
	assert.True(t, w.TryPublish(func([]int32) { called = true }, 0))
	assert.False(t, w.TryPublish(func([]int32) { called = true }, 1))
	assert.False(t, called, "skeleton never runs fill routines")
	assert.Equal(t, 16, w.Available())
	assert.NoError(t, w.Close())
	assert.NoError(t, r.Close())
}
