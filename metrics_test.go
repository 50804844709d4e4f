package flowbuf_test

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aradilov/flowbuf"
)

func TestMetricsExport(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()

	b, err := flowbuf.NewCircular[float32](8, flowbuf.WithMetrics(reg, "fir_in"), flowbuf.WithLogger(quiet))
	require.NoError(t, err)
	w, err := b.NewWriter()
	require.NoError(t, err)
	r, err := b.NewReader()
	require.NoError(t, err)

	require.NoError(t, w.Publish(func([]float32) {}, 5))
	require.True(t, r.Consume(2))

	count, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 13, count)

	expected := `
# HELP flowbuf_buffer_backlog Published items not yet consumed by the slowest reader
# TYPE flowbuf_buffer_backlog gauge
flowbuf_buffer_backlog{buffer="fir_in"} 3
# HELP flowbuf_buffer_published_items_total Total number of items published
# TYPE flowbuf_buffer_published_items_total counter
flowbuf_buffer_published_items_total{buffer="fir_in"} 5
# HELP flowbuf_buffer_readers Number of attached readers
# TYPE flowbuf_buffer_readers gauge
flowbuf_buffer_readers{buffer="fir_in"} 1
`
	err = testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"flowbuf_buffer_backlog",
		"flowbuf_buffer_published_items_total",
		"flowbuf_buffer_readers")
	assert.NoError(t, err)
}

func TestMetricsDuplicateName(t *testing.T) {
	reg := prometheus.NewRegistry()

	_, err := flowbuf.NewCircular[float32](8, flowbuf.WithMetrics(reg, "dup"), flowbuf.WithLogger(quiet))
	require.NoError(t, err)

	b, err := flowbuf.NewCircular[float32](8, flowbuf.WithMetrics(reg, "dup"), flowbuf.WithLogger(quiet))
	assert.Error(t, err)
	assert.Nil(t, b)

	// a different label value registers fine
	_, err = flowbuf.NewCircular[float32](8, flowbuf.WithMetrics(reg, "other"), flowbuf.WithLogger(quiet))
	assert.NoError(t, err)
}

func TestMetricsCloseUnregisters(t *testing.T) {
	reg := prometheus.NewRegistry()

	b, err := flowbuf.NewCircular[float32](8, flowbuf.WithMetrics(reg, "fir_out"), flowbuf.WithLogger(quiet))
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 13, count)

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	count, err = testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Zero(t, count)

	// the name is free again
	_, err = flowbuf.NewCircular[float32](8, flowbuf.WithMetrics(reg, "fir_out"), flowbuf.WithLogger(quiet))
	assert.NoError(t, err)
}
