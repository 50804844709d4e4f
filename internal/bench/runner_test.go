package bench

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aradilov/flowbuf"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestRunDeliversEverySample(t *testing.T) {
	for _, attach := range []string{"head", "oldest"} {
		t.Run(attach, func(t *testing.T) {
			wl := DefaultWorkload()
			wl.Capacity = 256
			wl.Readers = 3
			wl.Items = 50_000
			wl.MaxBlock = 64
			wl.Attach = attach

			res, err := Run(context.Background(), wl, quiet)
			require.NoError(t, err)
			assert.True(t, res.Completed)
			assert.NoError(t, uuid.Validate(res.RunID))
			assert.Equal(t, wl.Items, res.Published)
			assert.Zero(t, res.Mismatches())
			require.Len(t, res.Readers, 3)
			for _, rr := range res.Readers {
				assert.Equal(t, wl.Items, rr.Consumed)
				assert.Equal(t, int64(0), rr.FirstSeq)
			}
			assert.Equal(t, wl.Items, res.Buffer.Published)
			assert.Equal(t, 3*wl.Items, res.Buffer.ConsumedItems)
			assert.Equal(t, uint64(3), res.Buffer.ReadersDetached)
		})
	}
}

func TestRunWithMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	wl := DefaultWorkload()
	wl.Capacity = 128
	wl.Items = 10_000
	wl.MaxBlock = 32
	wl.DoubleMapping = true

	res, err := Run(context.Background(), wl, quiet, flowbuf.WithMetrics(reg, wl.Name))
	require.NoError(t, err)
	assert.True(t, res.Completed)
	assert.Equal(t, wl.Items, res.Buffer.Published)

	// the buffer is unregistered when the run ends
	count, err := testutil.GatherAndCount(reg, "flowbuf_buffer_published_items_total")
	require.NoError(t, err)
	assert.Zero(t, count)

	// so the same workload name can run again on the same registry
	res, err = Run(context.Background(), wl, quiet, flowbuf.WithMetrics(reg, wl.Name))
	require.NoError(t, err)
	assert.True(t, res.Completed)
}

func TestRunCancelled(t *testing.T) {
	wl := DefaultWorkload()
	wl.Capacity = 64
	wl.MaxBlock = 16
	wl.Items = 1 << 40

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := Run(ctx, wl, quiet)
	require.NoError(t, err)
	assert.False(t, res.Completed)
	assert.Less(t, res.Published, wl.Items)
}

func TestRunRejectsInvalidWorkload(t *testing.T) {
	wl := DefaultWorkload()
	wl.Readers = 0
	_, err := Run(context.Background(), wl, quiet)
	assert.Error(t, err)
}
