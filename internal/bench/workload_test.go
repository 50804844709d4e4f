package bench

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aradilov/flowbuf"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "workload.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadWorkload(t *testing.T) {
	path := writeFile(t, `
name: fanout
capacity: 1024
readers: 3
items: 5000
max_block: 128
timeout: 5s
attach: oldest
double_mapping: true
`)

	wl, err := LoadWorkload(path)
	require.NoError(t, err)
	assert.Equal(t, "fanout", wl.Name)
	assert.Equal(t, 1024, wl.Capacity)
	assert.Equal(t, 3, wl.Readers)
	assert.Equal(t, uint64(5000), wl.Items)
	assert.Equal(t, 1, wl.MinBlock, "missing fields keep defaults")
	assert.Equal(t, 128, wl.MaxBlock)
	assert.True(t, wl.DoubleMapping)

	policy, err := wl.AttachPolicy()
	require.NoError(t, err)
	assert.Equal(t, flowbuf.AttachAtOldest, policy)

	d, err := wl.TimeoutDuration()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, d)
}

func TestLoadWorkloadErrors(t *testing.T) {
	_, err := LoadWorkload(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = LoadWorkload(writeFile(t, "capacity: [1, 2"))
	assert.Error(t, err)

	_, err = LoadWorkload(writeFile(t, "capacity: 16\nmax_block: 32\n"))
	assert.ErrorContains(t, err, "max_block 32 exceeds capacity 16")
}

func TestWorkloadValidate(t *testing.T) {
	for name, mutate := range map[string]func(*Workload){
		"capacity": func(w *Workload) { w.Capacity = 0 },
		"readers":  func(w *Workload) { w.Readers = 0 },
		"items":    func(w *Workload) { w.Items = 0 },
		"block":    func(w *Workload) { w.MinBlock, w.MaxBlock = 8, 4 },
		"attach":   func(w *Workload) { w.Attach = "tail" },
		"timeout":  func(w *Workload) { w.Timeout = "soon" },
		"negative": func(w *Workload) { w.Timeout = "-1s" },
	} {
		t.Run(name, func(t *testing.T) {
			wl := DefaultWorkload()
			mutate(wl)
			assert.Error(t, wl.Validate())
		})
	}

	assert.NoError(t, DefaultWorkload().Validate())
}
