package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-yaml"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aradilov/flowbuf/internal/bench"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		resetFlags(rootCmd.PersistentFlags())
		resetFlags(runCmd.Flags())
	})
	err := rootCmd.Execute()
	return out.String(), err
}

// resetFlags restores defaults so the next Execute starts clean.
func resetFlags(fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	})
}

func TestRunCommandJSON(t *testing.T) {
	out, err := execute(t, "run", "--log-level", "error", "--json",
		"--capacity", "256", "--readers", "2", "--items", "20000")
	require.NoError(t, err)

	var res bench.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.Completed)
	assert.Equal(t, 256, res.Capacity)
	assert.Equal(t, uint64(20000), res.Published)
	assert.Len(t, res.Readers, 2)
	assert.Zero(t, res.Mismatches())
}

func TestRunCommandWorkloadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "small.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: small
capacity: 64
readers: 1
items: 5000
max_block: 16
`), 0o644))

	out, err := execute(t, "run", "--log-level", "error", "-f", path)
	require.NoError(t, err)

	var res struct {
		Workload  string `yaml:"workload"`
		Capacity  int    `yaml:"capacity"`
		Published uint64 `yaml:"published"`
		Completed bool   `yaml:"completed"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(out), &res))
	assert.Equal(t, "small", res.Workload)
	assert.Equal(t, 64, res.Capacity)
	assert.Equal(t, uint64(5000), res.Published)
	assert.True(t, res.Completed)
}

func TestRunCommandInvalid(t *testing.T) {
	_, err := execute(t, "run", "--log-level", "error", "--attach", "tail")
	assert.ErrorContains(t, err, "unknown attach policy")

	_, err = execute(t, "run", "--log-level", "loud")
	assert.ErrorContains(t, err, "invalid log level")
}

func TestParseLevel(t *testing.T) {
	level, err := parseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, "DEBUG", level.String())

	_, err = parseLevel("chatty")
	assert.Error(t, err)
}
