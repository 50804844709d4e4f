package commands

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	logLevel     string
	workloadFile string
)

var rootCmd = &cobra.Command{
	Use:   "flowbench",
	Short: "Throughput and ordering checks for flowbuf buffers",
	Long: `flowbench - drive a flowbuf buffer with one producer and several readers.

Every sample carries its own sequence number, so each reader verifies that
it saw the produced stream in order and without gaps.

Example workload file (fanout.yaml):
  name: fir-fanout
  capacity: 4096
  readers: 3
  items: 10000000
  min_block: 64
  max_block: 1024
  timeout: 30s
  attach: head
  double_mapping: true`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := parseLevel(logLevel)
		if err != nil {
			return err
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&workloadFile, "file", "f", "", "workload file (YAML)")
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}
