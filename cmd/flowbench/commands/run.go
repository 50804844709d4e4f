package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-yaml"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/aradilov/flowbuf"
	"github.com/aradilov/flowbuf/internal/bench"
)

var (
	runCapacity    int
	runReaders     int
	runItems       uint64
	runAttach      string
	runDoubleMap   bool
	runJSON        bool
	runMetricsAddr string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a workload",
	Long: `Run a workload and print the result as YAML (or JSON with --json).

Flags override the matching fields of the workload file. Without -f the
default workload is used.

With --metrics-addr the buffer statistics are served in Prometheus format
at /metrics for the duration of the run.

Examples:
  flowbench run
  flowbench run -f fanout.yaml --readers 8
  flowbench run --capacity 65536 --items 100000000 --metrics-addr :9100`,
	RunE: func(cmd *cobra.Command, args []string) error {
		wl, err := loadWorkload(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger := slog.Default()
		var opts []flowbuf.Option
		if runMetricsAddr != "" {
			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector())
			shutdown, err := serveMetrics(runMetricsAddr, reg, logger)
			if err != nil {
				return err
			}
			defer shutdown()
			opts = append(opts, flowbuf.WithMetrics(reg, wl.Name))
		}

		res, err := bench.Run(ctx, wl, logger, opts...)
		if err != nil {
			return err
		}
		if err := writeResult(cmd.OutOrStdout(), res, runJSON); err != nil {
			return err
		}
		if n := res.Mismatches(); n > 0 {
			return fmt.Errorf("%d samples arrived out of sequence", n)
		}
		if !res.Completed {
			return errors.New("run did not complete")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().IntVar(&runCapacity, "capacity", 0, "override buffer capacity")
	runCmd.Flags().IntVar(&runReaders, "readers", 0, "override number of readers")
	runCmd.Flags().Uint64Var(&runItems, "items", 0, "override number of items to publish")
	runCmd.Flags().StringVar(&runAttach, "attach", "", "override attach policy (head, oldest)")
	runCmd.Flags().BoolVar(&runDoubleMap, "double-mapping", false, "use double-mapped storage when available")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the result as JSON")
	runCmd.Flags().StringVar(&runMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
}

func loadWorkload(cmd *cobra.Command) (*bench.Workload, error) {
	wl := bench.DefaultWorkload()
	if workloadFile != "" {
		var err error
		if wl, err = bench.LoadWorkload(workloadFile); err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("capacity") {
		wl.Capacity = runCapacity
	}
	if flags.Changed("readers") {
		wl.Readers = runReaders
	}
	if flags.Changed("items") {
		wl.Items = runItems
	}
	if flags.Changed("attach") {
		wl.Attach = runAttach
	}
	if flags.Changed("double-mapping") {
		wl.DoubleMapping = runDoubleMap
	}
	if wl.MaxBlock > wl.Capacity && wl.Capacity > 0 {
		wl.MaxBlock = wl.Capacity
		if wl.MinBlock > wl.MaxBlock {
			wl.MinBlock = wl.MaxBlock
		}
	}
	if err := wl.Validate(); err != nil {
		return nil, fmt.Errorf("invalid workload: %w", err)
	}
	return wl, nil
}

func writeResult(w io.Writer, res *bench.Result, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	data, err := yaml.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// serveMetrics starts an HTTP server exposing reg on addr and returns a
// function that stops it.
func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	srv := &http.Server{Handler: mux}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("flowbench: metrics server failed", "error", err)
		}
	}()
	logger.Info("flowbench: serving metrics", "addr", ln.Addr().String())

	return func() {
		_ = srv.Shutdown(context.Background())
	}, nil
}
