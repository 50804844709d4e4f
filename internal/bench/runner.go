package bench

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fastrand"

	"github.com/aradilov/flowbuf"
)

// ReaderResult is what one consumer observed.
type ReaderResult struct {
	Consumed   uint64 `yaml:"consumed" json:"consumed"`
	Mismatches uint64 `yaml:"mismatches" json:"mismatches"`
	FirstSeq   int64  `yaml:"first_seq" json:"first_seq"`
}

// Result summarizes a run.
type Result struct {
	RunID          string         `yaml:"run_id" json:"run_id"`
	Workload       string         `yaml:"workload" json:"workload"`
	Capacity       int            `yaml:"capacity" json:"capacity"`
	Published      uint64         `yaml:"published" json:"published"`
	Elapsed        string         `yaml:"elapsed" json:"elapsed"`
	ItemsPerSecond float64        `yaml:"items_per_second" json:"items_per_second"`
	Completed      bool           `yaml:"completed" json:"completed"`
	Readers        []ReaderResult `yaml:"readers" json:"readers"`
	Buffer         flowbuf.Stats  `yaml:"buffer" json:"buffer"`
}

// Mismatches returns the total number of out-of-sequence samples seen by
// all readers.
func (r *Result) Mismatches() uint64 {
	var n uint64
	for _, rr := range r.Readers {
		n += rr.Mismatches
	}
	return n
}

// Run executes wl. Samples carry their own sequence number so every reader
// can verify ordering and completeness. Extra options are passed to the
// buffer, after the ones derived from wl.
func Run(ctx context.Context, wl *Workload, logger *slog.Logger, opts ...flowbuf.Option) (*Result, error) {
	if err := wl.Validate(); err != nil {
		return nil, err
	}
	policy, _ := wl.AttachPolicy()
	timeout, _ := wl.TimeoutDuration()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	bufOpts := []flowbuf.Option{flowbuf.WithAttachPolicy(policy), flowbuf.WithLogger(logger)}
	if wl.DoubleMapping {
		bufOpts = append(bufOpts, flowbuf.WithDoubleMapping())
	}
	buf, err := flowbuf.NewCircular[float64](wl.Capacity, append(bufOpts, opts...)...)
	if err != nil {
		return nil, err
	}
	defer buf.Close()

	w, err := buf.NewWriter()
	if err != nil {
		return nil, err
	}
	defer w.Close()
	publisher, ok := w.(flowbuf.ContextPublisher[float64])
	if !ok {
		return nil, fmt.Errorf("bench: writer %T cannot publish with a context", w)
	}

	readers := make([]flowbuf.Reader[float64], wl.Readers)
	for i := range readers {
		if readers[i], err = buf.NewReader(); err != nil {
			return nil, err
		}
	}

	runID := uuid.NewString()
	logger = logger.With("run_id", runID)
	logger.Info("bench: starting",
		"workload", wl.Name,
		"capacity", buf.Size(),
		"readers", wl.Readers,
		"items", wl.Items,
		"attach", policy.String())

	results := make([]ReaderResult, wl.Readers)
	var wg sync.WaitGroup
	wg.Add(len(readers))
	start := time.Now()
	for i, r := range readers {
		go func(i int, r flowbuf.Reader[float64]) {
			defer wg.Done()
			defer r.Close()
			results[i] = consume(ctx, r, wl.Items, wl.MaxBlock)
		}(i, r)
	}

	var sent uint64
	span := uint32(wl.MaxBlock - wl.MinBlock + 1)
	for sent < wl.Items {
		if err := ctx.Err(); err != nil {
			logger.Warn("bench: producer stopped", "published", sent, "error", err)
			break
		}
		n := uint64(wl.MinBlock) + uint64(fastrand.Uint32n(span))
		if n > wl.Items-sent {
			n = wl.Items - sent
		}
		err := publisher.PublishContext(ctx, func(s []float64, seq int64) {
			for i := range s {
				s[i] = float64(seq + int64(i))
			}
		}, int(n))
		if err != nil {
			logger.Warn("bench: producer stopped", "published", sent, "error", err)
			break
		}
		sent += n
	}
	wg.Wait()
	elapsed := time.Since(start)

	res := &Result{
		RunID:     runID,
		Workload:  wl.Name,
		Capacity:  buf.Size(),
		Published: sent,
		Elapsed:   elapsed.String(),
		Completed: sent == wl.Items,
		Readers:   results,
		Buffer:    buf.Stats(),
	}
	if s := elapsed.Seconds(); s > 0 {
		res.ItemsPerSecond = float64(sent) / s
	}
	for _, rr := range results {
		if rr.Consumed != sent {
			res.Completed = false
		}
	}

	logger.Info("bench: finished",
		"workload", wl.Name,
		"published", sent,
		"elapsed", elapsed,
		"items_per_second", res.ItemsPerSecond,
		"mismatches", res.Mismatches())
	return res, nil
}

// consume drains r until it has seen items samples or ctx ends.
func consume(ctx context.Context, r flowbuf.Reader[float64], items uint64, block int) ReaderResult {
	res := ReaderResult{FirstSeq: r.Position() + 1}
	want := float64(res.FirstSeq)
	idle := 0
	for res.Consumed < items {
		got := r.Get(block)
		if len(got) == 0 {
			if idle++; idle%1024 == 0 && ctx.Err() != nil {
				return res
			}
			runtime.Gosched()
			continue
		}
		idle = 0
		for _, v := range got {
			if v != want {
				res.Mismatches++
				want = v
			}
			want++
		}
		r.Consume(len(got))
		res.Consumed += uint64(len(got))
	}
	return res
}
