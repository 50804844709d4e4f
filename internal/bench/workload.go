// Package bench drives a flowbuf buffer with one producer and several
// consumers and checks that every consumer sees the exact sample
// sequence that was produced.
package bench

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/aradilov/flowbuf"
)

// Workload describes one benchmark run.
//
// Example workload file:
//
//	name: fir-fanout
//	capacity: 4096
//	readers: 3
//	items: 10000000
//	min_block: 64
//	max_block: 1024
//	timeout: 30s
//	attach: head
//	double_mapping: true
type Workload struct {
	Name          string `yaml:"name"`
	Capacity      int    `yaml:"capacity"`
	Readers       int    `yaml:"readers"`
	Items         uint64 `yaml:"items"`
	MinBlock      int    `yaml:"min_block"`
	MaxBlock      int    `yaml:"max_block"`
	Timeout       string `yaml:"timeout"`
	Attach        string `yaml:"attach"`
	DoubleMapping bool   `yaml:"double_mapping"`
}

// DefaultWorkload returns the workload used when no file is given.
func DefaultWorkload() *Workload {
	return &Workload{
		Name:     "default",
		Capacity: 4096,
		Readers:  2,
		Items:    1_000_000,
		MinBlock: 1,
		MaxBlock: 512,
		Timeout:  "1m",
		Attach:   flowbuf.AttachAtHead.String(),
	}
}

// LoadWorkload reads a YAML workload file. Fields missing from the file
// keep their DefaultWorkload value.
func LoadWorkload(path string) (*Workload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workload %s: %w", path, err)
	}

	wl := DefaultWorkload()
	if err := yaml.Unmarshal(data, wl); err != nil {
		return nil, fmt.Errorf("failed to parse workload %s: %w", path, err)
	}
	if err := wl.Validate(); err != nil {
		return nil, fmt.Errorf("invalid workload %s: %w", path, err)
	}
	return wl, nil
}

// Validate checks the workload for values the runner cannot honour.
func (w *Workload) Validate() error {
	var errs []error
	if w.Capacity <= 0 || w.Capacity > flowbuf.MaxCapacity {
		errs = append(errs, fmt.Errorf("capacity %d out of range", w.Capacity))
	}
	if w.Readers < 1 {
		errs = append(errs, fmt.Errorf("readers must be >= 1, got %d", w.Readers))
	}
	if w.Items == 0 {
		errs = append(errs, errors.New("items must be > 0"))
	}
	if w.MinBlock < 1 || w.MaxBlock < w.MinBlock {
		errs = append(errs, fmt.Errorf("block range [%d, %d] is invalid", w.MinBlock, w.MaxBlock))
	}
	if w.MaxBlock > w.Capacity {
		errs = append(errs, fmt.Errorf("max_block %d exceeds capacity %d", w.MaxBlock, w.Capacity))
	}
	if _, err := w.AttachPolicy(); err != nil {
		errs = append(errs, err)
	}
	if _, err := w.TimeoutDuration(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// AttachPolicy parses the attach field.
func (w *Workload) AttachPolicy() (flowbuf.AttachPolicy, error) {
	switch w.Attach {
	case "", flowbuf.AttachAtHead.String():
		return flowbuf.AttachAtHead, nil
	case flowbuf.AttachAtOldest.String():
		return flowbuf.AttachAtOldest, nil
	default:
		return 0, fmt.Errorf("unknown attach policy %q", w.Attach)
	}
}

// TimeoutDuration parses the timeout field; empty means no timeout.
func (w *Workload) TimeoutDuration() (time.Duration, error) {
	if w.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(w.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", w.Timeout, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative timeout %q", w.Timeout)
	}
	return d, nil
}
