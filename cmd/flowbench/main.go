// Package main provides the flowbench tool, which drives a flowbuf buffer
// with one producer and several consumers and reports throughput and
// ordering errors.
//
// Usage:
//
//	flowbench [flags] <command> [args]
//
// Commands:
//
//	run      - Run a workload
//	version  - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/aradilov/flowbuf/cmd/flowbench/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
