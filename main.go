// Package main provides the entry point for regsim.
// regsim drives a physical register allocator against a binary
// instruction trace.
//
// For the full CLI, use: go run ./cmd/regsim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("regsim - physical register allocator trace driver")
	fmt.Println("")
	fmt.Println("Usage: regsim -trace <trace-file> [options]")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -num-phys    Number of physical registers")
	fmt.Println("  -sparc       Decode the trace using the SPARC record variant")
	fmt.Println("  -config      Path to driver configuration JSON file")
	fmt.Println("  -window      Override the configured in-flight window size")
	fmt.Println("  -v           Verbose per-cycle trace")
	fmt.Println("  -debug-dump  Trace every allocator call, and print allocator state if the run stalls on the free list")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/regsim' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/regsim' instead.")
	}
}
