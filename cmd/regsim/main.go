// Package main provides the entry point for regsim.
// regsim drives a physical register allocator against a binary
// instruction trace and reports rename/retirement statistics.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sarchlab/regsim/regalloc"
	"github.com/sarchlab/regsim/sim"
	"github.com/sarchlab/regsim/trace"
)

var (
	tracePath   = flag.String("trace", "", "Path to the binary trace file (required)")
	numPhysical = flag.Int("num-phys", 64, "Number of physical registers")
	sparc       = flag.Bool("sparc", false, "Decode the trace using the SPARC record variant")
	configPath  = flag.String("config", "", "Path to driver configuration JSON file")
	windowSize  = flag.Int("window", 0, "Override the configured in-flight window size (0 = use config)")
	verbose     = flag.Bool("v", false, "Verbose per-cycle trace")
	debugDump   = flag.Bool("debug-dump", false, "Trace every allocator call, and print allocator state if the run stalls on the free list")
)

func main() {
	flag.Parse()

	if *tracePath == "" {
		fmt.Fprintf(os.Stderr, "Usage: regsim -trace <trace-file> [options]\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	config, err := loadDriverConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading driver config: %v\n", err)
		os.Exit(1)
	}

	os.Exit(run(*tracePath, config))
}

func loadDriverConfig() (*sim.Config, error) {
	var config *sim.Config
	var err error

	if *configPath != "" {
		config, err = sim.LoadConfig(*configPath)
		if err != nil {
			return nil, err
		}
	} else {
		config = sim.DefaultConfig()
	}

	if *windowSize > 0 {
		config.WindowSize = *windowSize
	}

	return config, nil
}

func run(path string, config *sim.Config) int {
	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening trace: %v\n", err)
		return 1
	}
	defer f.Close()

	variant := trace.VariantDefault
	if *sparc {
		variant = trace.VariantSPARC
	}

	var allocOpts []regalloc.Option
	if *debugDump {
		allocOpts = append(allocOpts, regalloc.WithDebugDump(os.Stdout))
	}

	alloc, err := regalloc.NewAllocator(*numPhysical, allocOpts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating allocator: %v\n", err)
		return 1
	}

	reader := trace.NewReader(f, trace.WithVariant(variant))

	driverOpts := []sim.Option{sim.WithConfig(config)}
	if *verbose {
		driverOpts = append(driverOpts, sim.WithVerbose(os.Stdout))
	}

	driver := sim.NewDriver(alloc, reader, driverOpts...)

	stats, err := driver.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error running trace: %v\n", err)
		return 1
	}

	printReport(path, stats)

	if *debugDump && stats.StallsOnFreeList > 0 {
		fmt.Printf("\nAllocator state at end of run (%d free-list stalls):\n", stats.StallsOnFreeList)
		alloc.Dump(os.Stdout)
	}

	return 0
}

func printReport(tracePath string, stats sim.Stats) {
	fmt.Printf("Trace: %s\n", tracePath)
	fmt.Printf("Cycles:               %d\n", stats.Cycles)
	fmt.Printf("Instructions retired: %d\n", stats.InstructionsRetired)
	fmt.Printf("IPC:                  %.3f\n", stats.IPC())
	fmt.Printf("Squashes:             %d\n", stats.Squashes)
	fmt.Printf("Free-list stalls:     %d\n", stats.StallsOnFreeList)
}
