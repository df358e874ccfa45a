package minbench

import (
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/LynnColeArt/parmin"
)

// Environment variables that override the defaults.
const (
	EnvElements   = "PARMIN_ELEMENTS"
	EnvIterations = "PARMIN_ITERATIONS"
	EnvSeed       = "PARMIN_SEED"
)

// Config describes one benchmark session.
type Config struct {
	Elements   int    // Source array length in uint32 elements
	Iterations int    // Dispatch pairs per run
	Runs       int    // Independent timed runs over the same source
	Seed       uint32 // Generator seed; zero seeds from the wall clock
	KernelFile string // Kernel source path; empty uses the embedded source
	ResultsDir string // Directory for the JSON results log; empty disables it
	Counters   bool   // Collect hardware counters over each timed window
	ColdCache  bool   // Evict the source from the CPU caches before each run
}

// DefaultConfig returns the configuration of the reference benchmark.
func DefaultConfig() Config {
	return Config{
		Elements:   parmin.DefaultElements,
		Iterations: parmin.DefaultIterations,
		Runs:       1,
	}
}

// Validate rejects configurations the planner and orchestrator cannot run.
func (c Config) Validate() error {
	switch {
	case c.Elements < parmin.VectorWidth || c.Elements%parmin.VectorWidth != 0:
		return parmin.NewInvalidArgError("Config",
			fmt.Sprintf("elements must be a positive multiple of %d, got %d", parmin.VectorWidth, c.Elements))
	case uint64(c.Elements) > math.MaxUint32:
		return parmin.NewInvalidArgError("Config",
			fmt.Sprintf("elements must not exceed %d, got %d", uint64(math.MaxUint32), c.Elements))
	case c.Iterations < 1:
		return parmin.NewInvalidArgError("Config",
			fmt.Sprintf("iterations must be at least 1, got %d", c.Iterations))
	case c.Runs < 1:
		return parmin.NewInvalidArgError("Config",
			fmt.Sprintf("runs must be at least 1, got %d", c.Runs))
	}
	return nil
}

// ApplyEnv overrides fields from PARMIN_* environment variables.
func (c *Config) ApplyEnv() error {
	if v, ok := os.LookupEnv(EnvElements); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return parmin.NewInvalidArgError("Config", fmt.Sprintf("%s=%q: %v", EnvElements, v, err))
		}
		c.Elements = n
	}
	if v, ok := os.LookupEnv(EnvIterations); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return parmin.NewInvalidArgError("Config", fmt.Sprintf("%s=%q: %v", EnvIterations, v, err))
		}
		c.Iterations = n
	}
	if v, ok := os.LookupEnv(EnvSeed); ok {
		n, err := strconv.ParseUint(v, 0, 32)
		if err != nil {
			return parmin.NewInvalidArgError("Config", fmt.Sprintf("%s=%q: %v", EnvSeed, v, err))
		}
		c.Seed = uint32(n)
	}
	return nil
}
