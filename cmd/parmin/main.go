// Command parmin finds the minimum of a large uint32 array with a two-stage
// parallel reduction, verifies it against a serial scan and reports the
// memory bandwidth achieved.
//
// Usage:
//
//	parmin [-device cpu|simd|gpu] [-n elements] [-iterations L] [-runs R]
//	       [-seed S] [-kernel path] [-json dir] [-units U] [-lowpower]
//	       [-counters] [-cold] [-v] [-version]
//
// Several devices may be given as a comma separated list. Exit status is 0
// when every result is correct, 1 on a verification mismatch, 2 when no
// device is available, 3 on a kernel compile failure, 4 when device memory
// runs out, 5 on a dispatch failure and 6 on invalid arguments.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"

	"github.com/LynnColeArt/parmin"
	"github.com/LynnColeArt/parmin/minbench"
)

// Exit codes.
const (
	exitOK = iota
	exitMismatch
	exitDevice
	exitCompile
	exitResource
	exitDispatch
	exitInvalid
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg := minbench.DefaultConfig()
	if err := cfg.ApplyEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitInvalid
	}

	fs := flag.NewFlagSet("parmin", flag.ContinueOnError)
	var (
		devices     = fs.String("device", "simd,cpu", "Comma separated devices: cpu, simd or gpu")
		units       = fs.Int("units", 0, "Execution units to plan for (0 probes the device)")
		lowPower    = fs.Bool("lowpower", false, "Prefer the integrated GPU adapter")
		verbose     = fs.Bool("v", false, "Log state transitions")
		showVersion = fs.Bool("version", false, "Print version and exit")
		seed        = fs.Uint("seed", uint(cfg.Seed), "Generator seed (0 uses the current time)")
	)
	fs.IntVar(&cfg.Elements, "n", cfg.Elements, "Number of uint32 elements (multiple of 4)")
	fs.IntVar(&cfg.Iterations, "iterations", cfg.Iterations, "Dispatch pairs per timed run")
	fs.IntVar(&cfg.Runs, "runs", cfg.Runs, "Timed runs per device")
	fs.StringVar(&cfg.KernelFile, "kernel", cfg.KernelFile, "Kernel source file (default: built in)")
	fs.StringVar(&cfg.ResultsDir, "json", cfg.ResultsDir, "Directory for a JSON results log")
	fs.BoolVar(&cfg.Counters, "counters", cfg.Counters, "Collect hardware performance counters (Linux)")
	fs.BoolVar(&cfg.ColdCache, "cold", cfg.ColdCache, "Flush CPU caches before each timed run")
	if err := fs.Parse(args); err != nil {
		return exitInvalid
	}
	if *seed > math.MaxUint32 {
		fmt.Fprintf(os.Stderr, "seed %d does not fit in 32 bits\n", *seed)
		return exitInvalid
	}
	cfg.Seed = uint32(*seed)

	if *showVersion {
		version, sum := parmin.Version()
		fmt.Printf("parmin %s %s\n", version, sum)
		return exitOK
	}

	logger := newLogger(*verbose)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitInvalid
	}

	var classes []string
	for _, d := range strings.Split(*devices, ",") {
		if d = strings.TrimSpace(d); d != "" {
			classes = append(classes, strings.ToLower(d))
		}
	}
	if len(classes) == 0 {
		fmt.Fprintln(os.Stderr, "no device selected")
		return exitInvalid
	}

	var results *minbench.ResultsLog
	if cfg.ResultsDir != "" {
		rl, err := minbench.OpenResultsLog(cfg.ResultsDir, "parmin")
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitInvalid
		}
		results = rl
		logger.Info("results log", "path", rl.Path())
	}

	src := minbench.GenerateSource(cfg.Elements, cfg.Seed)
	reference := minbench.ReferenceMin(src)
	minbench.WriteReference(os.Stdout, reference)

	session := &minbench.Session{
		Config: cfg,
		Out:    os.Stdout,
		Logger: logger,
		Log:    results,
	}

	status := exitOK
	for _, name := range classes {
		code := runDevice(session, name, deviceOptions{Units: *units, LowPower: *lowPower}, src, reference)
		if status == exitOK {
			status = code
		}
	}
	fmt.Println()
	return status
}

// deviceOptions are the device flags shared by every backend.
type deviceOptions struct {
	Units    int
	LowPower bool // gpu only
}

func runDevice(s *minbench.Session, name string, opts deviceOptions, src []uint32, reference uint32) int {
	acc, err := openDevice(name, opts)
	if err != nil {
		report(s.Logger, name, err)
		return exitCode(err)
	}
	defer acc.Release()

	s.Logger.Debug("device", "name", acc.Device().Name, "units", acc.Device().ComputeUnits,
		"features", acc.Device().Features)
	if _, err := s.Run(acc, src, reference); err != nil {
		if !parmin.IsVerificationError(err) {
			report(s.Logger, name, err)
		}
		return exitCode(err)
	}
	return exitOK
}

// openDevice opens the host runtime for cpu and simd and the WebGPU
// backend for gpu.
func openDevice(name string, opts deviceOptions) (parmin.Accelerator, error) {
	if name == "gpu" {
		return openGPU(opts)
	}
	class, err := parmin.ParseDeviceClass(name)
	if err != nil {
		return nil, err
	}
	ctx, err := parmin.NewContext(parmin.Options{Class: class, ComputeUnits: opts.Units})
	if err != nil {
		return nil, err
	}
	return ctx, nil
}

func report(logger *slog.Logger, device string, err error) {
	var se *minbench.StageError
	if errors.As(err, &se) {
		fmt.Fprintf(os.Stderr, "%s: %s: %v (%d %s)\n", device, se.Stage, se.Err, parmin.CodeOf(err), parmin.CodeOf(err))
	} else {
		fmt.Fprintf(os.Stderr, "%s: %v (%d %s)\n", device, err, parmin.CodeOf(err), parmin.CodeOf(err))
	}
	if log := parmin.BuildLog(err); log != "" {
		fmt.Fprintf(os.Stderr, "\n%s\n", log)
	}
	logger.Debug("device failed", "device", device, "err", err)
}

// exitCode maps an error category onto the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case parmin.IsVerificationError(err):
		return exitMismatch
	case parmin.IsDeviceError(err):
		return exitDevice
	case parmin.IsCompileError(err):
		return exitCompile
	case parmin.IsMemoryError(err):
		return exitResource
	case parmin.IsDispatchError(err):
		return exitDispatch
	default:
		return exitInvalid
	}
}
