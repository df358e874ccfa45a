package minbench

import (
	"io"
	"log/slog"

	"github.com/LynnColeArt/parmin"
	"github.com/LynnColeArt/parmin/kernels"
)

// Session runs the configured number of timed runs on one accelerator and
// reports each of them.
type Session struct {
	Config Config
	Out    io.Writer    // Console report
	Logger *slog.Logger // Structured diagnostics; nil discards
	Log    *ResultsLog  // Optional JSON results log
}

// Run plans the grid for acc, runs Config.Runs reductions of src and
// verifies each against reference. It stops at the first failed run or
// verification mismatch and returns the runs completed so far.
func (s *Session) Run(acc parmin.Accelerator, src []uint32, reference uint32) ([]*Result, error) {
	dev := acc.Device()
	grid, err := parmin.PlanGrid(dev.Class, dev.ComputeUnits, len(src))
	if err != nil {
		return nil, err
	}
	WriteDevice(s.Out, dev, grid)

	source, err := kernels.Load(s.Config.KernelFile)
	if err != nil {
		return nil, parmin.NewCompileError("Load", err.Error(), err)
	}

	orch := New(acc, source, s.Logger)
	if s.Config.Counters {
		orch.EnableCounters()
	}
	results := make([]*Result, 0, s.Config.Runs)
	for run := 0; run < s.Config.Runs; run++ {
		if s.Config.ColdCache {
			d := FlushCaches(FlushSize)
			if s.Logger != nil {
				s.Logger.Debug("caches flushed", "run", run, "bytes", FlushSize, "took", d)
			}
		}
		res, err := orch.Run(src, grid, s.Config.Iterations)
		if err != nil {
			s.record(func(rl *ResultsLog) error {
				return rl.RecordFailure(dev.Name, dev.Class.String(), len(src), s.Config.Iterations, err)
			})
			return results, err
		}
		results = append(results, res)

		v := Verify(res.Min, reference)
		WriteResult(s.Out, res, v)
		s.record(func(rl *ResultsLog) error {
			return rl.RecordRun(dev.Name, dev.Class.String(), res, v)
		})
		if err := v.Err(); err != nil {
			return results, err
		}
	}
	if len(results) > 1 {
		WriteSummary(s.Out, Summarize(results))
	}
	return results, nil
}

func (s *Session) record(write func(*ResultsLog) error) {
	if s.Log == nil {
		return
	}
	if err := write(s.Log); err != nil && s.Logger != nil {
		s.Logger.Warn("results log write failed", "path", s.Log.Path(), "err", err)
	}
}
