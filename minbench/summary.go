package minbench

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary holds bandwidth statistics over repeated runs, in GB/s.
type Summary struct {
	Runs   int
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
}

// Summarize computes bandwidth statistics over results. The standard
// deviation of a single run is zero.
func Summarize(results []*Result) Summary {
	if len(results) == 0 {
		return Summary{}
	}
	bw := make([]float64, len(results))
	for i, r := range results {
		bw[i] = r.Bandwidth()
	}
	mean, std := stat.MeanStdDev(bw, nil)
	if len(bw) == 1 || math.IsNaN(std) {
		std = 0
	}
	return Summary{
		Runs:   len(bw),
		Mean:   mean,
		StdDev: std,
		Min:    floats.Min(bw),
		Max:    floats.Max(bw),
	}
}
