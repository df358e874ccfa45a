package minbench

import (
	"fmt"
	"io"

	"github.com/LynnColeArt/parmin"
)

// WriteReference prints the serial minimum, once per session.
func WriteReference(w io.Writer, ref uint32) {
	fmt.Fprintf(w, "min: %d\n", ref)
}

// WriteDevice prints the device header and the planned grid.
func WriteDevice(w io.Writer, dev *parmin.Device, grid parmin.GridShape) {
	fmt.Fprintf(w, "\n%s: compute units: %d\n", dev.Class, dev.ComputeUnits)
	fmt.Fprintf(w, "global_work_size : %d\n", grid.GlobalSize)
}

// WriteResult prints bandwidth, grid diagnostics, the computed value and
// the verdict of one run.
func WriteResult(w io.Writer, res *Result, v Verdict) {
	d := res.Diagnostics
	fmt.Fprintf(w, "B/W %.2f GB/sec, %d groups, %d threads, count %d, stride %d\n",
		res.Bandwidth(), d.Groups, d.Threads, d.Count, d.Stride)
	if res.Counters != nil {
		fmt.Fprint(w, res.Counters)
	}
	fmt.Fprintf(w, "computed value: %d\n", res.Min)
	if v.Correct() {
		fmt.Fprintln(w, "result correct")
	} else {
		fmt.Fprintln(w, "result INcorrect")
	}
}

// WriteSummary prints bandwidth statistics over several runs.
func WriteSummary(w io.Writer, s Summary) {
	fmt.Fprintf(w, "runs: %d, B/W mean %.2f GB/sec, stddev %.2f, min %.2f, max %.2f\n",
		s.Runs, s.Mean, s.StdDev, s.Min, s.Max)
}
