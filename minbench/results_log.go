package minbench

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// RunRecord captures one run in the results log.
type RunRecord struct {
	Device     string        `json:"device"`
	Class      string        `json:"class"`
	Status     string        `json:"status"` // "pass", "mismatch", "fail"
	Elements   int           `json:"elements"`
	Iterations int           `json:"iterations"`
	GlobalSize int           `json:"global_size,omitempty"`
	LocalSize  int           `json:"local_size,omitempty"`
	Groups     int           `json:"groups,omitempty"`
	Mode       string        `json:"mode,omitempty"`
	Min        uint32        `json:"min"`
	Reference  uint32        `json:"reference"`
	Elapsed    time.Duration `json:"elapsed,omitempty"`
	GBPerSec   float64       `json:"gb_per_sec,omitempty"`
	IPC        float64       `json:"ipc,omitempty"`
	LLCMisses  uint64        `json:"llc_misses,omitempty"`
	Error      string        `json:"error,omitempty"`
	Timestamp  time.Time     `json:"timestamp"`
}

// ResultsLog writes run records of one session to a JSON file.
type ResultsLog struct {
	mu          sync.Mutex
	records     []RunRecord
	sessionFile string
}

// OpenResultsLog creates dir if needed and starts a session file named
// after session and the current time.
func OpenResultsLog(dir, session string) (*ResultsLog, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	timestamp := time.Now().Format("20060102_150405")
	rl := &ResultsLog{
		sessionFile: filepath.Join(dir, fmt.Sprintf("%s_%s.json", session, timestamp)),
	}
	if err := rl.flush(); err != nil {
		return nil, err
	}
	return rl, nil
}

// Path returns the session file.
func (rl *ResultsLog) Path() string {
	return rl.sessionFile
}

// Record appends a record and rewrites the session file, so a crash loses
// at most the run in progress.
func (rl *ResultsLog) Record(rec RunRecord) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	rl.records = append(rl.records, rec)
	return rl.flush()
}

// RecordRun records a completed run and its verdict.
func (rl *ResultsLog) RecordRun(device, class string, res *Result, v Verdict) error {
	status := "pass"
	if !v.Correct() {
		status = "mismatch"
	}
	rec := RunRecord{
		Device:     device,
		Class:      class,
		Status:     status,
		Elements:   res.Elements,
		Iterations: res.Iterations,
		GlobalSize: res.Grid.GlobalSize,
		LocalSize:  res.Grid.LocalSize,
		Groups:     res.Grid.Groups,
		Mode:       res.Mode.String(),
		Min:        res.Min,
		Reference:  v.Want,
		Elapsed:    res.Elapsed,
		GBPerSec:   res.Bandwidth(),
	}
	if pc := res.Counters; pc != nil {
		rec.IPC = pc.IPC
		rec.LLCMisses = pc.LLCMisses
	}
	return rl.Record(rec)
}

// RecordFailure records a run that did not complete.
func (rl *ResultsLog) RecordFailure(device, class string, elements, iterations int, err error) error {
	return rl.Record(RunRecord{
		Device:     device,
		Class:      class,
		Status:     "fail",
		Elements:   elements,
		Iterations: iterations,
		Error:      err.Error(),
	})
}

// Records returns a copy of the records logged so far.
func (rl *ResultsLog) Records() []RunRecord {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return append([]RunRecord(nil), rl.records...)
}

func (rl *ResultsLog) flush() error {
	data, err := json.MarshalIndent(rl.records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	return os.WriteFile(rl.sessionFile, data, 0644)
}

// ReadResultsLog loads the records of a session file.
func ReadResultsLog(path string) ([]RunRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []RunRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return records, nil
}
