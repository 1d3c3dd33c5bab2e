// Package verdict defines the typed outcome of one sandbox submission.
package verdict

import "time"

// Status discriminates the Verdict variants. Every submission ends in
// exactly one of these.
type Status string

const (
	StatusSuccess        Status = "success"
	StatusCompileError   Status = "compile_error"
	StatusCompileTimeout Status = "compile_timeout"
	StatusRuntimeTimeout Status = "runtime_timeout"
	StatusRuntimeError   Status = "runtime_error"
	StatusInternalError  Status = "internal_error"
)

// Timings carries engine-observed wall-clock durations. These always take
// precedence over any timing the runner itself reported.
type Timings struct {
	Total   time.Duration
	Compile time.Duration
	Test    time.Duration
}

// Verdict is the single typed outcome of one submission. Exactly one of
// the variant-specific fields is meaningful, selected by Status.
type Verdict struct {
	Status  Status
	Timings Timings

	// ConfigIndex ties this verdict back to its position in a batch. -1
	// for a verdict produced by a single Submit call.
	ConfigIndex int

	// Success fields.
	Match    *bool
	Actual   interface{}
	Expected interface{}
	Stdout   string
	Stderr   string

	// CompileError fields.
	CompileOutput string

	// RuntimeError fields.
	ExitCode *int

	// InternalError fields.
	Reason string
}

// Success builds a Success verdict.
func Success(match bool, actual, expected interface{}, stdout, stderr string, t Timings) Verdict {
	m := match
	return Verdict{Status: StatusSuccess, Timings: t, Match: &m, Actual: actual, Expected: expected, Stdout: stdout, Stderr: stderr, ConfigIndex: -1}
}

// CompileError builds a CompileError verdict.
func CompileError(compileOutput string, t Timings) Verdict {
	return Verdict{Status: StatusCompileError, Timings: t, CompileOutput: compileOutput, ConfigIndex: -1}
}

// CompileTimeout builds a CompileTimeout verdict.
func CompileTimeout(t Timings) Verdict {
	return Verdict{Status: StatusCompileTimeout, Timings: t, ConfigIndex: -1}
}

// RuntimeTimeout builds a RuntimeTimeout verdict.
func RuntimeTimeout(t Timings) Verdict {
	return Verdict{Status: StatusRuntimeTimeout, Timings: t, ConfigIndex: -1}
}

// RuntimeError builds a RuntimeError verdict.
func RuntimeError(exitCode int, stderr string, t Timings) Verdict {
	ec := exitCode
	return Verdict{Status: StatusRuntimeError, Timings: t, ExitCode: &ec, Stderr: stderr, ConfigIndex: -1}
}

// InternalError builds an InternalError verdict. reason is a short
// description of the failing step; the engine includes the underlying
// driver, packing or decode error text in it.
func InternalError(reason string, t Timings) Verdict {
	return Verdict{Status: StatusInternalError, Timings: t, Reason: reason, ConfigIndex: -1}
}

// WithConfigIndex tags v with its position in a batch and returns it.
func (v Verdict) WithConfigIndex(i int) Verdict {
	v.ConfigIndex = i
	return v
}

// IsSuccess reports whether v is a Success verdict with Match == true.
func (v Verdict) IsSuccess() bool {
	return v.Status == StatusSuccess && v.Match != nil && *v.Match
}

// Batch is an ordered sequence of Verdicts, one per input submission or
// config, plus summary statistics over the sequence.
type Batch struct {
	Verdicts []Verdict
	Stats    Stats
}

// Stats aggregates a Batch's verdicts.
type Stats struct {
	TotalTests     int
	SuccessCount   int
	ErrorCount     int
	SuccessRate    float64
	TotalWallTime  time.Duration
	AvgTime        time.Duration
}

// NewBatch computes Stats over verdicts and returns the assembled Batch.
// verdicts must already be in input order.
func NewBatch(verdicts []Verdict) Batch {
	stats := Stats{TotalTests: len(verdicts)}
	var sum time.Duration
	for _, v := range verdicts {
		if v.IsSuccess() {
			stats.SuccessCount++
		} else {
			stats.ErrorCount++
		}
		sum += v.Timings.Total
		stats.TotalWallTime += v.Timings.Total
	}
	if stats.TotalTests > 0 {
		stats.SuccessRate = float64(stats.SuccessCount) / float64(stats.TotalTests)
		stats.AvgTime = sum / time.Duration(stats.TotalTests)
	}
	return Batch{Verdicts: verdicts, Stats: stats}
}
