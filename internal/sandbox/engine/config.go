// Package engine implements the single-submission and batch-optimized
// execution pipelines (spec.md §4.D, §4.E): create→stage→compile→execute→
// collect→teardown, with staged timeouts and unconditional teardown.
package engine

import "time"

// Config controls one Engine's behavior. It is built once at process
// bootstrap (see cmd/sandbox-engine) and is immutable thereafter; the
// engine itself holds no other mutable state beyond the Driver it wraps.
type Config struct {
	CPULimit float64
	Memory   string

	CompileTimeout   time.Duration
	ExecutionTimeout time.Duration

	MaxCompileTimeout   time.Duration
	MaxExecutionTimeout time.Duration

	// ContinueOnTimeout, when true, omits the in-container `timeout`
	// wrapper around `make test` and relies solely on engine-side wall
	// observation (spec §5). The engine still bounds the Exec call at
	// ContinueOnTimeoutMult * ExecutionTimeout as a hard ceiling (spec §9
	// open question, resolved — see DESIGN.md).
	ContinueOnTimeout     bool
	ContinueOnTimeoutMult int

	// StopGrace bounds the graceful-stop window before Remove forces
	// removal (spec §4.A: "Stop uses a short grace (≤ 1s) then kill").
	StopGrace time.Duration

	// DriverOverhead pads the context deadline handed to Exec beyond the
	// in-container `timeout` budget, so ordinary driver/API latency never
	// masquerades as a timeout.
	DriverOverhead time.Duration

	// CreateDeadline bounds Create/Start/PutArchive/GetArchive calls.
	CreateDeadline time.Duration
}

// DefaultConfig matches spec.md §6's environment defaults.
func DefaultConfig() Config {
	return Config{
		CPULimit:              1.0,
		Memory:                "128m",
		CompileTimeout:        30 * time.Second,
		ExecutionTimeout:      10 * time.Second,
		MaxCompileTimeout:     300 * time.Second,
		MaxExecutionTimeout:   60 * time.Second,
		ContinueOnTimeout:     false,
		ContinueOnTimeoutMult: 5,
		StopGrace:             1 * time.Second,
		DriverOverhead:        2 * time.Second,
		CreateDeadline:        10 * time.Second,
	}
}

// ClampLimits applies the engine-wide maxima to an already-defaulted
// per-submission request, per spec §5 ("Engine-wide maxima clamp user
// requests"). Defaulting zero values is the Facade's job (spec §4.G); by
// the time a request reaches the Engine, both durations are positive.
func (c Config) ClampLimits(compile, execution time.Duration) (time.Duration, time.Duration) {
	if c.MaxCompileTimeout > 0 && compile > c.MaxCompileTimeout {
		compile = c.MaxCompileTimeout
	}
	if c.MaxExecutionTimeout > 0 && execution > c.MaxExecutionTimeout {
		execution = c.MaxExecutionTimeout
	}
	return compile, execution
}
