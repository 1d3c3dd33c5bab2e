// Package driver is a thin, typed facade over the container runtime used to
// materialize and tear down sandbox instances.
package driver

import (
	"context"
	"io"
	"time"
)

// Limits bounds the resources granted to one sandbox container.
type Limits struct {
	// CPULimit is a fractional CPU count (1.0 == one core).
	CPULimit float64
	// Memory is a Docker-style memory cap string, e.g. "128m".
	Memory string
}

// Sandbox identifies one driver-owned container instance. ID is the
// runtime's own container identifier returned by Create, opaque to the
// engine, which passes it back unchanged on every later call.
type Sandbox struct {
	ID string
}

// ExecResult is the outcome of one Exec call.
type ExecResult struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	Wall     time.Duration
}

// Driver is the typed boundary between the engine and the container
// runtime. Every method takes a context whose deadline (set by the caller
// via context.WithTimeout) bounds that single call; cancellation propagates
// straight into the underlying runtime API call.
type Driver interface {
	// Create allocates (but does not start) a sandbox for image, applying
	// limits, network isolation and a long-lived sentinel command so the
	// container stays alive for scripted Exec calls.
	Create(ctx context.Context, image string, limits Limits) (Sandbox, error)
	// Start brings a created sandbox up.
	Start(ctx context.Context, sb Sandbox) error
	// PutArchive uploads a tar stream to path inside sb, overwriting any
	// existing entries with the same names.
	PutArchive(ctx context.Context, sb Sandbox, path string, tar io.Reader) error
	// Exec runs argv inside sb's workdir and blocks until it exits or ctx's
	// deadline expires. On deadline expiry it returns an error satisfying
	// errors.Is(err, ErrDeadline); the caller decides disposition.
	Exec(ctx context.Context, sb Sandbox, argv []string, workdir string) (ExecResult, error)
	// GetArchive downloads path from sb as a tar stream.
	GetArchive(ctx context.Context, sb Sandbox, path string) (io.ReadCloser, error)
	// Stop sends a graceful stop with the given grace period, then kills.
	Stop(ctx context.Context, sb Sandbox, grace time.Duration) error
	// Remove deletes sb. It is idempotent: removing an already-removed or
	// never-created sandbox is not an error.
	Remove(ctx context.Context, sb Sandbox) error
}
