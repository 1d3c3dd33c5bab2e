// Package drivertest provides a fault-injectable fake Driver for engine
// property tests (teardown completeness, timeout discrimination, archive
// overwrite).
package drivertest

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"sync"
	"time"

	"judgesandbox/internal/sandbox/driver"
)

// Call names used as keys into Fake.Faults.
const (
	CallCreate      = "Create"
	CallStart       = "Start"
	CallPutArchive  = "PutArchive"
	CallExec        = "Exec"
	CallGetArchive  = "GetArchive"
	CallStop        = "Stop"
	CallRemove      = "Remove"
)

// ExecScript lets a test script a sequence of Exec outcomes (e.g. compile
// call then test call) instead of a single fixed result.
type ExecScript func(argv []string, call int) (driver.ExecResult, error)

// Fake is an in-memory Driver double. Zero value is usable: Create/Start
// succeed trivially, Exec returns ExitCode 0 with no output, and no
// container ever actually runs anything.
type Fake struct {
	mu sync.Mutex

	// Faults, when set for a call name, is returned by that call instead
	// of the default/scripted behavior.
	Faults map[string]error

	// ExecFn scripts Exec's outcome; if nil, Exec returns ExitCode 0.
	ExecFn ExecScript
	// ExecDelay sleeps before returning from Exec, honoring ctx
	// cancellation first (for P2/P6 timeout-discrimination tests).
	ExecDelay time.Duration

	execCalls int

	files      map[string][]byte // path -> last-staged payload, for P7
	archives   map[string][]byte // path -> tar bytes GetArchive should return
	created    []driver.Sandbox
	started    []driver.Sandbox
	stopped    []driver.Sandbox
	removed    []driver.Sandbox
	liveCount  int // created - removed, for P1 teardown completeness
}

// NewFake returns a ready-to-use Fake.
func NewFake() *Fake {
	return &Fake{Faults: map[string]error{}, files: map[string][]byte{}}
}

func (f *Fake) fault(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Faults[call]
}

func (f *Fake) Create(ctx context.Context, image string, limits driver.Limits) (driver.Sandbox, error) {
	if err := f.fault(CallCreate); err != nil {
		return driver.Sandbox{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	sb := driver.Sandbox{ID: image + "-sandbox"}
	f.created = append(f.created, sb)
	f.liveCount++
	return sb, nil
}

func (f *Fake) Start(ctx context.Context, sb driver.Sandbox) error {
	if err := f.fault(CallStart); err != nil {
		return err
	}
	f.mu.Lock()
	f.started = append(f.started, sb)
	f.mu.Unlock()
	return nil
}

func (f *Fake) PutArchive(ctx context.Context, sb driver.Sandbox, dstPath string, r io.Reader) error {
	if err := f.fault(CallPutArchive); err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	if f.files == nil {
		f.files = map[string][]byte{}
	}
	f.files[dstPath] = data
	f.mu.Unlock()

	tr := tar.NewReader(bytes.NewReader(data))
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		buf, err := io.ReadAll(tr)
		if err != nil {
			return err
		}
		f.mu.Lock()
		f.files[path.Join(dstPath, hdr.Name)] = buf
		f.mu.Unlock()
	}
	return nil
}

func (f *Fake) Exec(ctx context.Context, sb driver.Sandbox, argv []string, workdir string) (driver.ExecResult, error) {
	if err := f.fault(CallExec); err != nil {
		return driver.ExecResult{}, err
	}

	f.mu.Lock()
	call := f.execCalls
	f.execCalls++
	delay := f.ExecDelay
	fn := f.ExecFn
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return driver.ExecResult{Wall: delay}, fmt.Errorf("%w: %v", driver.ErrDeadline, ctx.Err())
		case <-time.After(delay):
		}
	}

	if fn != nil {
		return fn(argv, call)
	}
	return driver.ExecResult{ExitCode: 0}, nil
}

// SetArchive registers the tar bytes GetArchive(path) should return,
// mirroring how the real driver always answers a copy-from-container call
// with a tar stream (even for a single file).
func (f *Fake) SetArchive(path string, tarData []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.archives == nil {
		f.archives = map[string][]byte{}
	}
	f.archives[path] = tarData
}

func (f *Fake) GetArchive(ctx context.Context, sb driver.Sandbox, path string) (io.ReadCloser, error) {
	if err := f.fault(CallGetArchive); err != nil {
		return nil, err
	}
	f.mu.Lock()
	data, ok := f.archives[path]
	f.mu.Unlock()
	if !ok {
		return nil, driver.ErrArchiveIO
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *Fake) Stop(ctx context.Context, sb driver.Sandbox, grace time.Duration) error {
	if err := f.fault(CallStop); err != nil {
		return err
	}
	f.mu.Lock()
	f.stopped = append(f.stopped, sb)
	f.mu.Unlock()
	return nil
}

func (f *Fake) Remove(ctx context.Context, sb driver.Sandbox) error {
	if err := f.fault(CallRemove); err != nil {
		return err
	}
	f.mu.Lock()
	f.removed = append(f.removed, sb)
	f.liveCount--
	f.mu.Unlock()
	return nil
}

// LiveCount returns the number of sandboxes created but not yet removed.
// Used by teardown-completeness tests (P1).
func (f *Fake) LiveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.liveCount
}

// StagedFile returns the last payload PutArchive received for path and
// whether it was ever staged. Used by the archive-overwrite test (P7).
func (f *Fake) StagedFile(path string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[path]
	return data, ok
}

var _ driver.Driver = (*Fake)(nil)
