package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"judgesandbox/internal/sandbox/codec"
	"judgesandbox/internal/sandbox/driver"
	"judgesandbox/internal/sandbox/languages"
	"judgesandbox/internal/sandbox/packer"
	"judgesandbox/internal/sandbox/submission"
	"judgesandbox/internal/sandbox/verdict"
	"judgesandbox/pkg/utils/logger"
)

const appDir = "/app"

// Engine drives the single-submission and batch-optimized pipelines
// against a Driver. One Engine is shared across all concurrent
// submissions; it holds no per-submission mutable state (see spec §9:
// explicit singleton, not import-time global).
type Engine struct {
	drv   driver.Driver
	langs languages.Table
	cfg   Config
	clock func() time.Time
}

// New builds an Engine. clock defaults to time.Now; tests may override it.
func New(drv driver.Driver, langs languages.Table, cfg Config) *Engine {
	return &Engine{drv: drv, langs: langs, cfg: cfg, clock: time.Now}
}

// Run executes the full single-submission pipeline (spec §4.D): Create,
// Start, Stage, Compile (compiled languages only), Execute, Collect,
// Teardown. It always returns exactly one Verdict — runtime-API errors and
// decode failures normalize to Verdict{InternalError} rather than a bare
// Go error (spec §7).
func (e *Engine) Run(ctx context.Context, sub submission.Submission) verdict.Verdict {
	totalStart := e.clock()
	v := e.run(ctx, sub, -1)
	v.Timings.Total = e.clock().Sub(totalStart)
	return v
}

func (e *Engine) run(ctx context.Context, sub submission.Submission, configIndex int) (result verdict.Verdict) {
	defer func() {
		if r := recover(); r != nil {
			result = verdict.InternalError(fmt.Sprintf("panic in engine pipeline: %v", r), verdict.Timings{}).WithConfigIndex(configIndex)
		}
	}()

	spec, ok := e.langs.Resolve(sub.Language)
	if !ok {
		return verdict.InternalError("unsupported language reached engine after validation", verdict.Timings{}).WithConfigIndex(configIndex)
	}

	sb, err := e.createAndStart(ctx, spec.Image)
	if err != nil {
		return verdict.InternalError(fmt.Sprintf("create/start sandbox: %v", err), verdict.Timings{}).WithConfigIndex(configIndex)
	}
	defer e.teardown(sb)

	return e.stageCompileExecuteCollect(ctx, sb, sub, configIndex)
}

// stageCompileExecuteCollect runs steps 3-6 of spec §4.D against an
// already-created, already-started Sandbox. It is also the per-config
// body reused (in spirit) by the batch-optimized engine's per-test loop,
// though that engine calls the narrower stage/execute/collect helpers
// directly since it must not recompile (see batch.go).
func (e *Engine) stageCompileExecuteCollect(ctx context.Context, sb driver.Sandbox, sub submission.Submission, configIndex int) verdict.Verdict {
	compileTimeout, execTimeout := e.cfg.ClampLimits(sub.Limits.CompileTimeout, sub.Limits.ExecutionTimeout)

	configJSON, err := marshalConfig(sub.Config)
	if err != nil {
		return verdict.InternalError(fmt.Sprintf("marshal config: %v", err), verdict.Timings{}).WithConfigIndex(configIndex)
	}

	tarData, err := packer.PackStage(sub.UserCode, sub.Language.SourceFile(), configJSON, e.clock())
	if err != nil {
		return verdict.InternalError(fmt.Sprintf("pack stage archive: %v", err), verdict.Timings{}).WithConfigIndex(configIndex)
	}
	if err := e.putArchive(ctx, sb, tarData); err != nil {
		return verdict.InternalError(fmt.Sprintf("stage archive: %v", err), verdict.Timings{}).WithConfigIndex(configIndex)
	}

	var compileWall time.Duration
	if sub.Language.Compiled() {
		v, ok, wall := e.compile(ctx, sb, compileTimeout, sub.ShowLogs)
		compileWall = wall
		if !ok {
			v.Timings.Compile = compileWall
			return v.WithConfigIndex(configIndex)
		}
	}

	v := e.executeAndCollect(ctx, sb, execTimeout, sub.ShowLogs)
	v.Timings.Compile = compileWall
	return v.WithConfigIndex(configIndex)
}

func (e *Engine) createAndStart(ctx context.Context, image string) (driver.Sandbox, error) {
	createCtx, cancel := context.WithTimeout(ctx, e.cfg.CreateDeadline)
	defer cancel()
	sb, err := e.drv.Create(createCtx, image, driver.Limits{CPULimit: e.cfg.CPULimit, Memory: e.cfg.Memory})
	if err != nil {
		return driver.Sandbox{}, err
	}
	startCtx, cancel2 := context.WithTimeout(ctx, e.cfg.CreateDeadline)
	defer cancel2()
	if err := e.drv.Start(startCtx, sb); err != nil {
		// Create succeeded, so the sandbox exists and must still be torn
		// down before the error is returned.
		e.teardown(sb)
		return driver.Sandbox{}, err
	}
	return sb, nil
}

func (e *Engine) putArchive(ctx context.Context, sb driver.Sandbox, tarData []byte) error {
	putCtx, cancel := context.WithTimeout(ctx, e.cfg.CreateDeadline)
	defer cancel()
	return e.drv.PutArchive(putCtx, sb, appDir, bytes.NewReader(tarData))
}

// compile runs `make clean && make build` under the in-container `timeout`
// wrapper (spec §4.D step 4). ok is false when the compile outcome is
// itself a terminal Verdict (CompileTimeout/CompileError/InternalError);
// the caller must return v in that case without proceeding to Execute.
func (e *Engine) compile(ctx context.Context, sb driver.Sandbox, compileTimeout time.Duration, showLogs bool) (v verdict.Verdict, ok bool, wall time.Duration) {
	deadline := compileTimeout + e.cfg.DriverOverhead
	argv := []string{"bash", "-c", fmt.Sprintf(
		"timeout %d bash -c 'make clean >/dev/null 2>&1 && make build >/dev/null 2>&1'",
		int(compileTimeout.Seconds()),
	)}

	execCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	res, err := e.drv.Exec(execCtx, sb, argv, appDir)
	wall = res.Wall
	if showLogs {
		logger.Debug(ctx, "compile output", zap.ByteString("stdout", res.Stdout), zap.ByteString("stderr", res.Stderr))
	}
	if err != nil {
		return verdict.InternalError(fmt.Sprintf("compile exec: %v", err), verdict.Timings{}), false, wall
	}

	if res.ExitCode == 124 || wall > compileTimeout {
		return verdict.CompileTimeout(verdict.Timings{}), false, wall
	}
	if res.ExitCode != 0 {
		return verdict.CompileError(decodeUTF8(res.Stderr), verdict.Timings{}), false, wall
	}
	return verdict.Verdict{}, true, wall
}

// executeAndCollect runs `make test` and, on anything short of an engine-
// level failure, attempts to collect result.json regardless of exit code
// (spec §4.D step 5: "other nonzero ⇒ still attempt to collect").
func (e *Engine) executeAndCollect(ctx context.Context, sb driver.Sandbox, execTimeout time.Duration, showLogs bool) verdict.Verdict {
	deadline := execTimeout + e.cfg.DriverOverhead
	argv := []string{"bash", "-c", fmt.Sprintf("timeout %d make test >/dev/null 2>&1", int(execTimeout.Seconds()))}
	continueOnTimeout := e.cfg.ContinueOnTimeout
	if continueOnTimeout {
		mult := e.cfg.ContinueOnTimeoutMult
		if mult <= 0 {
			mult = 5
		}
		deadline = execTimeout * time.Duration(mult)
		argv = []string{"bash", "-c", "make test >/dev/null 2>&1"}
	}

	execCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	res, err := e.drv.Exec(execCtx, sb, argv, appDir)
	if showLogs {
		logger.Debug(ctx, "execute output", zap.ByteString("stdout", res.Stdout), zap.ByteString("stderr", res.Stderr))
	}

	testWall := res.Wall
	timings := verdict.Timings{Test: testWall}

	if err != nil {
		if errors.Is(err, driver.ErrDeadline) {
			return verdict.RuntimeTimeout(timings)
		}
		return verdict.InternalError(fmt.Sprintf("execute exec: %v", err), timings)
	}

	// Under continue_on_timeout, the in-container `timeout` wrapper is
	// gone, so the run is never preempted before the hard ceiling above
	// (surfaced as ErrDeadline); the engine-observed wall is still
	// compared with execTimeout, and a run that exceeded it is a
	// RuntimeTimeout in either mode.
	if res.ExitCode == 124 || testWall > execTimeout {
		return verdict.RuntimeTimeout(timings)
	}

	v, collected := e.collect(ctx, sb, timings)
	if !collected && res.ExitCode != 0 {
		return verdict.RuntimeError(res.ExitCode, decodeUTF8(res.Stderr), timings)
	}
	return v
}

func (e *Engine) collect(ctx context.Context, sb driver.Sandbox, timings verdict.Timings) (verdict.Verdict, bool) {
	getCtx, cancel := context.WithTimeout(ctx, e.cfg.CreateDeadline)
	defer cancel()

	rc, err := e.drv.GetArchive(getCtx, sb, appDir+"/result.json")
	if err != nil {
		return verdict.InternalError(fmt.Sprintf("collect result: %v", err), timings), false
	}
	defer rc.Close()

	raw, found, err := packer.ExtractResult(rc)
	if err != nil {
		return verdict.InternalError(fmt.Sprintf("extract result: %v", err), timings), false
	}
	if !found {
		return verdict.InternalError("result.json missing from archive", timings), false
	}

	v, err := codec.Decode(raw, timings)
	if err != nil {
		return verdict.InternalError(fmt.Sprintf("decode result: %v", err), timings), false
	}
	return v, true
}

// teardown unconditionally stops and removes sb. Errors are logged, never
// elevated into a Verdict (spec §4.D step 7, §5 teardown guarantee).
func (e *Engine) teardown(sb driver.Sandbox) {
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.CreateDeadline)
	defer cancel()

	var errs error
	if err := e.drv.Stop(ctx, sb, e.cfg.StopGrace); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("stop: %w", err))
	}
	if err := e.drv.Remove(ctx, sb); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("remove: %w", err))
	}
	if errs != nil {
		logger.Warn(ctx, "sandbox teardown reported errors", zap.String("sandbox_id", sb.ID), zap.Error(errs))
	}
}

func decodeUTF8(b []byte) string {
	return string(bytes.ToValidUTF8(b, []byte("�")))
}

func marshalConfig(cfg map[string]interface{}) ([]byte, error) {
	return json.Marshal(cfg)
}
