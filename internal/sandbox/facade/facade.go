// Package facade exposes the single process-wide entry point the HTTP/RPC
// transport layer calls into: validate, fill default limits (the engine
// clamps them to its maxima), and dispatch to the single-submission or
// batch-optimized engine pipelines.
package facade

import (
	"context"

	"golang.org/x/sync/errgroup"

	"judgesandbox/internal/sandbox/engine"
	"judgesandbox/internal/sandbox/languages"
	"judgesandbox/internal/sandbox/submission"
	"judgesandbox/internal/sandbox/validator"
	"judgesandbox/internal/sandbox/verdict"
	appErr "judgesandbox/pkg/errors"
)

// DefaultWorkerPoolSize bounds plain (non-optimized) Batch concurrency when
// Config.WorkerPoolSize is unset.
const DefaultWorkerPoolSize = 4

// Config controls one Facade's defaulting and concurrency behavior. It is
// distinct from engine.Config: this is the request-shaping layer in front
// of the engine, not the engine's own resource/timeout policy.
type Config struct {
	WorkerPoolSize int
}

// Facade is the explicit singleton the transport layer holds one of for the
// lifetime of the process (spec §9: explicit construction, not an
// import-time global).
type Facade struct {
	engine    *engine.Engine
	val       *validator.Validator
	langs     languages.Table
	pool      int
	engineCfg engine.Config
}

// New builds a Facade from an already-constructed Engine and Validator.
// engineCfg must be the same Config the Engine itself was built with; the
// Facade reads its default timeouts from it rather than duplicating them.
func New(eng *engine.Engine, val *validator.Validator, langs languages.Table, engineCfg engine.Config, cfg Config) *Facade {
	pool := cfg.WorkerPoolSize
	if pool <= 0 {
		pool = DefaultWorkerPoolSize
	}
	return &Facade{engine: eng, val: val, langs: langs, pool: pool, engineCfg: engineCfg}
}

// Submit validates s and runs the single-submission pipeline. A validation
// failure is returned as an *appErr.Error (InvalidRequest-tier) and no
// Sandbox is ever created; once validation passes, every subsequent
// failure normalizes into the returned Verdict (spec §7).
func (f *Facade) Submit(ctx context.Context, s submission.Submission) (verdict.Verdict, error) {
	s.Limits = f.defaultLimits(s.Limits)
	if err := f.val.Validate(s); err != nil {
		return verdict.Verdict{}, err
	}
	return f.engine.Run(ctx, s), nil
}

// Batch runs each Submission through the single-submission pipeline
// independently, bounded by the Facade's worker pool, and re-aligns
// results to input order regardless of completion order.
func (f *Facade) Batch(ctx context.Context, subs []submission.Submission) (verdict.Batch, error) {
	if err := f.val.ValidateBatchSize(len(subs)); err != nil {
		return verdict.Batch{}, err
	}
	for i := range subs {
		subs[i].Limits = f.defaultLimits(subs[i].Limits)
		if err := f.val.Validate(subs[i]); err != nil {
			return verdict.Batch{}, appErr.Wrapf(err, appErr.SubmissionInvalid, "submission at index %d", i)
		}
	}

	verdicts := make([]verdict.Verdict, len(subs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.pool)
	for i, s := range subs {
		i, s := i, s
		g.Go(func() error {
			verdicts[i] = f.engine.Run(gctx, s).WithConfigIndex(i)
			return nil
		})
	}
	// Every goroutine above always returns nil: a single submission's
	// engine failure is itself a Verdict, never a Go error, so Wait can
	// never actually fail here.
	_ = g.Wait()

	return verdict.NewBatch(verdicts), nil
}

// BatchOptimized validates the shared source and every config up front,
// then delegates to the engine's single-compile batch pipeline.
func (f *Facade) BatchOptimized(ctx context.Context, lang submission.Language, userCode string, limits submission.Limits, configs []submission.BatchConfig) (verdict.Batch, error) {
	limits = f.defaultLimits(limits)

	rawConfigs := make([]map[string]interface{}, len(configs))
	for i, c := range configs {
		rawConfigs[i] = c.Config
	}
	if err := f.val.ValidateBatch(lang, userCode, rawConfigs); err != nil {
		return verdict.Batch{}, err
	}

	return f.engine.RunBatchOptimized(ctx, lang, userCode, limits, configs), nil
}

// defaultLimits fills zero-valued durations with the engine's configured
// defaults; the engine itself only clamps already-positive values to its
// maxima (engine.Config.ClampLimits), so defaulting must happen here.
func (f *Facade) defaultLimits(l submission.Limits) submission.Limits {
	if l.CompileTimeout <= 0 {
		l.CompileTimeout = f.engineCfg.CompileTimeout
	}
	if l.ExecutionTimeout <= 0 {
		l.ExecutionTimeout = f.engineCfg.ExecutionTimeout
	}
	return l
}
