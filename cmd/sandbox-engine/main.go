// Command sandbox-engine bootstraps the sandbox execution engine as a
// standalone process: it builds the Docker-backed driver, the engine, the
// validator and the process-wide Facade, then blocks until it is asked to
// shut down. The engine's Submit/Batch/BatchOptimized surface (spec.md §6)
// is consumed in-process by whatever transport embeds this module; wiring
// an HTTP or RPC front door onto the Facade is explicitly out of scope
// here (see SPEC_FULL.md §1).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/docker/docker/client"
	"go.uber.org/zap"

	"judgesandbox/internal/sandbox/driver"
	"judgesandbox/internal/sandbox/engine"
	"judgesandbox/internal/sandbox/facade"
	"judgesandbox/internal/sandbox/languages"
	"judgesandbox/internal/sandbox/validator"
	"judgesandbox/pkg/utils/logger"
)

func main() {
	cfg, err := loadAppConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx := context.Background()

	dockerOpts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if cfg.DockerHost != "" {
		dockerOpts = append(dockerOpts, client.WithHost(cfg.DockerHost))
	}
	cli, err := client.NewClientWithOpts(dockerOpts...)
	if err != nil {
		logger.Error(ctx, "init docker client failed", zap.Error(err))
		os.Exit(1)
	}
	defer func() {
		_ = cli.Close()
	}()

	drv := driver.NewDockerDriver(cli)
	langs := languages.Default()

	val, err := validator.New(validator.Config{
		MaxBatchSize: cfg.Validator.MaxBatchSize,
		Languages:    langs,
	})
	if err != nil {
		logger.Error(ctx, "init validator failed", zap.Error(err))
		os.Exit(1)
	}

	eng := engine.New(drv, langs, cfg.Engine)
	// fac is the single entry point (Submit/Batch/BatchOptimized) a
	// transport layer embedding this process would dispatch work through.
	fac := facade.New(eng, val, langs, cfg.Engine, cfg.Facade)
	_ = fac

	logger.Info(ctx, "sandbox engine ready",
		zap.Float64("cpu_limit", cfg.Engine.CPULimit),
		zap.String("memory", cfg.Engine.Memory),
		zap.Duration("compile_timeout", cfg.Engine.CompileTimeout),
		zap.Duration("execution_timeout", cfg.Engine.ExecutionTimeout),
		zap.Bool("continue_on_timeout", cfg.Engine.ContinueOnTimeout),
		zap.Int("worker_pool", cfg.Facade.WorkerPoolSize),
	)

	shutdownCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-shutdownCtx.Done()
	logger.Info(ctx, "shutdown signal received")
}
