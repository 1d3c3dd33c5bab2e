package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"judgesandbox/internal/sandbox/engine"
	"judgesandbox/internal/sandbox/facade"
	"judgesandbox/internal/sandbox/validator"
	"judgesandbox/pkg/utils/logger"
)

// appConfig is the whole process's environment-derived configuration
// (spec.md §6). It is loaded once at startup into an immutable value and
// handed piecewise to the engine, validator and Facade constructors.
type appConfig struct {
	Logger    logger.Config
	Engine    engine.Config
	Validator validator.Config
	Facade    facade.Config

	DockerHost string
}

// loadAppConfig reads environment variables, applies defaults for anything
// unset, and validates the result before any dependent component is built.
func loadAppConfig() (appConfig, error) {
	cfg := appConfig{
		Logger: logger.Config{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Engine:     engine.DefaultConfig(),
		DockerHost: getEnv("DOCKER_HOST", ""),
	}

	applyEngineEnvOverrides(&cfg.Engine)

	cfg.Validator = validator.Config{
		MaxBatchSize: getEnvInt("MAX_BATCH_SIZE", 100),
	}
	cfg.Facade = facade.Config{
		WorkerPoolSize: getEnvInt("WORKER_POOL", facade.DefaultWorkerPoolSize),
	}

	if err := validateAppConfig(cfg); err != nil {
		return appConfig{}, err
	}
	return cfg, nil
}

func applyEngineEnvOverrides(c *engine.Config) {
	if v := os.Getenv("CONTAINER_CPU"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.CPULimit = f
		}
	}
	if v := os.Getenv("CONTAINER_MEM"); v != "" {
		c.Memory = v
	}
	if v := getEnvDuration("CONTAINER_TIMEOUT", 0); v > 0 {
		c.ExecutionTimeout = v
	}
	if v := getEnvDuration("COMPILE_TIMEOUT", 0); v > 0 {
		c.CompileTimeout = v
	}
	if v := getEnvDuration("MAX_COMPILE_TIMEOUT", 0); v > 0 {
		c.MaxCompileTimeout = v
	}
	if v := getEnvDuration("MAX_EXECUTION_TIMEOUT", 0); v > 0 {
		c.MaxExecutionTimeout = v
	}
	if v := os.Getenv("CONTINUE_ON_TIMEOUT"); v != "" {
		c.ContinueOnTimeout = strings.EqualFold(v, "true") || v == "1"
	}
	if v := getEnvInt("MAX_CONTINUE_ON_TIMEOUT_MULT", 0); v > 0 {
		c.ContinueOnTimeoutMult = v
	}
}

func validateAppConfig(cfg appConfig) error {
	if cfg.Engine.CPULimit <= 0 {
		return fmt.Errorf("CONTAINER_CPU must be positive, got %v", cfg.Engine.CPULimit)
	}
	if cfg.Engine.CompileTimeout <= 0 || cfg.Engine.ExecutionTimeout <= 0 {
		return fmt.Errorf("compile/execution timeouts must be positive")
	}
	if cfg.Engine.CompileTimeout > cfg.Engine.MaxCompileTimeout {
		return fmt.Errorf("COMPILE_TIMEOUT %v exceeds MAX_COMPILE_TIMEOUT %v", cfg.Engine.CompileTimeout, cfg.Engine.MaxCompileTimeout)
	}
	if cfg.Engine.ExecutionTimeout > cfg.Engine.MaxExecutionTimeout {
		return fmt.Errorf("CONTAINER_TIMEOUT %v exceeds MAX_EXECUTION_TIMEOUT %v", cfg.Engine.ExecutionTimeout, cfg.Engine.MaxExecutionTimeout)
	}
	if cfg.Facade.WorkerPoolSize <= 0 {
		return fmt.Errorf("WORKER_POOL must be positive, got %d", cfg.Facade.WorkerPoolSize)
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	// Accept a bare integer as seconds, matching spec.md §6's env examples,
	// as well as a Go duration string ("30s") for operators who prefer it.
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
