package shellscript

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-partisan/partisan/internal/processor"
	"github.com/go-partisan/partisan/internal/task"
)

// ClassName is the registry key this plugin registers its processor under.
const ClassName = "ShellScriptProcessor"

// ErrScriptFailed is returned when the container exits non-zero; it is the
// sentinel a caller's RetryConfig.RetryOnErrors lists to make a failing
// script retryable rather than terminal.
var ErrScriptFailed = errors.New("shellscript: script exited non-zero")

// Config is the subset of the executor configuration this plugin needs,
// adapted from the teacher's ExecutorConfig down to what a single
// run-a-script-in-a-container processor uses.
type Config struct {
	DefaultImage          string
	DefaultMemoryLimitMB  int64
	DefaultCPUQuota       int64
	DefaultPidsLimit      int64
	DefaultTimeoutSeconds int
}

// Processor runs a shell script, passed via task arguments, inside a
// container and reports success or failure back to the engine. It is the
// demonstration processor django_partisan ships as an example app's task.
type Processor struct {
	runner *DockerRunner
	cfg    Config
	args   task.Arguments
}

// New constructs a Processor bound to a specific task's arguments; it is the
// Factory the plugin registers under ClassName.
func New(runner *DockerRunner, cfg Config) func(task.Arguments) (processor.Processor, error) {
	return func(args task.Arguments) (processor.Processor, error) {
		return &Processor{runner: runner, cfg: cfg, args: args}, nil
	}
}

func (p *Processor) ClassName() string { return ClassName }

func (p *Processor) Policy() processor.Policy {
	return processor.Policy{
		Queue:    task.DefaultQueueName,
		Priority: processor.DefaultPriority,
		RetryConfig: &task.ErrorsHandleConfig{
			RetryOnErrors: []error{ErrScriptFailed},
			RetriesCount:  3,
			RetryPause:    5 * time.Second,
			Strategy:      task.DelayStrategyIncremental,
		},
	}
}

func (p *Processor) Run(ctx context.Context) (interface{}, error) {
	script, ok := p.args.Kwargs["script"].(string)
	if !ok || script == "" {
		return nil, fmt.Errorf("shellscript: task is missing a %q string argument", "script")
	}

	image := p.cfg.DefaultImage
	if v, ok := p.args.Kwargs["image"].(string); ok && v != "" {
		image = v
	}

	timeout := time.Duration(p.cfg.DefaultTimeoutSeconds) * time.Second
	if v, ok := p.args.Kwargs["timeout_seconds"].(float64); ok && v > 0 {
		timeout = time.Duration(v) * time.Second
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := p.runner.Run(runCtx, RunParams{
		Image:         image,
		Script:        script,
		MemoryLimitMB: p.cfg.DefaultMemoryLimitMB,
		CPUQuota:      p.cfg.DefaultCPUQuota,
		PidsLimit:     p.cfg.DefaultPidsLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("shellscript: %w", err)
	}
	if result.ExitCode != 0 {
		return nil, fmt.Errorf("%w (exit code %d): %s", ErrScriptFailed, result.ExitCode, result.Stderr)
	}
	return result.Stdout, nil
}
