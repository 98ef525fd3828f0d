// Package plugins is the explicit load list processors register through,
// the Go analogue of django_partisan.registry.initializer scanning every
// installed app for a partisan_tasks submodule: instead of scanning, each
// Plugin names itself and Load registers whatever processors it owns.
package plugins

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-partisan/partisan/internal/config"
	"github.com/go-partisan/partisan/internal/plugins/shellscript"
	"github.com/go-partisan/partisan/internal/registry"
)

// Plugin registers one or more processor factories into reg.
type Plugin interface {
	Name() string
	Load(ctx context.Context, reg *registry.Registry, cfg *config.Config, logger *slog.Logger) error
}

// All returns every plugin this build ships with, in load order.
func All() []Plugin {
	return []Plugin{
		shellscriptPlugin{},
	}
}

// LoadAll runs Load for every plugin returned by All, wrapping failures with
// the offending plugin's name.
func LoadAll(ctx context.Context, reg *registry.Registry, cfg *config.Config, logger *slog.Logger) error {
	for _, p := range All() {
		if err := p.Load(ctx, reg, cfg, logger); err != nil {
			return fmt.Errorf("plugin %q: %w", p.Name(), err)
		}
	}
	return nil
}

type shellscriptPlugin struct{}

func (shellscriptPlugin) Name() string { return "shellscript" }

func (shellscriptPlugin) Load(ctx context.Context, reg *registry.Registry, cfg *config.Config, logger *slog.Logger) error {
	runner, err := shellscript.NewDockerRunner(ctx, logger, cfg.Executor.DockerEndpoint)
	if err != nil {
		return fmt.Errorf("connect docker runner: %w", err)
	}
	factory := shellscript.New(runner, shellscript.Config{
		DefaultImage:          cfg.Executor.DefaultImage,
		DefaultMemoryLimitMB:  int64(cfg.Executor.DefaultMemoryLimitMB),
		DefaultCPUQuota:       cfg.Executor.DefaultCPUQuota,
		DefaultPidsLimit:      cfg.Executor.DefaultPidsLimit,
		DefaultTimeoutSeconds: cfg.Executor.DefaultTimeoutSeconds,
	})
	return reg.Register(shellscript.ClassName, factory)
}
