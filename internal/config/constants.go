package config

import "time"

// Process-wide defaults not sourced from the environment.
const (
	DefaultExecutorMemoryLimitMB = 128
	DefaultExecutorCPUQuota      = 50000 // 0.5 CPU core, cgroup quota units
	DefaultExecutorPidsLimit     = 64

	DefaultShutdownTimeout = 30 * time.Second
	DefaultDatabaseTimeout = 10 * time.Second
)
