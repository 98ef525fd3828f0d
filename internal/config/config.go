// Package config loads process configuration from the environment, in the
// teacher's getEnv*-helpers-plus-validate() style, extended with the
// queue_name -> QueueSettings map the supervisor reads. Load fills only the
// "default" entry, from PARTISAN_* variables over package defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Database   DatabaseConfig
	Logger     LoggerConfig
	StatusAPI  StatusAPIConfig
	Executor   ExecutorConfig
	Queues     map[string]QueueSettings
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MinConns int
}

type LoggerConfig struct {
	Level  string
	Format string
}

// StatusAPIConfig configures the optional gin-based /healthz + /stats
// surface. Addr is empty by default, meaning the surface is off.
type StatusAPIConfig struct {
	Addr           string
	AllowedOrigins []string
}

// ExecutorConfig configures the demonstration shellscript plugin's
// container execution, adapted from the teacher's ExecutorConfig.
type ExecutorConfig struct {
	DockerEndpoint        string
	DefaultImage          string
	DefaultMemoryLimitMB  int
	DefaultCPUQuota       int64
	DefaultPidsLimit      int64
	DefaultTimeoutSeconds int
}

// QueueSettings mirrors django_partisan.settings.settings_models.QueueSettings
// field-for-field (spec.md §3).
type QueueSettings struct {
	MinQueueSize                int
	MaxQueueSize                int
	ChecksBeforeCleanup         int
	WorkersCount                int
	SleepDelaySeconds           int
	TasksPerWorkerInstance      int // 0 means unlimited, matching Optional[int] = None
	DeleteTasksOnComplete       bool
	DefaultPostponeDelaySeconds int
	DefaultPostponesCount       int
}

func defaultQueueSettings() QueueSettings {
	return QueueSettings{
		MinQueueSize:                5,
		MaxQueueSize:                20,
		ChecksBeforeCleanup:         50,
		WorkersCount:                4,
		SleepDelaySeconds:           5,
		TasksPerWorkerInstance:      0,
		DeleteTasksOnComplete:       false,
		DefaultPostponeDelaySeconds: 60,
		DefaultPostponesCount:       10,
	}
}

func (q QueueSettings) validate(queueName string) error {
	positive := map[string]int{
		"MIN_QUEUE_SIZE":                 q.MinQueueSize,
		"MAX_QUEUE_SIZE":                 q.MaxQueueSize,
		"CHECKS_BEFORE_CLEANUP":          q.ChecksBeforeCleanup,
		"WORKERS_COUNT":                  q.WorkersCount,
		"SLEEP_DELAY_SECONDS":            q.SleepDelaySeconds,
		"DEFAULT_POSTPONE_DELAY_SECONDS": q.DefaultPostponeDelaySeconds,
		"DEFAULT_POSTPONES_COUNT":        q.DefaultPostponesCount,
	}
	for field, v := range positive {
		if v < 0 {
			return fmt.Errorf("queue %q: %s must not be negative", queueName, field)
		}
	}
	if q.MinQueueSize > q.MaxQueueSize {
		return fmt.Errorf("queue %q: MIN_QUEUE_SIZE must not exceed MAX_QUEUE_SIZE", queueName)
	}
	if q.WorkersCount == 0 {
		return fmt.Errorf("queue %q: WORKERS_COUNT must be at least 1", queueName)
	}
	return nil
}

// Load reads Config from the environment (optionally via a .env file),
// applies the PARTISAN_* variables over the built-in defaults to build the
// "default" queue's settings, and validates the result. No per-queue
// overrides are read: Queues holds only the "default" entry, so
// QueueSettingsFor resolves every queue name to those settings.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "partisan"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
			MaxConns: getEnvInt("DB_MAX_CONNS", 25),
			MinConns: getEnvInt("DB_MIN_CONNS", 5),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		StatusAPI: StatusAPIConfig{
			Addr:           getEnv("STATUS_ADDR", ""),
			AllowedOrigins: getEnvSlice("STATUS_CORS_ALLOWED_ORIGINS", []string{}),
		},
		Executor: ExecutorConfig{
			DockerEndpoint:        getEnv("EXECUTOR_DOCKER_ENDPOINT", "unix:///var/run/docker.sock"),
			DefaultImage:          getEnv("EXECUTOR_DEFAULT_IMAGE", "alpine:latest"),
			DefaultMemoryLimitMB:  getEnvInt("EXECUTOR_DEFAULT_MEMORY_LIMIT_MB", DefaultExecutorMemoryLimitMB),
			DefaultCPUQuota:       getEnvInt64("EXECUTOR_DEFAULT_CPU_QUOTA", DefaultExecutorCPUQuota),
			DefaultPidsLimit:      getEnvInt64("EXECUTOR_DEFAULT_PIDS_LIMIT", DefaultExecutorPidsLimit),
			DefaultTimeoutSeconds: getEnvInt("EXECUTOR_DEFAULT_TIMEOUT_SECONDS", 300),
		},
	}

	base := defaultQueueSettings()
	base.MinQueueSize = getEnvInt("PARTISAN_MIN_QUEUE_SIZE", base.MinQueueSize)
	base.MaxQueueSize = getEnvInt("PARTISAN_MAX_QUEUE_SIZE", base.MaxQueueSize)
	base.ChecksBeforeCleanup = getEnvInt("PARTISAN_CHECKS_BEFORE_CLEANUP", base.ChecksBeforeCleanup)
	base.WorkersCount = getEnvInt("PARTISAN_WORKERS_COUNT", base.WorkersCount)
	base.SleepDelaySeconds = getEnvInt("PARTISAN_SLEEP_DELAY_SECONDS", base.SleepDelaySeconds)
	base.TasksPerWorkerInstance = getEnvInt("PARTISAN_TASKS_PER_WORKER_INSTANCE", base.TasksPerWorkerInstance)
	base.DeleteTasksOnComplete = getEnvBool("PARTISAN_DELETE_TASKS_ON_COMPLETE", base.DeleteTasksOnComplete)
	base.DefaultPostponeDelaySeconds = getEnvInt("PARTISAN_DEFAULT_POSTPONE_DELAY_SECONDS", base.DefaultPostponeDelaySeconds)
	base.DefaultPostponesCount = getEnvInt("PARTISAN_DEFAULT_POSTPONES_COUNT", base.DefaultPostponesCount)

	cfg.Queues = map[string]QueueSettings{
		"default": base,
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// QueueSettingsFor returns the settings for queueName, falling back to the
// default queue's settings when queueName has no explicit override,
// mirroring get_queue_settings's lookup-with-default.
func (c *Config) QueueSettingsFor(queueName string) (QueueSettings, error) {
	if s, ok := c.Queues[queueName]; ok {
		return s, nil
	}
	if s, ok := c.Queues["default"]; ok {
		return s, nil
	}
	return QueueSettings{}, fmt.Errorf("no settings for queue %q found", queueName)
}

func (c *Config) validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}
	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}
	if c.Database.MaxConns <= 0 {
		return fmt.Errorf("database max conns must be positive")
	}
	for name, q := range c.Queues {
		if err := q.validate(name); err != nil {
			return err
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		result := strings.Split(value, ",")
		for i, v := range result {
			result[i] = strings.TrimSpace(v)
		}
		return result
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
