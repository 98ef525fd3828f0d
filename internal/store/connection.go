package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/go-partisan/partisan/internal/config"
)

// Connection wraps the pgx pool, adapted near-verbatim from the teacher's
// internal/database.Connection: ambient DB plumbing, not domain-specific.
type Connection struct {
	Pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewConnection(cfg *config.DatabaseConfig, logger *slog.Logger) (*Connection, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = 5 * time.Minute
	poolConfig.ConnConfig.ConnectTimeout = 10 * time.Second
	poolConfig.ConnConfig.RuntimeParams["statement_timeout"] = "30s"
	poolConfig.ConnConfig.RuntimeParams["idle_in_transaction_session_timeout"] = "60s"

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection pool created",
		"host", cfg.Host, "port", cfg.Port, "database", cfg.Database,
		"max_conns", poolConfig.MaxConns, "min_conns", poolConfig.MinConns,
	)

	return &Connection{Pool: pool, logger: logger}, nil
}

// NewConnectionWithRetry retries connection establishment with exponential
// backoff, for callers starting up alongside a database that may not be
// ready yet (e.g. in a container orchestrator).
func NewConnectionWithRetry(cfg *config.DatabaseConfig, logger *slog.Logger) (*Connection, error) {
	if logger == nil {
		logger = slog.Default()
	}

	const maxRetries = 5
	retryDelay := 2 * time.Second

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		logger.Info("attempting database connection", "attempt", attempt, "max_retries", maxRetries)

		conn, err := NewConnection(cfg, logger)
		if err == nil {
			return conn, nil
		}
		lastErr = err

		logger.Warn("database connection failed, retrying", "attempt", attempt, "error", err, "retry_delay", retryDelay)
		if attempt < maxRetries {
			time.Sleep(retryDelay)
			retryDelay = time.Duration(float64(retryDelay) * 1.5)
		}
	}

	return nil, fmt.Errorf("failed to establish database connection after %d attempts: %w", maxRetries, lastErr)
}

func (c *Connection) Close() {
	if c.Pool != nil {
		c.logger.Info("closing database connection pool")
		c.Pool.Close()
	}
}

func (c *Connection) Ping(ctx context.Context) error {
	return c.Pool.Ping(ctx)
}

func (c *Connection) Stats() *pgxpool.Stat {
	return c.Pool.Stat()
}

func (c *Connection) HealthCheck(ctx context.Context) error {
	if c.Pool == nil {
		return fmt.Errorf("database pool is not initialized")
	}
	if err := c.Pool.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	var result int
	if err := c.Pool.QueryRow(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database query test failed: %w", err)
	}
	return nil
}
