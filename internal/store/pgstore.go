package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/go-partisan/partisan/internal/task"
)

// PGStore is the Postgres-backed Store, grounded on the teacher's
// internal/database connection/repository idiom and on the select-then-
// update-in-one-transaction claim algorithm from the original's
// TasksManager.select_for_process.
type PGStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewPGStore(pool *pgxpool.Pool, logger *slog.Logger) *PGStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PGStore{pool: pool, logger: logger}
}

func (s *PGStore) Create(ctx context.Context, t *task.Task) error {
	const q = `
		INSERT INTO tasks (id, queue_name, processor_class, status, priority, execute_after, arguments, extra, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())`
	_, err := s.pool.Exec(ctx, q,
		t.ID, t.QueueName, t.ProcessorClass, t.Status, t.Priority, t.ExecuteAfter, t.Arguments, t.Extra,
	)
	if err != nil {
		return translateErr(err)
	}
	return nil
}

func (s *PGStore) FindUniqueNew(ctx context.Context, queueName, processorClass string, args task.Arguments) (*task.Task, error) {
	const q = `
		SELECT id, queue_name, processor_class, status, priority, execute_after, arguments, extra, created_at, updated_at
		FROM tasks
		WHERE queue_name = $1 AND processor_class = $2 AND status = $3 AND arguments = $4
		LIMIT 1`
	row := s.pool.QueryRow(ctx, q, queueName, processorClass, task.StatusNew, args)
	t, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, translateErr(err)
	}
	return t, nil
}

// ClaimForProcess implements the two-phase select-then-update-in-one-
// transaction claim: lock candidate rows, flip them to IN_PROCESS, and
// return them, all inside one pgx.Tx so no other supervisor can observe the
// rows mid-claim. FOR UPDATE SKIP LOCKED lets concurrent supervisors on
// different queue_names (or the same one, for horizontal scale-out) avoid
// blocking on each other's in-flight claims.
func (s *PGStore) ClaimForProcess(ctx context.Context, queueName string, count int) ([]*task.Task, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin claim tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const selectQ = `
		SELECT id FROM tasks
		WHERE queue_name = $1 AND status = $2 AND execute_after <= now()
		ORDER BY priority DESC, execute_after ASC
		LIMIT $3
		FOR UPDATE SKIP LOCKED`
	rows, err := tx.Query(ctx, selectQ, queueName, task.StatusNew, count)
	if err != nil {
		return nil, fmt.Errorf("select candidates: %w", err)
	}
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan candidate id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	const updateQ = `UPDATE tasks SET status = $1, updated_at = now() WHERE id = ANY($2)`
	if _, err := tx.Exec(ctx, updateQ, task.StatusInProcess, ids); err != nil {
		return nil, fmt.Errorf("claim candidates: %w", err)
	}

	const fetchQ = `
		SELECT id, queue_name, processor_class, status, priority, execute_after, arguments, extra, created_at, updated_at
		FROM tasks WHERE id = ANY($1) ORDER BY priority DESC, execute_after ASC`
	claimedRows, err := tx.Query(ctx, fetchQ, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch claimed: %w", err)
	}
	tasks, err := scanTasks(claimedRows)
	claimedRows.Close()
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit claim tx: %w", err)
	}
	return tasks, nil
}

// ResetOrphans mirrors reset_tasks_to_initial_status: every IN_PROCESS task
// in the queue reverts to NEW. Run once before a supervisor starts claiming.
func (s *PGStore) ResetOrphans(ctx context.Context, queueName string) (int, error) {
	const q = `UPDATE tasks SET status = $1, updated_at = now() WHERE queue_name = $2 AND status = $3`
	tag, err := s.pool.Exec(ctx, q, task.StatusNew, queueName, task.StatusInProcess)
	if err != nil {
		return 0, translateErr(err)
	}
	n := int(tag.RowsAffected())
	if n > 0 {
		s.logger.Info("reset orphaned tasks", "queue", queueName, "count", n)
	}
	return n, nil
}

func (s *PGStore) Complete(ctx context.Context, id uuid.UUID, deleteOnComplete bool) error {
	if deleteOnComplete {
		_, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
		return translateErr(err)
	}
	const q = `UPDATE tasks SET status = $1, updated_at = now() WHERE id = $2`
	_, err := s.pool.Exec(ctx, q, task.StatusFinished, id)
	return translateErr(err)
}

func (s *PGStore) Fail(ctx context.Context, id uuid.UUID, message string) error {
	const q = `
		UPDATE tasks
		SET status = $1,
		    extra = jsonb_set(coalesce(extra, '{}'::jsonb), '{message}', to_jsonb($2::text), true),
		    updated_at = now()
		WHERE id = $3`
	_, err := s.pool.Exec(ctx, q, task.StatusError, message, id)
	return translateErr(err)
}

func (s *PGStore) Retry(ctx context.Context, id uuid.UUID, triesCount int, executeAfter time.Time) error {
	const q = `
		UPDATE tasks
		SET status = $1,
		    execute_after = $2,
		    extra = jsonb_set(coalesce(extra, '{}'::jsonb), '{retries,count}', to_jsonb($3::int), true),
		    updated_at = now()
		WHERE id = $4`
	_, err := s.pool.Exec(ctx, q, task.StatusNew, executeAfter, triesCount, id)
	return translateErr(err)
}

func (s *PGStore) Postpone(ctx context.Context, id uuid.UUID, postponesCount int, executeAfter time.Time) error {
	const q = `
		UPDATE tasks
		SET status = $1,
		    execute_after = $2,
		    extra = jsonb_set(coalesce(extra, '{}'::jsonb), '{postpones,count}', to_jsonb($3::int), true),
		    updated_at = now()
		WHERE id = $4`
	_, err := s.pool.Exec(ctx, q, task.StatusNew, executeAfter, postponesCount, id)
	return translateErr(err)
}

type row interface {
	Scan(dest ...interface{}) error
}

func scanTask(r row) (*task.Task, error) {
	var t task.Task
	err := r.Scan(&t.ID, &t.QueueName, &t.ProcessorClass, &t.Status, &t.Priority, &t.ExecuteAfter, &t.Arguments, &t.Extra, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func scanTasks(rows pgx.Rows) ([]*task.Task, error) {
	var out []*task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// translateErr maps pgx/pgconn errors to store-level sentinels the way the
// teacher's task_repository.go switches on pgconn.PgError codes.
func translateErr(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.Message)
		case "23503":
			return fmt.Errorf("%w: %s", ErrForeignKey, pgErr.Message)
		case "23514":
			return fmt.Errorf("%w: %s", ErrCheckViolation, pgErr.Message)
		}
	}
	return fmt.Errorf("store: %w", err)
}
