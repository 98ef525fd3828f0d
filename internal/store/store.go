// Package store is the task store adapter: it owns every state transition
// that touches persistence, including the atomic claim that hands NEW tasks
// to the supervisor.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/go-partisan/partisan/internal/task"
)

// Store is the persistence contract the supervisor and processor package
// depend on (spec.md §4.3). A Postgres implementation lives in pgstore.go;
// tests use an in-memory fake (fake.go).
type Store interface {
	// Create persists a new task with the status it carries (StatusNew for
	// a task built by task.New).
	Create(ctx context.Context, t *task.Task) error

	// FindUniqueNew looks for an existing NEW task in queueName with the
	// same processor class and arguments, supporting UNIQUE_FOR_PARAMS
	// dedup-on-enqueue.
	FindUniqueNew(ctx context.Context, queueName, processorClass string, args task.Arguments) (*task.Task, error)

	// ClaimForProcess atomically selects up to count NEW tasks in queueName
	// whose ExecuteAfter has elapsed, transitions them to IN_PROCESS, and
	// returns them ordered by priority descending. It must use row locking
	// so concurrent supervisors never double-claim a task.
	ClaimForProcess(ctx context.Context, queueName string, count int) ([]*task.Task, error)

	// ResetOrphans moves every IN_PROCESS task in queueName back to NEW.
	// Called before a supervisor starts claiming, so a crash mid-run never
	// strands a task in IN_PROCESS forever.
	ResetOrphans(ctx context.Context, queueName string) (int, error)

	// Complete finishes a task successfully. deleteOnComplete mirrors
	// DELETE_TASKS_ON_COMPLETE: when true the row is deleted instead of
	// marked FINISHED.
	Complete(ctx context.Context, id uuid.UUID, deleteOnComplete bool) error

	// Fail marks a task ERROR with the given message.
	Fail(ctx context.Context, id uuid.UUID, message string) error

	// Retry returns a task to NEW with a bumped retry counter and new
	// ExecuteAfter.
	Retry(ctx context.Context, id uuid.UUID, triesCount int, executeAfter time.Time) error

	// Postpone returns a task to NEW with a bumped postpone counter and new
	// ExecuteAfter.
	Postpone(ctx context.Context, id uuid.UUID, postponesCount int, executeAfter time.Time) error
}
