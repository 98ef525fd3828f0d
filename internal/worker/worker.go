// Package worker implements the Worker lifecycle (spec.md §4.4), grounded
// line-by-line on django_partisan.worker.Worker and reinterpreted for a
// goroutine instead of an OS process (spec.md §9).
package worker

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-partisan/partisan/internal/engine"
	"github.com/go-partisan/partisan/internal/task"
)

// dequeueTimeout mirrors the original's queue.get(timeout=5): how long a
// worker waits for a task before looping back to re-check shouldProcessTasks
// and ctx.Done(), rather than blocking on the channel forever.
const dequeueTimeout = 5 * time.Second

// Worker pulls tasks off a shared channel and runs them through the engine
// until told to stop. It is a goroutine, not an OS process: the supervisor
// owns a pool of these via Run, started with `go w.Run(ctx)`.
type Worker struct {
	ID               int
	Queue            <-chan *task.Task
	Engine           *engine.Engine
	Logger           *slog.Logger
	TasksBeforeDeath int // 0 means unlimited, matching Optional[int] = None
	tasksProcessed   atomic.Int64
}

// Run is the worker's main loop. It returns when ctx is canceled (the
// goroutine-native replacement for the original's "parent process died"
// orphan check: a canceled context is the unambiguous sign the owning
// supervisor is gone), when a stop sentinel arrives on Queue, or when
// TasksBeforeDeath is reached.
func (w *Worker) Run(ctx context.Context) {
	log := w.logger()
	log.Info("worker started", "worker_id", w.ID)

	for w.shouldProcessTasks() {
		select {
		case <-ctx.Done():
			log.Info("worker stopping: context canceled", "worker_id", w.ID)
			return
		case item, ok := <-w.Queue:
			if !ok {
				log.Info("worker stopping: queue closed", "worker_id", w.ID)
				return
			}
			if item == nil {
				log.Info("worker stopped", "worker_id", w.ID)
				return
			}
			if !w.process(ctx, item) {
				return
			}
		case <-time.After(dequeueTimeout):
			continue
		}
	}

	log.Info("worker exiting: task cap reached",
		"worker_id", w.ID, "processed", w.tasksProcessed.Load(), "cap", w.TasksBeforeDeath)
}

// process runs one task through the engine and reports whether the worker
// should keep looping. A non-nil error from Engine.Process means the task's
// outer handler (spec.md §4.4 step 2.d) must log and exit this worker rather
// than continue as if the task had been handled; the supervisor's
// manageWorkers sweep notices the exit and spawns a replacement.
func (w *Worker) process(ctx context.Context, t *task.Task) bool {
	log := w.logger()
	outcome, err := w.Engine.Process(ctx, t)
	if err != nil {
		log.Error("task processing failed, exiting worker", "worker_id", w.ID, "task_id", t.ID, "error", err)
		return false
	}
	w.tasksProcessed.Add(1)
	log.Debug("task processed", "worker_id", w.ID, "task_id", t.ID, "outcome", outcome)
	return true
}

func (w *Worker) shouldProcessTasks() bool {
	if w.TasksBeforeDeath == 0 {
		return true
	}
	return w.tasksProcessed.Load() < int64(w.TasksBeforeDeath)
}

func (w *Worker) logger() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.Default()
}

// TasksProcessed reports how many tasks this worker has handled without an
// error from the engine (completed, retried or postponed), for the
// supervisor's task-cap check and stats reporting.
func (w *Worker) TasksProcessed() int { return int(w.tasksProcessed.Load()) }
