// Package supervisor implements the WorkersManager: the in-memory queue,
// worker pool lifecycle, and signal-driven main loop, grounded on
// django_partisan.workers_manager.WorkersManager.
package supervisor

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-partisan/partisan/internal/config"
	"github.com/go-partisan/partisan/internal/engine"
	"github.com/go-partisan/partisan/internal/store"
	"github.com/go-partisan/partisan/internal/task"
	"github.com/go-partisan/partisan/internal/worker"
)

// Supervisor owns exactly one queue_name: it claims NEW tasks from the
// store, feeds them to an in-memory channel, and keeps a pool of workers
// draining that channel, mirroring run_partisan()'s sequencing:
// reset orphans -> spawn workers -> loop{manage_queue; manage_workers} ->
// flush_queue -> stop_workers.
type Supervisor struct {
	QueueName string
	Settings  config.QueueSettings
	Store     store.Store
	Engine    *engine.Engine
	Clock     task.Clock
	Logger    *slog.Logger

	queue        chan *task.Task
	workers      []*worker.Worker
	workerDone   []chan struct{} // closed when the worker at the matching index's Run returns
	workerCancel context.CancelFunc
	workerCtx    context.Context
	workerWG     sync.WaitGroup

	running            atomic.Bool
	checksSinceCleanup int
}

func New(name string, settings config.QueueSettings, st store.Store, eng *engine.Engine, clock task.Clock, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		QueueName: name,
		Settings:  settings,
		Store:     st,
		Engine:    eng,
		Clock:     clock,
		Logger:    logger,
		queue:     make(chan *task.Task, settings.MaxQueueSize),
	}
}

// Run is the supervisor's main loop, equivalent to run_partisan(): it
// installs signal handlers, resets orphaned tasks, creates the worker pool,
// and loops managing the queue and worker health until signaled to stop or
// ctx is canceled, then drains and shuts down cleanly.
func (s *Supervisor) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	s.running.Store(true)

	if _, err := s.Store.ResetOrphans(ctx, s.QueueName); err != nil {
		return err
	}

	s.workerCtx, s.workerCancel = context.WithCancel(context.Background())
	s.createWorkers()

	s.Logger.Info("supervisor started", "queue", s.QueueName, "workers", s.Settings.WorkersCount)

	tickInterval := time.Duration(s.Settings.SleepDelaySeconds) * time.Second
	if tickInterval <= 0 {
		tickInterval = time.Millisecond // SLEEP_DELAY_SECONDS=0 means "as fast as practical", not literally instantaneous
	}
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for s.running.Load() {
		select {
		case <-ctx.Done():
			s.running.Store(false)
		case <-ticker.C:
			if err := s.manageQueue(ctx); err != nil {
				s.Logger.Error("manage_queue failed, continuing", "queue", s.QueueName, "error", err)
				continue
			}
			s.manageWorkers()
		}
	}

	s.Logger.Info("supervisor stopping", "queue", s.QueueName)
	drained := s.flushQueue()
	s.Logger.Info("flushed queue", "queue", s.QueueName, "drained", drained)
	s.stopWorkers()
	return nil
}

// Stop requests a graceful shutdown, for callers that want to stop a
// supervisor without a real OS signal (e.g. tests, or one supervisor
// reacting to a sibling's fatal error).
func (s *Supervisor) Stop() { s.running.Store(false) }

// Stats is a point-in-time snapshot of one queue's supervisor, exposed
// through internal/statusapi's /stats endpoint.
type Stats struct {
	QueueName      string `json:"queue_name"`
	QueueLength    int    `json:"queue_length"`
	QueueCapacity  int    `json:"queue_capacity"`
	WorkersCount   int    `json:"workers_count"`
	TasksProcessed int    `json:"tasks_processed"`
	Running        bool   `json:"running"`
}

// Stats reports the current queue depth, worker count, and the tasks
// processed by the workers currently in the pool; a replaced worker's count
// is no longer included.
func (s *Supervisor) Stats() Stats {
	processed := 0
	for _, w := range s.workers {
		processed += w.TasksProcessed()
	}
	return Stats{
		QueueName:      s.QueueName,
		QueueLength:    len(s.queue),
		QueueCapacity:  cap(s.queue),
		WorkersCount:   len(s.workers),
		TasksProcessed: processed,
		Running:        s.running.Load(),
	}
}

func (s *Supervisor) createWorkers() {
	s.workers = make([]*worker.Worker, 0, s.Settings.WorkersCount)
	s.workerDone = make([]chan struct{}, 0, s.Settings.WorkersCount)
	for i := 0; i < s.Settings.WorkersCount; i++ {
		w := &worker.Worker{
			ID:               i,
			Queue:            s.queue,
			Engine:           s.Engine,
			Logger:           s.Logger,
			TasksBeforeDeath: s.Settings.TasksPerWorkerInstance,
		}
		s.workers = append(s.workers, w)
		s.workerDone = append(s.workerDone, s.spawnWorker(w))
	}
}

// spawnWorker starts w.Run in its own goroutine and returns a channel closed
// when it returns, letting manageWorkers detect a worker that exited on its
// own (crash, unhandled task failure) independent of the task-cap rotation.
func (s *Supervisor) spawnWorker(w *worker.Worker) chan struct{} {
	done := make(chan struct{})
	s.workerWG.Add(1)
	go func() {
		defer s.workerWG.Done()
		defer close(done)
		w.Run(s.workerCtx)
	}()
	return done
}

// manageQueue refills the in-memory queue when it is running low, the Go
// analogue of manage_queue's qsize()<=MIN_QUEUE_SIZE refill check. When the
// claim returns nothing, it mirrors the original's "sleep" branch by simply
// doing nothing until the next tick.
func (s *Supervisor) manageQueue(ctx context.Context) error {
	if len(s.queue) > s.Settings.MinQueueSize {
		return nil
	}
	capacity := s.Settings.MaxQueueSize - len(s.queue)
	if capacity <= 0 {
		return nil
	}
	claimed, err := s.Store.ClaimForProcess(ctx, s.QueueName, capacity)
	if err != nil {
		return err
	}
	for _, t := range claimed {
		s.queue <- t
	}
	if len(claimed) > 0 {
		s.Logger.Debug("claimed tasks", "queue", s.QueueName, "count", len(claimed))
	}
	return nil
}

// manageWorkers periodically sweeps every worker slot, gated by
// CHECKS_BEFORE_CLEANUP exactly as the original's cleanup_counter. Two
// independent conditions trigger a replacement, matching
// workers_manager.py's manage_workers: a worker past its task-cap rotates
// out on its own terms, and a worker whose goroutine already exited for any
// other reason (crash, an unhandled task failure per spec.md §4.4 step 2.d)
// is noticed via its done channel and replaced regardless of the cap.
func (s *Supervisor) manageWorkers() {
	s.checksSinceCleanup++
	if s.checksSinceCleanup < s.Settings.ChecksBeforeCleanup {
		return
	}
	s.checksSinceCleanup = 0

	for i, w := range s.workers {
		if w.TasksBeforeDeath != 0 && w.TasksProcessed() >= w.TasksBeforeDeath {
			s.replaceWorker(i, "task cap reached")
			continue
		}
		if s.workerExited(i) {
			s.replaceWorker(i, "worker exited unexpectedly")
		}
	}
}

// workerExited reports whether the worker at index i has already returned
// from Run, without blocking.
func (s *Supervisor) workerExited(i int) bool {
	select {
	case <-s.workerDone[i]:
		return true
	default:
		return false
	}
}

// replaceWorker starts a fresh worker in the slot at index i, keeping the
// same ID. The old worker (already exited, or about to exit at its task cap)
// is not waited on here.
func (s *Supervisor) replaceWorker(i int, reason string) {
	oldID := s.workers[i].ID
	replacement := &worker.Worker{
		ID:               oldID,
		Queue:            s.queue,
		Engine:           s.Engine,
		Logger:           s.Logger,
		TasksBeforeDeath: s.Settings.TasksPerWorkerInstance,
	}
	s.workers[i] = replacement
	s.workerDone[i] = s.spawnWorker(replacement)
	s.Logger.Info("replaced worker", "queue", s.QueueName, "worker_id", oldID, "reason", reason)
}

// flushQueue drains any tasks still sitting in the in-memory channel on
// shutdown without blocking. Per spec.md §9's explicit Open Question
// decision, drained tasks are NOT unclaimed here; the next supervisor start
// will pick them back up via ResetOrphans.
func (s *Supervisor) flushQueue() int {
	drained := 0
	for {
		select {
		case <-s.queue:
			drained++
		default:
			return drained
		}
	}
}

// stopWorkers sends a stop sentinel to every worker, cancels the worker
// context as a backstop, and waits (with a timeout) for the pool to exit.
func (s *Supervisor) stopWorkers() {
	for range s.workers {
		select {
		case s.queue <- nil:
		default:
		}
	}

	s.workerCancel()

	done := make(chan struct{})
	go func() {
		s.workerWG.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.Logger.Info("all workers stopped", "queue", s.QueueName)
	case <-time.After(2 * time.Second):
		s.Logger.Warn("workers did not stop within timeout", "queue", s.QueueName)
	}
}
