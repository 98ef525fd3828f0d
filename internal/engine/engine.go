// Package engine implements the task execution policy (spec.md §4.6): given
// a claimed Task, construct its processor, run it, and apply the
// complete/fail/retry/postpone decision, grounded on
// django_partisan.models.Task.run/complete/fail.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-partisan/partisan/internal/processor"
	"github.com/go-partisan/partisan/internal/registry"
	"github.com/go-partisan/partisan/internal/store"
	"github.com/go-partisan/partisan/internal/task"
)

// Engine ties the registry, store, and clock together to execute one task
// at a time on behalf of a worker goroutine.
type Engine struct {
	Store               store.Store
	Registry            *registry.Registry
	Clock               task.Clock
	Logger              *slog.Logger
	DeleteOnComplete    bool
	DefaultPostponeFor  int // seconds, used when a PostponeSignal carries no override
	DefaultPostponesCount int // queue-wide postpone cap for processors with no PostponeConfig (spec.md §4.6)
}

// Outcome reports what happened to a task after Process, for the worker's
// logging and tasks-processed counter.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	OutcomeRetried   Outcome = "retried"
	OutcomePostponed Outcome = "postponed"
)

// Process runs t to completion, applying exactly one of complete/fail/retry/
// postpone, and reports which one. A non-nil error means the caller's outer
// handler must stop: either a store error, or an OutcomeFailed that wasn't
// resolved through a declared retry/postpone path (spec.md §4.4 step 2.d:
// "any other exception: task.fail(err) then propagate to the worker's outer
// handler, which logs and exits the worker"). Successful complete/retry/
// postpone return a nil error, so the worker keeps looping.
func (e *Engine) Process(ctx context.Context, t *task.Task) (Outcome, error) {
	factory, err := e.Registry.Lookup(t.ProcessorClass)
	if err != nil {
		return e.applyFail(ctx, t, err)
	}

	proc, err := factory(t.Arguments)
	if err != nil {
		return e.applyFail(ctx, t, fmt.Errorf("construct processor: %w", err))
	}

	policy := proc.Policy()
	_, runErr := proc.Run(ctx)

	var postpone *task.PostponeSignal
	if errors.As(runErr, &postpone) {
		return e.applyPostpone(ctx, t, policy, postpone)
	}

	if runErr == nil {
		return e.applyComplete(ctx, t)
	}

	if policy.RetryConfig != nil && matchesRetryable(policy.RetryConfig, runErr) {
		tryNum := t.TriesCount() + 1
		if policy.RetryConfig.ShouldBeRetried(tryNum) {
			executeAfter, cfgErr := policy.RetryConfig.NewExecuteAfterForRetry(e.Clock.Now(), tryNum)
			if cfgErr != nil {
				return e.applyFail(ctx, t, runErr)
			}
			if err := e.Store.Retry(ctx, t.ID, tryNum, executeAfter); err != nil {
				return OutcomeRetried, err
			}
			e.logger().Info("task retried", "task_id", t.ID, "try", tryNum, "execute_after", executeAfter)
			return OutcomeRetried, nil
		}
	}

	return e.applyFail(ctx, t, runErr)
}

func (e *Engine) applyComplete(ctx context.Context, t *task.Task) (Outcome, error) {
	if err := e.Store.Complete(ctx, t.ID, e.DeleteOnComplete); err != nil {
		return OutcomeCompleted, err
	}
	return OutcomeCompleted, nil
}

// applyFail records the failure in the store and, regardless of whether that
// write succeeds, always returns cause (or the store error, if that write
// itself failed) so Process's caller treats this as the "any other
// exception" path and stops rather than looping as if nothing happened.
func (e *Engine) applyFail(ctx context.Context, t *task.Task, cause error) (Outcome, error) {
	if err := e.Store.Fail(ctx, t.ID, cause.Error()); err != nil {
		return OutcomeFailed, err
	}
	e.logger().Warn("task failed", "task_id", t.ID, "error", cause)
	return OutcomeFailed, cause
}

func (e *Engine) applyPostpone(ctx context.Context, t *task.Task, policy processor.Policy, signal *task.PostponeSignal) (Outcome, error) {
	maxPostpones, hasLimit := e.maxPostponesFor(policy)
	nextCount := t.PostponesCount() + 1
	if hasLimit && nextCount > maxPostpones {
		return e.applyFail(ctx, t, fmt.Errorf("%w: maximum postpones (%d) reached", task.ErrMaxPostponesReached, maxPostpones))
	}

	delaySeconds := signal.PostponeForSeconds
	if delaySeconds <= 0 {
		delaySeconds = e.DefaultPostponeFor
	}
	executeAfter := e.Clock.Now().Add(secondsToDuration(delaySeconds))
	if err := e.Store.Postpone(ctx, t.ID, nextCount, executeAfter); err != nil {
		return OutcomePostponed, err
	}
	e.logger().Info("task postponed", "task_id", t.ID, "count", nextCount, "execute_after", executeAfter)
	return OutcomePostponed, nil
}

// maxPostponesFor resolves the postpone cap per spec.md §4.6: the
// per-processor PostponeConfig.MaxPostpones when the processor declares one,
// otherwise the queue-wide DefaultPostponesCount fallback when set. hasLimit
// is false only when neither applies, meaning postpone has no cap to check
// against and is unbounded.
func (e *Engine) maxPostponesFor(policy processor.Policy) (max int, hasLimit bool) {
	if policy.PostponeConfig != nil {
		return policy.PostponeConfig.MaxPostpones, true
	}
	if e.DefaultPostponesCount > 0 {
		return e.DefaultPostponesCount, true
	}
	return 0, false
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func matchesRetryable(cfg *task.ErrorsHandleConfig, err error) bool {
	for _, sentinel := range cfg.RetryOnErrors {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
