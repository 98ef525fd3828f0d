package processor

import (
	"context"
	"fmt"

	"github.com/go-partisan/partisan/internal/store"
	"github.com/go-partisan/partisan/internal/task"
)

// Delay persists p as a new Task, mirroring BaseTaskProcessor.delay. When the
// processor's Policy sets UniqueForParams and a NEW task with the same
// queue/processor class/arguments already exists, the existing task is
// returned instead of creating a duplicate.
func Delay(ctx context.Context, s store.Store, p Processor, args task.Arguments, priorityOverride *int) (*task.Task, error) {
	policy := p.Policy()
	queue := policy.queueOrDefault()
	priority := policy.priorityOrDefault()
	if priorityOverride != nil {
		priority = *priorityOverride
	}

	if policy.UniqueForParams {
		existing, err := s.FindUniqueNew(ctx, queue, p.ClassName(), args)
		if err != nil {
			return nil, fmt.Errorf("check unique task: %w", err)
		}
		if existing != nil {
			return existing, nil
		}
	}

	t := task.New(p.ClassName(), args, task.WithQueue(queue), task.WithPriority(priority))
	if err := s.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("create delayed task: %w", err)
	}
	return t, nil
}

// DelayForRetry reschedules an existing task for another attempt, mirroring
// Task.run's retry branch: bump the retry counter and move execute_after
// forward per the bound ErrorsHandleConfig.
func DelayForRetry(ctx context.Context, s store.Store, clock task.Clock, t *task.Task, cfg task.ErrorsHandleConfig) error {
	tryNum := t.TriesCount() + 1
	executeAfter, err := cfg.NewExecuteAfterForRetry(clock.Now(), tryNum)
	if err != nil {
		return err
	}
	return s.Retry(ctx, t.ID, tryNum, executeAfter)
}
