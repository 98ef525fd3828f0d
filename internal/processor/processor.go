// Package processor defines the contract a unit of work implements and the
// Delay/DelayForRetry operations that turn a processor instance into a
// persisted Task, grounded on django_partisan.processor.BaseTaskProcessor.
package processor

import (
	"context"
)

// DefaultPriority mirrors BaseTaskProcessor.PRIORITY.
const DefaultPriority = 10

// Processor is implemented by every registered unit of work. Run either
// returns a result, a *PostponeSignal-compatible error (see task package),
// or a plain error that the engine's retry policy inspects.
type Processor interface {
	// Run executes the unit of work. Returning a *task.PostponeSignal asks
	// the engine to reschedule rather than complete or fail the task.
	Run(ctx context.Context) (interface{}, error)

	// ClassName is the registry key this processor was constructed under;
	// Delay uses it to build the persisted Task's processor_class column.
	ClassName() string

	// Policy returns this processor's queue/priority/retry/postpone
	// configuration. A nil RetryConfig disables retries for this processor,
	// matching the original's RETRY_ON_ERROR_CONFIG = None convention. A nil
	// PostponeConfig leaves postpones capped only by the engine's queue-wide
	// DefaultPostponesCount, and unbounded when that is zero.
	Policy() Policy
}
