// Package task implements the Task entity, its state machine, and the
// retry/postpone policy configs that govern it.
package task

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the task's position in the NEW -> IN_PROCESS -> {FINISHED, ERROR}
// state machine. IN_PROCESS can return to NEW via retry, postpone, or orphan
// reset.
type Status string

const (
	StatusNew       Status = "new"
	StatusInProcess Status = "in_process"
	StatusError     Status = "error"
	StatusFinished  Status = "finished"
)

func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusInProcess, StatusError, StatusFinished:
		return true
	default:
		return false
	}
}

const DefaultQueueName = "default"
const DefaultPriority = 10

// Arguments binds a processor's positional and named parameters, mirroring
// the original's {"args": [...], "kwargs": {...}} shape so a processor
// constructor can reconstruct its call.
type Arguments struct {
	Args   []interface{}          `json:"args"`
	Kwargs map[string]interface{} `json:"kwargs"`
}

func (a Arguments) Value() (driver.Value, error) {
	return json.Marshal(a)
}

func (a *Arguments) Scan(value interface{}) error {
	if value == nil {
		*a = Arguments{Args: []interface{}{}, Kwargs: map[string]interface{}{}}
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Arguments", value)
	}
	var out Arguments
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("cannot unmarshal Arguments: %w", err)
	}
	if out.Args == nil {
		out.Args = []interface{}{}
	}
	if out.Kwargs == nil {
		out.Kwargs = map[string]interface{}{}
	}
	*a = out
	return nil
}

// Extra carries the free-form, nested JSON bookkeeping the store keeps
// alongside a task: retry/postpone counters and the last failure message.
// Kept as JSON rather than dedicated columns (see DESIGN.md Open Questions).
type Extra struct {
	Retries   *CounterField `json:"retries,omitempty"`
	Postpones *CounterField `json:"postpones,omitempty"`
	Message   string        `json:"message,omitempty"`
}

type CounterField struct {
	Count int `json:"count"`
}

func (e Extra) Value() (driver.Value, error) {
	return json.Marshal(e)
}

func (e *Extra) Scan(value interface{}) error {
	if value == nil {
		*e = Extra{}
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Extra", value)
	}
	var out Extra
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("cannot unmarshal Extra: %w", err)
	}
	*e = out
	return nil
}

func (e Extra) RetriesCount() int {
	if e.Retries == nil {
		return 0
	}
	return e.Retries.Count
}

func (e Extra) PostponesCount() int {
	if e.Postpones == nil {
		return 0
	}
	return e.Postpones.Count
}

// Task is a single unit of queued work.
//
// Invariants (unchanged from the specification):
//  1. ID is immutable and unique.
//  2. Status transitions only along NEW -> IN_PROCESS -> {FINISHED, ERROR},
//     with IN_PROCESS -> NEW permitted for retry, postpone, and orphan reset.
//  3. ExecuteAfter must be honored by the claim query: a task is never
//     claimed before its scheduled time.
//  4. Priority governs claim ordering, higher first.
//  5. Arguments are immutable after creation; Extra accumulates bookkeeping.
type Task struct {
	ID             uuid.UUID `db:"id"`
	QueueName      string    `db:"queue_name"`
	ProcessorClass string    `db:"processor_class"`
	Status         Status    `db:"status"`
	Priority       int       `db:"priority"`
	ExecuteAfter   time.Time `db:"execute_after"`
	Arguments      Arguments `db:"arguments"`
	Extra          Extra     `db:"extra"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// New constructs a Task ready for Store.Create. ExecuteAfter stays zero
// unless WithExecuteAfter is given; a zero ExecuteAfter is already due, so
// the task can be claimed at once.
func New(processorClass string, args Arguments, opts ...Option) *Task {
	t := &Task{
		ID:             uuid.New(),
		QueueName:      DefaultQueueName,
		ProcessorClass: processorClass,
		Status:         StatusNew,
		Priority:       DefaultPriority,
		Arguments:      args,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

type Option func(*Task)

func WithQueue(name string) Option {
	return func(t *Task) { t.QueueName = name }
}

func WithPriority(p int) Option {
	return func(t *Task) { t.Priority = p }
}

func WithExecuteAfter(at time.Time) Option {
	return func(t *Task) { t.ExecuteAfter = at }
}

// TriesCount mirrors the original's Task.tries_count property.
func (t *Task) TriesCount() int { return t.Extra.RetriesCount() }

// PostponesCount mirrors the original's postpone bookkeeping.
func (t *Task) PostponesCount() int { return t.Extra.PostponesCount() }

// SetTriesCount updates the retry counter, matching the original's
// tries_count setter semantics (preserves any existing postpone counter).
func (t *Task) SetTriesCount(n int) {
	t.Extra.Retries = &CounterField{Count: n}
}

// SetPostponesCount updates the postpone counter.
func (t *Task) SetPostponesCount(n int) {
	t.Extra.Postpones = &CounterField{Count: n}
}

func (t *Task) String() string {
	return fmt.Sprintf("%s (%+v) - %s", t.ProcessorClass, t.Arguments, t.Status)
}
