package fleet

import "fmt"

// PowerState is the observed or desired power state of an instance.
type PowerState int

const (
	StateUnknown PowerState = iota
	StateRunning
	StateStopped
	// StateTransitioning covers provider-side in-flight states
	// (pending, stopping, shutting-down). Instances in this state are
	// deferred for the tick rather than raced.
	StateTransitioning
)

func (s PowerState) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateTransitioning:
		return "transitioning"
	default:
		return "unknown"
	}
}

// InstanceRecord is one instance as observed at the start of a tick.
//
// Records are built fresh from the provider every tick and never persisted.
// Schedule tags are carried raw; parsing happens during reconciliation so a
// malformed expression is scoped to its own descriptor.
type InstanceRecord struct {
	ID     string
	Region string
	Name   string // Name tag, informational only
	State  PowerState

	// StartTag / StopTag hold the raw tag values (possibly comma-separated
	// lists of cron expressions). Empty string means the tag is absent and
	// that polarity never fires.
	StartTag string
	StopTag  string
}

// TransitionIntent is the decided, not-yet-executed instruction to change an
// instance's power state. At most one intent is produced per instance per tick.
type TransitionIntent struct {
	InstanceID string
	Region     string
	From       PowerState
	To         PowerState
	// Reason names the descriptor that fired (tag key plus expression).
	Reason string
}

func (i TransitionIntent) String() string {
	return fmt.Sprintf("%s %s->%s (%s)", i.InstanceID, i.From, i.To, i.Reason)
}

// Result classifies the outcome of one instance for one tick.
type Result int

const (
	ResultSucceeded Result = iota
	ResultFailed
	ResultSkipped
	ResultDeferred
)

func (r Result) String() string {
	switch r {
	case ResultSucceeded:
		return "succeeded"
	case ResultFailed:
		return "failed"
	case ResultSkipped:
		return "skipped"
	case ResultDeferred:
		return "deferred"
	default:
		return fmt.Sprintf("result(%d)", int(r))
	}
}

// TickOutcome is the per-instance result of a tick. Outcomes exist only for
// the duration of the tick; the reporter aggregates and discards them.
type TickOutcome struct {
	InstanceID string
	Region     string
	Result     Result
	// Intent is nil for outcomes decided before execution
	// (skipped-in-target-state, deferred).
	Intent *TransitionIntent
	// Detail carries the error message for failures, or a short note
	// explaining a skip/deferral.
	Detail string
}
