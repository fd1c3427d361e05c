package gateway

import (
	"time"

	"github.com/google/uuid"

	"hermes/internal/adapters/ai"
	"hermes/internal/domain/record"
)

// State is the lifecycle stage of an invocation. Transitions run strictly
// forward; Done and Failed are terminal.
type State string

const (
	StatePending     State = "pending"
	StateRendering   State = "rendering"
	StateAssembling  State = "assembling"
	StateDispatching State = "dispatching"
	StateRouting     State = "routing"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// Invocation tracks one AI action execution from trigger to delivery.
type Invocation struct {
	ID       string
	ActionID string
	Record   record.Ref
	Vars     map[string]interface{}

	State      State
	StartedAt  time.Time
	FinishedAt time.Time

	Provider string
	Model    string
	Attempts int
	Usage    ai.Usage
	CostUSD  float64

	Response string
	Err      error
}

// newInvocation creates a pending invocation with a fresh ID.
func newInvocation(actionID string, ref record.Ref, vars map[string]interface{}) *Invocation {
	return &Invocation{
		ID:        uuid.NewString(),
		ActionID:  actionID,
		Record:    ref,
		Vars:      vars,
		State:     StatePending,
		StartedAt: time.Now().UTC(),
	}
}

// Duration returns the wall time from start to finish, or to now for a
// still-running invocation.
func (inv *Invocation) Duration() time.Duration {
	if inv.FinishedAt.IsZero() {
		return time.Since(inv.StartedAt)
	}
	return inv.FinishedAt.Sub(inv.StartedAt)
}
