// Package finitestate tracks the lifecycle of a single evaluation job.
package finitestate

import (
	"log/slog"

	"github.com/robbyt/go-fsm"
)

// Job state constants
const (
	JobReceived    = "received"
	JobTranspiling = "transpiling"
	JobExecuting   = "executing"
	JobSerializing = "serializing"
	JobSucceeded   = "succeeded"
	JobFailed      = "failed"
)

// JobTransitions defines valid state transitions for a job. A job evaluating
// an already prepared program goes from received straight to executing. Every
// working state may fail; the terminal states accept nothing.
var JobTransitions = map[string][]string{
	JobReceived:    {JobTranspiling, JobExecuting, JobFailed},
	JobTranspiling: {JobExecuting, JobFailed},
	JobExecuting:   {JobSerializing, JobFailed},
	JobSerializing: {JobSucceeded, JobFailed},
	JobSucceeded:   {},
	JobFailed:      {},
}

// Machine is the subset of the state machine a job uses.
type Machine interface {
	Transition(state string) error
	GetState() string
}

type JobFSM struct {
	*fsm.Machine
}

// NewJobFSM creates a machine in the received state.
func NewJobFSM(handler slog.Handler) (*JobFSM, error) {
	machine, err := fsm.New(handler, JobReceived, JobTransitions)
	if err != nil {
		return nil, err
	}
	return &JobFSM{Machine: machine}, nil
}

// IsTerminal reports whether no further transitions are possible.
func IsTerminal(state string) bool {
	return state == JobSucceeded || state == JobFailed
}
