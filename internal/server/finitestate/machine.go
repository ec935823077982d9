// Package finitestate tracks the lifecycle of the request loop.
package finitestate

import (
	"context"
	"log/slog"
	"time"

	"github.com/robbyt/go-fsm"
)

const (
	StatusNew          = fsm.StatusNew
	StatusIdle         = "Idle"
	StatusAwaitingLine = "AwaitingLine"
	StatusProcessing   = "Processing"
	StatusStopping     = fsm.StatusStopping
	StatusStopped      = fsm.StatusStopped
	StatusError        = fsm.StatusError
	StatusUnknown      = fsm.StatusUnknown
)

// LoopTransitions is the request loop cycle. Stopping is reachable from every
// live state because shutdown can interrupt a blocked read or a request.
var LoopTransitions = map[string][]string{
	StatusNew:          {StatusIdle, StatusStopping, StatusError},
	StatusIdle:         {StatusAwaitingLine, StatusStopping, StatusError},
	StatusAwaitingLine: {StatusProcessing, StatusIdle, StatusStopping, StatusError},
	StatusProcessing:   {StatusIdle, StatusStopping, StatusError},
	StatusStopping:     {StatusStopped, StatusError},
	StatusStopped:      {StatusNew},
	StatusError:        {StatusStopping, StatusStopped, StatusNew},
	StatusUnknown:      {StatusNew},
}

// SubscriberOption is a functional option for configuring state channel behavior
type SubscriberOption = fsm.SubscriberOption

// WithSyncTimeout sets a timeout for synchronous broadcast operations
var WithSyncTimeout = fsm.WithSyncTimeout

// Machine defines the interface for the finite state machine that tracks
// the request loop's lifecycle states.
type Machine interface {
	// Transition attempts to transition the state machine to the specified state.
	Transition(state string) error

	// TransitionBool attempts to transition the state machine to the specified state.
	TransitionBool(state string) bool

	// SetState sets the state of the state machine to the specified state.
	SetState(state string) error

	// GetState returns the current state of the state machine.
	GetState() string

	// GetStateChan returns a channel that emits the state machine's state whenever it changes.
	// The channel is closed when the provided context is canceled.
	GetStateChan(ctx context.Context) <-chan string
}

// LoopFSM embeds fsm.Machine and overrides GetStateChan for sync broadcast
type LoopFSM struct {
	*fsm.Machine
}

// GetStateChan returns a sync broadcast channel so that the final Stopped
// state is delivered during shutdown.
func (m *LoopFSM) GetStateChan(ctx context.Context) <-chan string {
	return m.GetStateChanWithOptions(ctx, WithSyncTimeout(5*time.Second))
}

// New creates a loop state machine in the New state.
func New(handler slog.Handler) (Machine, error) {
	machine, err := fsm.New(handler, StatusNew, LoopTransitions)
	if err != nil {
		return nil, err
	}
	return &LoopFSM{Machine: machine}, nil
}

// IsLive reports whether the loop is accepting or handling requests.
func IsLive(state string) bool {
	switch state {
	case StatusIdle, StatusAwaitingLine, StatusProcessing:
		return true
	default:
		return false
	}
}
