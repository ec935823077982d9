package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/NASA-AMMOS/aerie-sub008/internal/engine/finitestate"
	"github.com/gofrs/uuid/v5"
	"github.com/robbyt/go-loglater"
)

// Job is one evaluation with its own ID, state machine and log history.
type Job struct {
	ID         uuid.UUID
	Deployment string
	CreatedAt  time.Time

	fsm          finitestate.Machine
	logger       *slog.Logger
	logCollector *loglater.LogCollector
}

// NewJob creates a job whose log records go to handler and are also kept for
// replay.
func NewJob(deployment string, handler slog.Handler) (*Job, error) {
	jobID := uuid.Must(uuid.NewV6())

	sm, err := finitestate.NewJobFSM(handler)
	if err != nil {
		return nil, fmt.Errorf("%s failed to create state machine: %w", jobID, err)
	}

	logCollector := loglater.NewLogCollector(handler)
	logger := slog.New(logCollector).With(
		"job", jobID,
		"deployment", deployment,
	)

	return &Job{
		ID:           jobID,
		Deployment:   deployment,
		CreatedAt:    time.Now(),
		fsm:          sm,
		logger:       logger,
		logCollector: logCollector,
	}, nil
}

// GetState returns the job's lifecycle state.
func (j *Job) GetState() string {
	return j.fsm.GetState()
}

// Logger returns the job's history-collecting logger.
func (j *Job) Logger() *slog.Logger {
	return j.logger
}

// PlayLogs replays everything logged for this job to handler.
func (j *Job) PlayLogs(handler slog.Handler) error {
	return j.logCollector.PlayLogs(handler)
}

// Duration is the time since the job was created.
func (j *Job) Duration() time.Duration {
	return time.Since(j.CreatedAt)
}

// Done reports whether the job has succeeded or failed.
func (j *Job) Done() bool {
	return finitestate.IsTerminal(j.fsm.GetState())
}

// enter moves the job to state. A finished job keeps its final state.
func (j *Job) enter(state string) {
	if j.Done() {
		j.logger.Warn("Job already finished", "state", j.fsm.GetState(), "to", state)
		return
	}
	if err := j.fsm.Transition(state); err != nil {
		j.logger.Warn("Job state transition rejected", "from", j.fsm.GetState(), "to", state, "error", err)
		return
	}
	j.logger.Debug("Job state changed", "state", state)
}
