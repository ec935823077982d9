package stdioloop

import (
	"context"

	"github.com/NASA-AMMOS/aerie-sub008/internal/server/finitestate"
	"github.com/robbyt/go-supervisor/supervisor"
)

var _ supervisor.Stateable = (*Runner)(nil)

func (r *Runner) GetState() string {
	return r.fsm.GetState()
}

func (r *Runner) GetStateChan(ctx context.Context) <-chan string {
	return r.fsm.GetStateChan(ctx)
}

// IsRunning is true while the loop is idle, reading or processing.
func (r *Runner) IsRunning() bool {
	return finitestate.IsLive(r.fsm.GetState())
}
