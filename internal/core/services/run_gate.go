package services

import (
	"sync/atomic"

	"github.com/manthysbr/floral/internal/core/domain"
	"golang.org/x/sync/semaphore"
)

// RunGate is the single-slot busy flag shared by everything that calls a
// provider on behalf of the session. At most one run is in flight.
type RunGate struct {
	sem  *semaphore.Weighted
	busy atomic.Bool
}

func NewRunGate() *RunGate {
	return &RunGate{sem: semaphore.NewWeighted(1)}
}

// TryAcquire takes the slot or returns domain.ErrPipelineBusy without waiting.
func (g *RunGate) TryAcquire() error {
	if !g.sem.TryAcquire(1) {
		return domain.ErrPipelineBusy
	}
	g.busy.Store(true)
	return nil
}

// Release frees the slot.
func (g *RunGate) Release() {
	g.busy.Store(false)
	g.sem.Release(1)
}

// Busy reports whether a run is in flight.
func (g *RunGate) Busy() bool {
	return g.busy.Load()
}
