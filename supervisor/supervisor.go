// Package supervisor implements the restart protocol from spec §4.E: when
// an Experiment actor terminates unexpectedly (panic or a mailbox/context
// closure it did not ask for), a fresh actor is spawned for the same id,
// whose Loading state re-hydrates it from StateStore. Restart storms are
// bounded by exponential backoff and a rapid-restart burst limit, after
// which the id is marked degraded for the Repository to evict.
package supervisor

import (
	"context"
	"sync/atomic"
	"time"

	"banditserve/experiment"
	"banditserve/metrics"
)

// Factory constructs a fresh Actor for the supervised id. Called once at
// startup and again after every restart.
type Factory func() *experiment.Actor

// Supervisor runs one Experiment actor under a restart policy.
type Supervisor struct {
	factory         Factory
	maxBurst        int
	backoffBase     time.Duration
	onRestart       func(*experiment.Actor)
	onDegraded      func()
	stopped         atomic.Bool
	restartCount    atomic.Int64
	consecutiveFast atomic.Int64
}

// New constructs a Supervisor and synchronously spawns its first actor
// generation (calling onRestart with it before returning), so a caller that
// registers the handle immediately after New sees a live actor with no
// race against the restart loop's own goroutine. onRestart is invoked again
// with each subsequent restart so the caller (typically Repository's
// Handle) can swap its reference without taking a lock on the Repository's
// map. onDegraded is invoked once if the restart burst limit is exceeded;
// the caller should then evict the id from the Repository.
func New(factory Factory, maxBurst int, backoffBase time.Duration, onRestart func(*experiment.Actor), onDegraded func()) (*Supervisor, *experiment.Actor) {
	s := &Supervisor{
		factory:     factory,
		maxBurst:    maxBurst,
		backoffBase: backoffBase,
		onRestart:   onRestart,
		onDegraded:  onDegraded,
	}
	first := s.factory()
	if s.onRestart != nil {
		s.onRestart(first)
	}
	return s, first
}

// Run watches the already-spawned first actor (see New) and restarts across
// unexpected terminations until ctx is canceled or Stop is called. It
// blocks, so callers run it in its own goroutine.
func (s *Supervisor) Run(ctx context.Context, first *experiment.Actor) {
	backoff := s.backoffBase
	const backoffCap = 5 * time.Second
	fastRestartWindow := backoffCap * 4

	actor := first
	for {
		if actor == nil {
			actor = s.spawn(ctx)
		}
		if actor == nil {
			return
		}

		lastStart := time.Now()
		s.runOnce(ctx, actor)
		actor = nil

		if ctx.Err() != nil || s.stopped.Load() {
			return
		}

		metrics.RestartsTotal.Inc()
		s.restartCount.Add(1)

		if time.Since(lastStart) < fastRestartWindow {
			if s.consecutiveFast.Add(1) >= int64(s.maxBurst) {
				if s.onDegraded != nil {
					s.onDegraded()
				}
				return
			}
		} else {
			s.consecutiveFast.Store(0)
			backoff = s.backoffBase
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < backoffCap {
			backoff *= 2
			if backoff > backoffCap {
				backoff = backoffCap
			}
		}
	}
}

func (s *Supervisor) spawn(ctx context.Context) *experiment.Actor {
	if ctx.Err() != nil {
		return nil
	}
	actor := s.factory()
	if s.onRestart != nil {
		s.onRestart(actor)
	}
	return actor
}

// runOnce runs one actor generation to completion, recovering a panic so
// the supervisor loop (not the whole process) observes the termination.
// Reason-agnostic per spec §4.E: panics, escalated handler errors and
// mailbox/context closure are all just "the actor stopped."
func (s *Supervisor) runOnce(ctx context.Context, actor *experiment.Actor) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() { recover() }()
		actor.Run(ctx)
	}()
	<-done
}

// Stop marks the supervisor as intentionally stopped so the next observed
// termination does not trigger a restart. It cancels nothing itself; the
// caller owns the ctx it passed to Run and cancels it.
func (s *Supervisor) Stop() {
	s.stopped.Store(true)
}

// RestartCount returns the number of restarts performed so far (diagnostic).
func (s *Supervisor) RestartCount() int64 { return s.restartCount.Load() }
