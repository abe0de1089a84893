// Package experiment implements the Experiment actor (spec §4.B): one
// logical experiment, one policy instance, one goroutine processing a
// single mailbox so every mutation/query is strictly ordered. The
// goroutine orchestration (a mailbox-serving loop plus a ticker-driven
// side channel, coordinated with errgroup) is adapted from
// server/fastview/client.go's Sync(), which ran a read loop, a ping-pong
// loop and a publish loop the same way.
package experiment

import (
	"context"
	"errors"
	"log"
	"time"

	channerics "github.com/niceyeti/channerics/channels"
	"golang.org/x/sync/errgroup"

	"banditserve/accountant"
	"banditserve/ids"
	"banditserve/metrics"
	"banditserve/policy"
	"banditserve/statestore"
)

// Lifecycle is the actor's {Loading, Running, Stopping} state (spec §4.B).
type Lifecycle int

const (
	Loading Lifecycle = iota
	Running
	Stopping
)

// ErrNotReady is never returned by the Actor: messages sent during Loading
// always queue in the mailbox, and there is no option to reject them
// instead. The value exists for completeness of the error taxonomy
// (spec §7) and is mapped to 503 by httpapi.
var ErrNotReady = errors.New("experiment: actor not ready (loading)")

// Actor is one experiment's serial execution context. Construct with New;
// Run blocks until Shutdown is processed or ctx is canceled, so the
// Supervisor runs it in its own goroutine.
type Actor struct {
	id                 ids.ExperimentID
	store              *statestore.Store
	acct               accountant.Accountant
	checkpointInterval time.Duration

	initialConfig policy.Config

	mailbox chan any
	done    chan struct{}

	state           Lifecycle // only touched from within Run's goroutine
	pol             policy.Policy
	dirty           bool
	hasCheckpointed bool
}

// New constructs an actor for id. initialConfig is used only if no snapshot
// for id is found in store during Loading (spec §4.B); Repository.Create
// passes the caller's requested config, Repository.Startup passes the config
// read back from the persisted snapshot.
func New(
	id ids.ExperimentID,
	store *statestore.Store,
	acct accountant.Accountant,
	initialConfig policy.Config,
	checkpointInterval time.Duration,
	mailboxCapacity int,
) *Actor {
	return &Actor{
		id:                 id,
		store:              store,
		acct:               acct,
		checkpointInterval: checkpointInterval,
		initialConfig:      initialConfig,
		mailbox:            make(chan any, mailboxCapacity),
		done:               make(chan struct{}),
	}
}

// ID returns the experiment id this actor serves.
func (a *Actor) ID() ids.ExperimentID { return a.id }

// Done is closed once Run returns, by any means (Shutdown, ctx cancel, or
// -- before recover() catches it -- a panic). The Supervisor watches this
// to detect unexpected termination.
func (a *Actor) Done() <-chan struct{} { return a.done }

// Run performs Loading synchronously, then serves the mailbox until
// Shutdown is processed or ctx is canceled. Messages sent while still
// Loading simply queue in the mailbox's buffer -- no explicit queueing
// logic is needed, since Loading completes before the serve loop (and thus
// any delivery) begins.
func (a *Actor) Run(ctx context.Context) {
	defer close(a.done)

	a.state = Loading
	if !a.load() {
		a.state = Stopping
		return
	}
	a.state = Running

	// errgroup's derived context is only cancelled when a member returns a
	// non-nil error, not when serve() returns nil after a shutdownMsg. Run
	// its own cancel over a child of ctx so serve() can actually signal
	// tickCheckpoints to stop once Shutdown has been processed.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	group, groupCtx := errgroup.WithContext(runCtx)
	group.Go(func() error { return a.tickCheckpoints(groupCtx) })
	group.Go(func() (err error) {
		// errgroup does not recover panics, and the Supervisor's recover()
		// only covers Run's own goroutine, so a panicking handler is caught
		// here and turned into a normal return of Run.
		defer func() {
			if r := recover(); r != nil {
				log.Printf("experiment %s: handler panicked, stopping actor: %v", a.id, r)
				err = errors.New("experiment: handler panicked")
			}
		}()
		return a.serve(groupCtx, cancel)
	})
	_ = group.Wait()

	a.state = Stopping
}

// load installs policy state for a.id: an existing snapshot if StateStore
// has one, else initialConfig. A present-but-undeserializable snapshot is a
// fail-fast per spec §4.B (logged, actor does not become Running).
func (a *Actor) load() (ok bool) {
	if blob, found := a.store.Get(a.id); found {
		pol, err := policy.Restore(blob)
		if err != nil {
			log.Printf("experiment %s: snapshot undeserializable, failing actor start: %v", a.id, err)
			return false
		}
		a.pol = pol
		return true
	}

	pol, err := policy.New(a.initialConfig)
	if err != nil {
		log.Printf("experiment %s: invalid initial config, failing actor start: %v", a.id, err)
		return false
	}
	a.pol = pol

	// Spec §4.D: "The actor immediately performs its first checkpoint so a
	// crash before any user activity still restores a valid empty experiment."
	a.checkpoint()
	return true
}

func (a *Actor) tickCheckpoints(ctx context.Context) error {
	ticks := channerics.NewTicker(ctx.Done(), a.checkpointInterval)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticks:
			select {
			case a.mailbox <- checkpointMsg{}:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// serve calls cancel once it returns true (shutdownMsg) so the sibling
// tickCheckpoints goroutine -- and Run's errgroup.Wait -- unblock promptly
// instead of waiting on the outer ctx the caller happens to cancel later.
func (a *Actor) serve(ctx context.Context, cancel context.CancelFunc) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-a.mailbox:
			stop := a.handle(msg)
			if stop {
				cancel()
				return nil
			}
		}
	}
}

// handle dispatches one mailbox message. It returns true only for Shutdown,
// the sole message that ends the serve loop under normal operation.
func (a *Actor) handle(msg any) (stop bool) {
	switch m := msg.(type) {
	case pingMsg:
		close(m.reply)

	case addArmMsg:
		id := a.pol.AddArm(m.initialCount, m.initialReward)
		a.dirty = true
		m.reply <- id

	case removeArmMsg:
		err := a.pol.RemoveArm(m.armID)
		if err == nil {
			a.dirty = true
		}
		m.reply <- err

	case setActiveMsg:
		var err error
		if m.active {
			err = a.pol.EnableArm(m.armID)
		} else {
			err = a.pol.DisableArm(m.armID)
		}
		if err == nil {
			a.dirty = true
		}
		m.reply <- err

	case resetMsg:
		a.pol.Reset()
		a.dirty = true
		close(m.reply)

	case resetArmMsg:
		err := a.pol.ResetArm(m.armID, m.count, m.cumulativeReward)
		if err == nil {
			a.dirty = true
		}
		m.reply <- err

	case drawMsg:
		armID, err := a.pol.Draw()
		metrics.DrawsTotal.Inc()
		m.reply <- DrawResult{ArmID: armID, TimestampMS: ids.NowMillis(), Err: err}

	case updateMsg:
		err := a.pol.Update(m.armID, m.reward)
		a.recordUpdateMetric(err)
		if err == nil {
			a.dirty = true
			metrics.RewardAccumulator.Add(m.reward)
		}
		m.reply <- err

	case updateBatchMsg:
		results := make([]BatchEntryResult, len(m.entries))
		for i, entry := range m.entries {
			err := a.pol.Update(entry.ArmID, entry.Reward)
			a.recordUpdateMetric(err)
			if err == nil {
				a.dirty = true
				metrics.RewardAccumulator.Add(entry.Reward)
			}
			results[i] = BatchEntryResult{ArmID: entry.ArmID, Err: err}
		}
		m.reply <- results

	case statsMsg:
		m.reply <- a.pol.Stats()

	case checkpointMsg:
		a.checkpoint()

	case shutdownMsg:
		a.checkpoint()
		close(m.reply)
		stop = true
	}
	return stop
}

func (a *Actor) recordUpdateMetric(err error) {
	switch {
	case err == nil:
		metrics.UpdatesTotal.WithLabelValues("ok").Inc()
	case errors.Is(err, policy.ErrNotFound):
		metrics.UpdatesTotal.WithLabelValues("not_found").Inc()
	case errors.Is(err, policy.ErrArmDisabled):
		metrics.UpdatesTotal.WithLabelValues("disabled").Inc()
	default:
		metrics.UpdatesTotal.WithLabelValues("error").Inc()
	}
}

// checkpoint serializes and persists state if dirty since the last tick.
// Serialization happens inline in the actor's own turn (spec §4.B: "the
// serialization happens inside the actor turn"); only the disk write is
// handed off (inside StateStore.Put, to its sharded writer pool), so this
// never blocks Draw/Update longer than a CPU-bound marshal.
func (a *Actor) checkpoint() {
	if !a.dirty && a.hasCheckpointed {
		return
	}
	blob, err := a.pol.Snapshot()
	if err != nil {
		log.Printf("experiment %s: checkpoint serialization failed, will retry next tick: %v", a.id, err)
		return
	}
	a.store.Put(a.id, blob)
	a.dirty = false
	a.hasCheckpointed = true
	metrics.CheckpointsTotal.Inc()
}
