// Package repository implements the concurrent Experiment registry (spec
// §4.D): a map from ExperimentId to a live actor handle, reader/writer
// locked so that the hot-path lookups (Draw/Update/Stats/AddArm/...) proceed
// in parallel and only Create/Delete/Clear take the write lock -- the
// deliberate contention choice spec §9 calls out to preserve.
package repository

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"banditserve/accountant"
	"banditserve/experiment"
	"banditserve/ids"
	"banditserve/metrics"
	"banditserve/policy"
	"banditserve/statestore"
	"banditserve/supervisor"
)

// ErrNotFound is returned when an operation targets an unknown experiment id.
var ErrNotFound = errors.New("repository: experiment not found")

// Handle is the Repository's entry for one experiment: a supervised actor
// whose current generation is swapped via an atomic pointer, so a restart
// never needs the Repository's write lock.
type Handle struct {
	id         ids.ExperimentID
	config     policy.Config
	current    atomic.Pointer[experiment.Actor]
	supervisor *supervisor.Supervisor
	cancel     context.CancelFunc
	degraded   atomic.Bool
}

// Actor returns the currently live actor generation for this handle.
func (h *Handle) Actor() *experiment.Actor { return h.current.Load() }

// Degraded reports whether the restart burst limit was exceeded.
func (h *Handle) Degraded() bool { return h.degraded.Load() }

// ListedExperiment is one entry of Repository.List's response.
type ListedExperiment struct {
	Type   policy.Tag    `json:"type"`
	Config policy.Config `json:"config"`
}

// Repository is the concurrent experiment registry.
type Repository struct {
	store  *statestore.Store
	acct   accountant.Accountant
	mu     sync.RWMutex
	byID   map[ids.ExperimentID]*Handle
	degrad func(ids.ExperimentID)

	checkpointInterval time.Duration
	mailboxCapacity    int
	restartMaxBurst    int
	restartBackoff     time.Duration
}

// Config bundles the constructor's tuning knobs (spec §6's enumerated
// configuration, the slice of it relevant to actor/supervisor construction).
type Config struct {
	CheckpointInterval time.Duration
	MailboxCapacity    int
	RestartMaxBurst    int
	RestartBackoff     time.Duration
}

// New constructs an empty Repository. Call Startup to reload persisted
// experiments from store.
func New(store *statestore.Store, acct accountant.Accountant, cfg Config) *Repository {
	return &Repository{
		store:              store,
		acct:               acct,
		byID:               make(map[ids.ExperimentID]*Handle),
		checkpointInterval: cfg.CheckpointInterval,
		mailboxCapacity:    cfg.MailboxCapacity,
		restartMaxBurst:    cfg.RestartMaxBurst,
		restartBackoff:     cfg.RestartBackoff,
	}
}

// Create generates a fresh id, spawns a supervised actor with empty state
// and the given config, registers it, and returns the id. The actor
// performs its own first checkpoint during Loading (experiment.Actor.load),
// so a crash before any user activity still restores a valid empty
// experiment.
func (r *Repository) Create(cfg policy.Config) (ids.ExperimentID, error) {
	if err := cfg.Validate(); err != nil {
		return ids.ExperimentID{}, err
	}
	id := ids.NewExperimentID()
	handle := r.spawn(id, cfg)

	r.mu.Lock()
	r.byID[id] = handle
	r.mu.Unlock()
	metrics.ExperimentsActive.Inc()

	return id, nil
}

func (r *Repository) spawn(id ids.ExperimentID, cfg policy.Config) *Handle {
	h := &Handle{id: id, config: cfg}
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel

	factory := func() *experiment.Actor {
		return experiment.New(id, r.store, r.acct, cfg, r.checkpointInterval, r.mailboxCapacity)
	}
	onRestart := func(a *experiment.Actor) { h.current.Store(a) }
	onDegraded := func() {
		h.degraded.Store(true)
		r.mu.Lock()
		delete(r.byID, id)
		r.mu.Unlock()
		metrics.ExperimentsActive.Dec()
	}

	sup, first := supervisor.New(factory, r.restartMaxBurst, r.restartBackoff, onRestart, onDegraded)
	h.supervisor = sup
	go sup.Run(ctx, first)
	return h
}

// Get returns the handle for id, or ErrNotFound.
func (r *Repository) Get(id ids.ExperimentID) (*Handle, error) {
	r.mu.RLock()
	h, ok := r.byID[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return h, nil
}

// List returns every registered experiment's type and config.
func (r *Repository) List() map[ids.ExperimentID]ListedExperiment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[ids.ExperimentID]ListedExperiment, len(r.byID))
	for id, h := range r.byID {
		out[id] = ListedExperiment{Type: h.config.Tag, Config: h.config}
	}
	return out
}

// Delete shuts the actor down, removes the handle, and deletes its
// snapshot from StateStore.
func (r *Repository) Delete(ctx context.Context, id ids.ExperimentID) error {
	r.mu.Lock()
	h, ok := r.byID[id]
	if ok {
		delete(r.byID, id)
	}
	r.mu.Unlock()
	if !ok {
		return ErrNotFound
	}

	r.teardown(ctx, h)
	metrics.ExperimentsActive.Dec()
	return nil
}

// Clear shuts down and removes every experiment, and clears StateStore.
func (r *Repository) Clear(ctx context.Context) {
	r.mu.Lock()
	handles := make([]*Handle, 0, len(r.byID))
	for _, h := range r.byID {
		handles = append(handles, h)
	}
	r.byID = make(map[ids.ExperimentID]*Handle)
	r.mu.Unlock()

	for _, h := range handles {
		h.supervisor.Stop()
		if a := h.current.Load(); a != nil {
			_ = a.Shutdown(ctx)
		}
		h.cancel()
		metrics.ExperimentsActive.Dec()
	}
	r.store.Clear()
}

func (r *Repository) teardown(ctx context.Context, h *Handle) {
	h.supervisor.Stop()
	if a := h.current.Load(); a != nil {
		_ = a.Shutdown(ctx)
	}
	h.cancel()
	r.store.Delete(h.id)
}

// Startup asks StateStore for every persisted id and spawns a supervised
// actor for each, which re-hydrates from the snapshot during its own
// Loading state (spec §4.D).
func (r *Repository) Startup() {
	for _, id := range r.store.ListIds() {
		// Read the tag/config back from the snapshot so List reports it; the
		// actor re-hydrates its full state from the same snapshot.
		var cfg policy.Config
		if blob, ok := r.store.Get(id); ok {
			if pol, err := policy.Restore(blob); err == nil {
				cfg = pol.Config()
			}
		}
		handle := r.spawn(id, cfg)
		r.mu.Lock()
		r.byID[id] = handle
		r.mu.Unlock()
		metrics.ExperimentsActive.Inc()
	}
}

// Shutdown sends Shutdown to every live actor and waits up to grace for
// their final checkpoints, per spec §5.
func (r *Repository) Shutdown(grace time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	r.mu.RLock()
	handles := make([]*Handle, 0, len(r.byID))
	for _, h := range r.byID {
		handles = append(handles, h)
	}
	r.mu.RUnlock()

	var wg sync.WaitGroup
	for _, h := range handles {
		h := h
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.supervisor.Stop()
			if a := h.current.Load(); a != nil {
				_ = a.Shutdown(ctx)
			}
			h.cancel()
		}()
	}
	wg.Wait()
}
