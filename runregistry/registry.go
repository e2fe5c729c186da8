// Package runregistry tracks the set of live runs a process hosts,
// replacing a single process-wide mapping with a serialized, lifecycle-
// aware registry. Each run owns exactly one Engine, Orchestrator, and
// Ledger triple; the registry creates, looks up, and terminates that
// triple as a unit.
package runregistry

import (
	"fmt"
	"sync"
	"time"

	"github.com/chronicle-sim/core/engine"
	"github.com/chronicle-sim/core/ledger"
	"github.com/chronicle-sim/core/orchestrator"
	"github.com/chronicle-sim/core/simerr"
)

// Status is a run's position in its lifecycle. Transitions only ever move
// forward: created -> running -> (completed | failed) -> disposed.
type Status string

const (
	StatusCreated   Status = "created"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusDisposed  Status = "disposed"
)

var validTransitions = map[Status][]Status{
	StatusCreated:   {StatusRunning, StatusFailed, StatusDisposed},
	StatusRunning:   {StatusCompleted, StatusFailed, StatusDisposed},
	StatusCompleted: {StatusDisposed},
	StatusFailed:    {StatusDisposed},
}

// Run is one hosted engine/orchestrator/ledger triple and its lifecycle
// state.
type Run struct {
	ID           string
	Engine       *engine.Engine
	Orchestrator *orchestrator.Orchestrator
	Ledger       *ledger.Ledger
	CreatedAt    time.Time

	mu     sync.Mutex
	status Status
}

// Status returns the run's current lifecycle state.
func (r *Run) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *Run) transition(next Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, allowed := range validTransitions[r.status] {
		if allowed == next {
			r.status = next
			return nil
		}
	}
	return simerr.New(simerr.KindInvalidInput, fmt.Sprintf("runregistry: illegal transition %s -> %s", r.status, next))
}

// Registry is a serialized, in-memory directory of live Runs keyed by run
// ID. All operations take the registry-wide lock; a run's own fields are
// additionally protected so that callers reading Status concurrently with
// a transition never observe a half-updated value.
type Registry struct {
	mu   sync.Mutex
	runs map[string]*Run
}

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{runs: make(map[string]*Run)}
}

// Create registers a new Run in the created state. It is an error to
// reuse a run ID still present in the registry; Terminate removes a run,
// so its ID may be registered again afterwards.
func (reg *Registry) Create(id string, eng *engine.Engine, orch *orchestrator.Orchestrator, led *ledger.Ledger) (*Run, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if _, exists := reg.runs[id]; exists {
		return nil, simerr.New(simerr.KindInvalidInput, fmt.Sprintf("runregistry: run %s already registered", id))
	}
	run := &Run{
		ID:           id,
		Engine:       eng,
		Orchestrator: orch,
		Ledger:       led,
		CreatedAt:    time.Now(),
		status:       StatusCreated,
	}
	reg.runs[id] = run
	return run, nil
}

// Get returns the run with the given ID, or false if none is registered.
func (reg *Registry) Get(id string) (*Run, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	run, ok := reg.runs[id]
	return run, ok
}

// MarkRunning transitions a run from created to running.
func (reg *Registry) MarkRunning(id string) error {
	run, ok := reg.Get(id)
	if !ok {
		return simerr.New(simerr.KindInvalidInput, fmt.Sprintf("runregistry: unknown run %s", id))
	}
	return run.transition(StatusRunning)
}

// MarkCompleted transitions a run from running to completed.
func (reg *Registry) MarkCompleted(id string) error {
	run, ok := reg.Get(id)
	if !ok {
		return simerr.New(simerr.KindInvalidInput, fmt.Sprintf("runregistry: unknown run %s", id))
	}
	return run.transition(StatusCompleted)
}

// MarkFailed transitions a run to failed from created or running.
func (reg *Registry) MarkFailed(id string) error {
	run, ok := reg.Get(id)
	if !ok {
		return simerr.New(simerr.KindInvalidInput, fmt.Sprintf("runregistry: unknown run %s", id))
	}
	return run.transition(StatusFailed)
}

// Terminate transitions a run to disposed and removes it from the
// registry. Disposing a run still in the created or running state marks
// it failed first, per the lifecycle contract that every run ends in
// completed or failed before disposal.
func (reg *Registry) Terminate(id string) error {
	reg.mu.Lock()
	run, ok := reg.runs[id]
	if !ok {
		reg.mu.Unlock()
		return simerr.New(simerr.KindInvalidInput, fmt.Sprintf("runregistry: unknown run %s", id))
	}
	delete(reg.runs, id)
	reg.mu.Unlock()

	status := run.Status()
	if status == StatusCreated || status == StatusRunning {
		if err := run.transition(StatusFailed); err != nil {
			return err
		}
	}
	return run.transition(StatusDisposed)
}

// List returns the IDs of every run currently registered, in no
// particular order.
func (reg *Registry) List() []string {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	ids := make([]string, 0, len(reg.runs))
	for id := range reg.runs {
		ids = append(ids, id)
	}
	return ids
}
