package worker

import (
	"fmt"
	"math"
	"sync"
)

// Filter narrows a registry listing. Zero-valued fields do not filter.
type Filter struct {
	Skills          []string
	Specializations []string
	Availability    Availability
	MinSuccessRate  float64
	MinQualityScore float64
	// MaxWorkload excludes workers above the given load when positive.
	MaxWorkload float64
}

// Matches reports whether p satisfies every set criterion.
func (f Filter) Matches(p Profile) bool {
	for _, s := range f.Skills {
		if !containsFold(p.Skills, s) {
			return false
		}
	}
	for _, s := range f.Specializations {
		if !containsFold(p.Specializations, s) {
			return false
		}
	}
	if f.Availability != "" && p.Availability != f.Availability {
		return false
	}
	if p.Performance.SuccessRate < f.MinSuccessRate {
		return false
	}
	if p.Performance.QualityScore < f.MinQualityScore {
		return false
	}
	if f.MaxWorkload > 0 && p.Workload > f.MaxWorkload {
		return false
	}
	return true
}

// Registry is the in-memory capability registry. Iteration order is
// registration order.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	workers map[string]Profile
}

func NewRegistry() *Registry {
	return &Registry{workers: make(map[string]Profile)}
}

// Register adds a worker. IDs are unique.
func (r *Registry) Register(p Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.workers[p.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateWorker, p.ID)
	}
	r.workers[p.ID] = p.Clone()
	r.order = append(r.order, p.ID)
	return nil
}

// Get returns a copy of the worker profile.
func (r *Registry) Get(id string) (Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.workers[id]
	if !ok {
		return Profile{}, false
	}
	return p.Clone(), true
}

// List returns copies of the workers matching f in registration order.
func (r *Registry) List(f Filter) []Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.list(f)
}

func (r *Registry) list(f Filter) []Profile {
	out := make([]Profile, 0, len(r.order))
	for _, id := range r.order {
		if p := r.workers[id]; f.Matches(p) {
			out = append(out, p.Clone())
		}
	}
	return out
}

// Snapshot returns copies of all workers in registration order.
func (r *Registry) Snapshot() []Profile {
	return r.List(Filter{})
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Commit runs plan against a snapshot and writes back the profiles it
// returns, holding the registry lock throughout so no other mutation can
// interleave. plan must not call back into the registry. Nothing is written
// when plan fails.
func (r *Registry) Commit(plan func(snapshot []Profile) ([]Profile, error)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	updated, err := plan(r.list(Filter{}))
	if err != nil {
		return err
	}
	if err := checkWorkloads(updated); err != nil {
		return err
	}
	r.writeBack(updated)
	return nil
}

// Apply writes back workload and assigned tasks from updated copies of a
// caller-owned pool. Unknown IDs are ignored. Loads are overwritten, so
// callers sharing the registry across sessions should use Commit.
func (r *Registry) Apply(updated []Profile) error {
	if err := checkWorkloads(updated); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.writeBack(updated)
	return nil
}

func checkWorkloads(updated []Profile) error {
	for _, p := range updated {
		if p.Workload < 0 || p.Workload > MaxWorkload {
			return fmt.Errorf("%w: worker %s at %v", ErrWorkloadOutOfRange, p.ID, p.Workload)
		}
	}
	return nil
}

func (r *Registry) writeBack(updated []Profile) {
	for _, p := range updated {
		current, ok := r.workers[p.ID]
		if !ok {
			continue
		}
		current.Workload = p.Workload
		current.AssignedTasks = append([]string(nil), p.AssignedTasks...)
		r.workers[p.ID] = current
	}
}

// Release removes taskID from the worker and lowers its workload by amount.
func (r *Registry) Release(id, taskID string, amount float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.workers[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrWorkerNotFound, id)
	}
	kept := p.AssignedTasks[:0:0]
	for _, t := range p.AssignedTasks {
		if t != taskID {
			kept = append(kept, t)
		}
	}
	p.AssignedTasks = kept
	p.Workload = math.Max(0, p.Workload-amount)
	r.workers[id] = p
	return nil
}

// SetAvailability updates a worker's availability.
func (r *Registry) SetAvailability(id string, a Availability) error {
	if !a.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidAvailability, a)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.workers[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrWorkerNotFound, id)
	}
	p.Availability = a
	r.workers[id] = p
	return nil
}

// Replace swaps the registered set for profiles, as on a file reload.
// Workers that survive the swap keep their runtime workload and assignments.
func (r *Registry) Replace(profiles []Profile) error {
	seen := make(map[string]bool, len(profiles))
	for _, p := range profiles {
		if err := p.Validate(); err != nil {
			return err
		}
		if seen[p.ID] {
			return fmt.Errorf("%w: %s", ErrDuplicateWorker, p.ID)
		}
		seen[p.ID] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	next := make(map[string]Profile, len(profiles))
	order := make([]string, 0, len(profiles))
	for _, p := range profiles {
		c := p.Clone()
		if prev, ok := r.workers[p.ID]; ok {
			c.Workload = prev.Workload
			c.AssignedTasks = append([]string(nil), prev.AssignedTasks...)
		}
		next[p.ID] = c
		order = append(order, p.ID)
	}
	r.workers = next
	r.order = order
	return nil
}

// WorkloadIncrement is the load a task of the given effort adds to a worker.
func WorkloadIncrement(hours float64) float64 {
	return math.Min(MaxWorkload, hours/8*10)
}
