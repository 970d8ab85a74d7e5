// Package assignment matches tasks to workers with a greedy scoring pass.
//
// Tasks are visited heaviest first (priority*2 + complexity, input order on
// ties). Each task goes to the eligible worker with the highest score; on a
// score tie the worker listed first wins, so callers passing a registry
// snapshot get registration-order tie breaking. A worker is eligible when it
// is not offline and the task would not push its workload past 100.
package assignment

import (
	"sort"

	"github.com/felixgeelhaar/taskforge/pkg/domain/planning"
	"github.com/felixgeelhaar/taskforge/pkg/domain/worker"
)

// Weights are the coefficients of the worker score.
type Weights struct {
	Skill        float64
	Success      float64
	Quality      float64
	Availability float64
	Workload     float64
}

// DefaultWeights returns the standard score coefficients.
func DefaultWeights() Weights {
	return Weights{Skill: 0.4, Success: 0.3, Quality: 0.2, Availability: 0.1, Workload: 0.1}
}

// Result is the outcome of one assignment pass.
type Result struct {
	// Mapping lists the tasks each worker received, in assignment order.
	Mapping map[string][]planning.Task
	// WorkerOrder lists the workers in Mapping in input order.
	WorkerOrder []string
	// Unassigned holds tasks no eligible worker could take.
	Unassigned []planning.Task
	// Tasks is every input task, in input order, with assignments applied.
	Tasks []planning.Task
	// Workers are updated copies of the input workers.
	Workers []worker.Profile
}

// AssignedCount returns how many tasks found a worker.
func (r Result) AssignedCount() int {
	n := 0
	for _, ts := range r.Mapping {
		n += len(ts)
	}
	return n
}

// TaskIDs flattens Mapping to worker ID -> task IDs.
func (r Result) TaskIDs() map[string][]string {
	out := make(map[string][]string, len(r.Mapping))
	for w, ts := range r.Mapping {
		ids := make([]string, len(ts))
		for i, t := range ts {
			ids[i] = t.ID
		}
		out[w] = ids
	}
	return out
}

// Optimizer is the greedy matcher. The zero value is not usable; use New.
type Optimizer struct {
	weights Weights
}

func New(w Weights) *Optimizer {
	return &Optimizer{weights: w}
}

// Assign matches tasks to workers with the default weights.
func Assign(tasks []planning.Task, workers []worker.Profile) Result {
	return New(DefaultWeights()).Assign(tasks, workers)
}

// Score rates how well p fits t.
func (o *Optimizer) Score(t planning.Task, p worker.Profile) float64 {
	w := o.weights
	return w.Skill*p.SkillMatch(t.RequiredSkills) +
		w.Success*p.Performance.SuccessRate +
		w.Quality*p.Performance.QualityScore +
		w.Availability*p.Availability.Bonus() -
		w.Workload*(p.Workload/worker.MaxWorkload)
}

// Eligible reports whether p may take a task adding load to its workload.
func Eligible(p worker.Profile, load float64) bool {
	return p.Availability != worker.Offline && p.Workload+load <= worker.MaxWorkload
}

// Assign runs the greedy pass. Inputs are not modified. Only tasks in the
// planned state are considered; others pass through untouched.
func (o *Optimizer) Assign(tasks []planning.Task, workers []worker.Profile) Result {
	res := Result{
		Mapping: make(map[string][]planning.Task),
		Tasks:   planning.CloneTasks(tasks),
		Workers: make([]worker.Profile, len(workers)),
	}
	for i, p := range workers {
		res.Workers[i] = p.Clone()
	}

	order := make([]int, 0, len(res.Tasks))
	for i, t := range res.Tasks {
		if t.Status.IsAssignable() {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		return res.Tasks[order[a]].Weight() > res.Tasks[order[b]].Weight()
	})

	for _, ti := range order {
		task := &res.Tasks[ti]
		load := worker.WorkloadIncrement(task.Effort())

		best := -1
		var bestScore float64
		for wi, p := range res.Workers {
			if !Eligible(p, load) {
				continue
			}
			if s := o.Score(*task, p); best < 0 || s > bestScore {
				best, bestScore = wi, s
			}
		}

		if best < 0 {
			res.Unassigned = append(res.Unassigned, task.Clone())
			continue
		}

		chosen := &res.Workers[best]
		chosen.Workload += load
		chosen.AssignedTasks = append(chosen.AssignedTasks, task.ID)

		task.Status = planning.StatusAssigned
		task.SuggestedWorkers = []string{chosen.ID}
		res.Mapping[chosen.ID] = append(res.Mapping[chosen.ID], task.Clone())
	}

	for _, p := range res.Workers {
		if _, ok := res.Mapping[p.ID]; ok {
			res.WorkerOrder = append(res.WorkerOrder, p.ID)
		}
	}
	return res
}
