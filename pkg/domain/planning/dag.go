package planning

// ValidateDependencies checks that every dependency names a task in the slice
// and that the graph is acyclic.
func ValidateDependencies(tasks []Task) error {
	index := make(map[string]Task, len(tasks))
	for _, t := range tasks {
		index[t.ID] = t
	}

	for _, t := range tasks {
		for _, dep := range t.Dependencies {
			if _, ok := index[dep]; !ok {
				return &DependencyError{TaskID: t.ID, DependencyID: dep, Err: ErrOrphanDependency}
			}
		}
	}

	visited := make(map[string]bool)
	recursionStack := make(map[string]bool)

	var visit func(taskID string) error
	visit = func(taskID string) error {
		visited[taskID] = true
		recursionStack[taskID] = true

		for _, dep := range index[taskID].Dependencies {
			if !visited[dep] {
				if err := visit(dep); err != nil {
					return err
				}
			} else if recursionStack[dep] {
				return &DependencyError{TaskID: taskID, DependencyID: dep, Err: ErrCyclicDependency}
			}
		}

		recursionStack[taskID] = false
		return nil
	}

	for _, t := range tasks {
		if !visited[t.ID] {
			if err := visit(t.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

// PruneDependencies returns a copy of tasks with dangling, duplicate, self and
// cycle-forming edges removed. Edges are admitted in task order, so earlier
// edges win when two of them close a cycle.
func PruneDependencies(tasks []Task) []Task {
	known := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		known[t.ID] = true
	}

	accepted := make(map[string][]string, len(tasks))
	out := CloneTasks(tasks)
	for i := range out {
		var kept []string
		seen := make(map[string]bool)
		for _, dep := range out[i].Dependencies {
			if !known[dep] || dep == out[i].ID || seen[dep] {
				continue
			}
			if reaches(accepted, dep, out[i].ID) {
				continue
			}
			seen[dep] = true
			kept = append(kept, dep)
			accepted[out[i].ID] = append(accepted[out[i].ID], dep)
		}
		out[i].Dependencies = kept
	}
	return out
}

// reaches reports whether target is reachable from start along accepted edges.
func reaches(edges map[string][]string, start, target string) bool {
	stack := []string{start}
	seen := map[string]bool{}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == target {
			return true
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		stack = append(stack, edges[n]...)
	}
	return false
}

// Dependents returns the IDs of tasks that list taskID as a dependency.
func Dependents(tasks []Task, taskID string) []string {
	var out []string
	for _, t := range tasks {
		for _, dep := range t.Dependencies {
			if dep == taskID {
				out = append(out, t.ID)
				break
			}
		}
	}
	return out
}
