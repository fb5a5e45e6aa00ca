package planner

import (
	"fmt"
	"sort"

	"github.com/opsway/deploypipe/internal/model"
)

// Graph represents the DAG of plan jobs with cycle detection and
// topological sorting
type Graph struct {
	jobs map[string]model.PlanJob
}

// NewGraph creates a graph from plan jobs
func NewGraph(jobs []model.PlanJob) *Graph {
	byID := make(map[string]model.PlanJob, len(jobs))
	for _, job := range jobs {
		byID[job.ID] = job
	}
	return &Graph{jobs: byID}
}

// DetectCycles performs cycle detection on the dependency graph using DFS
func (g *Graph) DetectCycles() error {
	visited := make(map[string]bool)
	recStack := make(map[string]bool)

	for jobID := range g.jobs {
		if !visited[jobID] {
			if g.hasCycleDFS(jobID, visited, recStack) {
				return fmt.Errorf("cycle detected in job dependencies")
			}
		}
	}

	return nil
}

func (g *Graph) hasCycleDFS(node string, visited, recStack map[string]bool) bool {
	visited[node] = true
	recStack[node] = true

	job, exists := g.jobs[node]
	if !exists {
		return false
	}

	for _, dep := range job.DependsOn {
		if !visited[dep] {
			if g.hasCycleDFS(dep, visited, recStack) {
				return true
			}
		} else if recStack[dep] {
			return true
		}
	}

	recStack[node] = false
	return false
}

// TopologicalSort returns job IDs in execution order using Kahn's
// algorithm, breaking ties alphabetically so the order is deterministic
func (g *Graph) TopologicalSort() ([]string, error) {
	dependents := make(map[string][]string)
	inDegree := make(map[string]int)

	for jobID := range g.jobs {
		inDegree[jobID] = 0
		dependents[jobID] = []string{}
	}

	for jobID, job := range g.jobs {
		for _, dep := range job.DependsOn {
			if _, exists := g.jobs[dep]; !exists {
				return nil, fmt.Errorf("job %s depends on unknown job %s", jobID, dep)
			}
			dependents[dep] = append(dependents[dep], jobID)
			inDegree[jobID]++
		}
	}

	queue := make([]string, 0)
	for jobID, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, jobID)
		}
	}
	sort.Strings(queue)

	sorted := make([]string, 0, len(g.jobs))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		sorted = append(sorted, current)

		for _, dependent := range dependents[current] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
		sort.Strings(queue)
	}

	if len(sorted) != len(g.jobs) {
		return nil, fmt.Errorf("failed to topologically sort: possible cycle detected")
	}

	return sorted, nil
}
