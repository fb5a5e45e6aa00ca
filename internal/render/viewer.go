package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/opsway/deploypipe/internal/model"
)

// Viewer provides human-readable visualization of a plan DAG
type Viewer struct {
	plan *model.Plan
}

// NewViewer creates a viewer for a plan
func NewViewer(plan *model.Plan) *Viewer {
	return &Viewer{plan: plan}
}

// ViewDAG returns a tree view of the plan's jobs and their steps
func (v *Viewer) ViewDAG() string {
	if len(v.plan.Jobs) == 0 {
		return "No jobs in plan"
	}

	jobs := make([]model.PlanJob, len(v.plan.Jobs))
	copy(jobs, v.plan.Jobs)
	sort.Slice(jobs, func(i, j int) bool {
		if len(jobs[i].DependsOn) != len(jobs[j].DependsOn) {
			return len(jobs[i].DependsOn) < len(jobs[j].DependsOn)
		}
		return jobs[i].ID < jobs[j].ID
	})

	var sb strings.Builder
	fmt.Fprintf(&sb, "Plan: %s (trigger=%s", v.plan.Metadata.Name, v.plan.Spec.Trigger)
	if v.plan.Spec.DeployType != "" {
		fmt.Fprintf(&sb, ", mode=%s", v.plan.Spec.DeployType)
	}
	fmt.Fprintf(&sb, ", env=%s)\n\n", v.plan.Spec.Environment)

	for i, job := range jobs {
		connector := "├──"
		if i == len(jobs)-1 {
			connector = "└──"
		}

		flags := ""
		if job.SkipOnNoChanges {
			flags = " [skip-on-no-changes]"
		}
		fmt.Fprintf(&sb, "%s %s (%s)%s\n", connector, job.ID, job.Role, flags)

		prefix := "│   "
		if i == len(jobs)-1 {
			prefix = "    "
		}

		if len(job.DependsOn) > 0 {
			fmt.Fprintf(&sb, "%sneeds: %s\n", prefix, strings.Join(job.DependsOn, ", "))
		}
		for _, step := range job.Steps {
			if step.Uses != "" {
				fmt.Fprintf(&sb, "%s· %s (uses %s)\n", prefix, step.Name, step.Uses)
			} else {
				fmt.Fprintf(&sb, "%s· %s\n", prefix, step.Name)
			}
		}
	}

	return sb.String()
}

// ViewDependencies returns one line per dependency edge
func (v *Viewer) ViewDependencies() string {
	var lines []string
	for _, job := range v.plan.Jobs {
		for _, dep := range job.DependsOn {
			lines = append(lines, fmt.Sprintf("%s → %s", dep, job.ID))
		}
	}
	if len(lines) == 0 {
		return "No dependencies"
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n")
}
