package normalize

import (
	"fmt"
	"strings"

	"github.com/opsway/deploypipe/internal/model"
)

// NormalizeWorkflow transforms a raw workflow into canonical form
func NormalizeWorkflow(workflow *model.Workflow) (*model.Workflow, error) {
	if workflow == nil {
		return nil, fmt.Errorf("workflow cannot be nil")
	}

	if workflow.Metadata.Name == "" {
		return nil, fmt.Errorf("workflow must have a metadata.name")
	}
	if len(workflow.Jobs) == 0 {
		return nil, fmt.Errorf("workflow must declare at least one job")
	}

	if workflow.Environments == nil {
		workflow.Environments = map[string]model.Environment{}
	}
	if workflow.Defaults.Inputs == nil {
		workflow.Defaults.Inputs = map[string]interface{}{}
	}

	jobNames := make(map[string]bool, len(workflow.Jobs))

	for i := range workflow.Jobs {
		job := &workflow.Jobs[i]

		if job.Name == "" {
			return nil, fmt.Errorf("job must have a name")
		}
		if jobNames[job.Name] {
			return nil, fmt.Errorf("duplicate job name: %s", job.Name)
		}
		jobNames[job.Name] = true

		// Jobs named after a pipeline role inherit it
		if job.Role == "" && model.KnownRole(job.Name) {
			job.Role = job.Name
		}
		if job.Role != "" && !model.KnownRole(job.Role) {
			return nil, fmt.Errorf("job %s has unknown role: %s", job.Name, job.Role)
		}

		if job.Labels == nil {
			job.Labels = map[string]string{}
		}
		if job.Needs == nil {
			job.Needs = []string{}
		}

		if len(job.Steps) == 0 {
			return nil, fmt.Errorf("job %s must declare at least one step", job.Name)
		}
		for j := range job.Steps {
			step := &job.Steps[j]
			if step.Name == "" {
				return nil, fmt.Errorf("job %s has a step without a name", job.Name)
			}
			if step.Run == "" && step.Uses == "" {
				return nil, fmt.Errorf("step %s in job %s must set run or uses", step.Name, job.Name)
			}
			if step.Run != "" && step.Uses != "" {
				return nil, fmt.Errorf("step %s in job %s sets both run and uses", step.Name, job.Name)
			}
			if step.OnFailure == "" {
				step.OnFailure = "stop"
			}
			for _, trigger := range step.OnlyOn {
				if _, err := model.ParseTrigger(trigger); err != nil {
					return nil, fmt.Errorf("step %s in job %s: %w", step.Name, job.Name, err)
				}
			}
		}
	}

	// Validate dependency references after all names are known
	for _, job := range workflow.Jobs {
		for _, need := range job.Needs {
			if !jobNames[need] {
				return nil, fmt.Errorf("job %s needs unknown job: %s", job.Name, need)
			}
			if need == job.Name {
				return nil, fmt.Errorf("job %s cannot depend on itself", job.Name)
			}
		}
	}

	return workflow, nil
}

// ResolveEnvironmentName picks the run's target environment. An explicit
// request must name a declared environment; otherwise a single declared
// environment is used implicitly.
func ResolveEnvironmentName(workflow *model.Workflow, requested string) (string, error) {
	if requested != "" {
		if _, ok := workflow.Environments[requested]; !ok {
			return "", fmt.Errorf("unknown environment: %s (declared: %s)", requested, strings.Join(environmentNames(workflow), ", "))
		}
		return requested, nil
	}

	if len(workflow.Environments) == 1 {
		for name := range workflow.Environments {
			return name, nil
		}
	}
	return "", fmt.Errorf("workflow declares %d environments, pick one with --env", len(workflow.Environments))
}

func environmentNames(workflow *model.Workflow) []string {
	names := make([]string, 0, len(workflow.Environments))
	for name := range workflow.Environments {
		names = append(names, name)
	}
	return names
}
