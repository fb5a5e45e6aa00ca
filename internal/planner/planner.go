package planner

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/opsway/deploypipe/internal/gate"
	"github.com/opsway/deploypipe/internal/model"
)

// Planner compiles a workflow into an execution-ready plan for one run
type Planner struct {
	templateCache map[string]*template.Template
}

// New creates a planner
func New() *Planner {
	return &Planner{
		templateCache: make(map[string]*template.Template),
	}
}

// Compile applies the gate decision to the workflow's jobs and renders the
// surviving jobs into a plan. Jobs whose role the gate excludes are dropped,
// along with dependency edges pointing at them.
func (p *Planner) Compile(workflow *model.Workflow, target *model.Target, rc model.RunContext, decision gate.Decision) (*model.Plan, error) {
	plan := &model.Plan{
		APIVersion: "deploypipe.dev/v1",
		Kind:       "Plan",
		Metadata:   workflow.Metadata,
		Spec: model.PlanSpec{
			Trigger:     string(rc.Trigger),
			DeployType:  string(rc.DeployType),
			Environment: target.Environment,
			Revision:    rc.Revision,
		},
	}

	// Job name -> plan job ID, for resolving needs edges
	included := make(map[string]string)

	for _, job := range workflow.Jobs {
		if job.Role == "" || !decision.Allows(job.Role) {
			continue
		}

		jobID := fmt.Sprintf("%s@%s", job.Name, target.Environment)
		included[job.Name] = jobID

		planJob := model.PlanJob{
			ID:          jobID,
			Name:        job.Name,
			Role:        job.Role,
			Environment: target.Environment,
			Timeout:     job.Timeout,
			Retries:     job.Retries,
			Labels:      job.Labels,
			Env:         jobEnv(target, rc),
			DependsOn:   []string{},
		}

		// The short-circuit applies downstream of the planning job only
		if decision.SkipOnNoChanges && (job.Role == model.RoleBuildImage || job.Role == model.RoleDeploy) {
			planJob.SkipOnNoChanges = true
		}

		steps, err := p.renderSteps(job, target, rc)
		if err != nil {
			return nil, fmt.Errorf("failed to render steps for job %s: %w", jobID, err)
		}
		if len(steps) == 0 {
			return nil, fmt.Errorf("job %s has no steps applicable to trigger %s", job.Name, rc.Trigger)
		}
		planJob.Steps = steps

		plan.Jobs = append(plan.Jobs, planJob)
	}

	if len(plan.Jobs) == 0 {
		return nil, fmt.Errorf("no jobs in workflow match the gated roles %v", decision.Roles())
	}

	// Resolve needs into DependsOn, dropping edges to gated-out jobs
	for i := range plan.Jobs {
		spec := findJobSpec(workflow, plan.Jobs[i].Name)
		for _, need := range spec.Needs {
			if depID, ok := included[need]; ok {
				plan.Jobs[i].DependsOn = append(plan.Jobs[i].DependsOn, depID)
			}
		}
	}

	graph := NewGraph(plan.Jobs)
	if err := graph.DetectCycles(); err != nil {
		return nil, err
	}

	return plan, nil
}

// renderSteps filters steps by trigger and resolves their command templates
func (p *Planner) renderSteps(job model.JobSpec, target *model.Target, rc model.RunContext) ([]model.PlanStep, error) {
	context := templateContext(target, rc)

	rendered := make([]model.PlanStep, 0, len(job.Steps))
	for _, step := range job.Steps {
		if !step.RunsOn(rc.Trigger) {
			continue
		}

		planStep := model.PlanStep{
			Name:      step.Name,
			Uses:      step.Uses,
			With:      step.With,
			Timeout:   step.Timeout,
			Retry:     step.Retry,
			OnFailure: step.OnFailure,
		}

		if step.Run != "" {
			run, err := p.render(job.Name, step.Name, step.Run, context)
			if err != nil {
				return nil, err
			}
			planStep.Run = run
		}

		rendered = append(rendered, planStep)
	}

	return rendered, nil
}

// render executes a step command template, caching parsed templates since
// identical steps recur across runs of the same planner
func (p *Planner) render(jobName, stepName, text string, context map[string]interface{}) (string, error) {
	cacheKey := fmt.Sprintf("%s:%s", jobName, stepName)

	tmpl, ok := p.templateCache[cacheKey]
	if !ok {
		var err error
		tmpl, err = template.New(cacheKey).Option("missingkey=error").Parse(text)
		if err != nil {
			return "", fmt.Errorf("invalid template in step %s: %w", stepName, err)
		}
		p.templateCache[cacheKey] = tmpl
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, context); err != nil {
		return "", fmt.Errorf("failed to execute template in step %s: %w", stepName, err)
	}
	return buf.String(), nil
}

// templateContext exposes the resolved target and run context to step templates
func templateContext(target *model.Target, rc model.RunContext) map[string]interface{} {
	context := map[string]interface{}{
		"Environment": target.Environment,
		"Region":      target.Region,
		"Repository":  target.Repository,
		"Cluster":     target.Cluster,
		"Service":     target.Service,
		"StateBucket": target.StateBucket,
		"Revision":    rc.Revision,
		"ImageTag":    rc.Revision,
		"Trigger":     string(rc.Trigger),
	}
	for k, v := range target.Inputs {
		context[k] = v
	}
	return context
}

// jobEnv is the runtime configuration handed to builtin actions
func jobEnv(target *model.Target, rc model.RunContext) map[string]interface{} {
	env := map[string]interface{}{
		"environment": target.Environment,
		"region":      target.Region,
		"repository":  target.Repository,
		"cluster":     target.Cluster,
		"service":     target.Service,
		"stateBucket": target.StateBucket,
		"webhookURL":  target.WebhookURL,
		"revision":    rc.Revision,
		"deployType":  string(rc.DeployType),
	}
	for k, v := range target.Inputs {
		env[k] = v
	}
	return env
}

func findJobSpec(workflow *model.Workflow, name string) model.JobSpec {
	for _, job := range workflow.Jobs {
		if job.Name == name {
			return job
		}
	}
	return model.JobSpec{}
}
