// Package runner executes a compiled plan in dependency order.
package runner

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"sort"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/opsway/deploypipe/internal/artifact"
	"github.com/opsway/deploypipe/internal/model"
)

// Status is the terminal state of a plan job
type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// ActionRequest carries everything a builtin action needs for one step
type ActionRequest struct {
	Job       model.PlanJob
	Step      model.PlanStep
	WorkDir   string
	Stdout    io.Writer
	Stderr    io.Writer
	Artifacts *artifact.Store
}

// Param resolves a string parameter, preferring the step's with block over
// the job's resolved environment
func (r ActionRequest) Param(key string) string {
	if v, ok := r.Step.With[key]; ok {
		return fmt.Sprintf("%v", v)
	}
	if v, ok := r.Job.Env[key]; ok {
		return fmt.Sprintf("%v", v)
	}
	return ""
}

// ActionResult reports what a builtin action observed. PlanOutcome is set
// only by the planning action; everything else leaves it unknown.
type ActionResult struct {
	PlanOutcome model.PlanOutcome
	Summary     string
}

// ActionFunc is a builtin step implementation, dispatched by the step's
// uses field
type ActionFunc func(ctx context.Context, req ActionRequest) (ActionResult, error)

// Result is the per-job accounting of one run
type Result struct {
	Statuses    map[string]Status
	SkipReasons map[string]string
	PlanOutcome model.PlanOutcome
}

// Failed reports whether any job failed
func (r *Result) Failed() bool {
	for _, status := range r.Statuses {
		if status == StatusFailed {
			return true
		}
	}
	return false
}

// Runner executes plans. Shell steps run through sh -c in WorkDir; builtin
// steps dispatch to registered actions.
type Runner struct {
	WorkDir   string
	Stdout    io.Writer
	Stderr    io.Writer
	DryRun    bool
	Actions   map[string]ActionFunc
	Artifacts *artifact.Store

	logger log.Logger
}

// New creates a runner
func New(workDir string, stdout, stderr io.Writer, dryRun bool, logger log.Logger) *Runner {
	return &Runner{
		WorkDir: workDir,
		Stdout:  stdout,
		Stderr:  stderr,
		DryRun:  dryRun,
		Actions: make(map[string]ActionFunc),
		logger:  logger,
	}
}

// Register binds a builtin action name to its implementation
func (r *Runner) Register(name string, fn ActionFunc) {
	r.Actions[name] = fn
}

// Run executes the plan's jobs in topological order. A failed job marks its
// transitive dependents skipped; unrelated jobs still run. The returned
// error is non-nil when any job failed, with per-job detail in Result.
func (r *Runner) Run(ctx context.Context, plan *model.Plan) (*Result, error) {
	if plan == nil {
		return nil, fmt.Errorf("plan cannot be nil")
	}

	ordered, err := topologicalOrder(plan.Jobs)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Statuses:    make(map[string]Status, len(ordered)),
		SkipReasons: make(map[string]string),
		PlanOutcome: model.PlanOutcomeUnknown,
	}
	for _, job := range ordered {
		result.Statuses[job.ID] = StatusPending
	}

	for _, job := range ordered {
		if reason := r.skipReason(job, result); reason != "" {
			result.Statuses[job.ID] = StatusSkipped
			result.SkipReasons[job.ID] = reason
			r.logger.Log("job", job.ID, "status", StatusSkipped, "reason", reason)
			fmt.Fprintf(r.Stdout, "↷ Job %s skipped: %s\n", job.ID, reason)
			continue
		}

		fmt.Fprintf(r.Stdout, "→ Job %s (%s)\n", job.ID, job.Role)
		if err := r.runJob(ctx, job, result); err != nil {
			result.Statuses[job.ID] = StatusFailed
			r.logger.Log("job", job.ID, "status", StatusFailed, "err", err)
			fmt.Fprintf(r.Stdout, "✗ Job %s failed: %v\n", job.ID, err)
			continue
		}

		result.Statuses[job.ID] = StatusSucceeded
		r.logger.Log("job", job.ID, "status", StatusSucceeded)
	}

	if result.Failed() {
		return result, fmt.Errorf("one or more jobs failed")
	}
	return result, nil
}

// skipReason decides whether a job runs, applying dependency gating and the
// no-changes short-circuit
func (r *Runner) skipReason(job model.PlanJob, result *Result) string {
	for _, dep := range job.DependsOn {
		if result.Statuses[dep] != StatusSucceeded {
			return fmt.Sprintf("dependency %s did not succeed", dep)
		}
	}
	if job.SkipOnNoChanges && result.PlanOutcome == model.PlanNoChanges {
		return "no infrastructure changes pending"
	}
	return ""
}

func (r *Runner) runJob(ctx context.Context, job model.PlanJob, result *Result) error {
	for _, step := range job.Steps {
		fmt.Fprintf(r.Stdout, "  - Step %s\n", step.Name)

		if r.DryRun {
			if step.Uses != "" {
				fmt.Fprintf(r.Stdout, "    uses: %s\n", step.Uses)
			} else {
				fmt.Fprintf(r.Stdout, "    %s\n", step.Run)
			}
			continue
		}

		err := r.runStepWithRetry(ctx, job, step, result)
		if err != nil {
			if step.OnFailure == "continue" {
				r.logger.Log("job", job.ID, "step", step.Name, "err", err, "onFailure", "continue")
				fmt.Fprintf(r.Stdout, "    step %s failed (continuing): %v\n", step.Name, err)
				continue
			}
			return fmt.Errorf("step %s failed: %w", step.Name, err)
		}
	}
	return nil
}

func (r *Runner) runStepWithRetry(ctx context.Context, job model.PlanJob, step model.PlanStep, result *Result) error {
	attempts := step.Retry + 1
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			r.logger.Log("job", job.ID, "step", step.Name, "retry", attempt-1)
		}
		if err = r.runStep(ctx, job, step, result); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
	}
	return err
}

func (r *Runner) runStep(ctx context.Context, job model.PlanJob, step model.PlanStep, result *Result) error {
	if step.Timeout != "" {
		timeout, err := time.ParseDuration(step.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout %q: %w", step.Timeout, err)
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if step.Uses != "" {
		action, ok := r.Actions[step.Uses]
		if !ok {
			return fmt.Errorf("unknown builtin action: %s", step.Uses)
		}

		res, err := action(ctx, ActionRequest{
			Job:       job,
			Step:      step,
			WorkDir:   r.WorkDir,
			Stdout:    r.Stdout,
			Stderr:    r.Stderr,
			Artifacts: r.Artifacts,
		})
		if res.PlanOutcome != model.PlanOutcomeUnknown {
			result.PlanOutcome = res.PlanOutcome
			r.logger.Log("job", job.ID, "step", step.Name, "planOutcome", res.PlanOutcome.String())
		}
		if res.Summary != "" {
			fmt.Fprintf(r.Stdout, "    %s\n", res.Summary)
		}
		return err
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", step.Run)
	cmd.Dir = r.WorkDir
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	return cmd.Run()
}

// topologicalOrder sorts plan jobs by dependencies, alphabetical within a
// level for determinism
func topologicalOrder(jobs []model.PlanJob) ([]model.PlanJob, error) {
	jobsByID := make(map[string]model.PlanJob, len(jobs))
	inDegree := make(map[string]int, len(jobs))
	dependents := make(map[string][]string, len(jobs))

	for _, job := range jobs {
		jobsByID[job.ID] = job
		inDegree[job.ID] = 0
		dependents[job.ID] = []string{}
	}

	for _, job := range jobs {
		for _, dep := range job.DependsOn {
			if _, exists := jobsByID[dep]; !exists {
				return nil, fmt.Errorf("job %s depends on unknown job %s", job.ID, dep)
			}
			inDegree[job.ID]++
			dependents[dep] = append(dependents[dep], job.ID)
		}
	}

	queue := make([]string, 0)
	for id, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	ordered := make([]model.PlanJob, 0, len(jobs))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		ordered = append(ordered, jobsByID[current])

		for _, dep := range dependents[current] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
		sort.Strings(queue)
	}

	if len(ordered) != len(jobs) {
		return nil, fmt.Errorf("cycle detected in plan jobs")
	}

	return ordered, nil
}
