package runner

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/go-kit/kit/log"
	"github.com/opsway/deploypipe/internal/model"
)

func newTestRunner(t *testing.T) (*Runner, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	r := New(t.TempDir(), &out, &out, false, log.NewNopLogger())
	return r, &out
}

func planOf(jobs ...model.PlanJob) *model.Plan {
	return &model.Plan{
		APIVersion: "deploypipe.dev/v1",
		Kind:       "Plan",
		Jobs:       jobs,
	}
}

func TestRunExecutesInDependencyOrder(t *testing.T) {
	r, out := newTestRunner(t)

	plan := planOf(
		model.PlanJob{ID: "second", DependsOn: []string{"first"}, Steps: []model.PlanStep{
			{Name: "say", Run: "echo second"},
		}},
		model.PlanJob{ID: "first", Steps: []model.PlanStep{
			{Name: "say", Run: "echo first"},
		}},
	)

	result, err := r.Run(context.Background(), plan)
	if err != nil {
		t.Fatal(err)
	}
	if result.Statuses["first"] != StatusSucceeded || result.Statuses["second"] != StatusSucceeded {
		t.Errorf("statuses = %v", result.Statuses)
	}

	text := out.String()
	if strings.Index(text, "first") > strings.Index(text, "second") {
		t.Errorf("first must run before second:\n%s", text)
	}
}

func TestRunSkipsDependentsOfFailedJob(t *testing.T) {
	r, _ := newTestRunner(t)

	plan := planOf(
		model.PlanJob{ID: "broken", Steps: []model.PlanStep{
			{Name: "fail", Run: "exit 1"},
		}},
		model.PlanJob{ID: "dependent", DependsOn: []string{"broken"}, Steps: []model.PlanStep{
			{Name: "never", Run: "echo unreachable"},
		}},
		model.PlanJob{ID: "unrelated", Steps: []model.PlanStep{
			{Name: "ok", Run: "true"},
		}},
	)

	result, err := r.Run(context.Background(), plan)
	if err == nil {
		t.Fatal("expected run error when a job fails")
	}
	if result.Statuses["broken"] != StatusFailed {
		t.Errorf("broken = %s, want failed", result.Statuses["broken"])
	}
	if result.Statuses["dependent"] != StatusSkipped {
		t.Errorf("dependent = %s, want skipped", result.Statuses["dependent"])
	}
	if result.Statuses["unrelated"] != StatusSucceeded {
		t.Errorf("unrelated = %s, want succeeded", result.Statuses["unrelated"])
	}
	if reason := result.SkipReasons["dependent"]; !strings.Contains(reason, "broken") {
		t.Errorf("skip reason should name the failed dependency, got %q", reason)
	}
}

func TestRunShortCircuitsOnNoChanges(t *testing.T) {
	r, _ := newTestRunner(t)
	r.Register("fake-plan", func(ctx context.Context, req ActionRequest) (ActionResult, error) {
		return ActionResult{PlanOutcome: model.PlanNoChanges}, nil
	})

	plan := planOf(
		model.PlanJob{ID: "validate-plan@dev", Steps: []model.PlanStep{
			{Name: "plan", Uses: "fake-plan"},
		}},
		model.PlanJob{ID: "deploy@dev", DependsOn: []string{"validate-plan@dev"}, SkipOnNoChanges: true, Steps: []model.PlanStep{
			{Name: "apply", Run: "echo applying"},
		}},
	)

	result, err := r.Run(context.Background(), plan)
	if err != nil {
		t.Fatal(err)
	}
	if result.PlanOutcome != model.PlanNoChanges {
		t.Errorf("plan outcome = %s", result.PlanOutcome)
	}
	if result.Statuses["deploy@dev"] != StatusSkipped {
		t.Errorf("deploy = %s, want skipped on no changes", result.Statuses["deploy@dev"])
	}
}

func TestRunDispatchedJobIgnoresNoChanges(t *testing.T) {
	// Compiled without SkipOnNoChanges (explicit dispatch), deploy must run
	// even when the plan reports nothing pending
	r, _ := newTestRunner(t)
	r.Register("fake-plan", func(ctx context.Context, req ActionRequest) (ActionResult, error) {
		return ActionResult{PlanOutcome: model.PlanNoChanges}, nil
	})

	plan := planOf(
		model.PlanJob{ID: "validate-plan@dev", Steps: []model.PlanStep{
			{Name: "plan", Uses: "fake-plan"},
		}},
		model.PlanJob{ID: "deploy@dev", DependsOn: []string{"validate-plan@dev"}, Steps: []model.PlanStep{
			{Name: "apply", Run: "true"},
		}},
	)

	result, err := r.Run(context.Background(), plan)
	if err != nil {
		t.Fatal(err)
	}
	if result.Statuses["deploy@dev"] != StatusSucceeded {
		t.Errorf("deploy = %s, want succeeded", result.Statuses["deploy@dev"])
	}
}

func TestRunContinueOnFailureStep(t *testing.T) {
	r, _ := newTestRunner(t)

	plan := planOf(
		model.PlanJob{ID: "job", Steps: []model.PlanStep{
			{Name: "optional", Run: "exit 1", OnFailure: "continue"},
			{Name: "required", Run: "true"},
		}},
	)

	result, err := r.Run(context.Background(), plan)
	if err != nil {
		t.Fatal(err)
	}
	if result.Statuses["job"] != StatusSucceeded {
		t.Errorf("job = %s, want succeeded despite optional step failure", result.Statuses["job"])
	}
}

func TestRunUnknownAction(t *testing.T) {
	r, _ := newTestRunner(t)

	plan := planOf(
		model.PlanJob{ID: "job", Steps: []model.PlanStep{
			{Name: "mystery", Uses: "no-such-action"},
		}},
	)

	result, err := r.Run(context.Background(), plan)
	if err == nil {
		t.Fatal("expected error for unknown action")
	}
	if result.Statuses["job"] != StatusFailed {
		t.Errorf("job = %s, want failed", result.Statuses["job"])
	}
}

func TestRunRetriesFlakyAction(t *testing.T) {
	r, _ := newTestRunner(t)

	attempts := 0
	r.Register("flaky", func(ctx context.Context, req ActionRequest) (ActionResult, error) {
		attempts++
		if attempts < 3 {
			return ActionResult{}, context.DeadlineExceeded
		}
		return ActionResult{}, nil
	})

	plan := planOf(
		model.PlanJob{ID: "job", Steps: []model.PlanStep{
			{Name: "flaky", Uses: "flaky", Retry: 2},
		}},
	)

	result, err := r.Run(context.Background(), plan)
	if err != nil {
		t.Fatal(err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	if result.Statuses["job"] != StatusSucceeded {
		t.Errorf("job = %s, want succeeded", result.Statuses["job"])
	}
}

func TestRunDryRunExecutesNothing(t *testing.T) {
	var out bytes.Buffer
	r := New(t.TempDir(), &out, &out, true, log.NewNopLogger())

	called := false
	r.Register("fake-plan", func(ctx context.Context, req ActionRequest) (ActionResult, error) {
		called = true
		return ActionResult{}, nil
	})

	plan := planOf(
		model.PlanJob{ID: "job", Steps: []model.PlanStep{
			{Name: "plan", Uses: "fake-plan"},
			{Name: "sh", Run: "exit 1"},
		}},
	)

	result, err := r.Run(context.Background(), plan)
	if err != nil {
		t.Fatal(err)
	}
	if called {
		t.Error("dry-run must not invoke actions")
	}
	if result.Statuses["job"] != StatusSucceeded {
		t.Errorf("job = %s", result.Statuses["job"])
	}
	if !strings.Contains(out.String(), "uses: fake-plan") {
		t.Errorf("dry-run output should show the action:\n%s", out.String())
	}
}

func TestActionRequestParam(t *testing.T) {
	req := ActionRequest{
		Job:  model.PlanJob{Env: map[string]interface{}{"cluster": "from-env", "region": "eu-west-1"}},
		Step: model.PlanStep{With: map[string]interface{}{"cluster": "from-with"}},
	}

	if got := req.Param("cluster"); got != "from-with" {
		t.Errorf("Param(cluster) = %s, want with-block to win", got)
	}
	if got := req.Param("region"); got != "eu-west-1" {
		t.Errorf("Param(region) = %s", got)
	}
	if got := req.Param("missing"); got != "" {
		t.Errorf("Param(missing) = %s, want empty", got)
	}
}
