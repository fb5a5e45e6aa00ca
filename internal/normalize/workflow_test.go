package normalize

import (
	"strings"
	"testing"

	"github.com/opsway/deploypipe/internal/model"
)

func baseWorkflow() *model.Workflow {
	return &model.Workflow{
		APIVersion: "deploypipe.dev/v1",
		Kind:       "Workflow",
		Metadata:   model.Metadata{Name: "pipeline"},
		Environments: map[string]model.Environment{
			"staging": {},
		},
		Jobs: []model.JobSpec{
			{
				Name: "validate-plan",
				Steps: []model.Step{
					{Name: "plan", Uses: "terraform-plan"},
				},
			},
			{
				Name:  "deploy",
				Needs: []string{"validate-plan"},
				Steps: []model.Step{
					{Name: "rollout", Uses: "ecs-rollout"},
				},
			},
		},
	}
}

func TestNormalizeWorkflow(t *testing.T) {
	workflow, err := NormalizeWorkflow(baseWorkflow())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Role inherited from the job name
	if workflow.Jobs[0].Role != model.RoleValidatePlan {
		t.Errorf("expected role %s, got %s", model.RoleValidatePlan, workflow.Jobs[0].Role)
	}
	if workflow.Jobs[1].Role != model.RoleDeploy {
		t.Errorf("expected role %s, got %s", model.RoleDeploy, workflow.Jobs[1].Role)
	}

	// OnFailure defaulted
	if workflow.Jobs[0].Steps[0].OnFailure != "stop" {
		t.Errorf("expected onFailure stop, got %s", workflow.Jobs[0].Steps[0].OnFailure)
	}
}

func TestNormalizeWorkflowExplicitRoleKept(t *testing.T) {
	wf := baseWorkflow()
	wf.Jobs[0].Name = "plan-stage"
	wf.Jobs[0].Role = model.RoleValidatePlan
	wf.Jobs[1].Needs = []string{"plan-stage"}

	workflow, err := NormalizeWorkflow(wf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if workflow.Jobs[0].Role != model.RoleValidatePlan {
		t.Errorf("explicit role lost: %s", workflow.Jobs[0].Role)
	}
}

func TestNormalizeWorkflowErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*model.Workflow)
		wantErr string
	}{
		{
			name:    "missing name",
			mutate:  func(wf *model.Workflow) { wf.Metadata.Name = "" },
			wantErr: "metadata.name",
		},
		{
			name:    "no jobs",
			mutate:  func(wf *model.Workflow) { wf.Jobs = nil },
			wantErr: "at least one job",
		},
		{
			name: "duplicate job name",
			mutate: func(wf *model.Workflow) {
				wf.Jobs[1].Name = "validate-plan"
				wf.Jobs[1].Needs = nil
			},
			wantErr: "duplicate job name",
		},
		{
			name:    "unknown role",
			mutate:  func(wf *model.Workflow) { wf.Jobs[0].Role = "ship-it" },
			wantErr: "unknown role",
		},
		{
			name:    "no steps",
			mutate:  func(wf *model.Workflow) { wf.Jobs[0].Steps = nil },
			wantErr: "at least one step",
		},
		{
			name: "step without run or uses",
			mutate: func(wf *model.Workflow) {
				wf.Jobs[0].Steps[0].Uses = ""
			},
			wantErr: "must set run or uses",
		},
		{
			name: "step with both run and uses",
			mutate: func(wf *model.Workflow) {
				wf.Jobs[0].Steps[0].Run = "echo hi"
			},
			wantErr: "both run and uses",
		},
		{
			name: "invalid onlyOn trigger",
			mutate: func(wf *model.Workflow) {
				wf.Jobs[0].Steps[0].OnlyOn = []string{"cron"}
			},
			wantErr: "unknown trigger",
		},
		{
			name: "unknown needs reference",
			mutate: func(wf *model.Workflow) {
				wf.Jobs[1].Needs = []string{"build"}
			},
			wantErr: "needs unknown job",
		},
		{
			name: "self dependency",
			mutate: func(wf *model.Workflow) {
				wf.Jobs[1].Needs = []string{"deploy"}
			},
			wantErr: "depend on itself",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wf := baseWorkflow()
			tt.mutate(wf)

			_, err := NormalizeWorkflow(wf)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestResolveEnvironmentName(t *testing.T) {
	wf := baseWorkflow()

	name, err := ResolveEnvironmentName(wf, "staging")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "staging" {
		t.Errorf("expected staging, got %s", name)
	}

	// Single declared environment is implicit
	name, err = ResolveEnvironmentName(wf, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "staging" {
		t.Errorf("expected staging, got %s", name)
	}

	if _, err := ResolveEnvironmentName(wf, "production"); err == nil {
		t.Error("expected error for undeclared environment")
	}

	wf.Environments["production"] = model.Environment{}
	if _, err := ResolveEnvironmentName(wf, ""); err == nil {
		t.Error("expected error when multiple environments and none requested")
	}
}
