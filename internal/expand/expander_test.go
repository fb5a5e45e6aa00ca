package expand

import (
	"testing"

	"github.com/opsway/deploypipe/internal/model"
)

func testWorkflow() *model.Workflow {
	return &model.Workflow{
		Defaults: model.Defaults{
			Region:     "eu-west-1",
			Repository: "webapp",
			Cluster:    "webapp-cluster",
			Service:    "webapp-service",
			Inputs:     map[string]interface{}{"desiredCount": 2, "logLevel": "info"},
		},
		Environments: map[string]model.Environment{
			"dev": {},
			"prod": {
				Cluster: "webapp-cluster-prod",
				Service: "webapp-service-prod",
				Inputs:  map[string]interface{}{"desiredCount": 4},
			},
		},
	}
}

func TestResolveTargetUsesDefaults(t *testing.T) {
	target, err := ResolveTarget(testWorkflow(), "dev")
	if err != nil {
		t.Fatal(err)
	}

	if target.Environment != "dev" {
		t.Errorf("Environment = %s, want dev", target.Environment)
	}
	if target.Cluster != "webapp-cluster" {
		t.Errorf("Cluster = %s, want webapp-cluster", target.Cluster)
	}
	if target.Inputs["desiredCount"] != 2 {
		t.Errorf("desiredCount = %v, want 2", target.Inputs["desiredCount"])
	}
}

func TestResolveTargetAppliesOverrides(t *testing.T) {
	target, err := ResolveTarget(testWorkflow(), "prod")
	if err != nil {
		t.Fatal(err)
	}

	if target.Cluster != "webapp-cluster-prod" {
		t.Errorf("Cluster = %s, want webapp-cluster-prod", target.Cluster)
	}
	if target.Region != "eu-west-1" {
		t.Errorf("Region = %s, want inherited eu-west-1", target.Region)
	}
	if target.Inputs["desiredCount"] != 4 {
		t.Errorf("desiredCount = %v, want override 4", target.Inputs["desiredCount"])
	}
	if target.Inputs["logLevel"] != "info" {
		t.Errorf("logLevel = %v, want inherited info", target.Inputs["logLevel"])
	}
}

func TestResolveTargetErrors(t *testing.T) {
	if _, err := ResolveTarget(testWorkflow(), "staging"); err == nil {
		t.Error("expected error for undeclared environment")
	}

	workflow := testWorkflow()
	workflow.Defaults.Region = ""
	if _, err := ResolveTarget(workflow, "dev"); err == nil {
		t.Error("expected error when no region is resolvable")
	}
}
