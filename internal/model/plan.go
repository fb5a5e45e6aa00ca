package model

// Plan is the final execution-ready pipeline DAG
type Plan struct {
	APIVersion string    `json:"apiVersion" yaml:"apiVersion"`
	Kind       string    `json:"kind" yaml:"kind"`
	Metadata   Metadata  `json:"metadata" yaml:"metadata"`
	Spec       PlanSpec  `json:"spec" yaml:"spec"`
	Jobs       []PlanJob `json:"jobs" yaml:"jobs"`
}

// PlanSpec records the trigger and inputs the plan was compiled for
type PlanSpec struct {
	Trigger     string `json:"trigger" yaml:"trigger"`
	DeployType  string `json:"deployType,omitempty" yaml:"deployType,omitempty"`
	Environment string `json:"environment" yaml:"environment"`
	Revision    string `json:"revision" yaml:"revision"`
}

// PlanJob is the execution unit in the final plan
type PlanJob struct {
	ID              string                 `json:"id" yaml:"id"`
	Name            string                 `json:"name" yaml:"name"`
	Role            string                 `json:"role" yaml:"role"`
	Environment     string                 `json:"environment" yaml:"environment"`
	Steps           []PlanStep             `json:"steps" yaml:"steps"`
	DependsOn       []string               `json:"dependsOn" yaml:"dependsOn"`
	Timeout         string                 `json:"timeout" yaml:"timeout"`
	Retries         int                    `json:"retries" yaml:"retries"`
	SkipOnNoChanges bool                   `json:"skipOnNoChanges,omitempty" yaml:"skipOnNoChanges,omitempty"`
	Env             map[string]interface{} `json:"env" yaml:"env"`
	Labels          map[string]string      `json:"labels" yaml:"labels"`
}

// PlanStep is a step in the final plan with all templates resolved
type PlanStep struct {
	Name      string                 `json:"name" yaml:"name"`
	Run       string                 `json:"run,omitempty" yaml:"run,omitempty"`
	Uses      string                 `json:"uses,omitempty" yaml:"uses,omitempty"`
	With      map[string]interface{} `json:"with,omitempty" yaml:"with,omitempty"`
	Timeout   string                 `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Retry     int                    `json:"retry,omitempty" yaml:"retry,omitempty"`
	OnFailure string                 `json:"onFailure,omitempty" yaml:"onFailure,omitempty"`
}
