package model

// Workflow is the top-level declarative pipeline definition
type Workflow struct {
	APIVersion   string                 `yaml:"apiVersion" json:"apiVersion"`
	Kind         string                 `yaml:"kind" json:"kind"`
	Metadata     Metadata               `yaml:"metadata" json:"metadata"`
	Defaults     Defaults               `yaml:"defaults" json:"defaults"`
	Environments map[string]Environment `yaml:"environments" json:"environments"`
	Jobs         []JobSpec              `yaml:"jobs" json:"jobs"`
}

// Metadata holds standard object metadata
type Metadata struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
}

// Defaults holds deployment targets shared by all environments
type Defaults struct {
	Region      string                 `yaml:"region" json:"region"`
	Repository  string                 `yaml:"repository" json:"repository"`
	Cluster     string                 `yaml:"cluster" json:"cluster"`
	Service     string                 `yaml:"service" json:"service"`
	StateBucket string                 `yaml:"stateBucket" json:"stateBucket"`
	WebhookURL  string                 `yaml:"webhookURL" json:"webhookURL"`
	Inputs      map[string]interface{} `yaml:"inputs" json:"inputs"`
}

// Environment overrides defaults for a single deployment target
type Environment struct {
	Region      string                 `yaml:"region,omitempty" json:"region,omitempty"`
	Repository  string                 `yaml:"repository,omitempty" json:"repository,omitempty"`
	Cluster     string                 `yaml:"cluster,omitempty" json:"cluster,omitempty"`
	Service     string                 `yaml:"service,omitempty" json:"service,omitempty"`
	StateBucket string                 `yaml:"stateBucket,omitempty" json:"stateBucket,omitempty"`
	WebhookURL  string                 `yaml:"webhookURL,omitempty" json:"webhookURL,omitempty"`
	Inputs      map[string]interface{} `yaml:"inputs,omitempty" json:"inputs,omitempty"`
}

// Target is the fully resolved deployment target for one environment
type Target struct {
	Environment string
	Region      string
	Repository  string
	Cluster     string
	Service     string
	StateBucket string
	WebhookURL  string
	Inputs      map[string]interface{}
}

// Pipeline roles recognised by the trigger/mode gate.
const (
	RoleValidatePlan = "validate-plan"
	RoleBuildImage   = "build-image"
	RoleDeploy       = "deploy"
	RoleDestroy      = "destroy"
)

// KnownRole reports whether a role name is one the gate understands
func KnownRole(role string) bool {
	switch role {
	case RoleValidatePlan, RoleBuildImage, RoleDeploy, RoleDestroy:
		return true
	default:
		return false
	}
}
