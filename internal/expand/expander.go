package expand

import (
	"fmt"

	"github.com/opsway/deploypipe/internal/model"
)

// ResolveTarget merges workflow defaults with environment overrides into the
// fully resolved deployment target for one environment.
//
// Merge precedence, lowest to highest: defaults, environment override.
func ResolveTarget(workflow *model.Workflow, envName string) (*model.Target, error) {
	env, ok := workflow.Environments[envName]
	if !ok {
		return nil, fmt.Errorf("unknown environment: %s", envName)
	}

	target := &model.Target{
		Environment: envName,
		Region:      workflow.Defaults.Region,
		Repository:  workflow.Defaults.Repository,
		Cluster:     workflow.Defaults.Cluster,
		Service:     workflow.Defaults.Service,
		StateBucket: workflow.Defaults.StateBucket,
		WebhookURL:  workflow.Defaults.WebhookURL,
		Inputs:      map[string]interface{}{},
	}

	if env.Region != "" {
		target.Region = env.Region
	}
	if env.Repository != "" {
		target.Repository = env.Repository
	}
	if env.Cluster != "" {
		target.Cluster = env.Cluster
	}
	if env.Service != "" {
		target.Service = env.Service
	}
	if env.StateBucket != "" {
		target.StateBucket = env.StateBucket
	}
	if env.WebhookURL != "" {
		target.WebhookURL = env.WebhookURL
	}

	for k, v := range workflow.Defaults.Inputs {
		target.Inputs[k] = v
	}
	for k, v := range env.Inputs {
		target.Inputs[k] = v
	}

	if target.Region == "" {
		return nil, fmt.Errorf("environment %s has no region (set defaults.region or an override)", envName)
	}

	return target, nil
}
