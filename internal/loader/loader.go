package loader

import (
	"fmt"
	"os"

	"github.com/opsway/deploypipe/internal/model"
	"github.com/opsway/deploypipe/internal/schema"
	"gopkg.in/yaml.v3"
)

// LoadWorkflow loads, schema-validates and parses a workflow YAML file
func LoadWorkflow(path string) (*model.Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow file: %w", err)
	}

	// Validate the raw document before decoding into structs, so schema
	// errors mention the offending field rather than a type mismatch.
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse workflow YAML: %w", err)
	}

	validator, err := schema.NewValidator()
	if err != nil {
		return nil, err
	}
	if err := validator.ValidateWorkflow(doc); err != nil {
		return nil, fmt.Errorf("workflow failed schema validation: %w", err)
	}

	var workflow model.Workflow
	if err := yaml.Unmarshal(data, &workflow); err != nil {
		return nil, fmt.Errorf("failed to parse workflow YAML: %w", err)
	}

	return &workflow, nil
}
