package schema

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// workflowSchema is the JSON schema every workflow document must satisfy.
// Kept in YAML for readability and compiled at startup.
const workflowSchema = `
$schema: "https://json-schema.org/draft/2020-12/schema"
type: object
required: [apiVersion, kind, metadata, jobs]
properties:
  apiVersion:
    type: string
  kind:
    type: string
    const: Workflow
  metadata:
    type: object
    required: [name]
    properties:
      name:
        type: string
        minLength: 1
      description:
        type: string
  defaults:
    type: object
    properties:
      region: {type: string}
      repository: {type: string}
      cluster: {type: string}
      service: {type: string}
      stateBucket: {type: string}
      webhookURL: {type: string}
      inputs: {type: object}
  environments:
    type: object
    additionalProperties:
      type: object
      properties:
        region: {type: string}
        repository: {type: string}
        cluster: {type: string}
        service: {type: string}
        stateBucket: {type: string}
        webhookURL: {type: string}
        inputs: {type: object}
  jobs:
    type: array
    minItems: 1
    items:
      type: object
      required: [name, steps]
      properties:
        name:
          type: string
          minLength: 1
        description: {type: string}
        role:
          type: string
          enum: [validate-plan, build-image, deploy, destroy]
        timeout: {type: string}
        retries: {type: integer, minimum: 0}
        needs:
          type: array
          items: {type: string}
        labels:
          type: object
          additionalProperties: {type: string}
        steps:
          type: array
          minItems: 1
          items:
            type: object
            required: [name]
            properties:
              name: {type: string, minLength: 1}
              run: {type: string}
              uses: {type: string}
              with: {type: object}
              onlyOn:
                type: array
                items:
                  type: string
                  enum: [push, pull_request, workflow_dispatch]
              timeout: {type: string}
              retry: {type: integer, minimum: 0}
              onFailure:
                type: string
                enum: [stop, continue]
`

// Validator validates workflow documents against the embedded schema
type Validator struct {
	workflow *jsonschema.Schema
}

// NewValidator compiles the embedded workflow schema
func NewValidator() (*Validator, error) {
	compiled, err := compile(workflowSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to compile workflow schema: %w", err)
	}
	return &Validator{workflow: compiled}, nil
}

// ValidateWorkflow validates a decoded workflow document
func (v *Validator) ValidateWorkflow(doc interface{}) error {
	return v.workflow.Validate(doc)
}

// compile parses a YAML schema and compiles it via the JSON schema compiler
func compile(src string) (*jsonschema.Schema, error) {
	var schemaObj interface{}
	if err := yaml.Unmarshal([]byte(src), &schemaObj); err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}

	jsonData, err := json.Marshal(schemaObj)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}

	schema, err := jsonschema.CompileString("workflow.schema.json", string(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	return schema, nil
}
