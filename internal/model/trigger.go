package model

import "fmt"

// Trigger identifies what started a pipeline run
type Trigger string

const (
	TriggerPush        Trigger = "push"
	TriggerPullRequest Trigger = "pull_request"
	TriggerDispatch    Trigger = "workflow_dispatch"
)

// ParseTrigger validates a trigger name
func ParseTrigger(s string) (Trigger, error) {
	switch Trigger(s) {
	case TriggerPush, TriggerPullRequest, TriggerDispatch:
		return Trigger(s), nil
	default:
		return "", fmt.Errorf("unknown trigger: %q (want push, pull_request or workflow_dispatch)", s)
	}
}

// DeployType is the user-selected mode of a manually dispatched run
type DeployType string

const (
	DeployTypeNone    DeployType = ""
	DeployTypeDeploy  DeployType = "deploy"
	DeployTypeDestroy DeployType = "destroy"
)

// ParseDeployType validates a deploy type. The empty string is valid and
// means no mode was selected (non-dispatch triggers).
func ParseDeployType(s string) (DeployType, error) {
	switch DeployType(s) {
	case DeployTypeNone, DeployTypeDeploy, DeployTypeDestroy:
		return DeployType(s), nil
	default:
		return "", fmt.Errorf("unknown deploy type: %q (want deploy or destroy)", s)
	}
}

// RunContext carries the trigger and inputs of a single pipeline run
type RunContext struct {
	Trigger     Trigger
	DeployType  DeployType
	Environment string
	Revision    string // commit identifier, doubles as the image tag
	BaseBranch  string
}

// PlanOutcome classifies the result of the infrastructure planning step
type PlanOutcome int

const (
	PlanOutcomeUnknown PlanOutcome = iota
	PlanNoChanges
	PlanChangesPending
	PlanError
)

func (o PlanOutcome) String() string {
	switch o {
	case PlanNoChanges:
		return "no-changes"
	case PlanChangesPending:
		return "changes-pending"
	case PlanError:
		return "error"
	default:
		return "unknown"
	}
}

// ClassifyPlanExit maps the planning tool's detailed exit code to an
// outcome: 0 means no changes, 2 means changes pending, anything else is
// an error. The convention is the tool's, not ours.
func ClassifyPlanExit(code int) PlanOutcome {
	switch code {
	case 0:
		return PlanNoChanges
	case 2:
		return PlanChangesPending
	default:
		return PlanError
	}
}
