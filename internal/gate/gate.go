// Package gate implements the trigger/mode decision logic: given what
// started a run and which mode the user selected, it decides which
// pipeline roles execute.
package gate

import (
	"fmt"

	"github.com/opsway/deploypipe/internal/model"
)

// Decision is the resolved gate for one run.
//
// PlanOnly marks pull_request runs: the validate-plan job still executes,
// but only its plan and cost-estimation steps, never steps that produce an
// apply-eligible artifact.
//
// SkipOnNoChanges enables the runtime short-circuit: when the planning step
// reports no pending changes, build-image and deploy are skipped. Explicitly
// dispatched runs disable the short-circuit.
type Decision struct {
	ValidatePlan    bool
	BuildImage      bool
	Deploy          bool
	Destroy         bool
	PlanOnly        bool
	SkipOnNoChanges bool
}

// Decide resolves the gate for a run context.
//
//	trigger            deploy_type  validate-plan  build-image  deploy  destroy
//	push               n/a          yes            yes          yes     no
//	pull_request       n/a          yes (plan)     no           no      no
//	workflow_dispatch  deploy       yes            yes          yes     no
//	workflow_dispatch  destroy      yes            no           no      yes
func Decide(rc model.RunContext) (Decision, error) {
	switch rc.Trigger {
	case model.TriggerPush:
		if rc.DeployType != model.DeployTypeNone {
			return Decision{}, fmt.Errorf("deploy type %q is only valid for workflow_dispatch runs", rc.DeployType)
		}
		return Decision{
			ValidatePlan:    true,
			BuildImage:      true,
			Deploy:          true,
			SkipOnNoChanges: true,
		}, nil

	case model.TriggerPullRequest:
		if rc.DeployType != model.DeployTypeNone {
			return Decision{}, fmt.Errorf("deploy type %q is only valid for workflow_dispatch runs", rc.DeployType)
		}
		return Decision{
			ValidatePlan: true,
			PlanOnly:     true,
		}, nil

	case model.TriggerDispatch:
		switch rc.DeployType {
		case model.DeployTypeDeploy:
			return Decision{
				ValidatePlan: true,
				BuildImage:   true,
				Deploy:       true,
			}, nil
		case model.DeployTypeDestroy:
			return Decision{
				ValidatePlan: true,
				Destroy:      true,
			}, nil
		default:
			return Decision{}, fmt.Errorf("workflow_dispatch runs require a deploy type (deploy or destroy)")
		}

	default:
		return Decision{}, fmt.Errorf("unknown trigger: %q", rc.Trigger)
	}
}

// Allows reports whether a job with the given role executes under this decision
func (d Decision) Allows(role string) bool {
	switch role {
	case model.RoleValidatePlan:
		return d.ValidatePlan
	case model.RoleBuildImage:
		return d.BuildImage
	case model.RoleDeploy:
		return d.Deploy
	case model.RoleDestroy:
		return d.Destroy
	default:
		return false
	}
}

// Roles returns the allowed roles in pipeline order
func (d Decision) Roles() []string {
	var roles []string
	for _, role := range []string{model.RoleValidatePlan, model.RoleBuildImage, model.RoleDeploy, model.RoleDestroy} {
		if d.Allows(role) {
			roles = append(roles, role)
		}
	}
	return roles
}
