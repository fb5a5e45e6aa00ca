package main

import (
	"fmt"
	"strings"

	"github.com/opsway/deploypipe/internal/gate"
	"github.com/opsway/deploypipe/internal/loader"
	"github.com/opsway/deploypipe/internal/model"
	"github.com/opsway/deploypipe/internal/normalize"
	"github.com/spf13/cobra"
)

var (
	debugTrigger    string
	debugDeployType string
)

var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Show the gate decision for a trigger",
	Long:  "Resolve the trigger/mode gate for a hypothetical run and show which jobs of the workflow would execute.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return debugGate()
	},
}

func registerDebugCommand(root *cobra.Command) {
	root.AddCommand(debugCmd)

	debugCmd.Flags().StringVarP(&debugTrigger, "trigger", "t", "push", "Run trigger (push/pull_request/workflow_dispatch)")
	debugCmd.Flags().StringVar(&debugDeployType, "deploy-type", "", "Dispatch mode (deploy/destroy, workflow_dispatch only)")
}

func debugGate() error {
	trigger, err := model.ParseTrigger(debugTrigger)
	if err != nil {
		return err
	}
	deployType, err := model.ParseDeployType(debugDeployType)
	if err != nil {
		return err
	}

	rc := model.RunContext{Trigger: trigger, DeployType: deployType}
	decision, err := gate.Decide(rc)
	if err != nil {
		return err
	}

	fmt.Printf("Trigger: %s", trigger)
	if deployType != model.DeployTypeNone {
		fmt.Printf(" (%s)", deployType)
	}
	fmt.Println()
	fmt.Printf("Roles:   %s\n", strings.Join(decision.Roles(), ", "))
	if decision.PlanOnly {
		fmt.Println("Mode:    plan only, no apply-eligible artifacts")
	}
	if decision.SkipOnNoChanges {
		fmt.Println("Mode:    build and deploy short-circuit when the plan reports no changes")
	}

	workflow, err := loader.LoadWorkflow(workflowFile)
	if err != nil {
		return err
	}
	workflow, err = normalize.NormalizeWorkflow(workflow)
	if err != nil {
		return err
	}

	fmt.Println("\nJobs:")
	for _, job := range workflow.Jobs {
		mark := "✗"
		if decision.Allows(job.Role) {
			mark = "✓"
		}
		fmt.Printf("  %s %s (%s)\n", mark, job.Name, job.Role)
	}

	return nil
}
