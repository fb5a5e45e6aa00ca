package main

import (
	"fmt"

	"github.com/opsway/deploypipe/internal/expand"
	"github.com/opsway/deploypipe/internal/gate"
	"github.com/opsway/deploypipe/internal/git"
	"github.com/opsway/deploypipe/internal/loader"
	"github.com/opsway/deploypipe/internal/model"
	"github.com/opsway/deploypipe/internal/normalize"
	"github.com/opsway/deploypipe/internal/planner"
	"github.com/opsway/deploypipe/internal/render"
	"github.com/spf13/cobra"
)

var (
	planTrigger    string
	planDeployType string
	planEnv        string
	planRevision   string
	planBaseBranch string
	planOutput     string
	planView       string
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Compile the gated execution plan for a run",
	Long:  "Apply the trigger/mode gate to the workflow and compile the surviving jobs into an execution DAG.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return generatePlan()
	},
}

func registerPlanCommand(root *cobra.Command) {
	root.AddCommand(planCmd)

	planCmd.Flags().StringVarP(&planTrigger, "trigger", "t", "push", "Run trigger (push/pull_request/workflow_dispatch)")
	planCmd.Flags().StringVar(&planDeployType, "deploy-type", "", "Dispatch mode (deploy/destroy, workflow_dispatch only)")
	planCmd.Flags().StringVarP(&planEnv, "env", "e", "", "Target environment")
	planCmd.Flags().StringVar(&planRevision, "revision", "", "Commit revision to deploy (default: git HEAD)")
	planCmd.Flags().StringVar(&planBaseBranch, "base", "main", "Base branch for change detection on pull_request runs")
	planCmd.Flags().StringVarP(&planOutput, "output", "o", "plan.json", "Output plan file path (json or yaml)")
	planCmd.Flags().StringVarP(&planView, "view", "v", "", "View plan (dag/dependencies)")
}

func generatePlan() error {
	rc, err := buildRunContext()
	if err != nil {
		return err
	}

	fmt.Println("□ Loading workflow...")
	workflow, err := loader.LoadWorkflow(workflowFile)
	if err != nil {
		return fmt.Errorf("failed to load workflow: %w", err)
	}

	fmt.Println("□ Normalizing workflow...")
	workflow, err = normalize.NormalizeWorkflow(workflow)
	if err != nil {
		return fmt.Errorf("failed to normalize workflow: %w", err)
	}

	envName, err := normalize.ResolveEnvironmentName(workflow, planEnv)
	if err != nil {
		return err
	}
	rc.Environment = envName

	fmt.Printf("□ Resolving target environment %s...\n", envName)
	target, err := expand.ResolveTarget(workflow, envName)
	if err != nil {
		return fmt.Errorf("failed to resolve target: %w", err)
	}

	fmt.Println("□ Applying trigger/mode gate...")
	decision, err := gate.Decide(rc)
	if err != nil {
		return err
	}

	if rc.Trigger == model.TriggerPullRequest {
		reportChanges(rc.BaseBranch)
	}

	fmt.Println("□ Compiling plan...")
	plan, err := planner.New().Compile(workflow, target, rc, decision)
	if err != nil {
		return fmt.Errorf("failed to compile plan: %w", err)
	}

	if err := render.WritePlan(plan, planOutput); err != nil {
		return fmt.Errorf("failed to write plan: %w", err)
	}

	fmt.Printf("✓ Plan compiled with %d jobs (roles: %v)\n", len(plan.Jobs), decision.Roles())
	fmt.Printf("✓ Saved to: %s\n", planOutput)

	if planView != "" {
		viewer := render.NewViewer(plan)
		switch planView {
		case "dependencies":
			fmt.Println("\n" + viewer.ViewDependencies())
		default:
			fmt.Println("\n" + viewer.ViewDAG())
		}
	}

	return nil
}

// buildRunContext assembles the run context from flags, resolving the
// revision from git when not supplied
func buildRunContext() (model.RunContext, error) {
	trigger, err := model.ParseTrigger(planTrigger)
	if err != nil {
		return model.RunContext{}, err
	}
	deployType, err := model.ParseDeployType(planDeployType)
	if err != nil {
		return model.RunContext{}, err
	}

	revision := planRevision
	if revision == "" {
		revision, err = git.ShortRevision()
		if err != nil {
			return model.RunContext{}, fmt.Errorf("no --revision given and %w", err)
		}
	}

	return model.RunContext{
		Trigger:    trigger,
		DeployType: deployType,
		Revision:   revision,
		BaseBranch: planBaseBranch,
	}, nil
}

// reportChanges summarises what the pull request touches, so reviewers see
// at a glance whether infrastructure is affected
func reportChanges(baseBranch string) {
	detector := git.NewChangeDetector(baseBranch)
	files, err := detector.ChangedFiles()
	if err != nil || len(files) == 0 {
		return
	}

	fmt.Printf("□ %d file(s) changed against %s", len(files), baseBranch)
	if infraChanged, _ := detector.IsPathChanged("infra"); infraChanged {
		fmt.Print(" (infrastructure affected)")
	}
	fmt.Println()
}
