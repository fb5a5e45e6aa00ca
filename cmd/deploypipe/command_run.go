package main

import (
	"context"
	"fmt"
	"os"

	"github.com/opsway/deploypipe/internal/artifact"
	"github.com/opsway/deploypipe/internal/model"
	"github.com/opsway/deploypipe/internal/notify"
	"github.com/opsway/deploypipe/internal/render"
	"github.com/opsway/deploypipe/internal/runner"
	"github.com/spf13/cobra"
)

var (
	runPlanFile     string
	runExecute      bool
	runWorkDir      string
	runInfraDir     string
	runArtifactsDir string
	runFailOn       string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute a compiled plan",
	Long:  "Execute the jobs and steps from a compiled plan in dependency order. Dry-run unless --execute is set.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPlan()
	},
}

func registerRunCommand(root *cobra.Command) {
	root.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runPlanFile, "plan", "p", "plan.json", "Path to plan file (json or yaml)")
	runCmd.Flags().BoolVarP(&runExecute, "execute", "x", false, "Actually execute commands (default is dry-run)")
	runCmd.Flags().StringVar(&runWorkDir, "workdir", ".", "Base working directory for shell steps")
	runCmd.Flags().StringVar(&runInfraDir, "infra-dir", "infra", "Directory holding the infrastructure definitions")
	runCmd.Flags().StringVar(&runArtifactsDir, "artifacts-dir", ".deploypipe/artifacts", "Directory for inter-job artifacts")
	runCmd.Flags().StringVar(&runFailOn, "fail-on", "CRITICAL", "Severity at or above which image scan findings fail the job (empty to disable)")
}

func runPlan() error {
	plan, err := render.LoadPlan(runPlanFile)
	if err != nil {
		return err
	}

	dryRun := !runExecute
	if dryRun {
		fmt.Println("□ Dry-run mode enabled. Use --execute to run commands.")
	}

	store, err := artifact.NewStore(runArtifactsDir)
	if err != nil {
		return err
	}

	logger := newLogger()
	r := runner.New(runWorkDir, os.Stdout, os.Stderr, dryRun, logger)
	r.Artifacts = store
	registerActions(r, logger)

	ctx := context.Background()
	result, err := r.Run(ctx, plan)
	if err != nil {
		notifyFailure(ctx, plan, result)
		return err
	}

	if dryRun {
		fmt.Println("✓ Dry-run complete")
	} else {
		fmt.Println("✓ Run complete")
	}

	return nil
}

// notifyFailure posts a failure notification when the workflow carries a
// webhook; the per-job notify steps never ran at this point
func notifyFailure(ctx context.Context, plan *model.Plan, result *runner.Result) {
	if result == nil || len(plan.Jobs) == 0 {
		return
	}
	hookURL, _ := plan.Jobs[0].Env["webhookURL"].(string)
	notifier := notify.NewNotifier(hookURL, "deploypipe")
	if !notifier.Enabled() {
		return
	}

	statuses := make(map[string]string, len(result.Statuses))
	for id, status := range result.Statuses {
		statuses[id] = string(status)
	}

	msg, err := notify.BuildMessage(notify.RunReport{
		Environment: plan.Spec.Environment,
		Revision:    plan.Spec.Revision,
		Failed:      true,
		Statuses:    statuses,
	})
	if err != nil {
		return
	}
	if err := notifier.Send(ctx, msg); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failure notification not delivered: %v\n", err)
	}
}
