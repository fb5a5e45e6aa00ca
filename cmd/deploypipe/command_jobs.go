package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/opsway/deploypipe/internal/loader"
	"github.com/opsway/deploypipe/internal/model"
	"github.com/opsway/deploypipe/internal/normalize"
	"github.com/spf13/cobra"
)

var longFormat bool

var jobsCmd = &cobra.Command{
	Use:   "jobs [job]",
	Short: "List the workflow's jobs",
	Long:  "List the jobs defined in the workflow. Use 'deploypipe jobs' to list all, or 'deploypipe jobs <name>' for details.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listJobs(args)
	},
}

func registerJobsCommand(root *cobra.Command) {
	root.AddCommand(jobsCmd)

	jobsCmd.Flags().BoolVarP(&longFormat, "long", "l", false, "Show detailed information")
}

func listJobs(args []string) error {
	workflow, err := loader.LoadWorkflow(workflowFile)
	if err != nil {
		return err
	}
	workflow, err = normalize.NormalizeWorkflow(workflow)
	if err != nil {
		return err
	}

	if len(args) > 0 {
		for _, job := range workflow.Jobs {
			if job.Name == args[0] {
				printJobLong(job)
				return nil
			}
		}
		return fmt.Errorf("job %q not found in workflow %s", args[0], workflow.Metadata.Name)
	}

	if !longFormat {
		for _, job := range workflow.Jobs {
			printJobShort(job)
		}
		printEnvironments(workflow)
		return nil
	}

	for _, job := range workflow.Jobs {
		printJobLong(job)
	}
	printEnvironments(workflow)
	return nil
}

func printJobShort(job model.JobSpec) {
	desc := job.Description
	if desc == "" {
		desc = job.Role
	}
	fmt.Printf("%-20s  %s\n", job.Name, desc)
}

func printJobLong(job model.JobSpec) {
	fmt.Printf("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	fmt.Printf("Job: %s\n", job.Name)
	fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

	if job.Description != "" {
		fmt.Printf("Description:\n  %s\n\n", job.Description)
	}

	fmt.Printf("Role:    %s\n", job.Role)
	if job.Timeout != "" {
		fmt.Printf("Timeout: %s\n", job.Timeout)
	}
	if job.Retries > 0 {
		fmt.Printf("Retries: %d\n", job.Retries)
	}
	if len(job.Needs) > 0 {
		fmt.Printf("Needs:   %s\n", strings.Join(job.Needs, ", "))
	}
	fmt.Printf("\n")

	fmt.Printf("Steps:\n")
	for i, step := range job.Steps {
		fmt.Printf("  %d. %s\n", i+1, step.Name)
		if step.Uses != "" {
			fmt.Printf("     Uses: %s\n", step.Uses)
		}
		if step.Run != "" {
			fmt.Printf("     Run:  %s\n", step.Run)
		}
		if len(step.OnlyOn) > 0 {
			fmt.Printf("     Only on: %s\n", strings.Join(step.OnlyOn, ", "))
		}
		if step.Timeout != "" {
			fmt.Printf("     Timeout: %s\n", step.Timeout)
		}
	}
}

func printEnvironments(workflow *model.Workflow) {
	if len(workflow.Environments) == 0 {
		return
	}

	names := make([]string, 0, len(workflow.Environments))
	for name := range workflow.Environments {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Printf("\nEnvironments: %s\n", strings.Join(names, ", "))
}
