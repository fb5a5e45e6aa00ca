package main

import (
	"fmt"

	"github.com/opsway/deploypipe/internal/loader"
	"github.com/opsway/deploypipe/internal/normalize"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the workflow file",
	Long:  "Check the workflow against the schema and the structural rules without compiling a plan.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return validateWorkflow()
	},
}

func registerValidateCommand(root *cobra.Command) {
	root.AddCommand(validateCmd)
}

func validateWorkflow() error {
	fmt.Printf("□ Validating %s...\n", workflowFile)

	workflow, err := loader.LoadWorkflow(workflowFile)
	if err != nil {
		return err
	}

	workflow, err = normalize.NormalizeWorkflow(workflow)
	if err != nil {
		return err
	}

	fmt.Printf("✓ Workflow %s is valid (%d jobs, %d environments)\n",
		workflow.Metadata.Name, len(workflow.Jobs), len(workflow.Environments))
	return nil
}
