package main

import (
	"os"

	"github.com/go-kit/kit/log"
	"github.com/spf13/cobra"
)

var (
	workflowFile string
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "deploypipe",
	Short: "Pipeline engine: Workflow → gated Plan DAG → execution",
	Long:  "deploypipe compiles a declarative deployment workflow into a trigger-gated execution DAG and runs it against the infrastructure, registry and container-service tooling.",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&workflowFile, "workflow", "w", "workflow.yaml", "Workflow file path")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable verbose logging")

	registerPlanCommand(rootCmd)
	registerRunCommand(rootCmd)
	registerValidateCommand(rootCmd)
	registerDebugCommand(rootCmd)
	registerJobsCommand(rootCmd)
}

// newLogger builds the structured logger shared by all commands
func newLogger() log.Logger {
	if !verbose {
		return log.NewNopLogger()
	}
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	return log.With(logger, "ts", log.DefaultTimestampUTC)
}
