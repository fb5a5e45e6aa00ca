// Package infra wraps the infrastructure-as-code tool. All state diffing
// and convergence is the tool's; this package only builds invocations and
// classifies exit codes.
package infra

import (
	"context"
	"fmt"
	"io"
	"os/exec"

	"github.com/go-kit/kit/log"
	"github.com/opsway/deploypipe/internal/model"
)

// Terraform invokes the terraform binary in a working directory
type Terraform struct {
	Binary string
	Dir    string
	Stdout io.Writer
	Stderr io.Writer

	logger log.Logger
	// run executes a command and returns its exit code; injectable for tests
	run func(ctx context.Context, dir string, stdout, stderr io.Writer, name string, args ...string) (int, error)
}

// New creates a terraform wrapper rooted at dir
func New(dir string, stdout, stderr io.Writer, logger log.Logger) *Terraform {
	return &Terraform{
		Binary: "terraform",
		Dir:    dir,
		Stdout: stdout,
		Stderr: stderr,
		logger: logger,
		run:    runCommand,
	}
}

// Init runs terraform init without interactive input
func (t *Terraform) Init(ctx context.Context) error {
	t.logger.Log("tool", "terraform", "op", "init", "dir", t.Dir)
	code, err := t.run(ctx, t.Dir, t.Stdout, t.Stderr, t.Binary, "init", "-input=false")
	if err != nil {
		return fmt.Errorf("terraform init failed to start: %w", err)
	}
	if code != 0 {
		return fmt.Errorf("terraform init exited with code %d", code)
	}
	return nil
}

// Plan runs terraform plan with -detailed-exitcode, writing the plan
// artifact to outFile, and classifies the result. With destroy set the plan
// targets full teardown.
//
// Exit code 1 (or any other unexpected code) yields PlanError together
// with a non-nil error; 0 and 2 are not errors.
func (t *Terraform) Plan(ctx context.Context, outFile string, destroy bool) (model.PlanOutcome, error) {
	args := []string{"plan", "-input=false", "-detailed-exitcode", "-out", outFile}
	if destroy {
		args = append(args, "-destroy")
	}

	code, err := t.run(ctx, t.Dir, t.Stdout, t.Stderr, t.Binary, args...)
	if err != nil {
		return model.PlanError, fmt.Errorf("terraform plan failed to start: %w", err)
	}

	outcome := model.ClassifyPlanExit(code)
	t.logger.Log("tool", "terraform", "op", "plan", "exit", code, "outcome", outcome.String())

	if outcome == model.PlanError {
		return outcome, fmt.Errorf("terraform plan exited with code %d", code)
	}
	return outcome, nil
}

// Apply converges real resources to a previously produced plan artifact
func (t *Terraform) Apply(ctx context.Context, planFile string) error {
	t.logger.Log("tool", "terraform", "op", "apply", "plan", planFile)
	code, err := t.run(ctx, t.Dir, t.Stdout, t.Stderr, t.Binary, "apply", "-input=false", "-auto-approve", planFile)
	if err != nil {
		return fmt.Errorf("terraform apply failed to start: %w", err)
	}
	if code != 0 {
		return fmt.Errorf("terraform apply exited with code %d", code)
	}
	return nil
}

// Destroy tears down all managed infrastructure
func (t *Terraform) Destroy(ctx context.Context) error {
	t.logger.Log("tool", "terraform", "op", "destroy", "dir", t.Dir)
	code, err := t.run(ctx, t.Dir, t.Stdout, t.Stderr, t.Binary, "destroy", "-input=false", "-auto-approve")
	if err != nil {
		return fmt.Errorf("terraform destroy failed to start: %w", err)
	}
	if code != 0 {
		return fmt.Errorf("terraform destroy exited with code %d", code)
	}
	return nil
}

// runCommand executes a command, mapping a non-zero exit to a code rather
// than an error so callers can classify it
func runCommand(ctx context.Context, dir string, stdout, stderr io.Writer, name string, args ...string) (int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}
