package registry

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/go-kit/kit/log"
)

// Docker drives the docker CLI for login, build and push
type Docker struct {
	Binary string
	Stdout io.Writer
	Stderr io.Writer

	logger log.Logger
	// run executes a command with optional stdin; injectable for tests
	run func(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, name string, args ...string) error
}

// NewDocker creates a docker CLI wrapper
func NewDocker(stdout, stderr io.Writer, logger log.Logger) *Docker {
	return &Docker{
		Binary: "docker",
		Stdout: stdout,
		Stderr: stderr,
		logger: logger,
		run:    runDockerCommand,
	}
}

// LoginWith authenticates docker against a registry host, passing the
// password over stdin so it never appears in the process table
func (d *Docker) LoginWith(ctx context.Context, creds Credentials) error {
	d.logger.Log("tool", "docker", "op", "login", "registry", creds.Registry)
	err := d.run(ctx, strings.NewReader(creds.Password), d.Stdout, d.Stderr,
		d.Binary, "login", "--username", creds.Username, "--password-stdin", creds.Registry)
	if err != nil {
		return fmt.Errorf("docker login to %s failed: %w", creds.Registry, err)
	}
	return nil
}

// BuildAndPush builds the image from contextDir and pushes it tagged with
// the commit revision
func (d *Docker) BuildAndPush(ctx context.Context, contextDir, image, tag string) error {
	ref := fmt.Sprintf("%s:%s", image, tag)

	d.logger.Log("tool", "docker", "op", "build", "image", ref)
	if err := d.run(ctx, nil, d.Stdout, d.Stderr, d.Binary, "build", "-t", ref, contextDir); err != nil {
		return fmt.Errorf("docker build of %s failed: %w", ref, err)
	}

	d.logger.Log("tool", "docker", "op", "push", "image", ref)
	if err := d.run(ctx, nil, d.Stdout, d.Stderr, d.Binary, "push", ref); err != nil {
		return fmt.Errorf("docker push of %s failed: %w", ref, err)
	}
	return nil
}

func runDockerCommand(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}
