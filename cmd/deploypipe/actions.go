package main

import (
	"context"
	"fmt"

	"github.com/go-kit/kit/log"
	"github.com/opsway/deploypipe/internal/artifact"
	"github.com/opsway/deploypipe/internal/deploy"
	"github.com/opsway/deploypipe/internal/infra"
	"github.com/opsway/deploypipe/internal/notify"
	"github.com/opsway/deploypipe/internal/registry"
	"github.com/opsway/deploypipe/internal/runner"
	"github.com/opsway/deploypipe/internal/scan"
)

// registerActions binds every builtin step name a workflow may reference.
// Parameters resolve from the step's with block first, then the job's
// compiled environment, so workflows can override per step.
func registerActions(r *runner.Runner, logger log.Logger) {
	r.Register("terraform-init", func(ctx context.Context, req runner.ActionRequest) (runner.ActionResult, error) {
		tf := infra.New(runInfraDir, req.Stdout, req.Stderr, logger)
		return runner.ActionResult{}, tf.Init(ctx)
	})

	r.Register("terraform-plan", func(ctx context.Context, req runner.ActionRequest) (runner.ActionResult, error) {
		tf := infra.New(runInfraDir, req.Stdout, req.Stderr, logger)
		destroy := req.Param("deployType") == "destroy"
		outcome, err := tf.Plan(ctx, req.Artifacts.Path(artifact.PlanFile), destroy)
		return runner.ActionResult{
			PlanOutcome: outcome,
			Summary:     fmt.Sprintf("plan outcome: %s", outcome),
		}, err
	})

	r.Register("terraform-apply", func(ctx context.Context, req runner.ActionRequest) (runner.ActionResult, error) {
		if !req.Artifacts.Exists(artifact.PlanFile) {
			return runner.ActionResult{}, fmt.Errorf("no plan artifact at %s; run terraform-plan first", req.Artifacts.Path(artifact.PlanFile))
		}
		tf := infra.New(runInfraDir, req.Stdout, req.Stderr, logger)
		return runner.ActionResult{}, tf.Apply(ctx, req.Artifacts.Path(artifact.PlanFile))
	})

	r.Register("terraform-destroy", func(ctx context.Context, req runner.ActionRequest) (runner.ActionResult, error) {
		tf := infra.New(runInfraDir, req.Stdout, req.Stderr, logger)
		return runner.ActionResult{}, tf.Destroy(ctx)
	})

	r.Register("ecr-login", func(ctx context.Context, req runner.ActionRequest) (runner.ActionResult, error) {
		region := req.Param("region")
		if region == "" {
			return runner.ActionResult{}, fmt.Errorf("ecr-login needs a region")
		}

		creds, err := registry.Login(ctx, registry.NewECRClient(region), nil)
		if err != nil {
			return runner.ActionResult{}, err
		}

		docker := registry.NewDocker(req.Stdout, req.Stderr, logger)
		for _, c := range creds {
			if err := docker.LoginWith(ctx, c); err != nil {
				return runner.ActionResult{}, err
			}
		}
		return runner.ActionResult{Summary: fmt.Sprintf("authenticated against %d registry(s)", len(creds))}, nil
	})

	r.Register("docker-build-push", func(ctx context.Context, req runner.ActionRequest) (runner.ActionResult, error) {
		repository := req.Param("repository")
		revision := req.Param("revision")
		if repository == "" || revision == "" {
			return runner.ActionResult{}, fmt.Errorf("docker-build-push needs a repository and revision")
		}
		contextDir := req.Param("context")
		if contextDir == "" {
			contextDir = "."
		}

		docker := registry.NewDocker(req.Stdout, req.Stderr, logger)
		err := docker.BuildAndPush(ctx, contextDir, repository, revision)
		return runner.ActionResult{}, err
	})

	r.Register("image-scan", func(ctx context.Context, req runner.ActionRequest) (runner.ActionResult, error) {
		repository := req.Param("repository")
		revision := req.Param("revision")
		if repository == "" || revision == "" {
			return runner.ActionResult{}, fmt.Errorf("image-scan needs a repository and revision")
		}
		failOn := req.Param("failOn")
		if failOn == "" {
			failOn = runFailOn
		}

		scanner := scan.NewScanner(logger)
		report, err := scanner.ScanImage(ctx, fmt.Sprintf("%s:%s", repository, revision))
		if err != nil {
			return runner.ActionResult{}, err
		}

		summary := scan.Summarize(report)
		return runner.ActionResult{
			Summary: fmt.Sprintf("scan findings: %s", summary),
		}, scan.CheckThreshold(summary, failOn)
	})

	r.Register("ecs-rollout", func(ctx context.Context, req runner.ActionRequest) (runner.ActionResult, error) {
		region := req.Param("region")
		cluster := req.Param("cluster")
		service := req.Param("service")
		if region == "" || cluster == "" || service == "" {
			return runner.ActionResult{}, fmt.Errorf("ecs-rollout needs a region, cluster and service")
		}

		rollout := deploy.NewRollout(deploy.NewECSClient(region), cluster, service, logger)
		if err := rollout.Force(ctx); err != nil {
			return runner.ActionResult{}, err
		}
		if err := rollout.WaitStable(ctx); err != nil {
			return runner.ActionResult{}, err
		}
		return runner.ActionResult{Summary: fmt.Sprintf("service %s/%s rolled out and stable", cluster, service)}, nil
	})

	r.Register("rollback-alarm", func(ctx context.Context, req runner.ActionRequest) (runner.ActionResult, error) {
		region := req.Param("region")
		cluster := req.Param("cluster")
		service := req.Param("service")
		if region == "" || cluster == "" || service == "" {
			return runner.ActionResult{}, fmt.Errorf("rollback-alarm needs a region, cluster and service")
		}

		name := req.Param("alarmName")
		if name == "" {
			name = fmt.Sprintf("%s-%s-rollback", cluster, service)
		}

		cfg := deploy.AlarmConfig{
			Name:    name,
			Cluster: cluster,
			Service: service,
		}
		err := deploy.EnsureRollbackAlarm(ctx, deploy.NewCloudWatchClient(region), cfg, logger)
		return runner.ActionResult{}, err
	})

	r.Register("slack-notify", func(ctx context.Context, req runner.ActionRequest) (runner.ActionResult, error) {
		notifier := notify.NewNotifier(req.Param("webhookURL"), "deploypipe")
		if !notifier.Enabled() {
			return runner.ActionResult{Summary: "no webhook configured, notification skipped"}, nil
		}

		msg, err := notify.BuildMessage(notify.RunReport{
			Environment: req.Param("environment"),
			Repository:  req.Param("repository"),
			Revision:    req.Param("revision"),
			Destroy:     req.Param("deployType") == "destroy",
		})
		if err != nil {
			return runner.ActionResult{}, err
		}
		return runner.ActionResult{}, notifier.Send(ctx, msg)
	})
}
