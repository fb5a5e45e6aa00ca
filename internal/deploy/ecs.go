// Package deploy rolls the service out on the container platform and
// registers the post-deploy rollback alarm.
package deploy

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ecs"
	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"
)

// ECSClient is the subset of the ECS API we use
type ECSClient interface {
	UpdateServiceWithContext(aws.Context, *ecs.UpdateServiceInput, ...request.Option) (*ecs.UpdateServiceOutput, error)
	DescribeServicesWithContext(aws.Context, *ecs.DescribeServicesInput, ...request.Option) (*ecs.DescribeServicesOutput, error)
}

// NewECSClient constructs a real ECS client for a region
func NewECSClient(region string) ECSClient {
	sess := session.Must(session.NewSession(&aws.Config{Region: aws.String(region)}))
	return ecs.New(sess)
}

// Rollout forces a new deployment of one service and waits for it to
// stabilise
type Rollout struct {
	Client       ECSClient
	Cluster      string
	Service      string
	PollInterval time.Duration

	logger log.Logger
}

// NewRollout creates a rollout helper for one cluster/service pair
func NewRollout(client ECSClient, cluster, service string, logger log.Logger) *Rollout {
	return &Rollout{
		Client:       client,
		Cluster:      cluster,
		Service:      service,
		PollInterval: 10 * time.Second,
		logger:       logger,
	}
}

// Force triggers a new deployment so running tasks are replaced with ones
// pulling the freshly pushed image tag
func (r *Rollout) Force(ctx context.Context) error {
	r.logger.Log("op", "force-rollout", "cluster", r.Cluster, "service", r.Service)

	_, err := r.Client.UpdateServiceWithContext(ctx, &ecs.UpdateServiceInput{
		Cluster:            aws.String(r.Cluster),
		Service:            aws.String(r.Service),
		ForceNewDeployment: aws.Bool(true),
	})
	if err != nil {
		return errors.Wrapf(err, "forcing new deployment of %s/%s", r.Cluster, r.Service)
	}
	return nil
}

// WaitStable polls the service until its primary deployment has completed
// its rollout and the running count matches the desired count. The caller
// bounds the wait with the context deadline.
func (r *Rollout) WaitStable(ctx context.Context) error {
	ticker := time.NewTicker(r.PollInterval)
	defer ticker.Stop()

	for {
		stable, err := r.checkStable(ctx)
		if err != nil {
			return err
		}
		if stable {
			r.logger.Log("op", "wait-stable", "cluster", r.Cluster, "service", r.Service, "stable", true)
			return nil
		}

		select {
		case <-ctx.Done():
			return errors.Wrapf(ctx.Err(), "waiting for %s/%s to stabilise", r.Cluster, r.Service)
		case <-ticker.C:
		}
	}
}

func (r *Rollout) checkStable(ctx context.Context) (bool, error) {
	out, err := r.Client.DescribeServicesWithContext(ctx, &ecs.DescribeServicesInput{
		Cluster:  aws.String(r.Cluster),
		Services: aws.StringSlice([]string{r.Service}),
	})
	if err != nil {
		return false, errors.Wrapf(err, "describing service %s/%s", r.Cluster, r.Service)
	}
	if len(out.Services) == 0 {
		return false, errors.Errorf("service %s not found in cluster %s", r.Service, r.Cluster)
	}

	svc := out.Services[0]
	running := aws.Int64Value(svc.RunningCount)
	desired := aws.Int64Value(svc.DesiredCount)

	for _, dep := range svc.Deployments {
		if aws.StringValue(dep.Status) != "PRIMARY" {
			continue
		}
		state := aws.StringValue(dep.RolloutState)
		r.logger.Log("op", "wait-stable", "rolloutState", state, "running", running, "desired", desired)

		if state == ecs.DeploymentRolloutStateFailed {
			return false, errors.Errorf("deployment of %s/%s failed: %s",
				r.Cluster, r.Service, aws.StringValue(dep.RolloutStateReason))
		}
		return state == ecs.DeploymentRolloutStateCompleted && running == desired, nil
	}

	return false, nil
}
