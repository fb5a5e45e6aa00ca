package deploy

import (
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/cloudwatch"
	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"
)

// CloudWatchClient is the subset of the CloudWatch API we use
type CloudWatchClient interface {
	PutMetricAlarmWithContext(aws.Context, *cloudwatch.PutMetricAlarmInput, ...request.Option) (*cloudwatch.PutMetricAlarmOutput, error)
}

// NewCloudWatchClient constructs a real CloudWatch client for a region
func NewCloudWatchClient(region string) CloudWatchClient {
	sess := session.Must(session.NewSession(&aws.Config{Region: aws.String(region)}))
	return cloudwatch.New(sess)
}

// AlarmConfig describes the rollback alarm registered after a deploy
type AlarmConfig struct {
	Name              string
	Cluster           string
	Service           string
	Namespace         string  // defaults to AWS/ECS
	MetricName        string  // defaults to CPUUtilization
	Threshold         float64 // defaults to 90
	EvaluationPeriods int64   // defaults to 3
	PeriodSeconds     int64   // defaults to 60
	AlarmActions      []string
}

func (c *AlarmConfig) applyDefaults() {
	if c.Namespace == "" {
		c.Namespace = "AWS/ECS"
	}
	if c.MetricName == "" {
		c.MetricName = "CPUUtilization"
	}
	if c.Threshold == 0 {
		c.Threshold = 90
	}
	if c.EvaluationPeriods == 0 {
		c.EvaluationPeriods = 3
	}
	if c.PeriodSeconds == 0 {
		c.PeriodSeconds = 60
	}
}

// EnsureRollbackAlarm creates or updates the alarm watching the freshly
// deployed service. PutMetricAlarm is idempotent, so repeat deploys just
// refresh the same alarm.
func EnsureRollbackAlarm(ctx context.Context, client CloudWatchClient, cfg AlarmConfig, logger log.Logger) error {
	if cfg.Name == "" || cfg.Cluster == "" || cfg.Service == "" {
		return errors.New("rollback alarm needs a name, cluster and service")
	}
	cfg.applyDefaults()

	logger.Log("op", "rollback-alarm", "alarm", cfg.Name, "metric", cfg.MetricName, "threshold", cfg.Threshold)

	_, err := client.PutMetricAlarmWithContext(ctx, &cloudwatch.PutMetricAlarmInput{
		AlarmName:          aws.String(cfg.Name),
		AlarmDescription:   aws.String("Rollback signal for " + cfg.Cluster + "/" + cfg.Service),
		Namespace:          aws.String(cfg.Namespace),
		MetricName:         aws.String(cfg.MetricName),
		Statistic:          aws.String(cloudwatch.StatisticAverage),
		ComparisonOperator: aws.String(cloudwatch.ComparisonOperatorGreaterThanThreshold),
		Threshold:          aws.Float64(cfg.Threshold),
		EvaluationPeriods:  aws.Int64(cfg.EvaluationPeriods),
		Period:             aws.Int64(cfg.PeriodSeconds),
		TreatMissingData:   aws.String("notBreaching"),
		AlarmActions:       aws.StringSlice(cfg.AlarmActions),
		Dimensions: []*cloudwatch.Dimension{
			{Name: aws.String("ClusterName"), Value: aws.String(cfg.Cluster)},
			{Name: aws.String("ServiceName"), Value: aws.String(cfg.Service)},
		},
	})
	if err != nil {
		return errors.Wrapf(err, "registering rollback alarm %s", cfg.Name)
	}
	return nil
}
