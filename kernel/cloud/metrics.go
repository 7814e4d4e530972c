package cloud

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/service/cloudwatch"
	"github.com/aws/aws-sdk-go/service/cloudwatch/cloudwatchiface"
	"github.com/chunga-ict/vpnctl/kernel/model"
)

const (
	MetricNetworkIn  = "NetworkIn"
	MetricNetworkOut = "NetworkOut"

	ec2Namespace = "AWS/EC2"
)

type Metrics interface {
	QueryMetric(ctx context.Context, name, instanceId string, start, end time.Time, period time.Duration) ([]model.MetricPoint, error)
}

type CloudWatchMetrics struct {
	api cloudwatchiface.CloudWatchAPI
}

func NewCloudWatchMetrics(p client.ConfigProvider) *CloudWatchMetrics {
	return &CloudWatchMetrics{api: cloudwatch.New(p)}
}

func NewCloudWatchMetricsWithAPI(api cloudwatchiface.CloudWatchAPI) *CloudWatchMetrics {
	return &CloudWatchMetrics{api: api}
}

// QueryMetric returns the byte Sum per period bucket. Order is whatever the service
// returns; callers sort.
func (m *CloudWatchMetrics) QueryMetric(ctx context.Context, name, instanceId string, start, end time.Time, period time.Duration) ([]model.MetricPoint, error) {
	out, err := m.api.GetMetricStatisticsWithContext(ctx, &cloudwatch.GetMetricStatisticsInput{
		Namespace:  aws.String(ec2Namespace),
		MetricName: aws.String(name),
		Dimensions: []*cloudwatch.Dimension{
			{Name: aws.String("InstanceId"), Value: aws.String(instanceId)},
		},
		StartTime:  aws.Time(start),
		EndTime:    aws.Time(end),
		Period:     aws.Int64(int64(period / time.Second)),
		Statistics: aws.StringSlice([]string{cloudwatch.StatisticSum}),
		Unit:       aws.String(cloudwatch.StandardUnitBytes),
	})
	if err != nil {
		return nil, classify(err, "get metric statistics %s for %s", name, instanceId)
	}

	points := make([]model.MetricPoint, 0, len(out.Datapoints))
	for _, dp := range out.Datapoints {
		if dp == nil || dp.Timestamp == nil {
			continue
		}
		points = append(points, model.MetricPoint{
			Timestamp: aws.TimeValue(dp.Timestamp),
			BytesSum:  aws.Float64Value(dp.Sum),
		})
	}
	return points, nil
}
