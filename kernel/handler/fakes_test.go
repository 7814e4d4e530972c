package handler

import (
	"context"
	"testing"
	"time"

	"github.com/chunga-ict/vpnctl/kernel/config"
	"github.com/chunga-ict/vpnctl/kernel/fault"
	"github.com/chunga-ict/vpnctl/kernel/model"
	"github.com/stretchr/testify/require"
)

const testInstanceId = "i-0abc"

func testConfig(t *testing.T) *config.Config {
	loc, err := time.LoadLocation("Australia/Sydney")
	require.NoError(t, err)
	cfg := config.Default()
	cfg.InstanceId = testInstanceId
	cfg.Start.NotificationTopicArn = "arn:aws:sns:ap-southeast-2:123456789012:vpn-start"
	return cfg.WithLocation(loc)
}

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

type fakeCompute struct {
	state       model.InstanceState
	missing     bool
	describeErr error
	health      model.HealthDescription
	startErr    error
	stopErr     error
	describes   int
	starts      int
	stops       int
}

func (f *fakeCompute) DescribeInstance(_ context.Context, instanceId string) (*model.InstanceDescription, error) {
	f.describes++
	if f.describeErr != nil {
		return nil, f.describeErr
	}
	if f.missing {
		return nil, fault.New(fault.NotFound, "instance metadata not found for %s", instanceId)
	}
	return &model.InstanceDescription{
		InstanceId:       instanceId,
		State:            f.state,
		PublicIp:         "203.0.113.10",
		PrivateIp:        "172.31.0.10",
		AvailabilityZone: "ap-southeast-2a",
	}, nil
}

func (f *fakeCompute) DescribeHealth(context.Context, string) (*model.HealthDescription, error) {
	h := f.health
	return &h, nil
}

func (f *fakeCompute) StartInstance(context.Context, string) error {
	f.starts++
	if f.startErr != nil {
		return f.startErr
	}
	f.state = model.StatePending
	return nil
}

func (f *fakeCompute) StopInstance(context.Context, string) error {
	f.stops++
	if f.stopErr != nil {
		return f.stopErr
	}
	f.state = model.StateStopping
	return nil
}

type publication struct {
	topic, subject, message string
}

type fakeNotifier struct {
	published []publication
	err       error
}

func (f *fakeNotifier) Publish(_ context.Context, topic, subject, message string) error {
	f.published = append(f.published, publication{topic, subject, message})
	return f.err
}

type fakeMetrics struct {
	series map[string][]model.MetricPoint
	err    error
	starts []time.Time
	ends   []time.Time
}

func (f *fakeMetrics) QueryMetric(_ context.Context, name, _ string, start, end time.Time, _ time.Duration) ([]model.MetricPoint, error) {
	f.starts = append(f.starts, start)
	f.ends = append(f.ends, end)
	if f.err != nil {
		return nil, f.err
	}
	return f.series[name], nil
}

type fakeRegistrar struct {
	result *model.RegistrationResult
	err    error
	keys   []string
}

func (f *fakeRegistrar) Register(_ context.Context, publicKey string) (*model.RegistrationResult, error) {
	f.keys = append(f.keys, publicKey)
	return f.result, f.err
}

func decode(t *testing.T, resp *Response) map[string]interface{} {
	body, err := resp.Decode()
	require.NoError(t, err)
	return body
}
