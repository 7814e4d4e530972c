package cloud

import (
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/service/ec2"
	"github.com/aws/aws-sdk-go/service/ec2/ec2iface"
	"github.com/chunga-ict/vpnctl/kernel/fault"
	"github.com/chunga-ict/vpnctl/kernel/model"
)

// Compute is the compute control plane as seen by the handlers.
type Compute interface {
	DescribeInstance(ctx context.Context, instanceId string) (*model.InstanceDescription, error)
	DescribeHealth(ctx context.Context, instanceId string) (*model.HealthDescription, error)
	StartInstance(ctx context.Context, instanceId string) error
	StopInstance(ctx context.Context, instanceId string) error
}

type EC2Compute struct {
	api ec2iface.EC2API
}

func NewEC2Compute(p client.ConfigProvider) *EC2Compute {
	return &EC2Compute{api: ec2.New(p)}
}

func NewEC2ComputeWithAPI(api ec2iface.EC2API) *EC2Compute {
	return &EC2Compute{api: api}
}

func (c *EC2Compute) DescribeInstance(ctx context.Context, instanceId string) (*model.InstanceDescription, error) {
	out, err := c.api.DescribeInstancesWithContext(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: aws.StringSlice([]string{instanceId}),
	})
	if err != nil {
		return nil, classify(err, "describe instance %s", instanceId)
	}
	for _, reservation := range out.Reservations {
		for _, instance := range reservation.Instances {
			if instance == nil {
				continue
			}
			desc := &model.InstanceDescription{
				InstanceId: aws.StringValue(instance.InstanceId),
				PublicIp:   aws.StringValue(instance.PublicIpAddress),
				PrivateIp:  aws.StringValue(instance.PrivateIpAddress),
			}
			if desc.InstanceId == "" {
				desc.InstanceId = instanceId
			}
			if instance.State != nil {
				desc.State = model.InstanceState(aws.StringValue(instance.State.Name))
			}
			if instance.Placement != nil {
				desc.AvailabilityZone = aws.StringValue(instance.Placement.AvailabilityZone)
			}
			return desc, nil
		}
	}
	return nil, fault.New(fault.NotFound, "instance metadata not found for %s", instanceId)
}

// DescribeHealth includes stopped instances, for which both checks are empty.
func (c *EC2Compute) DescribeHealth(ctx context.Context, instanceId string) (*model.HealthDescription, error) {
	out, err := c.api.DescribeInstanceStatusWithContext(ctx, &ec2.DescribeInstanceStatusInput{
		InstanceIds:         aws.StringSlice([]string{instanceId}),
		IncludeAllInstances: aws.Bool(true),
	})
	if err != nil {
		return nil, classify(err, "describe instance status %s", instanceId)
	}
	health := &model.HealthDescription{}
	if len(out.InstanceStatuses) == 0 || out.InstanceStatuses[0] == nil {
		return health, nil
	}
	status := out.InstanceStatuses[0]
	if status.SystemStatus != nil {
		health.SystemStatus = aws.StringValue(status.SystemStatus.Status)
	}
	if status.InstanceStatus != nil {
		health.InstanceStatus = aws.StringValue(status.InstanceStatus.Status)
	}
	return health, nil
}

func (c *EC2Compute) StartInstance(ctx context.Context, instanceId string) error {
	_, err := c.api.StartInstancesWithContext(ctx, &ec2.StartInstancesInput{
		InstanceIds: aws.StringSlice([]string{instanceId}),
	})
	return classify(err, "start instance %s", instanceId)
}

func (c *EC2Compute) StopInstance(ctx context.Context, instanceId string) error {
	_, err := c.api.StopInstancesWithContext(ctx, &ec2.StopInstancesInput{
		InstanceIds: aws.StringSlice([]string{instanceId}),
	})
	return classify(err, "stop instance %s", instanceId)
}
