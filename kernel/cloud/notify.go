package cloud

import (
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/service/sns"
	"github.com/aws/aws-sdk-go/service/sns/snsiface"
)

type Notifier interface {
	Publish(ctx context.Context, topic, subject, message string) error
}

type SNSNotifier struct {
	api snsiface.SNSAPI
}

func NewSNSNotifier(p client.ConfigProvider) *SNSNotifier {
	return &SNSNotifier{api: sns.New(p)}
}

func NewSNSNotifierWithAPI(api snsiface.SNSAPI) *SNSNotifier {
	return &SNSNotifier{api: api}
}

func (n *SNSNotifier) Publish(ctx context.Context, topic, subject, message string) error {
	_, err := n.api.PublishWithContext(ctx, &sns.PublishInput{
		TopicArn: aws.String(topic),
		Subject:  aws.String(subject),
		Message:  aws.String(message),
	})
	return classify(err, "publish to %s", topic)
}
