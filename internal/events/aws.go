package events

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snsTypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"shipping-gateway/internal/common/errors"
	"shipping-gateway/internal/common/logging"
)

// AWSConfig configures the AWS publisher. TopicARN selects SNS; QueueURL
// selects SQS. Exactly one must be set. Static credentials are optional;
// the default chain is used when they are empty.
type AWSConfig struct {
	Region          string
	TopicARN        string
	QueueURL        string
	AccessKeyID     string
	SecretAccessKey string
}

// AWSPublisher publishes events to an SNS topic or an SQS queue.
type AWSPublisher struct {
	config    AWSConfig
	snsClient *sns.Client
	sqsClient *sqs.Client
	logger    logging.Logger
}

// NewAWSPublisher builds the AWS clients for the configured destination.
func NewAWSPublisher(ctx context.Context, config AWSConfig, logger logging.Logger) (*AWSPublisher, error) {
	if config.TopicARN == "" && config.QueueURL == "" {
		return nil, errors.ConfigError("aws publisher needs a topic arn or queue url")
	}
	if config.TopicARN != "" && config.QueueURL != "" {
		return nil, errors.ConfigError("aws publisher takes a topic arn or a queue url, not both")
	}

	opts := []func(*awsConfig.LoadOptions) error{awsConfig.WithRegion(config.Region)}
	if config.AccessKeyID != "" {
		opts = append(opts, awsConfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(config.AccessKeyID, config.SecretAccessKey, "")))
	}
	cfg, err := awsConfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.ConnectionError("failed to load aws configuration", err)
	}

	p := &AWSPublisher{config: config, logger: logger}
	if config.TopicARN != "" {
		p.snsClient = sns.NewFromConfig(cfg)
	} else {
		p.sqsClient = sqs.NewFromConfig(cfg)
	}
	return p, nil
}

// Publish sends the event to the configured SNS topic or SQS queue.
func (p *AWSPublisher) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return errors.InternalError("failed to marshal event", err)
	}
	payload := string(body)

	if p.snsClient != nil {
		_, err = p.snsClient.Publish(ctx, &sns.PublishInput{
			TopicArn: aws.String(p.config.TopicARN),
			Message:  aws.String(payload),
			MessageAttributes: map[string]snsTypes.MessageAttributeValue{
				"event_type": {DataType: aws.String("String"), StringValue: aws.String(event.Type)},
			},
		})
		return err
	}

	_, err = p.sqsClient.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.config.QueueURL),
		MessageBody: aws.String(payload),
	})
	return err
}

// Close is a no-op; the AWS clients hold no persistent connection.
func (p *AWSPublisher) Close() error { return nil }
