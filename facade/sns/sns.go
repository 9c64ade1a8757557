// Package sns implements facade.SNS against
// github.com/aws/aws-sdk-go-v2/service/sns.
package sns

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/ehsaniara/shiplog/facade"
	"github.com/ehsaniara/shiplog/internal/classify"
)

// ClientConfig mirrors facade/cloudwatch.ClientConfig.
type ClientConfig struct {
	Region      string
	Endpoint    string
	AssumedRole string
}

type api interface {
	ListTopics(ctx context.Context, in *sns.ListTopicsInput, opts ...func(*sns.Options)) (*sns.ListTopicsOutput, error)
	CreateTopic(ctx context.Context, in *sns.CreateTopicInput, opts ...func(*sns.Options)) (*sns.CreateTopicOutput, error)
	Publish(ctx context.Context, in *sns.PublishInput, opts ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Facade wraps an sns client behind facade.SNS.
type Facade struct {
	client api
}

func New(ctx context.Context, cfg ClientConfig) (*Facade, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, facade.New(facade.ReasonInvalidConfiguration, "LoadDefaultConfig", "sns", err)
	}
	client := sns.NewFromConfig(awsCfg, func(o *sns.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &Facade{client: client}, nil
}

// NewFromAPI wraps an arbitrary api implementation, used by tests.
func NewFromAPI(client api) *Facade { return &Facade{client: client} }

func wrapErr(op string, err error) error {
	reason, retryable := classify.AWSReason(err)
	return &facade.Error{Reason: reason, Retryable: retryable, Cause: err, Operation: op, Destination: "sns"}
}

// LookupTopic resolves arnOrName to its ARN. If arnOrName already looks
// like an ARN (starts with "arn:"), it is verified against the
// enumeration; otherwise topics are searched by their trailing name
// segment, per spec.md §4.8.
func (f *Facade) LookupTopic(ctx context.Context, arnOrName string) (string, error) {
	isARN := strings.HasPrefix(arnOrName, "arn:")

	var nextToken *string
	for {
		out, err := f.client.ListTopics(ctx, &sns.ListTopicsInput{NextToken: nextToken})
		if err != nil {
			return "", wrapErr("LookupTopic", err)
		}
		for _, t := range out.Topics {
			arn := aws.ToString(t.TopicArn)
			if isARN {
				if arn == arnOrName {
					return arn, nil
				}
				continue
			}
			if topicNameFromARN(arn) == arnOrName {
				return arn, nil
			}
		}
		if out.NextToken == nil {
			return "", nil
		}
		nextToken = out.NextToken
	}
}

func topicNameFromARN(arn string) string {
	idx := strings.LastIndex(arn, ":")
	if idx < 0 {
		return arn
	}
	return arn[idx+1:]
}

func (f *Facade) CreateTopic(ctx context.Context, name string) (string, error) {
	out, err := f.client.CreateTopic(ctx, &sns.CreateTopicInput{Name: aws.String(name)})
	if err != nil {
		return "", wrapErr("CreateTopic", err)
	}
	return aws.ToString(out.TopicArn), nil
}

// Publish sends a single message; SNS has no batch publish API, so
// writer/sns calls this once per message in the batch (spec.md §4.8).
func (f *Facade) Publish(ctx context.Context, topicARN, subject, message string) error {
	input := &sns.PublishInput{
		TopicArn: aws.String(topicARN),
		Message:  aws.String(message),
	}
	if subject != "" {
		input.Subject = aws.String(subject)
	}
	_, err := f.client.Publish(ctx, input)
	if err != nil {
		return wrapErr("Publish", err)
	}
	return nil
}

func (f *Facade) Shutdown(ctx context.Context) error { return nil }
