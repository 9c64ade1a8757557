// Package cloudwatch implements facade.CloudWatchLogs against
// github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs, the modern SDK
// resolver named in SPEC_FULL.md §6. Client construction mirrors the
// lazy-config pattern used by the cloudwatch-agent's cloudwatchlogs
// output plugin (createClient / cloudwatchlogs.NewFromConfig).
package cloudwatch

import (
	"context"
	"errors"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"

	"github.com/ehsaniara/shiplog/facade"
	"github.com/ehsaniara/shiplog/internal/classify"
	"github.com/ehsaniara/shiplog/logmsg"
)

// eventOverheadBytes is CloudWatch's documented per-event byte overhead,
// added to every event's UTF-8 length before it counts against the
// service's per-request and per-event byte caps.
const eventOverheadBytes = 26

// ClientConfig carries the remote-client configuration common to every
// facade: region, endpoint and assumed role (from the clientRegion,
// clientEndpoint and assumedRole keys). It has no proxy setting, and New
// applies only Region and Endpoint; AssumedRole is not used.
type ClientConfig struct {
	Region      string
	Endpoint    string
	AssumedRole string
}

// api is the subset of *cloudwatchlogs.Client this facade calls,
// narrowed to an interface so tests can substitute a fake instead of
// hitting real AWS endpoints.
type api interface {
	DescribeLogGroups(ctx context.Context, in *cloudwatchlogs.DescribeLogGroupsInput, opts ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DescribeLogGroupsOutput, error)
	CreateLogGroup(ctx context.Context, in *cloudwatchlogs.CreateLogGroupInput, opts ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error)
	PutRetentionPolicy(ctx context.Context, in *cloudwatchlogs.PutRetentionPolicyInput, opts ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutRetentionPolicyOutput, error)
	DescribeLogStreams(ctx context.Context, in *cloudwatchlogs.DescribeLogStreamsInput, opts ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DescribeLogStreamsOutput, error)
	CreateLogStream(ctx context.Context, in *cloudwatchlogs.CreateLogStreamInput, opts ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogStreamOutput, error)
	PutLogEvents(ctx context.Context, in *cloudwatchlogs.PutLogEventsInput, opts ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error)
}

// Facade wraps a cloudwatchlogs client behind facade.CloudWatchLogs.
type Facade struct {
	client api
}

// New builds a Facade from cfg, resolving credentials and region the
// same way aws-sdk-go-v2's config.LoadDefaultConfig does everywhere
// else in this module.
func New(ctx context.Context, cfg ClientConfig) (*Facade, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, facade.New(facade.ReasonInvalidConfiguration, "LoadDefaultConfig", "cloudwatch", err)
	}

	client := cloudwatchlogs.NewFromConfig(awsCfg, func(o *cloudwatchlogs.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &Facade{client: client}, nil
}

// NewFromClient wraps an already-constructed client, chiefly for tests.
func NewFromClient(client *cloudwatchlogs.Client) *Facade {
	return &Facade{client: client}
}

// NewFromAPI wraps an arbitrary api implementation, used by tests to
// inject a fake client without a real cloudwatchlogs.Client.
func NewFromAPI(client api) *Facade {
	return &Facade{client: client}
}

func wrapErr(op string, err error) error {
	reason, retryable := classify.AWSReason(err)
	return &facade.Error{Reason: reason, Retryable: retryable, Cause: err, Operation: op, Destination: "cloudwatch"}
}

func (f *Facade) FindLogGroup(ctx context.Context, logGroup string) (string, error) {
	out, err := f.client.DescribeLogGroups(ctx, &cloudwatchlogs.DescribeLogGroupsInput{
		LogGroupNamePrefix: aws.String(logGroup),
	})
	if err != nil {
		return "", wrapErr("FindLogGroup", err)
	}
	for _, g := range out.LogGroups {
		if aws.ToString(g.LogGroupName) == logGroup {
			return aws.ToString(g.Arn), nil
		}
	}
	return "", nil
}

func (f *Facade) CreateLogGroup(ctx context.Context, logGroup string) error {
	_, err := f.client.CreateLogGroup(ctx, &cloudwatchlogs.CreateLogGroupInput{
		LogGroupName: aws.String(logGroup),
	})
	if err != nil && !isResourceAlreadyExists(err) {
		return wrapErr("CreateLogGroup", err)
	}
	return nil
}

func (f *Facade) SetLogGroupRetention(ctx context.Context, logGroup string, days int) error {
	_, err := f.client.PutRetentionPolicy(ctx, &cloudwatchlogs.PutRetentionPolicyInput{
		LogGroupName:    aws.String(logGroup),
		RetentionInDays: aws.Int32(int32(days)),
	})
	if err != nil {
		return wrapErr("SetLogGroupRetention", err)
	}
	return nil
}

func (f *Facade) FindLogStream(ctx context.Context, logGroup, logStream string) (string, error) {
	out, err := f.client.DescribeLogStreams(ctx, &cloudwatchlogs.DescribeLogStreamsInput{
		LogGroupName:        aws.String(logGroup),
		LogStreamNamePrefix: aws.String(logStream),
	})
	if err != nil {
		return "", wrapErr("FindLogStream", err)
	}
	for _, s := range out.LogStreams {
		if aws.ToString(s.LogStreamName) == logStream {
			return aws.ToString(s.Arn), nil
		}
	}
	return "", nil
}

func (f *Facade) CreateLogStream(ctx context.Context, logGroup, logStream string) error {
	_, err := f.client.CreateLogStream(ctx, &cloudwatchlogs.CreateLogStreamInput{
		LogGroupName:  aws.String(logGroup),
		LogStreamName: aws.String(logStream),
	})
	if err != nil && !isResourceAlreadyExists(err) {
		return wrapErr("CreateLogStream", err)
	}
	return nil
}

// PutEvents sorts batch by timestamp (stable) and sends it in one
// PutLogEvents call, per spec.md §4.6. The modern SDK no longer accepts
// a sequence token; see writer/cloudwatch for the documented no-op.
func (f *Facade) PutEvents(ctx context.Context, logGroup, logStream string, batch []logmsg.Message) error {
	sorted := make([]logmsg.Message, len(batch))
	copy(sorted, batch)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Less(sorted[j]) })

	events := make([]types.InputLogEvent, len(sorted))
	for i, m := range sorted {
		events[i] = types.InputLogEvent{
			Timestamp: aws.Int64(m.Timestamp().UnixMilli()),
			Message:   aws.String(m.Text()),
		}
	}

	_, err := f.client.PutLogEvents(ctx, &cloudwatchlogs.PutLogEventsInput{
		LogGroupName:  aws.String(logGroup),
		LogStreamName: aws.String(logStream),
		LogEvents:     events,
	})
	if err != nil {
		return classifyPutEventsErr(err)
	}
	return nil
}

// classifyPutEventsErr maps the PutLogEvents errors the writer treats
// specially (missing resource, stale sequence token, already accepted)
// using the concrete SDK error types. A missing log group and a missing
// log stream both raise ResourceNotFoundException and are not told apart:
// both are reported as MISSING_LOG_STREAM, which makes the writer re-run
// initialization (checking the group first, then the stream).
func classifyPutEventsErr(err error) error {
	var notFound *types.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return &facade.Error{Reason: facade.ReasonMissingLogStream, Retryable: true, Cause: err,
			Operation: "PutEvents", Destination: "cloudwatch"}
	}
	var invalidSeq *types.InvalidSequenceTokenException
	if errors.As(err, &invalidSeq) {
		return &facade.Error{Reason: facade.ReasonInvalidSequenceToken, Retryable: true, Cause: err,
			Operation: "PutEvents", Destination: "cloudwatch"}
	}
	var alreadyAccepted *types.DataAlreadyAcceptedException
	if errors.As(err, &alreadyAccepted) {
		return &facade.Error{Reason: facade.ReasonAlreadyProcessed, Retryable: false, Cause: err,
			Operation: "PutEvents", Destination: "cloudwatch"}
	}
	return wrapErr("PutEvents", err)
}

func isResourceAlreadyExists(err error) bool {
	var exists *types.ResourceAlreadyExistsException
	return errors.As(err, &exists)
}

func (f *Facade) Shutdown(ctx context.Context) error { return nil }
