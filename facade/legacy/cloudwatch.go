//go:build legacy

// Package legacy provides aws-sdk-go (v1) session-based facade
// implementations, selected at build time by the "legacy" tag. This is
// the portable stand-in for spec.md §9's dynamic-SDK-package-lookup
// note: rather than resolving an SDK generation at runtime, the build
// picks one at compile time. Grounded on 380c40d3_kylemcc-cwlog's
// cloudwatchlogsiface-based writer (sequence-token handling,
// PutLogEvents error classification) and
// 992d4765_graveyard-kinesis-to-firehose's session/client wiring.
package legacy

import (
	"context"
	"errors"
	"sort"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go/service/cloudwatchlogs/cloudwatchlogsiface"

	"github.com/ehsaniara/shiplog/facade"
	"github.com/ehsaniara/shiplog/internal/classify"
	"github.com/ehsaniara/shiplog/logmsg"
)

// ClientConfig mirrors facade/cloudwatch's ClientConfig so callers can
// switch SDK generations by build tag alone.
type ClientConfig struct {
	Region      string
	Endpoint    string
	AssumedRole string
}

// CloudWatchFacade is the v1-SDK-backed facade.CloudWatchLogs.
type CloudWatchFacade struct {
	client cloudwatchlogsiface.CloudWatchLogsAPI
}

// NewCloudWatch builds a session-based client from cfg.
func NewCloudWatch(cfg ClientConfig) (*CloudWatchFacade, error) {
	sess, err := session.NewSession(&aws.Config{
		Region:   aws.String(cfg.Region),
		Endpoint: stringOrNil(cfg.Endpoint),
	})
	if err != nil {
		return nil, wrapErr("NewSession", err)
	}
	return &CloudWatchFacade{client: cloudwatchlogs.New(sess)}, nil
}

// NewCloudWatchFromAPI injects an API implementation for testing.
func NewCloudWatchFromAPI(client cloudwatchlogsiface.CloudWatchLogsAPI) *CloudWatchFacade {
	return &CloudWatchFacade{client: client}
}

func stringOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	reason, retryable := classify.AWSReason(err)
	return &facade.Error{Reason: reason, Retryable: retryable, Cause: err, Operation: op, Destination: "cloudwatch"}
}

func (f *CloudWatchFacade) FindLogGroup(ctx context.Context, logGroup string) (string, error) {
	out, err := f.client.DescribeLogGroupsWithContext(ctx, &cloudwatchlogs.DescribeLogGroupsInput{
		LogGroupNamePrefix: aws.String(logGroup),
	})
	if err != nil {
		return "", wrapErr("DescribeLogGroups", err)
	}
	for _, g := range out.LogGroups {
		if aws.StringValue(g.LogGroupName) == logGroup {
			return aws.StringValue(g.Arn), nil
		}
	}
	return "", nil
}

func (f *CloudWatchFacade) CreateLogGroup(ctx context.Context, logGroup string) error {
	_, err := f.client.CreateLogGroupWithContext(ctx, &cloudwatchlogs.CreateLogGroupInput{
		LogGroupName: aws.String(logGroup),
	})
	if isResourceAlreadyExists(err) {
		return nil
	}
	return wrapErr("CreateLogGroup", err)
}

func (f *CloudWatchFacade) SetLogGroupRetention(ctx context.Context, logGroup string, days int) error {
	if days <= 0 {
		return nil
	}
	_, err := f.client.PutRetentionPolicyWithContext(ctx, &cloudwatchlogs.PutRetentionPolicyInput{
		LogGroupName:    aws.String(logGroup),
		RetentionInDays: aws.Int64(int64(days)),
	})
	return wrapErr("PutRetentionPolicy", err)
}

func (f *CloudWatchFacade) FindLogStream(ctx context.Context, logGroup, logStream string) (string, error) {
	out, err := f.client.DescribeLogStreamsWithContext(ctx, &cloudwatchlogs.DescribeLogStreamsInput{
		LogGroupName:        aws.String(logGroup),
		LogStreamNamePrefix: aws.String(logStream),
	})
	if err != nil {
		return "", wrapErr("DescribeLogStreams", err)
	}
	for _, s := range out.LogStreams {
		if aws.StringValue(s.LogStreamName) == logStream {
			return aws.StringValue(s.Arn), nil
		}
	}
	return "", nil
}

func (f *CloudWatchFacade) CreateLogStream(ctx context.Context, logGroup, logStream string) error {
	_, err := f.client.CreateLogStreamWithContext(ctx, &cloudwatchlogs.CreateLogStreamInput{
		LogGroupName:  aws.String(logGroup),
		LogStreamName: aws.String(logStream),
	})
	if isResourceAlreadyExists(err) {
		return nil
	}
	return wrapErr("CreateLogStream", err)
}

// PutEvents sorts batch by timestamp (same ordering contract as the v2
// facade) and submits it in a single PutLogEvents call. The v1 SDK's
// sequence-token dance is not replicated here: per the design note in
// writer/cloudwatch, the writer treats InvalidSequenceTokenException as
// a plain retryable error and lets a fresh DescribeLogStreams-less retry
// go through, exactly as the v2 facade does.
func (f *CloudWatchFacade) PutEvents(ctx context.Context, logGroup, logStream string, batch []logmsg.Message) error {
	sorted := append([]logmsg.Message(nil), batch...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Less(sorted[j]) })

	events := make([]*cloudwatchlogs.InputLogEvent, len(sorted))
	for i, m := range sorted {
		events[i] = &cloudwatchlogs.InputLogEvent{
			Message:   aws.String(m.Text()),
			Timestamp: aws.Int64(m.Timestamp().UnixMilli()),
		}
	}

	_, err := f.client.PutLogEventsWithContext(ctx, &cloudwatchlogs.PutLogEventsInput{
		LogGroupName:  aws.String(logGroup),
		LogStreamName: aws.String(logStream),
		LogEvents:     events,
	})
	return classifyPutEventsErr(err)
}

// classifyPutEventsErr maps the three PutLogEvents codes the writer treats
// specially (missing resource, stale sequence token, already accepted),
// the same mapping facade/cloudwatch's v2 implementation makes.
func classifyPutEventsErr(err error) error {
	if err == nil {
		return nil
	}
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		case cloudwatchlogs.ErrCodeResourceNotFoundException:
			return &facade.Error{Reason: facade.ReasonMissingLogStream, Retryable: true, Cause: err, Operation: "PutLogEvents", Destination: "cloudwatch"}
		case cloudwatchlogs.ErrCodeInvalidSequenceTokenException:
			return &facade.Error{Reason: facade.ReasonInvalidSequenceToken, Retryable: true, Cause: err, Operation: "PutLogEvents", Destination: "cloudwatch"}
		case cloudwatchlogs.ErrCodeDataAlreadyAcceptedException:
			return &facade.Error{Reason: facade.ReasonAlreadyProcessed, Retryable: false, Cause: err, Operation: "PutLogEvents", Destination: "cloudwatch"}
		}
	}
	return wrapErr("PutLogEvents", err)
}

func isResourceAlreadyExists(err error) bool {
	var aerr awserr.Error
	return errors.As(err, &aerr) && aerr.Code() == cloudwatchlogs.ErrCodeResourceAlreadyExistsException
}

func (f *CloudWatchFacade) Shutdown(ctx context.Context) error { return nil }
