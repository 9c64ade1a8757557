package facade

import (
	"context"

	"github.com/ehsaniara/shiplog/logmsg"
)

// CloudWatchLogs is the uniform interface to a CloudWatch Logs destination.
// All methods return a *facade.Error on failure.
type CloudWatchLogs interface {
	// FindLogGroup returns the log group's ARN, or "" if it doesn't exist.
	FindLogGroup(ctx context.Context, logGroup string) (string, error)
	CreateLogGroup(ctx context.Context, logGroup string) error
	SetLogGroupRetention(ctx context.Context, logGroup string, days int) error

	// FindLogStream returns the log stream's ARN, or "" if it doesn't exist.
	FindLogStream(ctx context.Context, logGroup, logStream string) (string, error)
	CreateLogStream(ctx context.Context, logGroup, logStream string) error

	// PutEvents sends a timestamp-sorted batch to logGroup/logStream. On
	// error, the entire batch is considered unsent (all-or-nothing).
	PutEvents(ctx context.Context, logGroup, logStream string, batch []logmsg.Message) error

	Shutdown(ctx context.Context) error
}

// StreamStatus mirrors Kinesis stream lifecycle states.
type StreamStatus int

const (
	StreamActive StreamStatus = iota
	StreamCreating
	StreamUpdating
	StreamDeleting
	StreamDoesNotExist
)

func (s StreamStatus) String() string {
	switch s {
	case StreamActive:
		return "ACTIVE"
	case StreamCreating:
		return "CREATING"
	case StreamUpdating:
		return "UPDATING"
	case StreamDeleting:
		return "DELETING"
	default:
		return "DOES_NOT_EXIST"
	}
}

// Kinesis is the uniform interface to a Kinesis stream destination.
type Kinesis interface {
	RetrieveStreamStatus(ctx context.Context, streamName string) (StreamStatus, error)
	CreateStream(ctx context.Context, streamName string, shardCount int) error
	SetRetentionPeriod(ctx context.Context, streamName string, hours int) error

	// PutRecords sends batch, one record per message with the given
	// partition keys (same length/order as batch), and returns the subset
	// of messages whose records failed, preserving input order.
	PutRecords(ctx context.Context, streamName string, batch []logmsg.Message, partitionKeys []string) (unsent []logmsg.Message, err error)

	Shutdown(ctx context.Context) error
}

// SNS is the uniform interface to an SNS topic destination.
type SNS interface {
	// LookupTopic resolves arnOrName (an ARN, or a bare name scoped to the
	// current region) to its ARN, or "" if not found.
	LookupTopic(ctx context.Context, arnOrName string) (string, error)
	CreateTopic(ctx context.Context, name string) (arn string, err error)
	Publish(ctx context.Context, topicARN, subject, message string) error

	Shutdown(ctx context.Context) error
}
