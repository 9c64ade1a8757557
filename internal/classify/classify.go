// Package classify maps arbitrary errors — chiefly AWS SDK v1 and v2
// exceptions — onto the facade.Reason taxonomy the writer core's
// error-handling table switches on. This is the one point of truth for
// "is this retryable, and why" across all three destinations.
package classify

import (
	"context"
	"errors"

	awsv1err "github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/smithy-go"

	"github.com/ehsaniara/shiplog/facade"
)

// AWSReason inspects err (as returned by an aws-sdk-go-v2 or aws-sdk-go v1
// client call) and returns the facade.Reason it corresponds to, plus
// whether the caller's own judgement says it's retryable. Errors that
// don't match a known AWS exception code classify as
// facade.ReasonUnexpected, not retryable.
func AWSReason(err error) (facade.Reason, bool) {
	if err == nil {
		return facade.ReasonUnexpected, false
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return facade.ReasonAborted, true
	}

	if code, ok := smithyErrorCode(err); ok {
		return reasonForCode(code)
	}
	if code, ok := awsV1ErrorCode(err); ok {
		return reasonForCode(code)
	}

	return facade.ReasonUnexpected, false
}

// smithyErrorCode extracts the AWS API error code from an aws-sdk-go-v2
// (smithy-go) error, if err is one.
func smithyErrorCode(err error) (string, bool) {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode(), true
	}
	return "", false
}

// awsV1ErrorCode extracts the AWS API error code from an aws-sdk-go (v1)
// error, if err is one.
func awsV1ErrorCode(err error) (string, bool) {
	var awsErr awsv1err.Error
	if errors.As(err, &awsErr) {
		return awsErr.Code(), true
	}
	return "", false
}

// reasonForCode maps a raw AWS exception/error code to a facade.Reason.
// The same code table serves both SDK generations since CloudWatch Logs,
// Kinesis, and SNS kept their exception names stable across v1 and v2.
func reasonForCode(code string) (facade.Reason, bool) {
	switch code {
	case "ThrottlingException", "Throttling", "ProvisionedThroughputExceededException",
		"TooManyRequestsException", "RequestLimitExceeded":
		return facade.ReasonThrottling, true

	case "InvalidSequenceTokenException":
		return facade.ReasonInvalidSequenceToken, true

	case "DataAlreadyAcceptedException":
		return facade.ReasonAlreadyProcessed, false

	case "ResourceNotFoundException":
		// Ambiguous between missing group and missing stream; callers that
		// know which lookup failed should prefer the specific reason. This
		// fallback is used only when the caller has no more context.
		return facade.ReasonMissingLogStream, true

	case "LimitExceededException":
		return facade.ReasonLimitExceeded, true

	case "OperationAbortedException":
		return facade.ReasonAborted, true

	case "InvalidParameterException", "InvalidParameterValueException", "ValidationException":
		return facade.ReasonInvalidConfiguration, false

	case "ResourceInUseException":
		return facade.ReasonInvalidState, true

	default:
		return facade.ReasonUnexpected, false
	}
}
