// Package facade defines the uniform interface the writer core talks to
// instead of a concrete AWS SDK client, plus the error taxonomy that drives
// every retry decision. One implementation of each interface lives under
// facade/cloudwatch, facade/kinesis, and facade/sns.
package facade

import "fmt"

// Reason classifies a facade failure into the fixed vocabulary the writer
// core's error-handling decision table switches on. The mapping from a
// concrete SDK exception to a Reason is the single point of truth for
// retry behavior and is implemented once per SDK variant (see
// internal/classify).
type Reason int

const (
	ReasonThrottling Reason = iota
	ReasonInvalidConfiguration
	ReasonInvalidSequenceToken
	ReasonAlreadyProcessed
	ReasonMissingLogGroup
	ReasonMissingLogStream
	ReasonLimitExceeded
	ReasonAborted
	ReasonInvalidState
	ReasonUnexpected
)

func (r Reason) String() string {
	switch r {
	case ReasonThrottling:
		return "THROTTLING"
	case ReasonInvalidConfiguration:
		return "INVALID_CONFIGURATION"
	case ReasonInvalidSequenceToken:
		return "INVALID_SEQUENCE_TOKEN"
	case ReasonAlreadyProcessed:
		return "ALREADY_PROCESSED"
	case ReasonMissingLogGroup:
		return "MISSING_LOG_GROUP"
	case ReasonMissingLogStream:
		return "MISSING_LOG_STREAM"
	case ReasonLimitExceeded:
		return "LIMIT_EXCEEDED"
	case ReasonAborted:
		return "ABORTED"
	case ReasonInvalidState:
		return "INVALID_STATE"
	default:
		return "UNEXPECTED_EXCEPTION"
	}
}

// Error is the uniform failure type every facade method returns. Reason
// drives retry decisions in the writer core; Retryable is the facade
// author's own opinion and is consulted when Reason alone is ambiguous
// (e.g. ReasonUnexpected).
type Error struct {
	Reason      Reason
	Retryable   bool
	Cause       error
	Operation   string
	Destination string
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s %s failed: %v", e.Reason, e.Operation, e.Destination, e.Cause)
	}
	return fmt.Sprintf("%s: %s %s failed", e.Reason, e.Operation, e.Destination)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a facade.Error, defaulting Retryable from common knowledge
// about the reason when the caller doesn't have a stronger opinion.
func New(reason Reason, operation, destination string, cause error) *Error {
	return &Error{
		Reason:      reason,
		Retryable:   defaultRetryable(reason),
		Cause:       cause,
		Operation:   operation,
		Destination: destination,
	}
}

func defaultRetryable(r Reason) bool {
	switch r {
	case ReasonThrottling, ReasonInvalidSequenceToken, ReasonMissingLogGroup,
		ReasonMissingLogStream, ReasonLimitExceeded, ReasonAborted, ReasonInvalidState:
		return true
	default:
		return false
	}
}
