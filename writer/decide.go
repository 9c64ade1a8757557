package writer

import "github.com/ehsaniara/shiplog/facade"

// Decision is the generic outcome the error-handling decision table
// (spec §7) assigns to a facade.Reason. writer/cloudwatch's SendBatch
// consults it for every failed send (for reasons resolved mid-send, like
// throttling), and writer/kinesis's SendBatch consults it to recognise a
// missing stream. Core does not call it: it learns that re-initialization
// is needed from an ErrNeedsReinit returned by SendBatch.
type Decision int

const (
	// DecisionRetry means retry with backoff; the service is expected to
	// recover (THROTTLING, LIMIT_EXCEEDED, ABORTED, INVALID_STATE) or the
	// writer can self-heal by refreshing local state
	// (INVALID_SEQUENCE_TOKEN).
	DecisionRetry Decision = iota
	// DecisionSuccess means treat the batch as delivered.
	DecisionSuccess
	// DecisionReinitialize means the destination disappeared; re-run
	// EnsureDestinationAvailable and requeue the batch.
	DecisionReinitialize
	// DecisionFatal means initialization cannot proceed; stop the writer.
	DecisionFatal
	// DecisionRequeue means report the error and requeue for the next
	// loop iteration, without a dedicated backoff.
	DecisionRequeue
)

// Decide maps a facade.Reason to the generic handling it gets under the
// writer core's error-handling table (spec §7).
func Decide(reason facade.Reason) Decision {
	switch reason {
	case facade.ReasonThrottling, facade.ReasonInvalidSequenceToken,
		facade.ReasonLimitExceeded, facade.ReasonAborted, facade.ReasonInvalidState:
		return DecisionRetry
	case facade.ReasonAlreadyProcessed:
		return DecisionSuccess
	case facade.ReasonMissingLogGroup, facade.ReasonMissingLogStream:
		return DecisionReinitialize
	case facade.ReasonInvalidConfiguration:
		return DecisionFatal
	default:
		return DecisionRequeue
	}
}
