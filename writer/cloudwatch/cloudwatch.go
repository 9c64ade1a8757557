// Package cloudwatch implements writer.Specialization for CloudWatch
// Logs: log group/stream lifecycle, timestamp-sorted PutEvents, and the
// sequence-token/throttling decision table from spec.md §4.6.
package cloudwatch

import (
	"context"
	"errors"
	"time"

	"github.com/ehsaniara/shiplog/facade"
	"github.com/ehsaniara/shiplog/internal/logging"
	"github.com/ehsaniara/shiplog/logmsg"
	"github.com/ehsaniara/shiplog/retry"
	"github.com/ehsaniara/shiplog/stats"
	"github.com/ehsaniara/shiplog/writer"
)

// maxMessageSize is CloudWatch's 256 KiB event limit minus the
// documented 26-byte per-event overhead (spec.md §4.5).
const (
	maxMessageSize       = 256*1024 - eventOverheadBytes
	eventOverheadBytes   = 26
	serviceMaxBatchBytes = 1_048_576
	serviceMaxBatchCount = 10_000
	acceptablePast       = 14 * 24 * time.Hour
	acceptableFuture     = 2 * time.Hour
)

// Config holds the CloudWatch-specific destination settings from
// spec.md §6 (logGroup, logStream, retentionPeriod).
type Config struct {
	LogGroup      string
	LogStream     string
	RetentionDays int // 0 means "leave unset"
	SendDeadline  time.Duration
	RetryInitial  time.Duration
	RetryMax      time.Duration
}

// Specialization implements writer.Specialization for CloudWatch Logs.
// The sequenceToken field is retained for interface parity with an
// older facade variant that required it; the modern aws-sdk-go-v2
// PutLogEvents call ignores it entirely (spec.md §9 open question).
type Specialization struct {
	cfg Config
	f   facade.CloudWatchLogs
	st  *stats.Writer
	log *logging.Logger

	sequenceToken string // documented no-op, see the Specialization doc above
}

// New constructs a CloudWatch Specialization.
func New(cfg Config, f facade.CloudWatchLogs, st *stats.Writer, log *logging.Logger) *Specialization {
	if cfg.SendDeadline <= 0 {
		cfg.SendDeadline = 30 * time.Second
	}
	if cfg.RetryInitial <= 0 {
		cfg.RetryInitial = 200 * time.Millisecond
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = 10 * time.Second
	}
	return &Specialization{cfg: cfg, f: f, st: st, log: log}
}

func (s *Specialization) MaxMessageSize() int       { return maxMessageSize }
func (s *Specialization) ServiceMaxBatchBytes() int { return serviceMaxBatchBytes }
func (s *Specialization) ServiceMaxBatchCount() int { return serviceMaxBatchCount }

func (s *Specialization) EffectiveSize(m logmsg.Message) int {
	return m.Size() + eventOverheadBytes
}

func (s *Specialization) AcceptableWindow(first time.Time) (time.Duration, time.Duration) {
	return acceptablePast, acceptableFuture
}

// EnsureDestinationAvailable implements the group/stream lazy
// provisioning loop from spec.md §4.6: if findLogGroup returns nothing,
// create it and poll until it appears (or the deadline, from ctx,
// expires); same pattern for the log stream. Retention is set
// best-effort: failures are logged, never fatal.
func (s *Specialization) EnsureDestinationAvailable(ctx context.Context) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(s.cfg.SendDeadline)
	}

	if err := s.ensureLogGroup(ctx, deadline); err != nil {
		return err
	}
	if s.cfg.RetentionDays > 0 {
		if err := s.f.SetLogGroupRetention(ctx, s.cfg.LogGroup, s.cfg.RetentionDays); err != nil {
			s.log.Warn("set log group retention failed, continuing", "error", err, "logGroup", s.cfg.LogGroup)
		}
	}
	return s.ensureLogStream(ctx, deadline)
}

func (s *Specialization) ensureLogGroup(ctx context.Context, deadline time.Time) error {
	arn, err := s.f.FindLogGroup(ctx, s.cfg.LogGroup)
	if err != nil {
		return err
	}
	if arn != "" {
		return nil
	}
	if err := s.f.CreateLogGroup(ctx, s.cfg.LogGroup); err != nil {
		return err
	}
	return pollUntilFound(ctx, deadline, func() (bool, error) {
		arn, err := s.f.FindLogGroup(ctx, s.cfg.LogGroup)
		return arn != "", err
	})
}

func (s *Specialization) ensureLogStream(ctx context.Context, deadline time.Time) error {
	arn, err := s.f.FindLogStream(ctx, s.cfg.LogGroup, s.cfg.LogStream)
	if err != nil {
		return err
	}
	if arn != "" {
		return nil
	}
	if err := s.f.CreateLogStream(ctx, s.cfg.LogGroup, s.cfg.LogStream); err != nil {
		return err
	}
	return pollUntilFound(ctx, deadline, func() (bool, error) {
		arn, err := s.f.FindLogStream(ctx, s.cfg.LogGroup, s.cfg.LogStream)
		return arn != "", err
	})
}

// pollUntilFound funnels the group/stream visibility poll through
// retry.Run: a fixed-interval (linear, capped at itself) wait loop that
// aborts immediately on a check error instead of retrying it.
func pollUntilFound(ctx context.Context, deadline time.Time, check func() (bool, error)) error {
	const pollInterval = 200 * time.Millisecond

	var checkErr error
	_, ok := retry.Run(ctx, deadline, pollInterval, pollInterval, true,
		func() (retry.Result[struct{}], error) {
			found, err := check()
			if err != nil {
				checkErr = err
				return retry.Result[struct{}]{}, err
			}
			return retry.Result[struct{}]{Done: found}, nil
		},
		func(error) retry.ErrAction { return retry.ErrAbort },
	)
	if ok {
		return nil
	}
	if checkErr != nil {
		return checkErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return errors.New("timed out waiting for CloudWatch resource to become visible")
}

// SendBatch implements spec.md §4.6's send path. The exponential
// backoff between retryable attempts, bounded by the batch's own send
// deadline, funnels through retry.Run; ctx is only used to make that
// backoff cancellable on Stop(), per writer.Specialization's documented
// contract. The actual PutEvents call is issued against a fresh,
// short-lived context derived from context.Background(), so it is
// never cancelled out from under an in-flight request.
func (s *Specialization) SendBatch(ctx context.Context, batch []logmsg.Message) ([]logmsg.Message, error) {
	deadline := time.Now().Add(s.cfg.SendDeadline)

	var (
		lastErr  error
		decision writer.Decision
	)

	_, ok := retry.Run(ctx, deadline, s.cfg.RetryInitial, s.cfg.RetryMax, false,
		func() (retry.Result[struct{}], error) {
			sendCtx, cancel := context.WithTimeout(context.Background(), s.cfg.SendDeadline)
			err := s.f.PutEvents(sendCtx, s.cfg.LogGroup, s.cfg.LogStream, batch)
			cancel()

			if err == nil {
				return retry.Result[struct{}]{Done: true}, nil
			}

			var fe *facade.Error
			reason := facade.ReasonUnexpected
			if errors.As(err, &fe) {
				reason = fe.Reason
			}
			decision = writer.Decide(reason)

			switch decision {
			case writer.DecisionSuccess:
				s.log.Warn("batch already processed, treating as success", "logGroup", s.cfg.LogGroup)
				return retry.Result[struct{}]{Done: true}, nil

			case writer.DecisionRetry:
				if reason == facade.ReasonThrottling {
					s.st.IncThrottledWrites()
				}
				if reason == facade.ReasonInvalidSequenceToken {
					s.st.IncWriterRaceRetries()
					s.sequenceToken = "" // no-op refresh; facade ignores this field
				}
			}

			lastErr = err
			return retry.Result[struct{}]{}, err
		},
		func(error) retry.ErrAction {
			if decision == writer.DecisionRetry {
				return retry.ErrRetry
			}
			return retry.ErrAbort
		},
	)

	if ok {
		return nil, nil
	}

	if decision == writer.DecisionReinitialize {
		return batch, &writer.ErrNeedsReinit{Cause: lastErr}
	}

	var fe *facade.Error
	if decision == writer.DecisionRetry && errors.As(lastErr, &fe) && fe.Reason == facade.ReasonInvalidSequenceToken {
		s.st.IncUnrecoveredWriterRaceRetries()
	}
	return batch, lastErr
}

func (s *Specialization) Shutdown(ctx context.Context) error {
	return s.f.Shutdown(ctx)
}
