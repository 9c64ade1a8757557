// Package kinesis implements writer.Specialization for Kinesis: stream
// lifecycle polling, per-record partition keys, and throttle-bounded
// PutRecords retry from spec.md §4.7.
package kinesis

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"github.com/ehsaniara/shiplog/facade"
	kinesisfacade "github.com/ehsaniara/shiplog/facade/kinesis"
	"github.com/ehsaniara/shiplog/internal/logging"
	"github.com/ehsaniara/shiplog/logmsg"
	"github.com/ehsaniara/shiplog/retry"
	"github.com/ehsaniara/shiplog/stats"
	"github.com/ehsaniara/shiplog/writer"
)

// randomPartitionKeySentinel is the configuration value that requests a
// fresh random partition key per record instead of a static one
// (spec.md §4.7).
const randomPartitionKeySentinel = "{random}"

const (
	serviceMaxBatchBytes = 1_048_576
	serviceMaxBatchCount = 500
)

// Config holds the Kinesis-specific destination settings from spec.md
// §6 (streamName, partitionKey, shardCount, retentionPeriod, autoCreate).
type Config struct {
	StreamName     string
	PartitionKey   string // static value, or randomPartitionKeySentinel
	ShardCount     int
	RetentionHours int
	AutoCreate     bool
	InitPollMax    time.Duration
	SendDeadline   time.Duration
	ThrottleRPS    float64
	RetryInitial   time.Duration
	RetryMax       time.Duration
}

// Specialization implements writer.Specialization for Kinesis.
type Specialization struct {
	cfg     Config
	f       facade.Kinesis
	st      *stats.Writer
	log     *logging.Logger
	limiter *rate.Limiter
}

// New constructs a Kinesis Specialization. ThrottleRPS paces PutRecords
// retries, grounded on the graveyard kinesis-to-firehose writer's use
// of golang.org/x/time/rate to avoid hammering a throttled stream.
func New(cfg Config, f facade.Kinesis, st *stats.Writer, log *logging.Logger) *Specialization {
	if cfg.InitPollMax <= 0 {
		cfg.InitPollMax = 5 * time.Minute
	}
	if cfg.SendDeadline <= 0 {
		cfg.SendDeadline = 30 * time.Second
	}
	if cfg.ThrottleRPS <= 0 {
		cfg.ThrottleRPS = 5
	}
	if cfg.RetryInitial <= 0 {
		cfg.RetryInitial = 200 * time.Millisecond
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = 10 * time.Second
	}
	return &Specialization{
		cfg:     cfg,
		f:       f,
		st:      st,
		log:     log,
		limiter: rate.NewLimiter(rate.Limit(cfg.ThrottleRPS), 1),
	}
}

func (s *Specialization) MaxMessageSize() int {
	return 1_048_576 - len(s.staticPartitionKeyForSizing())
}

// staticPartitionKeyForSizing returns the configured key for single
// message size accounting; the random sentinel's worst-case key length
// (32 hex chars) is used instead when random keys are configured.
func (s *Specialization) staticPartitionKeyForSizing() string {
	if s.cfg.PartitionKey == randomPartitionKeySentinel {
		return "00000000000000000000000000000000"
	}
	return s.cfg.PartitionKey
}

func (s *Specialization) ServiceMaxBatchBytes() int { return serviceMaxBatchBytes }
func (s *Specialization) ServiceMaxBatchCount() int { return serviceMaxBatchCount }

func (s *Specialization) EffectiveSize(m logmsg.Message) int {
	return m.Size() + len(s.staticPartitionKeyForSizing())
}

// AcceptableWindow returns bounds wide enough to never trigger; Kinesis
// has no CloudWatch-style timestamp window (spec.md §4.4 step 3).
func (s *Specialization) AcceptableWindow(first time.Time) (time.Duration, time.Duration) {
	return 365 * 24 * time.Hour, 365 * 24 * time.Hour
}

// EnsureDestinationAvailable implements the stream lifecycle check from
// spec.md §4.7.
func (s *Specialization) EnsureDestinationAvailable(ctx context.Context) error {
	status, err := s.f.RetrieveStreamStatus(ctx, s.cfg.StreamName)
	if err != nil {
		return err
	}

	switch status {
	case facade.StreamActive:
		return nil

	case facade.StreamDoesNotExist:
		if !s.cfg.AutoCreate {
			return errors.New("kinesis stream does not exist and autoCreate is false")
		}
		if err := s.f.CreateStream(ctx, s.cfg.StreamName, s.cfg.ShardCount); err != nil {
			return err
		}
		if s.cfg.RetentionHours > 0 {
			if err := s.f.SetRetentionPeriod(ctx, s.cfg.StreamName, s.cfg.RetentionHours); err != nil {
				s.log.Warn("set stream retention failed, continuing", "error", err, "stream", s.cfg.StreamName)
			}
		}
		return s.pollUntilActive(ctx, 2*time.Second, true)

	case facade.StreamCreating, facade.StreamUpdating:
		return s.pollUntilActive(ctx, 500*time.Millisecond, false)

	case facade.StreamDeleting:
		return errors.New("kinesis stream is being deleted")

	default:
		return errors.New("unknown kinesis stream status")
	}
}

// pollUntilActive funnels the stream-activation poll through retry.Run:
// linear backoff right after auto-create, exponential while waiting out
// an in-progress CREATING/UPDATING transition, both capped at 30s.
func (s *Specialization) pollUntilActive(ctx context.Context, initial time.Duration, linear bool) error {
	deadline := time.Now().Add(s.cfg.InitPollMax)

	var checkErr error
	_, ok := retry.Run(ctx, deadline, initial, 30*time.Second, linear,
		func() (retry.Result[struct{}], error) {
			status, err := s.f.RetrieveStreamStatus(ctx, s.cfg.StreamName)
			if err != nil {
				checkErr = err
				return retry.Result[struct{}]{}, err
			}
			return retry.Result[struct{}]{Done: status == facade.StreamActive}, nil
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
	return errors.New("timed out waiting for kinesis stream to become active")
}

// partitionKeys builds one key per message: the static configured value,
// or a fresh random value per record under the {random} sentinel.
func (s *Specialization) partitionKeys(n int) ([]string, error) {
	keys := make([]string, n)
	for i := range keys {
		if s.cfg.PartitionKey == randomPartitionKeySentinel {
			k, err := kinesisfacade.RandomPartitionKey()
			if err != nil {
				return nil, err
			}
			keys[i] = k
		} else {
			keys[i] = s.cfg.PartitionKey
		}
	}
	return keys, nil
}

// SendBatch implements spec.md §4.7's send path: PutRecords, requeuing
// only the records that individually failed, retrying throttled
// attempts within a send deadline separate from the init deadline.
// ctx is used only to make the retry wait cancellable, per
// writer.Specialization's contract; each PutRecords call itself runs
// against a fresh context so Stop() never cancels an in-flight request.
func (s *Specialization) SendBatch(ctx context.Context, batch []logmsg.Message) ([]logmsg.Message, error) {
	keys, err := s.partitionKeys(len(batch))
	if err != nil {
		return batch, err
	}

	deadline := time.Now().Add(s.cfg.SendDeadline)
	remaining := batch
	remainingKeys := keys

	var (
		lastErr   error
		retryable bool
	)

	_, ok := retry.Run(ctx, deadline, s.cfg.RetryInitial, s.cfg.RetryMax, false,
		func() (retry.Result[struct{}], error) {
			if err := s.limiter.Wait(ctx); err != nil {
				lastErr = err
				retryable = false
				return retry.Result[struct{}]{}, err
			}

			sendCtx, cancel := context.WithTimeout(context.Background(), s.cfg.SendDeadline)
			unsent, err := s.f.PutRecords(sendCtx, s.cfg.StreamName, remaining, remainingKeys)
			cancel()

			if err != nil {
				var fe *facade.Error
				reason := facade.ReasonUnexpected
				if errors.As(err, &fe) {
					reason = fe.Reason
				}
				lastErr = err
				retryable = reason == facade.ReasonThrottling
				if retryable {
					s.st.IncThrottledWrites()
				}
				return retry.Result[struct{}]{}, err
			}

			if len(unsent) == 0 {
				return retry.Result[struct{}]{Done: true}, nil
			}

			s.st.IncThrottledWrites()
			remaining = unsent
			newKeys, kerr := s.partitionKeys(len(remaining))
			if kerr != nil {
				lastErr = kerr
				retryable = false
				return retry.Result[struct{}]{}, kerr
			}
			remainingKeys = newKeys
			lastErr = nil
			return retry.Result[struct{}]{}, nil
		},
		func(error) retry.ErrAction {
			if retryable {
				return retry.ErrRetry
			}
			return retry.ErrAbort
		},
	)

	if ok {
		return nil, nil
	}
	if lastErr != nil {
		var fe *facade.Error
		if errors.As(lastErr, &fe) && writer.Decide(fe.Reason) == writer.DecisionReinitialize {
			return batch, &writer.ErrNeedsReinit{Cause: lastErr}
		}
		return remaining, lastErr
	}
	return remaining, errors.New("kinesis send deadline exceeded with records still unsent")
}

func (s *Specialization) Shutdown(ctx context.Context) error {
	return s.f.Shutdown(ctx)
}
