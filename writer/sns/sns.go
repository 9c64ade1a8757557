// Package sns implements writer.Specialization for SNS: topic
// lookup/create, per-message sequential publish (SNS has no batch
// API), and subject/ARN/name validation from spec.md §4.8.
package sns

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ehsaniara/shiplog/facade"
	"github.com/ehsaniara/shiplog/internal/logging"
	"github.com/ehsaniara/shiplog/logmsg"
	"github.com/ehsaniara/shiplog/stats"
)

// maxMessageSize is SNS's documented 256 KiB per-message limit
// (spec.md §4.5); SNS imposes no per-message overhead.
const maxMessageSize = 256 * 1024

var (
	topicARNPattern  = regexp.MustCompile(`^arn:aws[a-zA-Z-]*:sns:[a-z0-9-]+:\d{12}:[A-Za-z0-9_-]{1,256}$`)
	topicNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,256}$`)
)

// Config holds the SNS-specific destination settings from spec.md §6
// (topicName, topicArn, subject, autoCreate).
type Config struct {
	TopicARN   string // either this or TopicName is set, not both
	TopicName  string
	Subject    string
	AutoCreate bool
}

// Specialization implements writer.Specialization for SNS.
type Specialization struct {
	cfg Config
	f   facade.SNS
	st  *stats.Writer
	log *logging.Logger

	resolvedARN string
}

// New constructs an SNS Specialization after validating cfg per
// spec.md §4.8 (subject and ARN/name patterns checked at init, before
// any remote call).
func New(cfg Config, f facade.SNS, st *stats.Writer, log *logging.Logger) (*Specialization, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return &Specialization{cfg: cfg, f: f, st: st, log: log}, nil
}

func validateConfig(cfg Config) error {
	if cfg.TopicARN == "" && cfg.TopicName == "" {
		return errors.New("sns: either topicArn or topicName must be set")
	}
	if cfg.TopicARN != "" && !topicARNPattern.MatchString(cfg.TopicARN) {
		return fmt.Errorf("sns: invalid topic ARN %q", cfg.TopicARN)
	}
	if cfg.TopicName != "" && !topicNamePattern.MatchString(cfg.TopicName) {
		return fmt.Errorf("sns: invalid topic name %q", cfg.TopicName)
	}
	if cfg.Subject != "" {
		if err := validateSubject(cfg.Subject); err != nil {
			return err
		}
	}
	return nil
}

// validateSubject enforces spec.md §4.8's subject rules: ≤ 100 chars,
// first character non-space, ASCII-only, no control characters.
func validateSubject(subject string) error {
	if len(subject) > 100 {
		return errors.New("sns: subject exceeds 100 characters")
	}
	if strings.HasPrefix(subject, " ") {
		return errors.New("sns: subject must not start with a space")
	}
	for _, r := range subject {
		if r > 127 {
			return fmt.Errorf("sns: subject contains non-ASCII character %q", r)
		}
		if r < 0x20 || r == 0x7f {
			return fmt.Errorf("sns: subject contains control character %q", r)
		}
	}
	return nil
}

func (s *Specialization) MaxMessageSize() int       { return maxMessageSize }
func (s *Specialization) ServiceMaxBatchBytes() int { return maxMessageSize }
func (s *Specialization) ServiceMaxBatchCount() int { return 1 } // no batch API; one message per request

func (s *Specialization) EffectiveSize(m logmsg.Message) int { return m.Size() }

// AcceptableWindow returns bounds wide enough to never trigger; SNS has
// no CloudWatch-style timestamp window.
func (s *Specialization) AcceptableWindow(first time.Time) (time.Duration, time.Duration) {
	return 365 * 24 * time.Hour, 365 * 24 * time.Hour
}

// EnsureDestinationAvailable implements spec.md §4.8's lookup/create
// path: resolve by configured ARN or name, creating by name when not
// found and AutoCreate is set.
func (s *Specialization) EnsureDestinationAvailable(ctx context.Context) error {
	lookupKey := s.cfg.TopicARN
	if lookupKey == "" {
		lookupKey = s.cfg.TopicName
	}

	arn, err := s.f.LookupTopic(ctx, lookupKey)
	if err != nil {
		return err
	}
	if arn != "" {
		s.resolvedARN = arn
		return nil
	}
	if s.cfg.TopicARN != "" {
		return fmt.Errorf("sns: configured topic ARN %q not found", s.cfg.TopicARN)
	}
	if !s.cfg.AutoCreate {
		return fmt.Errorf("sns: topic %q not found and autoCreate is false", s.cfg.TopicName)
	}

	arn, err = s.f.CreateTopic(ctx, s.cfg.TopicName)
	if err != nil {
		return err
	}
	s.resolvedARN = arn
	return nil
}

// SendBatch publishes each message sequentially since SNS has no batch
// API (spec.md §4.8); per-message failures are collected and reported
// together as the subset requeued. Each Publish call runs against a
// fresh context so Stop() cancelling ctx never aborts an in-flight
// publish; ctx is unused here since SNS has no internal backoff loop
// of its own — writer.Core's outer retry on the returned error covers it.
func (s *Specialization) SendBatch(ctx context.Context, batch []logmsg.Message) ([]logmsg.Message, error) {
	var unsent []logmsg.Message
	var lastErr error

	for _, m := range batch {
		publishCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := s.f.Publish(publishCtx, s.resolvedARN, s.cfg.Subject, m.Text())
		cancel()

		if err != nil {
			unsent = append(unsent, m)
			lastErr = err
		}
	}

	if len(unsent) > 0 {
		return unsent, lastErr
	}
	return nil, nil
}

func (s *Specialization) Shutdown(ctx context.Context) error {
	return s.f.Shutdown(ctx)
}
