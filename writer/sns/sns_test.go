package sns

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehsaniara/shiplog/internal/logging"
	"github.com/ehsaniara/shiplog/logmsg"
	"github.com/ehsaniara/shiplog/stats"
)

type fakeFacade struct {
	lookupARN    string
	createARN    string
	publishErrs  map[string]error // message text -> error
	publishCalls []string
}

func (f *fakeFacade) LookupTopic(ctx context.Context, arnOrName string) (string, error) {
	return f.lookupARN, nil
}
func (f *fakeFacade) CreateTopic(ctx context.Context, name string) (string, error) {
	return f.createARN, nil
}
func (f *fakeFacade) Publish(ctx context.Context, topicARN, subject, message string) error {
	f.publishCalls = append(f.publishCalls, message)
	if f.publishErrs != nil {
		if err, ok := f.publishErrs[message]; ok {
			return err
		}
	}
	return nil
}
func (f *fakeFacade) Shutdown(ctx context.Context) error { return nil }

func newSpec(t *testing.T, f *fakeFacade, cfg Config) *Specialization {
	t.Helper()
	s, err := New(cfg, f, stats.New(), logging.NewWithConfig(logging.Config{Level: logging.Error}))
	require.NoError(t, err)
	return s
}

func TestNew_RejectsMissingTopic(t *testing.T) {
	_, err := New(Config{}, &fakeFacade{}, stats.New(), logging.New())
	assert.Error(t, err)
}

func TestNew_RejectsInvalidSubject(t *testing.T) {
	_, err := New(Config{TopicName: "valid-topic", Subject: " leading space"}, &fakeFacade{}, stats.New(), logging.New())
	assert.Error(t, err)
}

func TestNew_RejectsControlCharInSubject(t *testing.T) {
	_, err := New(Config{TopicName: "valid-topic", Subject: "bad\tsubject"}, &fakeFacade{}, stats.New(), logging.New())
	assert.Error(t, err)
}

func TestEnsureDestinationAvailable_CreatesWhenMissingAndAutoCreate(t *testing.T) {
	f := &fakeFacade{createARN: "arn:aws:sns:us-east-1:111111111111:t"}
	s := newSpec(t, f, Config{TopicName: "t", AutoCreate: true})
	require.NoError(t, s.EnsureDestinationAvailable(context.Background()))
	assert.Equal(t, "arn:aws:sns:us-east-1:111111111111:t", s.resolvedARN)
}

func TestEnsureDestinationAvailable_FailsWhenMissingNoAutoCreate(t *testing.T) {
	f := &fakeFacade{}
	s := newSpec(t, f, Config{TopicName: "t", AutoCreate: false})
	assert.Error(t, s.EnsureDestinationAvailable(context.Background()))
}

func TestSendBatch_PublishesEachMessageSequentially(t *testing.T) {
	f := &fakeFacade{}
	s := newSpec(t, f, Config{TopicName: "t", AutoCreate: true})
	s.resolvedARN = "arn:aws:sns:us-east-1:111111111111:t"

	unsent, err := s.SendBatch(context.Background(), []logmsg.Message{
		logmsg.New(time.Now(), "one"), logmsg.New(time.Now(), "two"),
	})
	require.NoError(t, err)
	assert.Empty(t, unsent)
	assert.Equal(t, []string{"one", "two"}, f.publishCalls)
}

func TestSendBatch_ReportsPerMessageFailures(t *testing.T) {
	f := &fakeFacade{publishErrs: map[string]error{"two": errors.New("boom")}}
	s := newSpec(t, f, Config{TopicName: "t", AutoCreate: true})
	s.resolvedARN = "arn:aws:sns:us-east-1:111111111111:t"

	unsent, err := s.SendBatch(context.Background(), []logmsg.Message{
		logmsg.New(time.Now(), "one"), logmsg.New(time.Now(), "two"), logmsg.New(time.Now(), "three"),
	})
	require.Error(t, err)
	require.Len(t, unsent, 1)
	assert.Equal(t, "two", unsent[0].Text())
}
