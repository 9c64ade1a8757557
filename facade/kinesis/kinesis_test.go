package kinesis

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kinesis"
	"github.com/aws/aws-sdk-go-v2/service/kinesis/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehsaniara/shiplog/facade"
	"github.com/ehsaniara/shiplog/logmsg"
)

type fakeAPI struct {
	describeOut    *kinesis.DescribeStreamSummaryOutput
	describeErr    error
	createErr      error
	retentionErr   error
	putRecordsOut  *kinesis.PutRecordsOutput
	putRecordsErr  error
	putRecordsSeen *kinesis.PutRecordsInput
}

func (f *fakeAPI) DescribeStreamSummary(ctx context.Context, in *kinesis.DescribeStreamSummaryInput, opts ...func(*kinesis.Options)) (*kinesis.DescribeStreamSummaryOutput, error) {
	return f.describeOut, f.describeErr
}
func (f *fakeAPI) CreateStream(ctx context.Context, in *kinesis.CreateStreamInput, opts ...func(*kinesis.Options)) (*kinesis.CreateStreamOutput, error) {
	return &kinesis.CreateStreamOutput{}, f.createErr
}
func (f *fakeAPI) IncreaseStreamRetentionPeriod(ctx context.Context, in *kinesis.IncreaseStreamRetentionPeriodInput, opts ...func(*kinesis.Options)) (*kinesis.IncreaseStreamRetentionPeriodOutput, error) {
	return &kinesis.IncreaseStreamRetentionPeriodOutput{}, f.retentionErr
}
func (f *fakeAPI) PutRecords(ctx context.Context, in *kinesis.PutRecordsInput, opts ...func(*kinesis.Options)) (*kinesis.PutRecordsOutput, error) {
	f.putRecordsSeen = in
	return f.putRecordsOut, f.putRecordsErr
}

func TestRetrieveStreamStatus_Active(t *testing.T) {
	fake := &fakeAPI{describeOut: &kinesis.DescribeStreamSummaryOutput{
		StreamDescriptionSummary: &types.StreamDescriptionSummary{StreamStatus: types.StreamStatusActive},
	}}
	f := NewFromAPI(fake)
	status, err := f.RetrieveStreamStatus(context.Background(), "stream")
	require.NoError(t, err)
	assert.Equal(t, facade.StreamActive, status)
}

func TestRetrieveStreamStatus_DoesNotExist(t *testing.T) {
	fake := &fakeAPI{describeErr: &types.ResourceNotFoundException{Message: aws.String("gone")}}
	f := NewFromAPI(fake)
	status, err := f.RetrieveStreamStatus(context.Background(), "stream")
	require.NoError(t, err)
	assert.Equal(t, facade.StreamDoesNotExist, status)
}

func TestPutRecords_ReturnsFailedSubset(t *testing.T) {
	fake := &fakeAPI{putRecordsOut: &kinesis.PutRecordsOutput{
		Records: []types.PutRecordsResultEntry{
			{},
			{ErrorCode: aws.String("ProvisionedThroughputExceededException")},
		},
	}}
	f := NewFromAPI(fake)

	batch := []logmsg.Message{
		logmsg.New(time.Now(), "ok"),
		logmsg.New(time.Now(), "failed"),
	}
	unsent, err := f.PutRecords(context.Background(), "stream", batch, []string{"k1", "k2"})
	require.NoError(t, err)
	require.Len(t, unsent, 1)
	assert.Equal(t, "failed", unsent[0].Text())

	require.Len(t, fake.putRecordsSeen.Records, 2)
	assert.Equal(t, "k1", aws.ToString(fake.putRecordsSeen.Records[0].PartitionKey))
}

func TestRandomPartitionKey_ProducesDistinctValues(t *testing.T) {
	k1, err := RandomPartitionKey()
	require.NoError(t, err)
	k2, err := RandomPartitionKey()
	require.NoError(t, err)
	assert.NotEqual(t, k1, k2)
	assert.Len(t, k1, 32)
}
