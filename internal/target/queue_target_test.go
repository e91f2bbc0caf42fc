package target

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arc-self/apps/pipes-service/internal/broker"
	"github.com/arc-self/apps/pipes-service/internal/pipes"
)

type fakeQueueBroker struct {
	mu   sync.Mutex
	sent []broker.Message
	err  error
}

func (f *fakeQueueBroker) SendMessage(ctx context.Context, queueArn, body, groupID, dedupID string) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, broker.Message{Body: body, Attributes: map[string]string{
		"groupID": groupID, "dedupID": dedupID,
	}})
	return nil
}

func (f *fakeQueueBroker) ReceiveMessage(ctx context.Context, queueArn string, maxMessages, waitSeconds int) ([]broker.Message, error) {
	return nil, nil
}

func (f *fakeQueueBroker) DeleteMessage(ctx context.Context, queueArn, receiptHandle string) error {
	return nil
}

func TestQueueTargetSendEncodesJsonBody(t *testing.T) {
	b := &fakeQueueBroker{}
	target := NewQueueTarget(b, "arn:aws:sqs:us-east-1:111122223333:q", nil)

	err := target.Send(context.Background(), []Event{{Payload: map[string]interface{}{"id": "1"}}})
	require.NoError(t, err)
	require.Len(t, b.sent, 1)
	assert.JSONEq(t, `{"id":"1"}`, b.sent[0].Body)
}

func TestQueueTargetSendPassesThroughStringPayload(t *testing.T) {
	b := &fakeQueueBroker{}
	target := NewQueueTarget(b, "arn:aws:sqs:us-east-1:111122223333:q", nil)

	err := target.Send(context.Background(), []Event{{Payload: "already-a-string"}})
	require.NoError(t, err)
	assert.Equal(t, "already-a-string", b.sent[0].Body)
}

func TestQueueTargetSendUsesFifoParameters(t *testing.T) {
	b := &fakeQueueBroker{}
	params := &pipes.SqsTargetParameters{MessageGroupId: "group-1", MessageDeduplicationId: "dedup-1"}
	target := NewQueueTarget(b, "arn:aws:sqs:us-east-1:111122223333:q.fifo", params)

	err := target.Send(context.Background(), []Event{{Payload: "x"}})
	require.NoError(t, err)
	assert.Equal(t, "group-1", b.sent[0].Attributes["groupID"])
	assert.Equal(t, "dedup-1", b.sent[0].Attributes["dedupID"])
}

func TestQueueTargetSendWrapsBrokerErrorAsInternal(t *testing.T) {
	b := &fakeQueueBroker{err: errors.New("broker down")}
	target := NewQueueTarget(b, "arn:aws:sqs:us-east-1:111122223333:q", nil)

	err := target.Send(context.Background(), []Event{{Payload: "x"}})
	require.Error(t, err)
	var internalErr *pipes.PipeInternalError
	require.ErrorAs(t, err, &internalErr)
}
