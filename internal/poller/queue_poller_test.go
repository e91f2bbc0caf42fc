package poller

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arc-self/apps/pipes-service/internal/broker"
	"github.com/arc-self/apps/pipes-service/internal/pipes"
)

func TestQueuePollerPollReturnsMessages(t *testing.T) {
	b := &fakeQueueBroker{messages: []broker.Message{
		{Body: `{"id":1}`, ReceiptHandle: "rh-1"},
		{Body: `{"id":2}`, ReceiptHandle: "rh-2"},
	}}
	p := NewQueuePoller(b, "arn:aws:sqs:us-east-1:111122223333:q", nil)

	events, err := p.Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "rh-1", events[0].Token)
}

func TestQueuePollerPollEmptyReturnsSentinel(t *testing.T) {
	b := &fakeQueueBroker{}
	p := NewQueuePoller(b, "arn:aws:sqs:us-east-1:111122223333:q", nil)

	_, err := p.Poll(context.Background())
	assert.Same(t, pipes.EmptyPollResults, err)
}

func TestQueuePollerPollWrapsBrokerError(t *testing.T) {
	b := &fakeQueueBroker{err: errors.New("network blip")}
	p := NewQueuePoller(b, "arn:aws:sqs:us-east-1:111122223333:q", nil)

	_, err := p.Poll(context.Background())
	require.Error(t, err)
	var internalErr *pipes.PipeInternalError
	require.ErrorAs(t, err, &internalErr)
}

func TestQueuePollerAckDeletesEachToken(t *testing.T) {
	b := &fakeQueueBroker{}
	p := NewQueuePoller(b, "arn:aws:sqs:us-east-1:111122223333:q", nil)

	err := p.Ack(context.Background(), []PolledEvent{{Token: "rh-1"}, {Token: "rh-2"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"rh-1", "rh-2"}, b.deleted)
}
