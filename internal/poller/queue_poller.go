package poller

import (
	"context"

	"github.com/arc-self/apps/pipes-service/internal/broker"
	"github.com/arc-self/apps/pipes-service/internal/pipes"
)

const (
	defaultBatchSize  = 10
	defaultWaitSeconds = 10
)

// QueuePoller polls an SQS-shaped queue source, grounded on provider.py's
// queue branch of pipe_worker_factory.py (long-poll receive, ack by delete).
type QueuePoller struct {
	broker    broker.QueueBroker
	queueArn  string
	batchSize int
}

func NewQueuePoller(b broker.QueueBroker, queueArn string, params *pipes.SqsQueueParameters) *QueuePoller {
	return &QueuePoller{
		broker:    b,
		queueArn:  queueArn,
		batchSize: defaultBatchSize,
	}
}

func (p *QueuePoller) Poll(ctx context.Context) ([]PolledEvent, error) {
	msgs, err := p.broker.ReceiveMessage(ctx, p.queueArn, p.batchSize, defaultWaitSeconds)
	if err != nil {
		return nil, pipes.NewPipeInternalError(err)
	}
	if len(msgs) == 0 {
		return nil, pipes.EmptyPollResults
	}
	events := make([]PolledEvent, len(msgs))
	for i, m := range msgs {
		events[i] = PolledEvent{Data: []byte(m.Body), Token: m.ReceiptHandle}
	}
	return events, nil
}

func (p *QueuePoller) Ack(ctx context.Context, events []PolledEvent) error {
	for _, e := range events {
		if e.Token == "" {
			continue
		}
		if err := p.broker.DeleteMessage(ctx, p.queueArn, e.Token); err != nil {
			return pipes.NewPipeInternalError(err)
		}
	}
	return nil
}
