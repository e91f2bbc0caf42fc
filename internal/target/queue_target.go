package target

import (
	"context"
	"encoding/json"

	"github.com/sourcegraph/conc/iter"

	"github.com/arc-self/apps/pipes-service/internal/broker"
	"github.com/arc-self/apps/pipes-service/internal/pipes"
)

// QueueTarget sends each event to an SQS-shaped queue, grounded on
// sqs_target.py: compact JSON body, optional MessageGroupId/MessageDeduplicationId
// for FIFO queues.
type QueueTarget struct {
	broker   broker.QueueBroker
	queueArn string
	params   *pipes.SqsTargetParameters
}

func NewQueueTarget(b broker.QueueBroker, queueArn string, params *pipes.SqsTargetParameters) *QueueTarget {
	return &QueueTarget{broker: b, queueArn: queueArn, params: params}
}

func (t *QueueTarget) Send(ctx context.Context, events []Event) error {
	groupID, dedupID := "", ""
	if t.params != nil {
		groupID = t.params.MessageGroupId
		dedupID = t.params.MessageDeduplicationId
	}

	// Per-event sends fan out concurrently (spec §4.1: a target is free to
	// fan out per-event); iter.MapErr waits for every send and combines all
	// failures into one error, whose customer/internal parts stay reachable
	// through errors.As.
	_, err := iter.MapErr(events, func(e *Event) (struct{}, error) {
		body, err := encodeBody(e.Payload)
		if err != nil {
			return struct{}{}, pipes.NewCustomerInvocationError("failed to encode event: %v", err)
		}
		if err := t.broker.SendMessage(ctx, t.queueArn, body, groupID, dedupID); err != nil {
			return struct{}{}, pipes.NewPipeInternalError(err)
		}
		return struct{}{}, nil
	})
	return err
}

func encodeBody(payload interface{}) (string, error) {
	if s, ok := payload.(string); ok {
		return s, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
