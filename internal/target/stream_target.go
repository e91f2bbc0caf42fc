package target

import (
	"context"

	"github.com/sourcegraph/conc/iter"

	"github.com/arc-self/apps/pipes-service/internal/broker"
	"github.com/arc-self/apps/pipes-service/internal/pipes"
)

// StreamTarget sends each event to a Kinesis-shaped stream, grounded on
// kinesis_target.py: PartitionKey defaults to "default" when unset.
type StreamTarget struct {
	broker    broker.StreamBroker
	streamArn string
	params    *pipes.KinesisTargetParameters
}

func NewStreamTarget(b broker.StreamBroker, streamArn string, params *pipes.KinesisTargetParameters) *StreamTarget {
	return &StreamTarget{broker: b, streamArn: streamArn, params: params}
}

func (t *StreamTarget) Send(ctx context.Context, events []Event) error {
	partitionKey := "default"
	if t.params != nil && t.params.PartitionKey != "" {
		partitionKey = t.params.PartitionKey
	}

	_, err := iter.MapErr(events, func(e *Event) (struct{}, error) {
		body, err := encodeBody(e.Payload)
		if err != nil {
			return struct{}{}, pipes.NewCustomerInvocationError("failed to encode event: %v", err)
		}
		if err := t.broker.PutRecord(ctx, t.streamArn, partitionKey, []byte(body)); err != nil {
			return struct{}{}, pipes.NewPipeInternalError(err)
		}
		return struct{}{}, nil
	})
	return err
}
