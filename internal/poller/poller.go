// Package poller implements the source pollers (spec §4.2-4.3): one Poller
// per running pipe, invoked once per worker loop iteration.
package poller

import (
	"context"

	"github.com/arc-self/apps/pipes-service/internal/pipes"
)

// PolledEvent is one raw event handed to the processor, carrying enough of
// the originating record to ack/nak it once processing completes.
type PolledEvent struct {
	Data  []byte
	Token string // opaque ack token: queue receipt handle, or the originating shard ID for streams
}

// Poller is implemented by the queue poller and the shared shard poller
// (Kinesis/DynamoDB-streams). Poll returns pipes.EmptyPollResults when there
// was nothing to read — the worker treats that as success, not failure, and
// does not apply backoff.
type Poller interface {
	// Poll returns up to a batch of events, or an error. Returning
	// pipes.EmptyPollResults (via errors.Is) signals "nothing to do".
	Poll(ctx context.Context) ([]PolledEvent, error)
	// Ack acknowledges events that were processed successfully, advancing
	// read position. For queues it deletes the message so it isn't
	// redelivered; for streams it commits the shard's staged iterator. Events
	// from a batch that was never acked (processor failure) must be re-read
	// from the same position on the next Poll.
	Ack(ctx context.Context, events []PolledEvent) error
}
