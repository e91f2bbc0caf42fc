package poller

import (
	"context"

	"github.com/arc-self/apps/pipes-service/internal/broker"
	"github.com/arc-self/apps/pipes-service/internal/pipes"
)

// ShardPoller polls a Kinesis- or DynamoDB-streams-shaped source. Both
// services share this implementation (SPEC_FULL §12): DynamoDBStreamParameters
// mirrors KinesisStreamParameters exactly (StartingPosition, BatchSize), and
// original_source's pipe_worker_factory.py treats them as the same shape with
// a different service label on the factory branch.
type ShardPoller struct {
	broker     broker.StreamBroker
	streamArn  string
	batchSize  int
	startingPosition string

	shardIDs   []string
	iterators  map[string]string // committed position: only advanced on Ack
	pending    map[string]string // staged next-iterator for an in-flight, not-yet-acked batch
	nextShard  int
}

func NewShardPoller(b broker.StreamBroker, streamArn string, params *pipes.StreamParameters) *ShardPoller {
	batchSize := defaultBatchSize
	startingPosition := "TRIM_HORIZON"
	if params != nil {
		if params.BatchSize > 0 {
			batchSize = params.BatchSize
		}
		if params.StartingPosition != "" {
			startingPosition = params.StartingPosition
		}
	}
	return &ShardPoller{
		broker:           b,
		streamArn:        streamArn,
		batchSize:        batchSize,
		startingPosition: startingPosition,
		iterators:        make(map[string]string),
		pending:          make(map[string]string),
	}
}

func (p *ShardPoller) ensureShards(ctx context.Context) error {
	if p.shardIDs != nil {
		return nil
	}
	ids, err := p.broker.ListShards(ctx, p.streamArn)
	if err != nil {
		return pipes.NewPipeInternalError(err)
	}
	p.shardIDs = ids
	return nil
}

func (p *ShardPoller) iteratorFor(ctx context.Context, shardID string) (string, error) {
	if it, ok := p.iterators[shardID]; ok {
		return it, nil
	}
	it, err := p.broker.GetShardIterator(ctx, p.streamArn, shardID, p.startingPosition)
	if err != nil {
		return "", pipes.NewPipeInternalError(err)
	}
	p.iterators[shardID] = it
	return it, nil
}

// Poll walks the shard list round-robin, returning the first non-empty
// batch found. Ordering is preserved within a shard, not across shards
// (spec invariant: ordering within a pipe's single source, not globally).
// The next iterator is staged, not committed: a shard's read position only
// advances once Ack confirms the batch was processed, so a processor failure
// leaves the shard retryable from the same position (spec §4.3).
func (p *ShardPoller) Poll(ctx context.Context) ([]PolledEvent, error) {
	if err := p.ensureShards(ctx); err != nil {
		return nil, err
	}
	if len(p.shardIDs) == 0 {
		return nil, pipes.EmptyPollResults
	}

	for i := 0; i < len(p.shardIDs); i++ {
		shardID := p.shardIDs[p.nextShard]
		p.nextShard = (p.nextShard + 1) % len(p.shardIDs)

		iterator, err := p.iteratorFor(ctx, shardID)
		if err != nil {
			return nil, err
		}
		records, nextIterator, err := p.broker.GetRecords(ctx, iterator, p.batchSize)
		if err != nil {
			return nil, pipes.NewPipeInternalError(err)
		}

		if len(records) == 0 {
			continue
		}
		p.pending[shardID] = nextIterator
		events := make([]PolledEvent, len(records))
		for j, r := range records {
			events[j] = PolledEvent{Data: r.Data, Token: shardID}
		}
		return events, nil
	}
	return nil, pipes.EmptyPollResults
}

// Ack commits the staged iterator for each acked batch's shard, advancing
// that shard's read position. If Ack is never called for a batch (the
// processor failed), the shard's committed iterator is left untouched, so
// the next Poll of that shard re-reads the same records.
func (p *ShardPoller) Ack(ctx context.Context, events []PolledEvent) error {
	for _, e := range events {
		if next, ok := p.pending[e.Token]; ok {
			p.iterators[e.Token] = next
			delete(p.pending, e.Token)
		}
	}
	return nil
}
