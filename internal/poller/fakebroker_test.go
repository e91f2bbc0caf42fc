package poller

import (
	"context"
	"strconv"
	"strings"

	"github.com/arc-self/apps/pipes-service/internal/broker"
)

type fakeQueueBroker struct {
	messages []broker.Message
	deleted  []string
	err      error
}

func (f *fakeQueueBroker) SendMessage(ctx context.Context, queueArn, body, groupID, dedupID string) error {
	return nil
}

func (f *fakeQueueBroker) ReceiveMessage(ctx context.Context, queueArn string, maxMessages, waitSeconds int) ([]broker.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	msgs := f.messages
	if len(msgs) > maxMessages {
		msgs = msgs[:maxMessages]
	}
	f.messages = f.messages[len(msgs):]
	return msgs, nil
}

func (f *fakeQueueBroker) DeleteMessage(ctx context.Context, queueArn, receiptHandle string) error {
	f.deleted = append(f.deleted, receiptHandle)
	return nil
}

// fakeStreamBroker models shard iterators as "<shardID>@<position>" so Poll
// behavior (advancing per shard, round-robin across shards) can be exercised
// without a real broker.
type fakeStreamBroker struct {
	shards  []string
	records map[string][]broker.Record // shardID -> records
	err     error
}

func newFakeStreamBroker() *fakeStreamBroker {
	return &fakeStreamBroker{records: make(map[string][]broker.Record)}
}

func (f *fakeStreamBroker) PutRecord(ctx context.Context, streamArn, partitionKey string, data []byte) error {
	return nil
}

func (f *fakeStreamBroker) ListShards(ctx context.Context, streamArn string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.shards, nil
}

func (f *fakeStreamBroker) GetShardIterator(ctx context.Context, streamArn, shardID, startingPosition string) (string, error) {
	return shardID + "@0", nil
}

func (f *fakeStreamBroker) GetRecords(ctx context.Context, shardIterator string, limit int) ([]broker.Record, string, error) {
	shardID, pos := parseFakeIterator(shardIterator)
	all := f.records[shardID]
	if pos >= len(all) {
		return nil, shardIterator, nil
	}
	end := pos + limit
	if end > len(all) {
		end = len(all)
	}
	batch := all[pos:end]
	next := shardID + "@" + strconv.Itoa(end)
	return batch, next, nil
}

func parseFakeIterator(it string) (string, int) {
	idx := strings.LastIndex(it, "@")
	shardID := it[:idx]
	pos, _ := strconv.Atoi(it[idx+1:])
	return shardID, pos
}
