package natsbroker

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/arc-self/apps/pipes-service/internal/broker"
)

const defaultFetchWait = 2 * time.Second

// shardCount fixes the number of shards every stream is provisioned with.
// Kinesis streams can reshard; this emulator keeps the shard set static,
// which is sufficient for every SPEC_FULL source/target that addresses a
// stream by ARN rather than by individual shard lifecycle.
const shardCount = 4

// StreamBroker implements broker.StreamBroker over one JetStream stream per
// stream ARN, with per-shard subjects so Kinesis- and DynamoDB-streams-shaped
// shard iteration map onto ordered JetStream consumers (grounded on
// packages/go-core/natsclient/stream.go's AddStream/StreamConfig shape).
type StreamBroker struct {
	client *Client
	log    *zap.Logger
}

func NewStreamBroker(client *Client, log *zap.Logger) *StreamBroker {
	return &StreamBroker{client: client, log: log}
}

func (b *StreamBroker) streamName(streamArn string) string {
	return "PIPES_STREAM_" + sanitizeSubjectToken(streamArn)
}

func (b *StreamBroker) shardSubject(streamArn, shardID string) string {
	return "pipes.stream." + sanitizeSubjectToken(streamArn) + "." + shardID
}

func shardIDs() []string {
	ids := make([]string, shardCount)
	for i := range ids {
		ids[i] = fmt.Sprintf("shard-%04d", i)
	}
	return ids
}

func shardForPartitionKey(partitionKey string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(partitionKey))
	return fmt.Sprintf("shard-%04d", h.Sum32()%shardCount)
}

func (b *StreamBroker) ensureStream(streamArn string) (string, error) {
	name := b.streamName(streamArn)
	subjects := make([]string, 0, shardCount)
	for _, id := range shardIDs() {
		subjects = append(subjects, b.shardSubject(streamArn, id))
	}
	if err := ensureStream(b.client.JS, name, subjects); err != nil {
		return "", err
	}
	return name, nil
}

func (b *StreamBroker) PutRecord(ctx context.Context, streamArn string, partitionKey string, data []byte) error {
	if _, err := b.ensureStream(streamArn); err != nil {
		return err
	}
	if partitionKey == "" {
		partitionKey = "default"
	}
	shard := shardForPartitionKey(partitionKey)
	subject := b.shardSubject(streamArn, shard)

	envelope := recordEnvelope{PartitionKey: partitionKey, Data: base64.StdEncoding.EncodeToString(data)}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if _, err := b.client.JS.Publish(subject, payload, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	return nil
}

func (b *StreamBroker) ListShards(ctx context.Context, streamArn string) ([]string, error) {
	if _, err := b.ensureStream(streamArn); err != nil {
		return nil, err
	}
	return shardIDs(), nil
}

// shardIterator encodes the starting stream sequence number for a shard, the
// closest Go analogue to Kinesis' opaque ShardIterator token.
type shardIterator struct {
	StreamName string
	Subject    string
	StartSeq   uint64
}

func (b *StreamBroker) GetShardIterator(ctx context.Context, streamArn, shardID, startingPosition string) (string, error) {
	streamName, err := b.ensureStream(streamArn)
	if err != nil {
		return "", err
	}
	subject := b.shardSubject(streamArn, shardID)

	startSeq := uint64(1)
	if strings.EqualFold(startingPosition, "LATEST") {
		info, err := b.client.JS.StreamInfo(streamName)
		if err != nil {
			return "", fmt.Errorf("stream info %s: %w", streamName, err)
		}
		startSeq = info.State.LastSeq + 1
	}
	return encodeShardIterator(shardIterator{StreamName: streamName, Subject: subject, StartSeq: startSeq}), nil
}

func (b *StreamBroker) GetRecords(ctx context.Context, iteratorToken string, limit int) ([]broker.Record, string, error) {
	it, err := decodeShardIterator(iteratorToken)
	if err != nil {
		return nil, "", err
	}
	if limit <= 0 {
		limit = 100
	}

	consumerName := "pipes-cursor-" + strconv.FormatUint(it.StartSeq, 10)
	_, err = b.client.JS.AddConsumer(it.StreamName, &nats.ConsumerConfig{
		Durable:       sanitizeSubjectToken(consumerName),
		FilterSubject: it.Subject,
		DeliverPolicy: nats.DeliverByStartSequencePolicy,
		OptStartSeq:   it.StartSeq,
		AckPolicy:     nats.AckNonePolicy,
	})
	if err != nil && err != nats.ErrConsumerNameAlreadyInUse {
		return nil, "", fmt.Errorf("add consumer on %s: %w", it.StreamName, err)
	}

	sub, err := b.client.JS.PullSubscribe(it.Subject, sanitizeSubjectToken(consumerName), nats.BindStream(it.StreamName))
	if err != nil {
		return nil, "", fmt.Errorf("pull subscribe %s: %w", it.Subject, err)
	}
	defer sub.Unsubscribe()

	msgs, err := sub.Fetch(limit, nats.MaxWait(defaultFetchWait))
	if err != nil {
		if err == nats.ErrTimeout {
			return nil, encodeShardIterator(it), nil
		}
		return nil, "", fmt.Errorf("fetch %s: %w", it.Subject, err)
	}

	records := make([]broker.Record, 0, len(msgs))
	nextSeq := it.StartSeq
	for _, m := range msgs {
		var env recordEnvelope
		if err := json.Unmarshal(m.Data, &env); err != nil {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(env.Data)
		if err != nil {
			continue
		}
		meta, err := m.Metadata()
		seqNum := it.StartSeq
		if err == nil {
			seqNum = meta.Sequence.Stream
		}
		records = append(records, broker.Record{
			SequenceNumber: strconv.FormatUint(seqNum, 10),
			PartitionKey:   env.PartitionKey,
			Data:           data,
		})
		nextSeq = seqNum + 1
	}

	it.StartSeq = nextSeq
	return records, encodeShardIterator(it), nil
}

type recordEnvelope struct {
	PartitionKey string `json:"partition_key"`
	Data         string `json:"data"`
}

func encodeShardIterator(it shardIterator) string {
	b, _ := json.Marshal(it)
	return base64.StdEncoding.EncodeToString(b)
}

func decodeShardIterator(token string) (shardIterator, error) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return shardIterator{}, fmt.Errorf("invalid shard iterator: %w", err)
	}
	var it shardIterator
	if err := json.Unmarshal(raw, &it); err != nil {
		return shardIterator{}, fmt.Errorf("invalid shard iterator: %w", err)
	}
	return it, nil
}
