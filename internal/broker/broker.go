// Package broker defines the AWS-shaped interfaces pollers and targets speak
// against, modeling the "underlying queue/stream servers" the spec treats as
// external collaborators. Production implementations live in
// internal/natsbroker; tests use small in-memory fakes of these interfaces.
package broker

import "context"

// Message is one queue message, SQS-shaped.
type Message struct {
	Body          string
	ReceiptHandle string
	Attributes    map[string]string
}

// QueueBroker is the SQS-shaped surface a queue source poller and a queue
// target both need: send, long-poll receive, and ack-by-delete.
type QueueBroker interface {
	SendMessage(ctx context.Context, queueArn string, body string, groupID, dedupID string) error
	ReceiveMessage(ctx context.Context, queueArn string, maxMessages int, waitSeconds int) ([]Message, error)
	DeleteMessage(ctx context.Context, queueArn string, receiptHandle string) error
}

// Record is one stream record, Kinesis/DynamoDB-streams shaped.
type Record struct {
	SequenceNumber string
	PartitionKey   string
	Data           []byte
}

// StreamBroker is the Kinesis/DynamoDB-streams-shaped surface a shard poller
// and a stream target both need.
type StreamBroker interface {
	PutRecord(ctx context.Context, streamArn string, partitionKey string, data []byte) error
	ListShards(ctx context.Context, streamArn string) ([]string, error)
	GetShardIterator(ctx context.Context, streamArn, shardID, startingPosition string) (string, error)
	GetRecords(ctx context.Context, shardIterator string, limit int) (records []Record, nextIterator string, err error)
}
