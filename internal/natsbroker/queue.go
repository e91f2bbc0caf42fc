package natsbroker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/arc-self/apps/pipes-service/internal/broker"
)

const queueDurableName = "pipes-queue-consumer"

// QueueBroker implements broker.QueueBroker over a JetStream stream per
// queue ARN, a pull consumer per queue, and an explicit-ack model matching
// event_consumer.go's Fetch/Ack/Nak loop.
type QueueBroker struct {
	client *Client
	log    *zap.Logger

	mu      sync.Mutex
	pending map[string]*nats.Msg // receipt handle -> message, for DeleteMessage/ack
	seq     uint64
}

func NewQueueBroker(client *Client, log *zap.Logger) *QueueBroker {
	return &QueueBroker{
		client:  client,
		log:     log,
		pending: make(map[string]*nats.Msg),
	}
}

func (b *QueueBroker) streamAndSubject(queueArn string) (stream, subject string) {
	token := sanitizeSubjectToken(queueArn)
	return "PIPES_QUEUE_" + token, "pipes.queue." + token
}

func (b *QueueBroker) SendMessage(ctx context.Context, queueArn string, body string, groupID, dedupID string) error {
	stream, subject := b.streamAndSubject(queueArn)
	if err := ensureStream(b.client.JS, stream, []string{subject}); err != nil {
		return err
	}
	msg := nats.NewMsg(subject)
	msg.Data = []byte(body)
	if groupID != "" {
		msg.Header.Set("Pipes-Message-Group-Id", groupID)
	}
	if dedupID != "" {
		msg.Header.Set(nats.MsgIdHdr, dedupID)
	}
	_, err := b.client.JS.PublishMsg(msg, nats.Context(ctx))
	if err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	return nil
}

func (b *QueueBroker) ReceiveMessage(ctx context.Context, queueArn string, maxMessages int, waitSeconds int) ([]broker.Message, error) {
	stream, subject := b.streamAndSubject(queueArn)
	if err := ensureStream(b.client.JS, stream, []string{subject}); err != nil {
		return nil, err
	}

	sub, err := b.client.JS.PullSubscribe(subject, queueDurableName,
		nats.AckExplicit(), nats.ManualAck(), nats.BindStream(stream))
	if err != nil {
		return nil, fmt.Errorf("pull subscribe %s: %w", subject, err)
	}
	defer sub.Unsubscribe()

	wait := time.Duration(waitSeconds) * time.Second
	if wait <= 0 {
		wait = time.Second
	}
	msgs, err := sub.Fetch(maxMessages, nats.MaxWait(wait))
	if err != nil {
		if err == nats.ErrTimeout {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch from %s: %w", subject, err)
	}

	out := make([]broker.Message, 0, len(msgs))
	b.mu.Lock()
	for _, m := range msgs {
		b.seq++
		handle := fmt.Sprintf("%s-%d", subject, b.seq)
		b.pending[handle] = m
		out = append(out, broker.Message{
			Body:          string(m.Data),
			ReceiptHandle: handle,
			Attributes:    headerToAttributes(m.Header),
		})
	}
	b.mu.Unlock()
	return out, nil
}

func (b *QueueBroker) DeleteMessage(ctx context.Context, queueArn string, receiptHandle string) error {
	b.mu.Lock()
	msg, ok := b.pending[receiptHandle]
	if ok {
		delete(b.pending, receiptHandle)
	}
	b.mu.Unlock()
	if !ok {
		return nil
	}
	if err := msg.Ack(); err != nil {
		return fmt.Errorf("ack %s: %w", receiptHandle, err)
	}
	return nil
}

func headerToAttributes(h nats.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}
