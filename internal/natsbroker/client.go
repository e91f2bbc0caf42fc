// Package natsbroker implements internal/broker's QueueBroker and
// StreamBroker against NATS JetStream, the message substrate used
// throughout the rest of the service's surrounding stack.
package natsbroker

import (
	"fmt"
	"regexp"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Client wraps a JetStream-enabled NATS connection, grounded on
// packages/go-core/natsclient.Client.
type Client struct {
	Conn *nats.Conn
	JS   nats.JetStreamContext
	Log  *zap.Logger
}

func Connect(url string, logger *zap.Logger) (*Client, error) {
	nc, err := nats.Connect(url, nats.RetryOnFailedConnect(true), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("init JetStream: %w", err)
	}
	logger.Info("NATS JetStream connected", zap.String("url", url))
	return &Client{Conn: nc, JS: js, Log: logger}, nil
}

func (c *Client) Close() {
	if c.Conn == nil {
		return
	}
	if err := c.Conn.Drain(); err != nil {
		c.Conn.Close()
	}
}

var nonSubjectChars = regexp.MustCompile(`[^A-Za-z0-9_]`)

// sanitizeSubjectToken turns an arbitrary ARN-shaped identifier into a
// NATS-subject-safe token, since ARNs contain ':' and '/' which are
// meaningful to NATS subject routing.
func sanitizeSubjectToken(s string) string {
	return nonSubjectChars.ReplaceAllString(s, "_")
}

// ensureStream idempotently provisions a JetStream stream for a single
// queue/stream ARN, following ProvisionStreams' "AddStream, ignore already
// exists" shape from packages/go-core/natsclient/stream.go.
func ensureStream(js nats.JetStreamContext, name string, subjects []string) error {
	if _, err := js.StreamInfo(name); err == nil {
		return nil
	}
	_, err := js.AddStream(&nats.StreamConfig{
		Name:      name,
		Subjects:  subjects,
		Storage:   nats.FileStorage,
		Retention: nats.LimitsPolicy,
	})
	if err != nil && err != nats.ErrStreamNameAlreadyInUse {
		return fmt.Errorf("create stream %s: %w", name, err)
	}
	return nil
}
