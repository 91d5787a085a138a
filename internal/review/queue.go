// Package review publishes ops alerts to the human review queue over NATS.
package review

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Xanaaash/MiMind-sub000/internal/crisis"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// DefaultSubject is the NATS subject ops alerts are published on.
const DefaultSubject = "mimind.safety.ops_alert"

// conn is the slice of *nats.Conn the queue needs.
type conn interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Close()
}

// Queue publishes ops alerts as JSON. It implements crisis.Publisher.
type Queue struct {
	conn    conn
	subject string
	logger  *zap.Logger
}

// Connect dials NATS with reconnect handling and returns a Queue.
func Connect(url, token, subject string, logger *zap.Logger) (*Queue, error) {
	opts := []nats.Option{
		nats.Name("mimind-safety"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return newQueue(nc, subject, logger), nil
}

func newQueue(c conn, subject string, logger *zap.Logger) *Queue {
	if subject == "" {
		subject = DefaultSubject
	}
	return &Queue{conn: c, subject: subject, logger: logger}
}

// PublishOpsAlert publishes event. The context is accepted for interface
// symmetry; core NATS publish is buffered and does not block on the server.
func (q *Queue) PublishOpsAlert(_ context.Context, event crisis.OpsAlertEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal ops alert: %w", err)
	}
	if err := q.conn.Publish(q.subject, payload); err != nil {
		return fmt.Errorf("publish %s: %w", q.subject, err)
	}
	q.logger.Debug("ops alert published",
		zap.String("subject", q.subject),
		zap.String("event_id", event.ID),
	)
	return nil
}

// Ping round-trips to the NATS server.
func (q *Queue) Ping(ctx context.Context) error {
	if err := q.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("nats ping: %w", err)
	}
	return nil
}

func (q *Queue) Close() {
	q.conn.Close()
}
