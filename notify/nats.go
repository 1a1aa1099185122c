package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// DefaultSubjectPrefix is the subject prefix used when none is configured.
const DefaultSubjectPrefix = "openspec.changed"

// subjectTokenReplacer removes characters that are not valid inside a single
// NATS subject token.
var subjectTokenReplacer = strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_")

// NATSNotifier publishes notifications as JSON on
// <prefix>.<entity>[.<entityId>].
type NATSNotifier struct {
	conn   *nats.Conn
	prefix string
	logger *slog.Logger
}

// NewNATSNotifier connects to the NATS server at url.
func NewNATSNotifier(url, prefix string, logger *slog.Logger) (*NATSNotifier, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}

	conn, err := nats.Connect(url,
		nats.Name("openspec-viewer"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	logger.Info("Publishing change notifications to NATS", "url", url, "prefix", prefix)
	return &NATSNotifier{conn: conn, prefix: prefix, logger: logger}, nil
}

// Subject returns the subject a notification is published on.
func Subject(prefix string, n Notification) string {
	subject := prefix + "." + subjectTokenReplacer.Replace(string(n.AffectedEntity))
	if n.EntityID != "" {
		subject += "." + subjectTokenReplacer.Replace(n.EntityID)
	}
	return subject
}

// Notify publishes n.
func (p *NATSNotifier) Notify(ctx context.Context, n Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	subject := Subject(p.prefix, n)
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}

	p.logger.Debug("Published change notification", "subject", subject)
	return nil
}

// Close drains and closes the connection.
func (p *NATSNotifier) Close() error {
	if p.conn == nil {
		return nil
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return fmt.Errorf("drain NATS connection: %w", err)
	}
	return nil
}
