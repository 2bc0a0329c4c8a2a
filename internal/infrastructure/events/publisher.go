package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"pdfrealm/internal/bootstrap/config"
	"pdfrealm/internal/bootstrap/logging"
	"pdfrealm/internal/errs"
	"pdfrealm/internal/ports"
)

// Noop drops events. Used when no broker is configured.
type Noop struct{}

func (Noop) PublishJobEvent(context.Context, ports.JobEvent) error { return nil }

// natsConn is the part of *nats.Conn the publisher needs.
type natsConn interface {
	Publish(subject string, data []byte) error
	Drain() error
	Close()
}

// NATS publishes job events as JSON on <prefix>.jobs.<session id>.
type NATS struct {
	conn   natsConn
	prefix string
}

var _ ports.JobEventPublisher = (*NATS)(nil)

func New(ctx context.Context, cfg config.EventsConfig) (ports.JobEventPublisher, func() error, error) {
	url := strings.TrimSpace(cfg.NATSURL)
	if url == "" {
		return Noop{}, func() error { return nil }, nil
	}

	conn, err := nats.Connect(url,
		nats.Name("pdfrealm-secure-ai"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, nil, errs.Wrap(err, "connect nats")
	}

	logging.Info(
		logging.WithAttrs(ctx, slog.String("component", "infrastructure.events")),
		"nats connected",
		slog.String("url", conn.ConnectedUrlRedacted()),
	)

	p := newNATS(conn, cfg.SubjectPrefix)
	return p, p.Close, nil
}

func newNATS(conn natsConn, prefix string) *NATS {
	p := strings.Trim(strings.TrimSpace(prefix), ".")
	if p == "" {
		p = "pdfrealm.secure_ai"
	}
	return &NATS{conn: conn, prefix: p}
}

func (n *NATS) PublishJobEvent(ctx context.Context, event ports.JobEvent) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return errs.Wrap(err, "marshal job event")
	}
	if err := n.conn.Publish(n.Subject(event.SessionID), payload); err != nil {
		return errs.Wrap(err, "publish job event")
	}
	return nil
}

func (n *NATS) Subject(sessionID string) string {
	return n.prefix + ".jobs." + sessionID
}

// Close flushes pending messages before closing the connection.
func (n *NATS) Close() error {
	if err := n.conn.Drain(); err != nil {
		n.conn.Close()
		return errs.Wrap(err, "drain nats")
	}
	return nil
}
