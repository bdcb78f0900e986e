package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/webitel/document-exporter/internal/model"
)

const DefaultSubject = "document_exporter.notifications"

// NATS publishes notifications as JSON on a subject.
type NATS struct {
	conn    *nats.Conn
	subject string
}

func NewNATS(url, subject string) (*NATS, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	conn, err := nats.Connect(url,
		nats.Name("document-exporter"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	slog.Info("NATS notifier connected", "url", url, "subject", subject)
	return &NATS{conn: conn, subject: subject}, nil
}

type natsMessage struct {
	model.Notification
	SentAt time.Time `json:"sentAt"`
}

func (n *NATS) Notify(_ context.Context, msg model.Notification) {
	data, err := json.Marshal(natsMessage{Notification: msg, SentAt: time.Now().UTC()})
	if err != nil {
		slog.Error("failed to marshal notification", "error", err)
		return
	}
	if err := n.conn.Publish(n.subject, data); err != nil {
		slog.Warn("failed to publish notification",
			"subject", n.subject,
			"job_id", msg.JobID,
			"error", err)
	}
}

func (n *NATS) Close() error {
	if n == nil || n.conn == nil {
		return nil
	}
	return n.conn.Drain()
}
