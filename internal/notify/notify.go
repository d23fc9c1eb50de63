// Package notify publishes committed workflow changes to NATS so other
// systems can follow cases without polling.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/venus-kyc/caseflow/internal/store"
)

// DefaultPrefix is used when no subject prefix is configured.
const DefaultPrefix = "caseflow"

// Nop discards everything. It is used when no broker is configured.
type Nop struct{}

func (Nop) CaseEvent(context.Context, store.Event) error { return nil }

func (Nop) AdHocActivity(context.Context, store.AdHocTask, store.Activity) error { return nil }

// publisher is the part of *nats.Conn used for sending.
type publisher interface {
	Publish(subject string, data []byte) error
}

// NATS publishes JSON messages on per-case and per-task subjects.
type NATS struct {
	conn   publisher
	nc     *nats.Conn
	prefix string
	log    *slog.Logger
}

// AdHocMessage is the payload published for ad-hoc task activity.
type AdHocMessage struct {
	TaskID   string            `json:"task_id"`
	Owner    string            `json:"owner"`
	Assignee string            `json:"assignee"`
	Status   store.AdHocStatus `json:"status"`
	Author   string            `json:"author"`
	Message  string            `json:"message"`
	Time     time.Time         `json:"time"`
}

// Connect dials the broker at url.
func Connect(url, prefix string, logger *slog.Logger) (*NATS, error) {
	if logger == nil {
		logger = slog.Default()
	}
	nc, err := nats.Connect(url,
		nats.Name("caseflow"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "err", err)
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	n := newNATS(nc, prefix, logger)
	n.nc = nc
	return n, nil
}

func newNATS(conn publisher, prefix string, logger *slog.Logger) *NATS {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &NATS{conn: conn, prefix: strings.TrimSuffix(prefix, "."), log: logger}
}

// CaseEvent publishes e on <prefix>.case.<caseID>.<type>.
func (n *NATS) CaseEvent(ctx context.Context, e store.Event) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before publish: %w", err)
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	subject := CaseSubject(n.prefix, e.CaseID, e.Type)
	if err := n.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	n.log.Debug("published case event", "subject", subject)
	return nil
}

// AdHocActivity publishes an activity entry on <prefix>.adhoc.<taskID>.
func (n *NATS) AdHocActivity(ctx context.Context, task store.AdHocTask, a store.Activity) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before publish: %w", err)
	}
	data, err := json.Marshal(AdHocMessage{
		TaskID:   task.ID,
		Owner:    task.Owner,
		Assignee: task.Assignee,
		Status:   task.Status,
		Author:   a.Author,
		Message:  a.Message,
		Time:     a.Time,
	})
	if err != nil {
		return fmt.Errorf("marshal activity: %w", err)
	}
	subject := AdHocSubject(n.prefix, task.ID)
	if err := n.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Watch subscribes to every caseflow subject and calls fn for each message
// until ctx is done.
func (n *NATS) Watch(ctx context.Context, fn func(subject string, data []byte)) error {
	if n.nc == nil {
		return fmt.Errorf("watch: not connected")
	}
	sub, err := n.nc.Subscribe(n.prefix+".>", func(m *nats.Msg) {
		fn(m.Subject, m.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	defer sub.Unsubscribe()
	<-ctx.Done()
	return nil
}

// Close drains and closes the connection.
func (n *NATS) Close() {
	if n.nc == nil {
		return
	}
	if err := n.nc.Drain(); err != nil {
		n.log.Warn("nats drain failed", "err", err)
	}
	n.nc.Close()
}

// CaseSubject returns the subject for a case event.
func CaseSubject(prefix string, caseID int64, eventType string) string {
	return fmt.Sprintf("%s.case.%d.%s", prefix, caseID, strings.ToLower(eventType))
}

// AdHocSubject returns the subject for ad-hoc task activity.
func AdHocSubject(prefix, taskID string) string {
	return fmt.Sprintf("%s.adhoc.%s", prefix, taskID)
}
