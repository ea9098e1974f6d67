package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Event subjects relative to the configured prefix.
const (
	SubjectEnrollmentCreated   = "enrollment.created"
	SubjectEnrollmentCancelled = "enrollment.cancelled"
)

// EnrollmentEvent is the payload published for enrollment lifecycle changes.
type EnrollmentEvent struct {
	EnrollmentID     string     `json:"enrollmentId"`
	StudentID        string     `json:"studentId"`
	CourseInstanceID string     `json:"courseInstanceId"`
	Status           string     `json:"status"`
	EnrolledAt       time.Time  `json:"enrolledAtUtc"`
	CancelledAt      *time.Time `json:"cancelledAtUtc,omitempty"`
	OccurredAt       time.Time  `json:"occurredAtUtc"`
}

type conn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// Publisher sends JSON events to NATS. A nil *Publisher drops every event.
type Publisher struct {
	conn   conn
	prefix string
	logger *zap.Logger
}

// NewPublisher connects to the NATS server at url. An empty url disables
// publishing and returns a nil publisher.
func NewPublisher(url, prefix string, logger *zap.Logger) (*Publisher, error) {
	if strings.TrimSpace(url) == "" {
		return nil, nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	nc, err := nats.Connect(url,
		nats.Name("course-registration-api"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	logger.Info("nats publisher initialised", zap.String("url", url), zap.String("prefix", prefix))
	return newPublisher(nc, prefix, logger), nil
}

func newPublisher(c conn, prefix string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{conn: c, prefix: strings.Trim(prefix, "."), logger: logger}
}

// Subject returns the fully qualified subject for name.
func (p *Publisher) Subject(name string) string {
	if p == nil || p.prefix == "" {
		return name
	}
	return p.prefix + "." + name
}

// Publish marshals event and sends it on the prefixed subject.
func (p *Publisher) Publish(ctx context.Context, name string, event interface{}) error {
	if p == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", name, err)
	}
	subject := p.Subject(name)
	if err := p.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	p.logger.Debug("event published", zap.String("subject", subject))
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.conn.Drain()
}
