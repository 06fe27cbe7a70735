package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"clubhub/internal/models"
	"clubhub/internal/repositories"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// PostgresWriter stores events in the audit_events table.
type PostgresWriter struct {
	repo repositories.AuditLogsRepository
}

func NewPostgresWriter(repo repositories.AuditLogsRepository) *PostgresWriter {
	return &PostgresWriter{repo: repo}
}

func (w *PostgresWriter) Write(ctx context.Context, event *models.AuditEvent) error {
	return w.repo.Insert(ctx, event)
}

// LogWriter emits events as structured log lines.
type LogWriter struct{}

func (LogWriter) Write(_ context.Context, event *models.AuditEvent) error {
	fields := []zap.Field{
		zap.String("action", event.Action),
		zap.Time("occurred_at", event.OccurredAt),
	}
	if event.ActorUserID != nil {
		fields = append(fields, zap.String("actor_user_id", event.ActorUserID.String()))
	}
	if event.TargetUserID != nil {
		fields = append(fields, zap.String("target_user_id", event.TargetUserID.String()))
	}
	if event.TargetClubID != nil {
		fields = append(fields, zap.String("target_club_id", event.TargetClubID.String()))
	}
	zap.L().Info("audit", fields...)
	return nil
}

const AuditQueue = "audit.events"

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPWriter publishes events to a durable RabbitMQ queue. The connection is
// opened lazily and re-dialled after a failure.
type AMQPWriter struct {
	url   string
	queue string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   amqpChannel
	dial func() (amqpChannel, error)
}

func NewAMQPWriter(url string) *AMQPWriter {
	w := &AMQPWriter{url: url, queue: AuditQueue}
	w.dial = w.connect
	return w
}

func (w *AMQPWriter) connect() (amqpChannel, error) {
	conn, err := amqp.Dial(w.url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial failed: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel open failed: %w", err)
	}
	if _, err := ch.QueueDeclare(
		w.queue, // name
		true,    // durable
		false,   // autoDelete
		false,   // exclusive
		false,   // noWait
		nil,     // args
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq queue declare failed: %w", err)
	}
	w.conn = conn
	return ch, nil
}

func (w *AMQPWriter) Write(ctx context.Context, event *models.AuditEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode audit event: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.ch == nil {
		ch, err := w.dial()
		if err != nil {
			return err
		}
		w.ch = ch
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         event.Action,
		MessageId:    event.ID.String(),
		Body:         body,
	}
	if err := w.ch.PublishWithContext(ctx, "", w.queue, false, false, pub); err != nil {
		w.resetLocked()
		return fmt.Errorf("rabbitmq publish failed: %w", err)
	}
	return nil
}

func (w *AMQPWriter) resetLocked() {
	if w.ch != nil {
		_ = w.ch.Close()
		w.ch = nil
	}
	if w.conn != nil {
		_ = w.conn.Close()
		w.conn = nil
	}
}

func (w *AMQPWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.resetLocked()
	return nil
}
