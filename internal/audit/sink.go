// Package audit records security events without ever blocking or failing
// the operation that produced them.
package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"clubhub/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Sink accepts events. Record must return immediately.
type Sink interface {
	Record(ctx context.Context, event models.AuditEvent)
}

// Writer persists one event somewhere durable.
type Writer interface {
	Write(ctx context.Context, event *models.AuditEvent) error
}

// AsyncSink buffers events and writes them from a single goroutine. When the
// buffer is full, or the sink is closed, new events are dropped and counted.
type AsyncSink struct {
	writer  Writer
	events  chan models.AuditEvent
	timeout time.Duration
	dropped atomic.Int64
	mu      sync.RWMutex
	closed  bool
	done    chan struct{}
}

func NewAsyncSink(writer Writer, buffer int, writeTimeout time.Duration) *AsyncSink {
	if buffer <= 0 {
		buffer = 256
	}
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	s := &AsyncSink{
		writer:  writer,
		events:  make(chan models.AuditEvent, buffer),
		timeout: writeTimeout,
		done:    make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *AsyncSink) Record(_ context.Context, event models.AuditEvent) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		n := s.dropped.Add(1)
		zap.L().Warn("audit sink closed, event dropped", zap.String("action", event.Action), zap.Int64("dropped_total", n))
		return
	}
	select {
	case s.events <- event:
	default:
		n := s.dropped.Add(1)
		zap.L().Warn("audit buffer full, event dropped", zap.String("action", event.Action), zap.Int64("dropped_total", n))
	}
}

func (s *AsyncSink) run() {
	defer close(s.done)
	for event := range s.events {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		if err := s.writer.Write(ctx, &event); err != nil {
			zap.L().Error("failed to write audit event", zap.String("action", event.Action), zap.Error(err))
		}
		cancel()
	}
}

// Dropped returns how many events were discarded.
func (s *AsyncSink) Dropped() int64 {
	return s.dropped.Load()
}

// Close stops accepting events and waits for the buffer to drain or ctx to end.
func (s *AsyncSink) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	s.mu.Unlock()
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Event builds an audit event for actor acting on a target user.
func Event(action string, actorUserID, actorClubID *uuid.UUID, target *models.User) models.AuditEvent {
	event := models.AuditEvent{
		Action:      action,
		ActorUserID: actorUserID,
		ActorClubID: actorClubID,
	}
	if target != nil {
		id := target.ID
		event.TargetUserID = &id
		event.TargetClubID = target.ClubID
	}
	return event
}
