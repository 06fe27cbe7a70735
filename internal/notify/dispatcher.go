package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const (
	TypeSendNotification = "notify:send"
	QueueNotifications   = "notifications"
)

// ErrDispatcherBusy is returned by InlineDispatcher when every delivery slot
// is taken. The message is dropped.
var ErrDispatcherBusy = errors.New("notification dispatcher busy")

// NewSendTask wraps msg in an asynq task.
func NewSendTask(msg Message, maxRetry int, timeout time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode notification: %w", err)
	}
	return asynq.NewTask(TypeSendNotification, payload,
		asynq.MaxRetry(maxRetry),
		asynq.Queue(QueueNotifications),
		asynq.Timeout(timeout),
	), nil
}

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AsynqDispatcher queues messages on Redis for the notification worker.
type AsynqDispatcher struct {
	client   enqueuer
	maxRetry int
	timeout  time.Duration
}

func NewAsynqDispatcher(client *asynq.Client, maxRetry int, timeout time.Duration) *AsynqDispatcher {
	return &AsynqDispatcher{client: client, maxRetry: maxRetry, timeout: timeout}
}

func (d *AsynqDispatcher) Dispatch(ctx context.Context, msg Message) error {
	task, err := NewSendTask(msg, d.maxRetry, d.timeout)
	if err != nil {
		return err
	}
	info, err := d.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("failed to enqueue notification: %w", err)
	}
	zap.L().Debug("notification queued", zap.String("task_id", info.ID), zap.String("kind", string(msg.Kind)))
	return nil
}

// InlineDispatcher delivers in background goroutines, bounded by a
// semaphore, retrying with exponential backoff. Used when no queue is
// configured.
type InlineDispatcher struct {
	notifier  Notifier
	sem       *semaphore.Weighted
	attempts  int
	baseDelay time.Duration
	timeout   time.Duration
	wg        sync.WaitGroup
}

func NewInlineDispatcher(notifier Notifier, concurrency int64, attempts int, baseDelay, timeout time.Duration) *InlineDispatcher {
	if concurrency <= 0 {
		concurrency = 4
	}
	if attempts <= 0 {
		attempts = 1
	}
	return &InlineDispatcher{
		notifier:  notifier,
		sem:       semaphore.NewWeighted(concurrency),
		attempts:  attempts,
		baseDelay: baseDelay,
		timeout:   timeout,
	}
}

// Dispatch never waits: it takes a free delivery slot or returns
// ErrDispatcherBusy.
func (d *InlineDispatcher) Dispatch(_ context.Context, msg Message) error {
	if !d.sem.TryAcquire(1) {
		return fmt.Errorf("%w: %s dropped", ErrDispatcherBusy, msg.Kind)
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.sem.Release(1)
		d.deliver(msg)
	}()
	return nil
}

func (d *InlineDispatcher) deliver(msg Message) {
	delay := d.baseDelay
	for attempt := 1; attempt <= d.attempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		err := d.notifier.Send(ctx, msg)
		cancel()
		if err == nil {
			return
		}
		zap.L().Warn("notification delivery failed",
			zap.String("kind", string(msg.Kind)),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if attempt < d.attempts {
			time.Sleep(delay)
			delay *= 2
		}
	}
	zap.L().Error("notification dropped after retries", zap.String("kind", string(msg.Kind)))
}

// Wait blocks until every dispatched delivery has finished.
func (d *InlineDispatcher) Wait() {
	d.wg.Wait()
}
