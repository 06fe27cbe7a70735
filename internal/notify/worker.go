package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// TaskHandler turns queued tasks back into Notifier calls.
type TaskHandler struct {
	notifier Notifier
}

func NewTaskHandler(notifier Notifier) *TaskHandler {
	return &TaskHandler{notifier: notifier}
}

func (h *TaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var msg Message
	if err := json.Unmarshal(t.Payload(), &msg); err != nil {
		// A malformed payload will never succeed.
		return fmt.Errorf("failed to decode notification: %v: %w", err, asynq.SkipRetry)
	}
	if _, ok := templates[msg.Kind]; !ok {
		return fmt.Errorf("unknown message kind %q: %w", msg.Kind, asynq.SkipRetry)
	}
	if err := h.notifier.Send(ctx, msg); err != nil {
		return err
	}
	zap.L().Info("notification delivered", zap.String("kind", string(msg.Kind)))
	return nil
}

type WorkerConfig struct {
	Redis       asynq.RedisClientOpt
	Concurrency int
}

// Worker consumes the notification queue.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

func NewWorker(cfg WorkerConfig, handler *TaskHandler) *Worker {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	server := asynq.NewServer(cfg.Redis, asynq.Config{
		Concurrency:    concurrency,
		Queues:         map[string]int{QueueNotifications: 1},
		RetryDelayFunc: RetryDelay,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			zap.L().Warn("notification task failed",
				zap.String("type", task.Type()),
				zap.Int("retry", retried),
				zap.Int("max_retry", maxRetry),
				zap.Error(err))
		}),
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeSendNotification, handler.ProcessTask)

	return &Worker{server: server, mux: mux}
}

func (w *Worker) Start() error {
	zap.L().Info("starting notification worker")
	return w.server.Start(w.mux)
}

func (w *Worker) Stop() {
	zap.L().Info("stopping notification worker")
	w.server.Shutdown()
}

// RetryDelay backs off exponentially from 10s, capped at 10 minutes.
func RetryDelay(n int, _ error, _ *asynq.Task) time.Duration {
	d := time.Duration(math.Pow(2, float64(n))) * 10 * time.Second
	if d > 10*time.Minute || d <= 0 {
		return 10 * time.Minute
	}
	return d
}
