package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Guizzs26/sample-outreach/pkg/metrics"
)

// DispatchHandler adapts the worker pool to the broker consumer: one message
// is one batch of tasks, each task is resolved through a pool future.
type DispatchHandler struct {
	pool   *WorkerPool
	logger *slog.Logger
}

func NewDispatchHandler(pool *WorkerPool, logger *slog.Logger) *DispatchHandler {
	return &DispatchHandler{pool: pool, logger: logger}
}

// HandleMessage implements broker.Handler. The consumer runs at-most-once, so
// any error here lands the message on the dead-letter queue; "FATAL:" marks
// the ones that would never succeed on a replay either.
func (h *DispatchHandler) HandleMessage(ctx context.Context, messageID string, body []byte) error {
	start := time.Now()
	status := "success"
	defer func() {
		metrics.TasksDispatched.WithLabelValues(status).Inc()
		metrics.DispatchDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	}()

	tasks, err := ParseDispatchTasks(body)
	if err != nil {
		status = "fatal"
		return err
	}

	futures := make([]*Future, 0, len(tasks))
	for _, task := range tasks {
		fut, err := h.pool.Submit(task)
		if err != nil {
			status = "failed"
			return fmt.Errorf("failed to submit task %s: %w", task.TaskID, err)
		}
		futures = append(futures, fut)
	}

	var failures []string
	for i, fut := range futures {
		if err := fut.Wait(ctx); err != nil {
			failures = append(failures, fmt.Sprintf("task %s: %v", tasks[i].TaskID, err))
		}
	}
	if len(failures) > 0 {
		status = "failed"
		return fmt.Errorf("%d of %d tasks failed: %s", len(failures), len(tasks), strings.Join(failures, "; "))
	}

	h.logger.Info("Dispatch batch completed", "message_id", messageID, "tasks", len(tasks))
	return nil
}
