package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Guizzs26/sample-outreach/internal/models"
	"github.com/Guizzs26/sample-outreach/pkg/metrics"
)

// Future resolves when a submitted task finishes.
type Future struct {
	done chan struct{}
	err  error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) resolve(err error) {
	f.err = err
	close(f.done)
}

// Wait blocks until the task finishes or ctx is cancelled.
func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-f.done:
		return f.err
	}
}

// SessionFactory builds the chat session a worker will own for its lifetime.
type SessionFactory func(accountName string) ChatSession

type job struct {
	task models.DispatchTask
	fut  *Future
}

// WorkerPool fans dispatch tasks out to a fixed set of workers, each driving
// its own browser session under its own account. Accounts are assigned
// round-robin when there are fewer accounts than workers.
type WorkerPool struct {
	workerCount  int
	accountNames []string
	factory      SessionFactory
	reporter     Reporter
	logger       *slog.Logger

	queue  chan job
	wg     sync.WaitGroup
	initMu sync.Mutex

	mu     sync.Mutex
	closed bool
}

func NewWorkerPool(workerCount int, accountNames []string, factory SessionFactory, reporter Reporter, logger *slog.Logger) *WorkerPool {
	if workerCount < 1 {
		workerCount = 1
	}
	if len(accountNames) == 0 {
		accountNames = []string{""}
	}
	return &WorkerPool{
		workerCount:  workerCount,
		accountNames: accountNames,
		factory:      factory,
		reporter:     reporter,
		logger:       logger,
		queue:        make(chan job, workerCount*2),
	}
}

// Start launches the workers. Sessions are lazy; the browser starts on the
// first task each worker picks up.
func (p *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < p.workerCount; i++ {
		account := p.accountNames[i%len(p.accountNames)]
		p.wg.Add(1)
		go p.workerLoop(ctx, i, account)
	}
	p.logger.Info("Worker pool started", "workers", p.workerCount, "accounts", len(p.accountNames))
}

// Submit enqueues a task and returns a future for its outcome.
func (p *WorkerPool) Submit(task models.DispatchTask) (*Future, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, fmt.Errorf("worker pool is closed")
	}

	fut := newFuture()
	p.queue <- job{task: task, fut: fut}
	return fut, nil
}

// Close drains the queue and waits for in-flight tasks, then tears down every
// session.
func (p *WorkerPool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info("Worker pool stopped")
}

func (p *WorkerPool) workerLoop(ctx context.Context, id int, accountName string) {
	defer p.wg.Done()

	l := p.logger.With("worker", id, "account_name", accountName)
	session := p.factory(accountName)
	defer session.Close()

	for j := range p.queue {
		if ctx.Err() != nil {
			j.fut.resolve(ctx.Err())
			continue
		}

		err := p.runTask(ctx, l, session, j.task)

		var sessErr *SessionError
		if errors.As(err, &sessErr) {
			l.Warn("Browser session broke, rebuilding before next task", "error", err)
			session.Close()
			metrics.SessionRebuilds.Inc()
		}
		j.fut.resolve(err)
	}
}

func (p *WorkerPool) runTask(ctx context.Context, l *slog.Logger, session ChatSession, task models.DispatchTask) error {
	l = l.With("task_id", task.TaskID, "creator_id", task.PlatformCreatorID)

	// One browser launch at a time; parallel cold starts thrash the host
	p.initMu.Lock()
	err := session.Ensure(ctx)
	p.initMu.Unlock()
	if err != nil {
		return err
	}

	defer func() {
		if homeErr := session.ReturnHome(ctx, task.Region); homeErr != nil {
			l.Warn("Failed to return to home (ignored)", "error", homeErr)
		}
	}()

	parts := RenderParts(task)
	if len(parts) == 0 {
		return fmt.Errorf("FATAL: task has no sendable message parts")
	}

	if err := session.SendMessages(ctx, task.PlatformCreatorID, task.Region, parts); err != nil {
		return err
	}
	metrics.MessagesSent.Add(float64(len(parts)))

	whatsapp, err := session.ExtractWhatsapp(ctx)
	if err != nil {
		l.Warn("Contact extraction failed (ignored)", "error", err)
	}

	if err := p.reporter.IncrementProgress(ctx, task.OutreachTaskID, task.OperatorID); err != nil {
		l.Warn("Failed to update outreach progress", "error", err)
	}

	snapshot := ContactSnapshot{
		PlatformCreatorID: task.PlatformCreatorID,
		Region:            task.Region,
		Whatsapp:          whatsapp,
		Sent:              true,
		SendTime:          time.Now().UTC().Format("2006-01-02 15:04:05"),
		AccountName:       task.AccountName,
	}
	operatorID := task.OperatorID
	if operatorID == "" {
		operatorID = task.TaskID
	}
	if err := p.reporter.SyncCreatorContact(ctx, operatorID, snapshot); err != nil {
		l.Warn("Failed to sync creator snapshot", "error", err)
	}

	l.Info("✅ Chat task dispatched", "parts", len(parts), "whatsapp_found", whatsapp != "")
	return nil
}
