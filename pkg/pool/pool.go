// Package pool provides a bounded concurrent task pool with explicit drain
// semantics: callers queue tasks freely and kick off processing in batches.
package pool

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// DefaultLimit bounds concurrent task executions when no explicit limit is
// configured.
const DefaultLimit = 10

// Task is one unit of work. A non-nil error marks the task as failed;
// failures are counted and isolated and never abort other tasks.
type Task func(ctx context.Context) error

// Stats is a point-in-time snapshot of pool activity.
type Stats struct {
	Started   int64 // tasks handed to a worker goroutine
	Completed int64 // tasks that finished without error
	Failed    int64 // tasks that returned an error or were cancelled before running
}

// Pool runs queued tasks with bounded concurrency. Submit queues work without
// running it; Start drains everything queued since the previous drain. A task
// that has been drained is never re-run by a later Start.
type Pool struct {
	limit  int64
	sem    *semaphore.Weighted
	logger *logrus.Logger

	mu    sync.Mutex
	queue []Task

	wg        sync.WaitGroup
	started   atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
}

// New creates a Pool allowing at most limit concurrent executions.
// Non-positive limits fall back to DefaultLimit.
func New(limit int, logger *logrus.Logger) *Pool {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Pool{
		limit:  int64(limit),
		sem:    semaphore.NewWeighted(int64(limit)),
		logger: logger,
	}
}

// Limit returns the configured concurrency bound.
func (p *Pool) Limit() int {
	return int(p.limit)
}

// Submit queues a task for the next drain. Nil tasks are ignored.
func (p *Pool) Submit(task Task) {
	if task == nil {
		return
	}
	p.mu.Lock()
	p.queue = append(p.queue, task)
	p.mu.Unlock()
}

// Pending returns the number of queued tasks not yet picked up by a drain.
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Start drains the queue: every task queued since the last drain begins
// running, at most limit at a time. Tasks queued during or after the drain
// wait for the next Start. Safe to call repeatedly and concurrently; a drain
// never re-runs tasks a previous drain picked up.
//
// Cancelling ctx stops tasks that have not yet acquired a worker slot; those
// are counted as failed.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	batch := p.queue
	p.queue = nil
	p.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	p.logger.WithField("tasks", len(batch)).Debug("Draining task queue")

	for _, task := range batch {
		task := task
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()

			if err := p.sem.Acquire(ctx, 1); err != nil {
				p.failed.Add(1)
				return
			}
			defer p.sem.Release(1)

			p.started.Add(1)
			if err := task(ctx); err != nil {
				p.failed.Add(1)
				return
			}
			p.completed.Add(1)
		}()
	}
}

// Wait blocks until every drained task has finished. Tasks still sitting in
// the queue do not count; drain them with Start first.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Stats returns a snapshot of the pool's counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Started:   p.started.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
	}
}
