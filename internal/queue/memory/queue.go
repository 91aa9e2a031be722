// Package memory provides queue implementations for local development.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Nurhen02/ML-Data-Collection-Platform/internal/scrape"
)

// Queue is a bounded in-memory queue with context-aware operations. Delayed
// retries are held on timers and re-enter the channel when they fire.
type Queue struct {
	ch      chan scrape.Task
	closeMu sync.Mutex
	closed  bool
	timers  map[*time.Timer]struct{}
}

// NewQueue constructs a new queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	return &Queue{
		ch:     make(chan scrape.Task, capacity),
		timers: make(map[*time.Timer]struct{}),
	}
}

// Enqueue pushes a task into the queue or returns if the context ends.
func (q *Queue) Enqueue(ctx context.Context, task scrape.Task) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- task:
		return nil
	}
}

// Dequeue pops the next task, respecting context cancellation.
func (q *Queue) Dequeue(ctx context.Context) (scrape.Task, error) {
	select {
	case <-ctx.Done():
		return scrape.Task{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case task, ok := <-q.ch:
		if !ok {
			return scrape.Task{}, errors.New("queue closed")
		}
		return task, nil
	}
}

// Retry schedules the task to re-enter the queue after delay. The timer is
// dropped if the queue closes first.
func (q *Queue) Retry(_ context.Context, task scrape.Task, delay time.Duration) error {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return errors.New("queue closed")
	}

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		q.closeMu.Lock()
		defer q.closeMu.Unlock()
		delete(q.timers, timer)
		if q.closed {
			return
		}
		// A full queue drops the retry rather than blocking shutdown.
		select {
		case q.ch <- task:
		default:
		}
	})
	q.timers[timer] = struct{}{}
	return nil
}

// Close stops pending retries and closes the underlying channel for shutdown.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	for timer := range q.timers {
		timer.Stop()
	}
	q.timers = nil
	close(q.ch)
	q.closed = true
}
