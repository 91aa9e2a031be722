// Package redis implements the task queue on Redis lists, with a sorted set
// holding delayed retries until they come due.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Nurhen02/ML-Data-Collection-Platform/internal/scrape"
)

const (
	defaultQueueKey   = "scrape:tasks"
	defaultDelayedKey = "scrape:tasks:delayed"

	// Dequeue blocks in short slots so context cancellation is honored
	// promptly even though BRPOP itself cannot be interrupted mid-wait.
	blockSlot = time.Second

	moverInterval = time.Second
	moverBatch    = 64
)

// Queue is a Redis-backed task queue with at-least-once delivery.
type Queue struct {
	rdb        *redis.Client
	queueKey   string
	delayedKey string
	logger     *zap.Logger
}

// NewQueue constructs a Queue on the given client.
func NewQueue(rdb *redis.Client, logger *zap.Logger) *Queue {
	return &Queue{
		rdb:        rdb,
		queueKey:   defaultQueueKey,
		delayedKey: defaultDelayedKey,
		logger:     logger,
	}
}

// Enqueue pushes a task onto the ready list.
func (q *Queue) Enqueue(ctx context.Context, task scrape.Task) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	if err := q.rdb.LPush(ctx, q.queueKey, payload).Err(); err != nil {
		return fmt.Errorf("lpush task: %w", err)
	}
	return nil
}

// Dequeue blocks until a task is available or the context finishes.
func (q *Queue) Dequeue(ctx context.Context) (scrape.Task, error) {
	for {
		if err := ctx.Err(); err != nil {
			return scrape.Task{}, fmt.Errorf("dequeue canceled: %w", err)
		}

		values, err := q.rdb.BRPop(ctx, blockSlot, q.queueKey).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return scrape.Task{}, fmt.Errorf("brpop task: %w", err)
		}

		// BRPOP returns [key, value].
		var task scrape.Task
		if err := json.Unmarshal([]byte(values[1]), &task); err != nil {
			q.logger.Error("malformed task payload dropped", zap.Error(err))
			continue
		}
		return task, nil
	}
}

// Retry parks the task in the delayed set, scored by its due time. The mover
// loop promotes it onto the ready list once the score passes.
func (q *Queue) Retry(ctx context.Context, task scrape.Task, delay time.Duration) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	due := time.Now().Add(delay)
	member := redis.Z{Score: float64(due.Unix()), Member: payload}
	if err := q.rdb.ZAdd(ctx, q.delayedKey, member).Err(); err != nil {
		return fmt.Errorf("zadd delayed task: %w", err)
	}
	return nil
}

// RunMover promotes due delayed tasks until the context finishes. Run it once
// per process alongside the workers.
func (q *Queue) RunMover(ctx context.Context) {
	ticker := time.NewTicker(moverInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if moved, err := q.moveDue(ctx); err != nil {
				if ctx.Err() == nil {
					q.logger.Error("delayed task promotion failed", zap.Error(err))
				}
			} else if moved > 0 {
				q.logger.Debug("promoted delayed tasks", zap.Int("count", moved))
			}
		}
	}
}

// moveDue shifts every due member from the delayed set to the ready list.
func (q *Queue) moveDue(ctx context.Context) (int, error) {
	now := strconv.FormatInt(time.Now().Unix(), 10)
	payloads, err := q.rdb.ZRangeByScore(ctx, q.delayedKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   now,
		Count: moverBatch,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("zrangebyscore delayed: %w", err)
	}

	moved := 0
	for _, payload := range payloads {
		// ZREM first so a concurrent mover cannot promote the same task.
		removed, err := q.rdb.ZRem(ctx, q.delayedKey, payload).Result()
		if err != nil {
			return moved, fmt.Errorf("zrem delayed: %w", err)
		}
		if removed == 0 {
			continue
		}
		if err := q.rdb.LPush(ctx, q.queueKey, payload).Err(); err != nil {
			return moved, fmt.Errorf("lpush promoted task: %w", err)
		}
		moved++
	}
	return moved, nil
}
