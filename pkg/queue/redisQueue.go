package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	defaultMaxRetries   = 3
	defaultBaseDelay    = 2 * time.Second
	defaultPopTimeout   = time.Second
	defaultPollInterval = 500 * time.Millisecond
)

// RedisQueueConfig contains configuration for RedisQueue
type RedisQueueConfig struct {
	MainQueue    string
	DelayedQueue string
	DLQ          string

	BaseDelay    time.Duration
	PopTimeout   time.Duration
	PollInterval time.Duration
}

func DefaultRedisQueueConfig(prefix string) *RedisQueueConfig {
	return &RedisQueueConfig{
		MainQueue:    prefix + ":tasks",
		DelayedQueue: prefix + ":tasks:delayed",
		DLQ:          prefix + ":dlq",
		BaseDelay:    defaultBaseDelay,
		PopTimeout:   defaultPopTimeout,
		PollInterval: defaultPollInterval,
	}
}

// RedisQueue keeps ready tasks in a list and retries in a sorted set
// scored by due time. Tasks out of retries land in the DLQ list.
type RedisQueue struct {
	client       *redis.Client
	config       *RedisQueueConfig
	retryManager *RetryManager
	log          logrus.FieldLogger
	wg           sync.WaitGroup
}

func NewRedisQueue(client *redis.Client, cfg *RedisQueueConfig, log logrus.FieldLogger) *RedisQueue {
	if cfg == nil {
		cfg = DefaultRedisQueueConfig("civicportal")
	}
	if cfg.PopTimeout <= 0 {
		cfg.PopTimeout = defaultPopTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = defaultBaseDelay
	}

	log.WithFields(logrus.Fields{
		"main":    cfg.MainQueue,
		"delayed": cfg.DelayedQueue,
		"dlq":     cfg.DLQ,
	}).Info("RedisQueue initialized")

	return &RedisQueue{
		client:       client,
		config:       cfg,
		retryManager: NewRetryManager(cfg.BaseDelay),
		log:          log,
	}
}

func (r *RedisQueue) Publish(ctx context.Context, task *Task) error {
	if task == nil {
		return fmt.Errorf("task cannot be nil")
	}
	if err := task.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}

	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	if err := r.client.LPush(ctx, r.config.MainQueue, data).Err(); err != nil {
		return fmt.Errorf("failed to publish task: %w", err)
	}
	return nil
}

func (r *RedisQueue) Subscribe(ctx context.Context, handler func(*Task) error) error {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.processDelayedTasks(ctx)
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}

		result, err := r.client.BRPop(ctx, r.config.PopTimeout, r.config.MainQueue).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.log.WithError(err).Error("Failed to pop task")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(r.config.PollInterval):
			}
			continue
		}

		// result is [key, value]
		r.handle(ctx, result[1], handler)
	}
}

func (r *RedisQueue) handle(ctx context.Context, raw string, handler func(*Task) error) {
	var task Task
	if err := json.Unmarshal([]byte(raw), &task); err != nil {
		r.moveToDLQ(ctx, raw, fmt.Errorf("decode task: %w", err))
		return
	}

	err := handler(&task)
	if err == nil {
		return
	}

	retry, delay := r.retryManager.ShouldRetry(&task, err)
	if !retry {
		r.moveToDLQ(ctx, raw, err)
		return
	}

	task.Attempts++
	data, mErr := json.Marshal(&task)
	if mErr != nil {
		r.moveToDLQ(ctx, raw, mErr)
		return
	}

	due := float64(time.Now().Add(delay).UnixMilli())
	if zErr := r.client.ZAdd(ctx, r.config.DelayedQueue, redis.Z{Score: due, Member: data}).Err(); zErr != nil {
		r.log.WithError(zErr).WithField("task_id", task.ID).Error("Failed to schedule retry")
		return
	}

	r.log.WithFields(logrus.Fields{
		"task_id": task.ID,
		"attempt": task.Attempts,
		"delay":   delay,
		"error":   err,
	}).Warn("Task failed, retry scheduled")
}

func (r *RedisQueue) processDelayedTasks(ctx context.Context) {
	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.moveReadyDelayedTasks(ctx); err != nil && ctx.Err() == nil {
				r.log.WithError(err).Error("Failed to move delayed tasks")
			}
		}
	}
}

// moveReadyDelayedTasks moves due retries back to the main list. ZRem
// decides ownership so two consumers never both requeue one task.
func (r *RedisQueue) moveReadyDelayedTasks(ctx context.Context) error {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	ready, err := r.client.ZRangeByScore(ctx, r.config.DelayedQueue, &redis.ZRangeBy{
		Min: "-inf",
		Max: now,
	}).Result()
	if err != nil {
		return err
	}

	for _, data := range ready {
		removed, err := r.client.ZRem(ctx, r.config.DelayedQueue, data).Result()
		if err != nil {
			return err
		}
		if removed == 0 {
			continue
		}
		if err := r.client.LPush(ctx, r.config.MainQueue, data).Err(); err != nil {
			return err
		}
	}
	return nil
}

type deadLetter struct {
	Task     json.RawMessage `json:"task"`
	Error    string          `json:"error"`
	FailedAt time.Time       `json:"failed_at"`
}

func (r *RedisQueue) moveToDLQ(ctx context.Context, raw string, cause error) {
	payload := json.RawMessage(raw)
	if !json.Valid(payload) {
		quoted, _ := json.Marshal(raw)
		payload = quoted
	}

	data, err := json.Marshal(deadLetter{Task: payload, Error: cause.Error(), FailedAt: time.Now().UTC()})
	if err != nil {
		r.log.WithError(err).Error("Failed to marshal dead letter")
		return
	}

	if err := r.client.LPush(ctx, r.config.DLQ, data).Err(); err != nil {
		r.log.WithError(err).Error("Failed to move task to DLQ")
		return
	}
	r.log.WithField("error", cause).Warn("Task moved to DLQ")
}

// Close waits for the delayed-task mover; the client is owned by the caller.
func (r *RedisQueue) Close() error {
	r.wg.Wait()
	return nil
}
