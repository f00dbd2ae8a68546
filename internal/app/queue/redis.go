package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/sudoku-arena/arena-api/pkg/logger"
)

const (
	defaultQueueKey = "arena:tasks"
	cancelKeyPrefix = "arena:cancel:"
	cancelTTL       = time.Hour
)

// RedisBroker implements Broker and Publisher on a Redis list and pub/sub.
type RedisBroker struct {
	client   *redis.Client
	queueKey string
	log      *logger.Logger
}

var _ Broker = (*RedisBroker)(nil)
var _ Publisher = (*RedisBroker)(nil)

// NewRedisBroker wraps an existing Redis client.
func NewRedisBroker(client *redis.Client, log *logger.Logger) *RedisBroker {
	if log == nil {
		log = logger.NewDefault("queue")
	}
	return &RedisBroker{
		client:   client,
		queueKey: defaultQueueKey,
		log:      log,
	}
}

func (b *RedisBroker) Enqueue(ctx context.Context, name string, payload interface{}) (Task, error) {
	task := Task{
		ID:         uuid.NewString(),
		Name:       name,
		EnqueuedAt: time.Now().UTC(),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Task{}, fmt.Errorf("marshal task payload: %w", err)
		}
		task.Payload = raw
	}

	envelope, err := json.Marshal(task)
	if err != nil {
		return Task{}, fmt.Errorf("marshal task: %w", err)
	}

	if err := b.client.LPush(ctx, b.queueKey, envelope).Err(); err != nil {
		return Task{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	b.log.WithField("task_id", task.ID).
		WithField("task", name).
		Debug("task enqueued")
	return task, nil
}

// Dequeue blocks up to timeout for the next task. The second return value is
// false when the wait timed out without work.
func (b *RedisBroker) Dequeue(ctx context.Context, timeout time.Duration) (Task, bool, error) {
	res, err := b.client.BRPop(ctx, timeout, b.queueKey).Result()
	if err == redis.Nil {
		return Task{}, false, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return Task{}, false, ctx.Err()
		}
		return Task{}, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(res) != 2 {
		return Task{}, false, fmt.Errorf("unexpected BRPOP reply length %d", len(res))
	}

	var task Task
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		return Task{}, false, fmt.Errorf("decode task: %w", err)
	}
	return task, true, nil
}

func (b *RedisBroker) Cancel(ctx context.Context, taskID string) error {
	if err := b.client.Set(ctx, cancelKeyPrefix+taskID, "1", cancelTTL).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (b *RedisBroker) Cancelled(ctx context.Context, taskID string) (bool, error) {
	n, err := b.client.Exists(ctx, cancelKeyPrefix+taskID).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n > 0, nil
}

func (b *RedisBroker) Depth(ctx context.Context) (int64, error) {
	n, err := b.client.LLen(ctx, b.queueKey).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n, nil
}

func (b *RedisBroker) Ping(ctx context.Context) error {
	if err := b.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (b *RedisBroker) Publish(ctx context.Context, channel string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, channel, raw).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Subscribe delivers raw event payloads until the returned cancel function is
// called.
func (b *RedisBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error) {
	sub := b.client.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	out := make(chan []byte, 16)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			select {
			case out <- []byte(msg.Payload):
			case <-ctx.Done():
				return
			}
		}
	}()

	cancel := func() { _ = sub.Close() }
	return out, cancel, nil
}
