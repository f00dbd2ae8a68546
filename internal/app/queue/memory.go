package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryBroker is an in-process Broker and Publisher for tests and local
// development without Redis.
type MemoryBroker struct {
	mu          sync.Mutex
	tasks       chan Task
	cancelled   map[string]bool
	subscribers map[string][]chan []byte
}

var _ Broker = (*MemoryBroker)(nil)
var _ Publisher = (*MemoryBroker)(nil)

// NewMemoryBroker creates an empty broker.
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		tasks:       make(chan Task, 256),
		cancelled:   make(map[string]bool),
		subscribers: make(map[string][]chan []byte),
	}
}

func (b *MemoryBroker) Enqueue(_ context.Context, name string, payload interface{}) (Task, error) {
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

	select {
	case b.tasks <- task:
		return task, nil
	default:
		return Task{}, fmt.Errorf("%w: queue full", ErrUnavailable)
	}
}

func (b *MemoryBroker) Dequeue(ctx context.Context, timeout time.Duration) (Task, bool, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case task := <-b.tasks:
		return task, true, nil
	case <-timer.C:
		return Task{}, false, nil
	case <-ctx.Done():
		return Task{}, false, ctx.Err()
	}
}

func (b *MemoryBroker) Cancel(_ context.Context, taskID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cancelled[taskID] = true
	return nil
}

func (b *MemoryBroker) Cancelled(_ context.Context, taskID string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cancelled[taskID], nil
}

func (b *MemoryBroker) Depth(_ context.Context) (int64, error) {
	return int64(len(b.tasks)), nil
}

func (b *MemoryBroker) Ping(context.Context) error { return nil }

func (b *MemoryBroker) Publish(_ context.Context, channel string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	b.mu.Lock()
	subs := append([]chan []byte(nil), b.subscribers[channel]...)
	b.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub <- raw:
		default: // slow subscriber, drop
		}
	}
	return nil
}

func (b *MemoryBroker) Subscribe(_ context.Context, channel string) (<-chan []byte, func(), error) {
	ch := make(chan []byte, 16)

	b.mu.Lock()
	b.subscribers[channel] = append(b.subscribers[channel], ch)
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subscribers[channel]
		for i, sub := range subs {
			if sub == ch {
				b.subscribers[channel] = append(subs[:i], subs[i+1:]...)
				close(ch)
				break
			}
		}
	}
	return ch, cancel, nil
}
