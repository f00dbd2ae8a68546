// Package queue provides the task broker used to hand work from the API to
// the background worker, plus the status fan-out channel backing the
// WebSocket stream.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Task names understood by the worker.
const (
	TaskSolveSudoku      = "solve_sudoku"
	TaskDetectSudoku     = "detect_sudoku"
	TaskCleanupAnonymous = "cleanup_anonymous_sudokus"
	TaskRefreshStats     = "refresh_user_stats"
	TaskRefreshAllStats  = "refresh_all_user_stats"
)

// ErrUnavailable indicates the broker backend cannot be reached. The API maps
// it to 503 so clients can retry.
var ErrUnavailable = errors.New("task broker unavailable")

// Task is the JSON envelope moved through the queue.
type Task struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// DecodePayload unmarshals the task payload into dst.
func (t Task) DecodePayload(dst interface{}) error {
	if len(t.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(t.Payload, dst)
}

// Broker moves tasks between producers and the worker and tracks
// cancellation flags for in-flight tasks.
type Broker interface {
	Enqueue(ctx context.Context, name string, payload interface{}) (Task, error)
	Dequeue(ctx context.Context, timeout time.Duration) (Task, bool, error)
	Cancel(ctx context.Context, taskID string) error
	Cancelled(ctx context.Context, taskID string) (bool, error)
	Depth(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
}

// Publisher fans out status events to subscribers of a named channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error)
}
