package queue

import (
	"context"
	"testing"
	"time"
)

func TestMemoryBroker_EnqueueDequeue(t *testing.T) {
	broker := NewMemoryBroker()
	ctx := context.Background()

	type payload struct {
		SudokuID string `json:"sudoku_id"`
	}
	task, err := broker.Enqueue(ctx, TaskSolveSudoku, payload{SudokuID: "s1"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if task.ID == "" || task.Name != TaskSolveSudoku {
		t.Fatalf("unexpected task: %#v", task)
	}

	got, ok, err := broker.Dequeue(ctx, time.Second)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if !ok || got.ID != task.ID {
		t.Fatalf("expected enqueued task back, got ok=%v task=%#v", ok, got)
	}

	var p payload
	if err := got.DecodePayload(&p); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if p.SudokuID != "s1" {
		t.Fatalf("payload lost: %#v", p)
	}
}

func TestMemoryBroker_DequeueTimeout(t *testing.T) {
	broker := NewMemoryBroker()

	_, ok, err := broker.Dequeue(context.Background(), 10*time.Millisecond)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if ok {
		t.Fatal("expected timeout without task")
	}
}

func TestMemoryBroker_Cancellation(t *testing.T) {
	broker := NewMemoryBroker()
	ctx := context.Background()

	if err := broker.Cancel(ctx, "t1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	cancelled, err := broker.Cancelled(ctx, "t1")
	if err != nil {
		t.Fatalf("cancelled: %v", err)
	}
	if !cancelled {
		t.Fatal("expected task flagged cancelled")
	}

	cancelled, err = broker.Cancelled(ctx, "t2")
	if err != nil {
		t.Fatalf("cancelled: %v", err)
	}
	if cancelled {
		t.Fatal("unrelated task reported cancelled")
	}
}

func TestMemoryBroker_PublishSubscribe(t *testing.T) {
	broker := NewMemoryBroker()
	ctx := context.Background()

	events, cancel, err := broker.Subscribe(ctx, "sudoku:status:s1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	if err := broker.Publish(ctx, "sudoku:status:s1", map[string]string{"status": "running"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := broker.Publish(ctx, "sudoku:status:other", map[string]string{"status": "failed"}); err != nil {
		t.Fatalf("publish other: %v", err)
	}

	select {
	case raw := <-events:
		if string(raw) != `{"status":"running"}` {
			t.Fatalf("unexpected event: %s", raw)
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}

	select {
	case raw := <-events:
		t.Fatalf("received event for foreign channel: %s", raw)
	case <-time.After(20 * time.Millisecond):
	}
}
