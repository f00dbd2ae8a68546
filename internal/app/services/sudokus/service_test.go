package sudokus

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sudoku-arena/arena-api/internal/app/domain/sudoku"
	"github.com/sudoku-arena/arena-api/internal/app/queue"
	"github.com/sudoku-arena/arena-api/internal/app/storage"
	"github.com/sudoku-arena/arena-api/internal/app/storage/memory"
	"github.com/sudoku-arena/arena-api/pkg/logger"
)

const testGrid = "530070000600195000098000060800060003400803001700020006060000280000419005000080079"

func newTestService() (*Service, *queue.MemoryBroker, *memory.Store) {
	store := memory.New()
	broker := queue.NewMemoryBroker()
	log := logger.NewDefault("sudokus-test")
	log.SetOutput(io.Discard)
	return New(store, broker, broker, log), broker, store
}

func TestCreate_ValidatesGrid(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	sd, err := svc.Create(ctx, "", CreateInput{Title: " Morning puzzle ", Difficulty: "easy", Grid: testGrid})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if sd.Status != sudoku.StatusCreated || sd.Title != "Morning puzzle" {
		t.Fatalf("unexpected sudoku: %#v", sd)
	}

	if _, err := svc.Create(ctx, "", CreateInput{Grid: "123"}); err == nil {
		t.Fatal("expected short grid rejection")
	}
	if _, err := svc.Create(ctx, "", CreateInput{Grid: testGrid, Difficulty: "brutal"}); err == nil {
		t.Fatal("expected difficulty rejection")
	}
}

func TestGet_AnonymousVisibility(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	anon, _ := svc.Create(ctx, "", CreateInput{Grid: testGrid})
	owned, _ := svc.Create(ctx, "user-1", CreateInput{Grid: testGrid})

	if _, err := svc.Get(ctx, "user-2", anon.ID); err != nil {
		t.Fatalf("anonymous puzzle should be readable: %v", err)
	}
	if _, err := svc.Get(ctx, "user-2", owned.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := svc.Get(ctx, "user-1", owned.ID); err != nil {
		t.Fatalf("owner read: %v", err)
	}
}

func TestList_SeparatesAnonymousAndOwned(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.Create(ctx, "", CreateInput{Grid: testGrid, Difficulty: "easy"}); err != nil {
			t.Fatalf("create anon: %v", err)
		}
	}
	if _, err := svc.Create(ctx, "user-1", CreateInput{Grid: testGrid, Difficulty: "hard"}); err != nil {
		t.Fatalf("create owned: %v", err)
	}

	anon, total, err := svc.List(ctx, "", nil, 0, 0)
	if err != nil {
		t.Fatalf("list anonymous: %v", err)
	}
	if total != 3 || len(anon) != 3 {
		t.Fatalf("expected 3 anonymous, got %d/%d", len(anon), total)
	}

	mine, total, err := svc.List(ctx, "user-1", []string{"hard"}, 0, 0)
	if err != nil {
		t.Fatalf("list owned: %v", err)
	}
	if total != 1 || mine[0].UserID != "user-1" {
		t.Fatalf("unexpected owned listing: %#v", mine)
	}

	if _, _, err := svc.List(ctx, "", []string{"nope"}, 0, 0); err == nil {
		t.Fatal("expected difficulty filter rejection")
	}
}

func TestRequestSolve_Lifecycle(t *testing.T) {
	svc, broker, _ := newTestService()
	ctx := context.Background()

	sd, _ := svc.Create(ctx, "", CreateInput{Grid: testGrid})

	pending, err := svc.RequestSolve(ctx, "", sd.ID)
	if err != nil {
		t.Fatalf("request solve: %v", err)
	}
	if pending.Status != sudoku.StatusPending || pending.TaskID == "" {
		t.Fatalf("unexpected state: %#v", pending)
	}

	task, ok, err := broker.Dequeue(ctx, time.Second)
	if err != nil || !ok {
		t.Fatalf("dequeue: ok=%v err=%v", ok, err)
	}
	if task.Name != queue.TaskSolveSudoku {
		t.Fatalf("unexpected task name: %s", task.Name)
	}
	var payload SolvePayload
	if err := task.DecodePayload(&payload); err != nil || payload.SudokuID != sd.ID {
		t.Fatalf("payload wrong: %#v err=%v", payload, err)
	}

	// a pending puzzle cannot be enqueued again
	if _, err := svc.RequestSolve(ctx, "", sd.ID); !errors.Is(err, ErrNotSolvable) {
		t.Fatalf("expected ErrNotSolvable, got %v", err)
	}
}

func TestAbort_SetsCancelFlag(t *testing.T) {
	svc, broker, _ := newTestService()
	ctx := context.Background()

	sd, _ := svc.Create(ctx, "", CreateInput{Grid: testGrid})
	pending, err := svc.RequestSolve(ctx, "", sd.ID)
	if err != nil {
		t.Fatalf("request solve: %v", err)
	}

	aborted, err := svc.Abort(ctx, "", sd.ID)
	if err != nil {
		t.Fatalf("abort: %v", err)
	}
	if aborted.Status != sudoku.StatusAborted {
		t.Fatalf("expected aborted, got %s", aborted.Status)
	}
	cancelled, err := broker.Cancelled(ctx, pending.TaskID)
	if err != nil || !cancelled {
		t.Fatalf("cancel flag not set: %v %v", cancelled, err)
	}

	// nothing in flight anymore
	if _, err := svc.Abort(ctx, "", sd.ID); !errors.Is(err, ErrNotAbortable) {
		t.Fatalf("expected ErrNotAbortable, got %v", err)
	}
}

func TestSolutionLifecycle(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	sd, _ := svc.Create(ctx, "", CreateInput{Grid: testGrid})

	// no solution until the solver completed
	if _, err := svc.Solution(ctx, "", sd.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.DeleteSolution(ctx, "", sd.ID); !errors.Is(err, ErrSolutionLocked) {
		t.Fatalf("expected ErrSolutionLocked, got %v", err)
	}

	solved := strings.Repeat("1", sudoku.GridSize)
	if _, err := svc.StoreSolution(ctx, sd.ID, solved); err != nil {
		t.Fatalf("store solution: %v", err)
	}

	sol, err := svc.Solution(ctx, "", sd.ID)
	if err != nil {
		t.Fatalf("solution: %v", err)
	}
	if sol.Grid != solved {
		t.Fatalf("unexpected solution grid: %s", sol.Grid)
	}

	reset, err := svc.DeleteSolution(ctx, "", sd.ID)
	if err != nil {
		t.Fatalf("delete solution: %v", err)
	}
	if reset.Status != sudoku.StatusCreated {
		t.Fatalf("status not reset: %s", reset.Status)
	}
	if _, err := svc.Solution(ctx, "", sd.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("solution should be gone, got %v", err)
	}
}

func TestUpdate_GridChangeResetsStatus(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	sd, _ := svc.Create(ctx, "user-1", CreateInput{Grid: testGrid})
	if _, err := svc.StoreSolution(ctx, sd.ID, strings.Repeat("2", sudoku.GridSize)); err != nil {
		t.Fatalf("store solution: %v", err)
	}

	newGrid := strings.Repeat(".", sudoku.GridSize-1) + "5"
	updated, err := svc.Update(ctx, "user-1", sd.ID, UpdateInput{Grid: &newGrid})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != sudoku.StatusCreated || updated.Grid != newGrid {
		t.Fatalf("grid change did not reset: %#v", updated)
	}
	if _, err := svc.Solution(ctx, "user-1", sd.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("stale solution survived: %v", err)
	}

	// anonymous callers cannot update
	if _, err := svc.Update(ctx, "", sd.ID, UpdateInput{}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestRequestDetect_EnqueuesPlaceholder(t *testing.T) {
	svc, broker, _ := newTestService()
	ctx := context.Background()

	sd, err := svc.RequestDetect(ctx, "", "aGVsbG8=")
	if err != nil {
		t.Fatalf("request detect: %v", err)
	}
	if sd.Status != sudoku.StatusPending || sd.Grid != BlankGrid || sd.TaskID == "" {
		t.Fatalf("unexpected placeholder: %#v", sd)
	}

	task, ok, err := broker.Dequeue(ctx, time.Second)
	if err != nil || !ok {
		t.Fatalf("dequeue: ok=%v err=%v", ok, err)
	}
	if task.Name != queue.TaskDetectSudoku {
		t.Fatalf("unexpected task name: %s", task.Name)
	}
	var payload DetectPayload
	if err := task.DecodePayload(&payload); err != nil || payload.Image != "aGVsbG8=" {
		t.Fatalf("payload wrong: %#v err=%v", payload, err)
	}

	if _, err := svc.RequestDetect(ctx, "", "  "); err == nil {
		t.Fatal("expected empty image rejection")
	}
}

func TestSetStatus_PublishesEvent(t *testing.T) {
	svc, broker, _ := newTestService()
	ctx := context.Background()

	sd, _ := svc.Create(ctx, "", CreateInput{Grid: testGrid})
	events, cancel, err := broker.Subscribe(ctx, StatusChannel(sd.ID))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	if _, err := svc.SetStatus(ctx, sd.ID, sudoku.StatusRunning); err != nil {
		t.Fatalf("set status: %v", err)
	}

	select {
	case raw := <-events:
		var ev StatusEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		if ev.SudokuID != sd.ID || ev.Status != sudoku.StatusRunning {
			t.Fatalf("unexpected event: %#v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no status event received")
	}
}
