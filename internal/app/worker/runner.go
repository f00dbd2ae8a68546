// Package worker consumes background tasks from the broker and executes
// them: solver runs, grid detection, retention cleanup and stats refresh.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sudoku-arena/arena-api/internal/app/domain/sudoku"
	"github.com/sudoku-arena/arena-api/internal/app/metrics"
	"github.com/sudoku-arena/arena-api/internal/app/queue"
	"github.com/sudoku-arena/arena-api/internal/app/services/detection"
	statssvc "github.com/sudoku-arena/arena-api/internal/app/services/stats"
	"github.com/sudoku-arena/arena-api/internal/app/services/sudokus"
	"github.com/sudoku-arena/arena-api/internal/app/system"
	"github.com/sudoku-arena/arena-api/pkg/logger"
	sudokusolver "github.com/sudoku-arena/arena-api/pkg/sudoku"
)

var _ system.Service = (*Runner)(nil)

// Defaults for the consume loop.
const (
	DefaultDequeueTimeout   = 5 * time.Second
	DefaultSolveTimeout     = 2 * time.Minute
	DefaultCleanupRetention = 24 * time.Hour
	cancelPollInterval      = 500 * time.Millisecond
)

// CleanupPayload carries an optional retention override for cleanup tasks.
type CleanupPayload struct {
	RetentionHours int `json:"retention_hours,omitempty"`
}

// RefreshPayload names the player whose stats should be recomputed.
type RefreshPayload struct {
	UserID string `json:"user_id"`
}

// Runner is the lifecycle-managed queue consumer.
type Runner struct {
	broker     queue.Broker
	sudokus    *sudokus.Service
	stats      *statssvc.Service
	recognizer detection.Recognizer
	log        *logger.Logger

	dequeueTimeout   time.Duration
	solveTimeout     time.Duration
	cleanupRetention time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewRunner constructs a worker. The recognizer is optional; without it,
// detection tasks fail and mark the puzzle accordingly.
func NewRunner(broker queue.Broker, sud *sudokus.Service, stats *statssvc.Service, rec detection.Recognizer, log *logger.Logger) *Runner {
	if log == nil {
		log = logger.NewDefault("worker")
	}
	return &Runner{
		broker:           broker,
		sudokus:          sud,
		stats:            stats,
		recognizer:       rec,
		log:              log,
		dequeueTimeout:   DefaultDequeueTimeout,
		solveTimeout:     DefaultSolveTimeout,
		cleanupRetention: DefaultCleanupRetention,
	}
}

// Configure overrides the loop timeouts. Zero values keep the defaults.
func (r *Runner) Configure(dequeue, solve, retention time.Duration) {
	if dequeue > 0 {
		r.dequeueTimeout = dequeue
	}
	if solve > 0 {
		r.solveTimeout = solve
	}
	if retention > 0 {
		r.cleanupRetention = retention
	}
}

func (r *Runner) Name() string { return "worker" }

// Start launches the consume loop.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.consume(runCtx)
	}()

	r.log.Info("worker started")
	return nil
}

// Stop cancels the consume loop and waits for in-flight work.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	cancel := r.cancel
	r.running = false
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	r.log.Info("worker stopped")
	return nil
}

func (r *Runner) consume(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		task, ok, err := r.broker.Dequeue(ctx, r.dequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.log.WithError(err).Warn("dequeue failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if depth, err := r.broker.Depth(ctx); err == nil {
			metrics.SetQueueDepth(depth)
		}
		if !ok {
			continue
		}

		r.Handle(ctx, task)
	}
}

// Handle executes one task and records its outcome. Exported so tests and
// the scheduler can drive tasks synchronously.
func (r *Runner) Handle(ctx context.Context, task queue.Task) {
	start := time.Now()
	err := r.dispatch(ctx, task)
	status := "ok"
	if err != nil {
		status = "error"
		r.log.WithError(err).
			WithField("task_id", task.ID).
			WithField("task", task.Name).
			Error("task failed")
	}
	metrics.RecordTaskRun(task.Name, status, time.Since(start))
}

func (r *Runner) dispatch(ctx context.Context, task queue.Task) error {
	switch task.Name {
	case queue.TaskSolveSudoku:
		return r.handleSolve(ctx, task)
	case queue.TaskDetectSudoku:
		return r.handleDetect(ctx, task)
	case queue.TaskCleanupAnonymous:
		return r.handleCleanup(ctx, task)
	case queue.TaskRefreshStats:
		return r.handleRefreshStats(ctx, task)
	case queue.TaskRefreshAllStats:
		_, err := r.stats.RefreshAll(ctx)
		return err
	default:
		return fmt.Errorf("unknown task %q", task.Name)
	}
}

func (r *Runner) handleSolve(ctx context.Context, task queue.Task) error {
	var payload sudokus.SolvePayload
	if err := task.DecodePayload(&payload); err != nil {
		return fmt.Errorf("decode solve payload: %w", err)
	}
	if payload.SudokuID == "" {
		return fmt.Errorf("solve payload missing sudoku_id")
	}

	if cancelled, err := r.broker.Cancelled(ctx, task.ID); err == nil && cancelled {
		_, err := r.sudokus.SetStatus(ctx, payload.SudokuID, sudoku.StatusAborted)
		return err
	}

	sd, err := r.sudokus.SetStatus(ctx, payload.SudokuID, sudoku.StatusRunning)
	if err != nil {
		return err
	}

	grid, err := sudokusolver.Parse(sd.Grid)
	if err != nil {
		_, serr := r.sudokus.SetStatus(ctx, sd.ID, sudoku.StatusInvalid)
		if serr != nil {
			return serr
		}
		return nil
	}
	if err := grid.CheckConsistency(); err != nil {
		_, serr := r.sudokus.SetStatus(ctx, sd.ID, sudoku.StatusInvalid)
		if serr != nil {
			return serr
		}
		return nil
	}

	solveCtx, cancel := context.WithTimeout(ctx, r.solveTimeout)
	defer cancel()
	stopPoll := r.watchCancellation(solveCtx, cancel, task.ID)
	defer stopPoll()

	solved, err := grid.Solve(solveCtx)
	if err != nil {
		status := sudoku.StatusFailed
		if errors.Is(err, context.Canceled) || errors.Is(solveCtx.Err(), context.Canceled) {
			status = sudoku.StatusAborted
		} else if errors.Is(err, sudokusolver.ErrUnsolvable) {
			status = sudoku.StatusFailed
		}
		_, serr := r.sudokus.SetStatus(ctx, sd.ID, status)
		if serr != nil {
			return serr
		}
		return nil
	}

	if _, err := r.sudokus.StoreSolution(ctx, sd.ID, solved.String()); err != nil {
		return err
	}
	r.log.WithField("sudoku_id", sd.ID).Info("sudoku solved")
	return nil
}

// watchCancellation polls the broker cancel flag and cancels the solve
// context when the API requested an abort.
func (r *Runner) watchCancellation(ctx context.Context, cancel context.CancelFunc, taskID string) func() {
	done := make(chan struct{})
	var once sync.Once
	go func() {
		ticker := time.NewTicker(cancelPollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				if cancelled, err := r.broker.Cancelled(ctx, taskID); err == nil && cancelled {
					cancel()
					return
				}
			}
		}
	}()
	return func() { once.Do(func() { close(done) }) }
}

func (r *Runner) handleDetect(ctx context.Context, task queue.Task) error {
	var payload sudokus.DetectPayload
	if err := task.DecodePayload(&payload); err != nil {
		return fmt.Errorf("decode detect payload: %w", err)
	}
	if payload.SudokuID == "" {
		return fmt.Errorf("detect payload missing sudoku_id")
	}
	if r.recognizer == nil {
		_, err := r.sudokus.SetStatus(ctx, payload.SudokuID, sudoku.StatusFailed)
		if err != nil {
			return err
		}
		return fmt.Errorf("recognizer not configured")
	}

	if _, err := r.sudokus.SetStatus(ctx, payload.SudokuID, sudoku.StatusRunning); err != nil {
		return err
	}

	grid, err := r.recognizer.Recognize(ctx, payload.Image)
	if err != nil {
		if _, serr := r.sudokus.SetStatus(ctx, payload.SudokuID, sudoku.StatusFailed); serr != nil {
			return serr
		}
		return fmt.Errorf("recognize grid: %w", err)
	}

	if _, err := r.sudokus.CompleteDetection(ctx, payload.SudokuID, grid); err != nil {
		return err
	}
	r.log.WithField("sudoku_id", payload.SudokuID).Info("grid detected")
	return nil
}

func (r *Runner) handleCleanup(ctx context.Context, task queue.Task) error {
	var payload CleanupPayload
	if err := task.DecodePayload(&payload); err != nil {
		return fmt.Errorf("decode cleanup payload: %w", err)
	}
	retention := r.cleanupRetention
	if payload.RetentionHours > 0 {
		retention = time.Duration(payload.RetentionHours) * time.Hour
	}
	_, err := r.sudokus.CleanupAnonymous(ctx, retention)
	return err
}

func (r *Runner) handleRefreshStats(ctx context.Context, task queue.Task) error {
	var payload RefreshPayload
	if err := task.DecodePayload(&payload); err != nil {
		return fmt.Errorf("decode refresh payload: %w", err)
	}
	if payload.UserID == "" {
		return fmt.Errorf("refresh payload missing user_id")
	}
	return r.stats.Refresh(ctx, payload.UserID)
}
