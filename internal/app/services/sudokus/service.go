// Package sudokus manages stored puzzles, solver task dispatch and the
// solution lifecycle.
package sudokus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sudoku-arena/arena-api/internal/app/domain/sudoku"
	"github.com/sudoku-arena/arena-api/internal/app/queue"
	"github.com/sudoku-arena/arena-api/internal/app/storage"
	"github.com/sudoku-arena/arena-api/pkg/logger"
)

// Sentinel errors surfaced to the transport layer.
var (
	// ErrForbidden means the puzzle belongs to another user.
	ErrForbidden = errors.New("sudoku belongs to another user")
	// ErrNotSolvable means a solver run cannot start from the current status.
	ErrNotSolvable = errors.New("sudoku cannot be solved in its current status")
	// ErrNotAbortable means there is no in-flight solver run to cancel.
	ErrNotAbortable = errors.New("sudoku has no abortable solver run")
	// ErrSolutionLocked means the solution cannot be deleted before the
	// solver completed.
	ErrSolutionLocked = errors.New("sudoku is not completed")
)

// Listing caps.
const (
	DefaultListLimit = 5
	MaxListLimit     = 25
)

// BlankGrid is the serialized form of an empty puzzle, used as the
// placeholder while detection runs.
var BlankGrid = strings.Repeat(".", sudoku.GridSize)

// StatusChannel names the pub/sub channel carrying status events for one
// puzzle.
func StatusChannel(sudokuID string) string {
	return "sudoku:status:" + sudokuID
}

// StatusEvent is the payload published on every status transition.
type StatusEvent struct {
	SudokuID string        `json:"sudoku_id"`
	Status   sudoku.Status `json:"status"`
}

// SolvePayload is the task envelope body for solve jobs.
type SolvePayload struct {
	SudokuID string `json:"sudoku_id"`
}

// DetectPayload is the task envelope body for grid detection jobs.
type DetectPayload struct {
	SudokuID string `json:"sudoku_id"`
	Image    string `json:"image"`
}

// Service manages puzzles and hands solver work to the broker.
type Service struct {
	store  storage.SudokuStore
	broker queue.Broker
	pub    queue.Publisher
	log    *logger.Logger
}

// New creates a configured sudokus service. The publisher is optional; when
// nil, status transitions are only persisted.
func New(store storage.SudokuStore, broker queue.Broker, pub queue.Publisher, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("sudokus")
	}
	return &Service{store: store, broker: broker, pub: pub, log: log}
}

// CreateInput carries the fields a caller may set on a new puzzle.
type CreateInput struct {
	Title      string
	Difficulty string
	Grid       string
}

// Create stores a new puzzle. An empty userID creates an anonymous puzzle
// subject to retention cleanup.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (sudoku.Sudoku, error) {
	difficulty, err := sudoku.ParseDifficulty(in.Difficulty)
	if err != nil {
		return sudoku.Sudoku{}, err
	}
	if err := sudoku.ValidateGrid(in.Grid); err != nil {
		return sudoku.Sudoku{}, err
	}

	created, err := s.store.CreateSudoku(ctx, sudoku.Sudoku{
		UserID:     userID,
		Title:      strings.TrimSpace(in.Title),
		Difficulty: difficulty,
		Grid:       in.Grid,
		Status:     sudoku.StatusCreated,
	})
	if err != nil {
		return sudoku.Sudoku{}, err
	}
	s.log.WithField("sudoku_id", created.ID).
		WithField("anonymous", userID == "").
		Info("sudoku created")
	return created, nil
}

// Get fetches one puzzle. Anonymous puzzles are readable by anyone; owned
// puzzles only by their owner.
func (s *Service) Get(ctx context.Context, userID, id string) (sudoku.Sudoku, error) {
	sd, err := s.store.GetSudoku(ctx, id)
	if err != nil {
		return sudoku.Sudoku{}, err
	}
	if sd.UserID != "" && sd.UserID != userID {
		return sudoku.Sudoku{}, ErrForbidden
	}
	return sd, nil
}

// List returns the caller's puzzles, newest first. Anonymous callers see
// only anonymous puzzles.
func (s *Service) List(ctx context.Context, userID string, difficulties []string, limit, offset int) ([]sudoku.Sudoku, int, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	parsed := make([]sudoku.Difficulty, 0, len(difficulties))
	for _, raw := range difficulties {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		d, err := sudoku.ParseDifficulty(raw)
		if err != nil {
			return nil, 0, err
		}
		parsed = append(parsed, d)
	}

	return s.store.ListSudokus(ctx, storage.SudokuFilter{
		UserID:       userID,
		Anonymous:    userID == "",
		Difficulties: parsed,
		Limit:        limit,
		Offset:       offset,
	})
}

// UpdateInput carries partial changes to a puzzle. Nil fields are left
// untouched.
type UpdateInput struct {
	Title      *string
	Difficulty *string
	Grid       *string
}

// Update applies partial changes to an owned puzzle. Changing the grid
// resets the solver status and drops any stored solution.
func (s *Service) Update(ctx context.Context, userID, id string, in UpdateInput) (sudoku.Sudoku, error) {
	if userID == "" {
		return sudoku.Sudoku{}, ErrForbidden
	}
	sd, err := s.Get(ctx, userID, id)
	if err != nil {
		return sudoku.Sudoku{}, err
	}
	if sd.UserID == "" {
		return sudoku.Sudoku{}, ErrForbidden
	}

	if in.Title != nil {
		sd.Title = strings.TrimSpace(*in.Title)
	}
	if in.Difficulty != nil {
		d, err := sudoku.ParseDifficulty(*in.Difficulty)
		if err != nil {
			return sudoku.Sudoku{}, err
		}
		sd.Difficulty = d
	}
	if in.Grid != nil && *in.Grid != sd.Grid {
		if err := sudoku.ValidateGrid(*in.Grid); err != nil {
			return sudoku.Sudoku{}, err
		}
		sd.Grid = *in.Grid
		sd.Status = sudoku.StatusCreated
		sd.TaskID = ""
		if err := s.store.DeleteSolution(ctx, sd.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return sudoku.Sudoku{}, err
		}
	}

	return s.store.UpdateSudoku(ctx, sd)
}

// Delete removes an owned puzzle.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if userID == "" {
		return ErrForbidden
	}
	sd, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if sd.UserID == "" {
		return ErrForbidden
	}
	return s.store.DeleteSudoku(ctx, id)
}

// RequestSolve enqueues a solver run for the puzzle. Allowed only from the
// created, failed and aborted statuses; broker outages surface as
// queue.ErrUnavailable.
func (s *Service) RequestSolve(ctx context.Context, userID, id string) (sudoku.Sudoku, error) {
	sd, err := s.Get(ctx, userID, id)
	if err != nil {
		return sudoku.Sudoku{}, err
	}
	if !sd.Status.Solvable() {
		return sudoku.Sudoku{}, fmt.Errorf("%w: status is %s", ErrNotSolvable, sd.Status)
	}

	task, err := s.broker.Enqueue(ctx, queue.TaskSolveSudoku, SolvePayload{SudokuID: sd.ID})
	if err != nil {
		return sudoku.Sudoku{}, err
	}

	sd.Status = sudoku.StatusPending
	sd.TaskID = task.ID
	updated, err := s.store.UpdateSudoku(ctx, sd)
	if err != nil {
		return sudoku.Sudoku{}, err
	}
	s.publishStatus(ctx, updated.ID, updated.Status)
	s.log.WithField("sudoku_id", id).WithField("task_id", task.ID).Info("solver run enqueued")
	return updated, nil
}

// Abort cancels an in-flight solver run by setting the broker cancel flag
// and marking the puzzle aborted.
func (s *Service) Abort(ctx context.Context, userID, id string) (sudoku.Sudoku, error) {
	sd, err := s.Get(ctx, userID, id)
	if err != nil {
		return sudoku.Sudoku{}, err
	}
	if !sd.Status.Abortable() || sd.TaskID == "" {
		return sudoku.Sudoku{}, fmt.Errorf("%w: status is %s", ErrNotAbortable, sd.Status)
	}

	if err := s.broker.Cancel(ctx, sd.TaskID); err != nil {
		return sudoku.Sudoku{}, err
	}

	sd.Status = sudoku.StatusAborted
	updated, err := s.store.UpdateSudoku(ctx, sd)
	if err != nil {
		return sudoku.Sudoku{}, err
	}
	s.publishStatus(ctx, updated.ID, updated.Status)
	s.log.WithField("sudoku_id", id).WithField("task_id", sd.TaskID).Info("solver run aborted")
	return updated, nil
}

// Solution returns the stored solution. storage.ErrNotFound is returned
// until the solver completed.
func (s *Service) Solution(ctx context.Context, userID, id string) (sudoku.Solution, error) {
	sd, err := s.Get(ctx, userID, id)
	if err != nil {
		return sudoku.Solution{}, err
	}
	if sd.Status != sudoku.StatusCompleted {
		return sudoku.Solution{}, fmt.Errorf("sudoku %s solution: %w", id, storage.ErrNotFound)
	}
	return s.store.GetSolution(ctx, id)
}

// DeleteSolution drops the stored solution of a completed puzzle and resets
// its status to created so it can be solved again.
func (s *Service) DeleteSolution(ctx context.Context, userID, id string) (sudoku.Sudoku, error) {
	sd, err := s.Get(ctx, userID, id)
	if err != nil {
		return sudoku.Sudoku{}, err
	}
	if sd.Status != sudoku.StatusCompleted {
		return sudoku.Sudoku{}, fmt.Errorf("%w: status is %s", ErrSolutionLocked, sd.Status)
	}

	if err := s.store.DeleteSolution(ctx, id); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return sudoku.Sudoku{}, err
	}

	sd.Status = sudoku.StatusCreated
	sd.TaskID = ""
	updated, err := s.store.UpdateSudoku(ctx, sd)
	if err != nil {
		return sudoku.Sudoku{}, err
	}
	s.publishStatus(ctx, updated.ID, updated.Status)
	return updated, nil
}

// Status returns the puzzle's solver status.
func (s *Service) Status(ctx context.Context, userID, id string) (sudoku.Status, error) {
	sd, err := s.Get(ctx, userID, id)
	if err != nil {
		return "", err
	}
	return sd.Status, nil
}

// RequestDetect stores a placeholder puzzle and enqueues grid detection for
// the uploaded image. The worker fills in the recognized grid.
func (s *Service) RequestDetect(ctx context.Context, userID, imageBase64 string) (sudoku.Sudoku, error) {
	if strings.TrimSpace(imageBase64) == "" {
		return sudoku.Sudoku{}, fmt.Errorf("image is required")
	}

	sd, err := s.store.CreateSudoku(ctx, sudoku.Sudoku{
		UserID:     userID,
		Title:      "Detected sudoku",
		Difficulty: sudoku.DifficultyUnknown,
		Grid:       BlankGrid,
		Status:     sudoku.StatusPending,
	})
	if err != nil {
		return sudoku.Sudoku{}, err
	}

	task, err := s.broker.Enqueue(ctx, queue.TaskDetectSudoku, DetectPayload{SudokuID: sd.ID, Image: imageBase64})
	if err != nil {
		// roll back the placeholder so a broker outage leaves no orphan
		if derr := s.store.DeleteSudoku(ctx, sd.ID); derr != nil {
			s.log.WithError(derr).WithField("sudoku_id", sd.ID).Warn("delete detection placeholder")
		}
		return sudoku.Sudoku{}, err
	}

	sd.TaskID = task.ID
	updated, err := s.store.UpdateSudoku(ctx, sd)
	if err != nil {
		return sudoku.Sudoku{}, err
	}
	s.log.WithField("sudoku_id", sd.ID).WithField("task_id", task.ID).Info("detection enqueued")
	return updated, nil
}

// SetStatus persists a solver-driven status transition and publishes it to
// the puzzle's status channel. Used by the worker.
func (s *Service) SetStatus(ctx context.Context, id string, status sudoku.Status) (sudoku.Sudoku, error) {
	sd, err := s.store.GetSudoku(ctx, id)
	if err != nil {
		return sudoku.Sudoku{}, err
	}
	sd.Status = status
	updated, err := s.store.UpdateSudoku(ctx, sd)
	if err != nil {
		return sudoku.Sudoku{}, err
	}
	s.publishStatus(ctx, id, status)
	return updated, nil
}

// StoreSolution writes the solved grid, marks the puzzle completed and
// publishes the transition. Used by the worker.
func (s *Service) StoreSolution(ctx context.Context, id, grid string) (sudoku.Solution, error) {
	if err := sudoku.ValidateGrid(grid); err != nil {
		return sudoku.Solution{}, err
	}
	sol, err := s.store.CreateSolution(ctx, sudoku.Solution{SudokuID: id, Grid: grid})
	if err != nil {
		return sudoku.Solution{}, err
	}
	if _, err := s.SetStatus(ctx, id, sudoku.StatusCompleted); err != nil {
		return sudoku.Solution{}, err
	}
	return sol, nil
}

// CompleteDetection writes the recognized grid and returns the puzzle to
// the created status so a solver run can be requested. Used by the worker.
func (s *Service) CompleteDetection(ctx context.Context, id, grid string) (sudoku.Sudoku, error) {
	if err := sudoku.ValidateGrid(grid); err != nil {
		return sudoku.Sudoku{}, err
	}
	sd, err := s.store.GetSudoku(ctx, id)
	if err != nil {
		return sudoku.Sudoku{}, err
	}
	sd.Grid = grid
	sd.Status = sudoku.StatusCreated
	sd.TaskID = ""
	updated, err := s.store.UpdateSudoku(ctx, sd)
	if err != nil {
		return sudoku.Sudoku{}, err
	}
	s.publishStatus(ctx, id, updated.Status)
	return updated, nil
}

// CleanupAnonymous deletes anonymous puzzles older than the retention
// window. Used by the periodic cleanup task.
func (s *Service) CleanupAnonymous(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-retention)
	removed, err := s.store.DeleteAnonymousSudokusBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.log.WithField("removed", removed).Info("anonymous sudokus cleaned up")
	}
	return removed, nil
}

func (s *Service) publishStatus(ctx context.Context, id string, status sudoku.Status) {
	if s.pub == nil {
		return
	}
	if err := s.pub.Publish(ctx, StatusChannel(id), StatusEvent{SudokuID: id, Status: status}); err != nil {
		s.log.WithError(err).WithField("sudoku_id", id).Warn("publish status event")
	}
}
