package sudoku

import (
	"fmt"
	"strings"
	"time"
)

// Difficulty classifies a puzzle. The zero value means the caller did not
// provide one.
type Difficulty string

const (
	DifficultyUnknown Difficulty = "unknown"
	DifficultyEasy    Difficulty = "easy"
	DifficultyMedium  Difficulty = "medium"
	DifficultyHard    Difficulty = "hard"
)

// ParseDifficulty normalizes free-form input into a known difficulty.
func ParseDifficulty(raw string) (Difficulty, error) {
	switch Difficulty(strings.ToLower(strings.TrimSpace(raw))) {
	case "", DifficultyUnknown:
		return DifficultyUnknown, nil
	case DifficultyEasy:
		return DifficultyEasy, nil
	case DifficultyMedium:
		return DifficultyMedium, nil
	case DifficultyHard:
		return DifficultyHard, nil
	default:
		return "", fmt.Errorf("unknown difficulty %q", raw)
	}
}

// Status tracks a puzzle through the solver pipeline.
type Status string

const (
	StatusCreated   Status = "created"
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusAborted   Status = "aborted"
	StatusInvalid   Status = "invalid"
)

// Solvable reports whether a solver run may be requested from this status.
func (s Status) Solvable() bool {
	switch s {
	case StatusCreated, StatusFailed, StatusAborted:
		return true
	}
	return false
}

// Abortable reports whether an in-flight solver run can be cancelled.
func (s Status) Abortable() bool {
	return s == StatusPending || s == StatusRunning
}

// GridSize is the number of cells in a serialized grid.
const GridSize = 81

// Sudoku is a stored puzzle. UserID is empty for anonymous puzzles, which are
// garbage collected after a retention window.
type Sudoku struct {
	ID         string     `json:"id" db:"id"`
	UserID     string     `json:"user_id,omitempty" db:"user_id"`
	Title      string     `json:"title" db:"title"`
	Difficulty Difficulty `json:"difficulty" db:"difficulty"`
	Grid       string     `json:"grid" db:"grid"`
	Status     Status     `json:"status" db:"status"`
	TaskID     string     `json:"task_id,omitempty" db:"task_id"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
}

// Solution is the solved grid for a completed puzzle.
type Solution struct {
	ID        string    `json:"id" db:"id"`
	SudokuID  string    `json:"sudoku_id" db:"sudoku_id"`
	Grid      string    `json:"grid" db:"grid"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ValidateGrid checks the serialized form: exactly 81 cells, digits 1-9 for
// givens and '.' or '0' for blanks.
func ValidateGrid(grid string) error {
	if len(grid) != GridSize {
		return fmt.Errorf("grid must contain %d cells, got %d", GridSize, len(grid))
	}
	for i, c := range grid {
		if c == '.' || (c >= '0' && c <= '9') {
			continue
		}
		return fmt.Errorf("invalid character %q at cell %d", c, i)
	}
	return nil
}
