package game

import (
	"fmt"
	"strings"
	"time"
)

// Status tracks the lifecycle of a game record.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusAbandoned  Status = "abandoned"
	StatusStopped    Status = "stopped"
)

// ParseStatus normalizes free-form input into a known status.
func ParseStatus(raw string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(raw))) {
	case StatusInProgress:
		return StatusInProgress, nil
	case StatusCompleted:
		return StatusCompleted, nil
	case StatusAbandoned:
		return StatusAbandoned, nil
	case StatusStopped:
		return StatusStopped, nil
	default:
		return "", fmt.Errorf("unknown game status %q", raw)
	}
}

// Limits on per-game assists.
const (
	MaxHints  = 3
	MaxChecks = 3
	MaxScore  = 1000
)

// Record is a single play-through of a puzzle.
type Record struct {
	ID             string        `json:"id" db:"id"`
	UserID         string        `json:"user_id" db:"user_id"`
	SudokuID       string        `json:"sudoku_id,omitempty" db:"sudoku_id"`
	Score          int           `json:"score" db:"score"`
	HintsUsed      int           `json:"hints_used" db:"hints_used"`
	ChecksUsed     int           `json:"checks_used" db:"checks_used"`
	Deletions      int           `json:"deletions" db:"deletions"`
	TimeTaken      time.Duration `json:"time_taken_seconds" db:"time_taken"`
	Won            bool          `json:"won" db:"won"`
	Status         Status        `json:"status" db:"status"`
	OriginalPuzzle string        `json:"original_puzzle" db:"original_puzzle"`
	Solution       string        `json:"solution,omitempty" db:"solution"`
	FinalState     string        `json:"final_state,omitempty" db:"final_state"`
	StartedAt      time.Time     `json:"started_at" db:"started_at"`
	CompletedAt    *time.Time    `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at" db:"updated_at"`
}

// ComputeScore derives the score for a finished game. Only completed wins
// score points; everything else is zero.
func (r Record) ComputeScore() int {
	if r.Status != StatusCompleted || !r.Won {
		return 0
	}
	minutes := int(r.TimeTaken.Minutes())
	score := MaxScore - 100*r.HintsUsed - 50*r.ChecksUsed - 5*r.Deletions - 15*minutes
	if score < 0 {
		return 0
	}
	return score
}

// Validate checks counter bounds before persisting a record.
func (r Record) Validate() error {
	if r.HintsUsed < 0 || r.HintsUsed > MaxHints {
		return fmt.Errorf("hints_used must be between 0 and %d", MaxHints)
	}
	if r.ChecksUsed < 0 || r.ChecksUsed > MaxChecks {
		return fmt.Errorf("checks_used must be between 0 and %d", MaxChecks)
	}
	if r.Deletions < 0 {
		return fmt.Errorf("deletions cannot be negative")
	}
	if r.TimeTaken < 0 {
		return fmt.Errorf("time_taken cannot be negative")
	}
	return nil
}
