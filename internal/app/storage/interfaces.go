package storage

import (
	"context"
	"errors"
	"time"

	"github.com/sudoku-arena/arena-api/internal/app/domain/game"
	"github.com/sudoku-arena/arena-api/internal/app/domain/stats"
	"github.com/sudoku-arena/arena-api/internal/app/domain/sudoku"
	"github.com/sudoku-arena/arena-api/internal/app/domain/user"
)

// ErrNotFound is returned by all stores when a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when a uniqueness constraint would be violated.
var ErrDuplicate = errors.New("record already exists")

// UserStore persists user accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	UpdateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id string) (user.User, error)
	GetUserByEmail(ctx context.Context, email string) (user.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// SudokuFilter narrows sudoku listings. Anonymous selects puzzles without an
// owner; otherwise UserID selects one owner's puzzles.
type SudokuFilter struct {
	UserID       string
	Anonymous    bool
	Difficulties []sudoku.Difficulty
	Limit        int
	Offset       int
}

// SudokuStore persists puzzles and their solutions.
type SudokuStore interface {
	CreateSudoku(ctx context.Context, s sudoku.Sudoku) (sudoku.Sudoku, error)
	UpdateSudoku(ctx context.Context, s sudoku.Sudoku) (sudoku.Sudoku, error)
	GetSudoku(ctx context.Context, id string) (sudoku.Sudoku, error)
	ListSudokus(ctx context.Context, filter SudokuFilter) ([]sudoku.Sudoku, int, error)
	DeleteSudoku(ctx context.Context, id string) error
	DeleteAnonymousSudokusBefore(ctx context.Context, cutoff time.Time) (int, error)

	CreateSolution(ctx context.Context, sol sudoku.Solution) (sudoku.Solution, error)
	GetSolution(ctx context.Context, sudokuID string) (sudoku.Solution, error)
	DeleteSolution(ctx context.Context, sudokuID string) error
}

// GameOrder selects the sort applied to game listings.
type GameOrder string

const (
	OrderRecent    GameOrder = "recent"
	OrderBestScore GameOrder = "best_score"
	OrderBestTime  GameOrder = "best_time"
)

// GameFilter narrows game record listings for a single user.
type GameFilter struct {
	UserID   string
	Status   game.Status
	Won      *bool
	DateFrom *time.Time
	DateTo   *time.Time
	Order    GameOrder
	Limit    int
	Offset   int
}

// GameStore persists game records.
type GameStore interface {
	CreateGame(ctx context.Context, rec game.Record) (game.Record, error)
	UpdateGame(ctx context.Context, rec game.Record) (game.Record, error)
	GetGame(ctx context.Context, id string) (game.Record, error)
	ListGames(ctx context.Context, filter GameFilter) ([]game.Record, int, error)
	DeleteGame(ctx context.Context, id string) error
	DeleteGames(ctx context.Context, userID string, ids []string) (int, error)
}

// StatsStore persists aggregated and daily player statistics.
type StatsStore interface {
	GetUserStats(ctx context.Context, userID string) (stats.UserStats, error)
	UpsertUserStats(ctx context.Context, s stats.UserStats) (stats.UserStats, error)
	UpsertDailyStats(ctx context.Context, d stats.DailyStats) (stats.DailyStats, error)
	ListDailyStats(ctx context.Context, userID string, from, to time.Time) ([]stats.DailyStats, error)
	ListStatsUserIDs(ctx context.Context) ([]string, error)
	TopPlayers(ctx context.Context, limit int) ([]stats.LeaderboardEntry, error)
}
