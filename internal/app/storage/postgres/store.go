package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sudoku-arena/arena-api/internal/app/domain/game"
	"github.com/sudoku-arena/arena-api/internal/app/domain/stats"
	"github.com/sudoku-arena/arena-api/internal/app/domain/sudoku"
	"github.com/sudoku-arena/arena-api/internal/app/domain/user"
	"github.com/sudoku-arena/arena-api/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.SudokuStore = (*Store)(nil)
var _ storage.GameStore = (*Store)(nil)
var _ storage.StatsStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// uniqueViolation is the Postgres error code for duplicate keys.
const uniqueViolation = "23505"

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return storage.ErrDuplicate
	}
	return err
}

func toNullString(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}

func toNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func toNullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

// --- UserStore --------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO arena_users (id, email, username, password_hash, is_active, is_staff, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, u.ID, u.Email, u.Username, u.PasswordHash, u.IsActive, u.IsStaff, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return user.User{}, fmt.Errorf("create user: %w", mapError(err))
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u user.User) (user.User, error) {
	existing, err := s.GetUser(ctx, u.ID)
	if err != nil {
		return user.User{}, err
	}

	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.CreatedAt = existing.CreatedAt
	u.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE arena_users
		SET email = $2, username = $3, password_hash = $4, is_active = $5, is_staff = $6, updated_at = $7
		WHERE id = $1
	`, u.ID, u.Email, u.Username, u.PasswordHash, u.IsActive, u.IsStaff, u.UpdatedAt)
	if err != nil {
		return user.User{}, fmt.Errorf("update user: %w", mapError(err))
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return user.User{}, storage.ErrNotFound
	}
	return u, nil
}

const userColumns = `id, email, username, password_hash, is_active, is_staff, created_at, updated_at`

func (s *Store) scanUser(row *sql.Row) (user.User, error) {
	var u user.User
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.IsActive, &u.IsStaff, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return user.User{}, mapError(err)
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM arena_users WHERE id = $1
	`, id)
	return s.scanUser(row)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM arena_users WHERE email = $1
	`, strings.ToLower(strings.TrimSpace(email)))
	return s.scanUser(row)
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM arena_users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", mapError(err))
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// --- SudokuStore ------------------------------------------------------------

func (s *Store) CreateSudoku(ctx context.Context, sd sudoku.Sudoku) (sudoku.Sudoku, error) {
	if sd.ID == "" {
		sd.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	sd.CreatedAt = now
	sd.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO arena_sudokus (id, user_id, title, difficulty, grid, status, task_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, sd.ID, toNullString(sd.UserID), sd.Title, sd.Difficulty, sd.Grid, sd.Status, toNullString(sd.TaskID), sd.CreatedAt, sd.UpdatedAt)
	if err != nil {
		return sudoku.Sudoku{}, fmt.Errorf("create sudoku: %w", mapError(err))
	}
	return sd, nil
}

func (s *Store) UpdateSudoku(ctx context.Context, sd sudoku.Sudoku) (sudoku.Sudoku, error) {
	existing, err := s.GetSudoku(ctx, sd.ID)
	if err != nil {
		return sudoku.Sudoku{}, err
	}

	sd.UserID = existing.UserID
	sd.CreatedAt = existing.CreatedAt
	sd.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE arena_sudokus
		SET title = $2, difficulty = $3, grid = $4, status = $5, task_id = $6, updated_at = $7
		WHERE id = $1
	`, sd.ID, sd.Title, sd.Difficulty, sd.Grid, sd.Status, toNullString(sd.TaskID), sd.UpdatedAt)
	if err != nil {
		return sudoku.Sudoku{}, fmt.Errorf("update sudoku: %w", mapError(err))
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return sudoku.Sudoku{}, storage.ErrNotFound
	}
	return sd, nil
}

const sudokuColumns = `id, user_id, title, difficulty, grid, status, task_id, created_at, updated_at`

func scanSudoku(scan func(dest ...interface{}) error) (sudoku.Sudoku, error) {
	var (
		sd     sudoku.Sudoku
		userID sql.NullString
		taskID sql.NullString
	)
	if err := scan(&sd.ID, &userID, &sd.Title, &sd.Difficulty, &sd.Grid, &sd.Status, &taskID, &sd.CreatedAt, &sd.UpdatedAt); err != nil {
		return sudoku.Sudoku{}, mapError(err)
	}
	sd.UserID = userID.String
	sd.TaskID = taskID.String
	return sd, nil
}

func (s *Store) GetSudoku(ctx context.Context, id string) (sudoku.Sudoku, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+sudokuColumns+` FROM arena_sudokus WHERE id = $1
	`, id)
	return scanSudoku(row.Scan)
}

func (s *Store) ListSudokus(ctx context.Context, filter storage.SudokuFilter) ([]sudoku.Sudoku, int, error) {
	where := []string{"TRUE"}
	args := []interface{}{}

	if filter.Anonymous {
		where = append(where, "user_id IS NULL")
	} else if filter.UserID != "" {
		args = append(args, filter.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if len(filter.Difficulties) > 0 {
		values := make([]string, 0, len(filter.Difficulties))
		for _, d := range filter.Difficulties {
			values = append(values, string(d))
		}
		args = append(args, pq.Array(values))
		where = append(where, fmt.Sprintf("difficulty = ANY($%d)", len(args)))
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM arena_sudokus WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count sudokus: %w", mapError(err))
	}

	query := `SELECT ` + sudokuColumns + ` FROM arena_sudokus WHERE ` + clause + ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list sudokus: %w", mapError(err))
	}
	defer rows.Close()

	var result []sudoku.Sudoku
	for rows.Next() {
		sd, err := scanSudoku(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, sd)
	}
	return result, total, rows.Err()
}

func (s *Store) DeleteSudoku(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM arena_sudokus WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete sudoku: %w", mapError(err))
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteAnonymousSudokusBefore(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM arena_sudokus WHERE user_id IS NULL AND created_at < $1
	`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("cleanup sudokus: %w", mapError(err))
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}

func (s *Store) CreateSolution(ctx context.Context, sol sudoku.Solution) (sudoku.Solution, error) {
	if sol.ID == "" {
		sol.ID = uuid.NewString()
	}
	sol.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO arena_solutions (id, sudoku_id, grid, created_at)
		VALUES ($1, $2, $3, $4)
	`, sol.ID, sol.SudokuID, sol.Grid, sol.CreatedAt)
	if err != nil {
		return sudoku.Solution{}, fmt.Errorf("create solution: %w", mapError(err))
	}
	return sol, nil
}

func (s *Store) GetSolution(ctx context.Context, sudokuID string) (sudoku.Solution, error) {
	var sol sudoku.Solution
	err := s.db.QueryRowContext(ctx, `
		SELECT id, sudoku_id, grid, created_at FROM arena_solutions WHERE sudoku_id = $1
	`, sudokuID).Scan(&sol.ID, &sol.SudokuID, &sol.Grid, &sol.CreatedAt)
	if err != nil {
		return sudoku.Solution{}, mapError(err)
	}
	return sol, nil
}

func (s *Store) DeleteSolution(ctx context.Context, sudokuID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM arena_solutions WHERE sudoku_id = $1`, sudokuID)
	if err != nil {
		return fmt.Errorf("delete solution: %w", mapError(err))
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// --- GameStore --------------------------------------------------------------

func (s *Store) CreateGame(ctx context.Context, rec game.Record) (game.Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	if rec.StartedAt.IsZero() {
		rec.StartedAt = now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO arena_games (
			id, user_id, sudoku_id, score, hints_used, checks_used, deletions,
			time_taken_seconds, won, status, original_puzzle, solution, final_state,
			started_at, completed_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`, rec.ID, rec.UserID, toNullString(rec.SudokuID), rec.Score, rec.HintsUsed, rec.ChecksUsed,
		rec.Deletions, int64(rec.TimeTaken.Seconds()), rec.Won, rec.Status, rec.OriginalPuzzle,
		rec.Solution, rec.FinalState, rec.StartedAt, toNullTime(rec.CompletedAt), rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return game.Record{}, fmt.Errorf("create game: %w", mapError(err))
	}
	return rec, nil
}

func (s *Store) UpdateGame(ctx context.Context, rec game.Record) (game.Record, error) {
	existing, err := s.GetGame(ctx, rec.ID)
	if err != nil {
		return game.Record{}, err
	}

	rec.UserID = existing.UserID
	rec.CreatedAt = existing.CreatedAt
	rec.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE arena_games
		SET score = $2, hints_used = $3, checks_used = $4, deletions = $5,
			time_taken_seconds = $6, won = $7, status = $8, solution = $9,
			final_state = $10, completed_at = $11, updated_at = $12
		WHERE id = $1
	`, rec.ID, rec.Score, rec.HintsUsed, rec.ChecksUsed, rec.Deletions,
		int64(rec.TimeTaken.Seconds()), rec.Won, rec.Status, rec.Solution,
		rec.FinalState, toNullTime(rec.CompletedAt), rec.UpdatedAt)
	if err != nil {
		return game.Record{}, fmt.Errorf("update game: %w", mapError(err))
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return game.Record{}, storage.ErrNotFound
	}
	return rec, nil
}

const gameColumns = `id, user_id, sudoku_id, score, hints_used, checks_used, deletions,
	time_taken_seconds, won, status, original_puzzle, solution, final_state,
	started_at, completed_at, created_at, updated_at`

func scanGame(scan func(dest ...interface{}) error) (game.Record, error) {
	var (
		rec         game.Record
		sudokuID    sql.NullString
		seconds     int64
		completedAt sql.NullTime
	)
	err := scan(&rec.ID, &rec.UserID, &sudokuID, &rec.Score, &rec.HintsUsed, &rec.ChecksUsed,
		&rec.Deletions, &seconds, &rec.Won, &rec.Status, &rec.OriginalPuzzle, &rec.Solution,
		&rec.FinalState, &rec.StartedAt, &completedAt, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return game.Record{}, mapError(err)
	}
	rec.SudokuID = sudokuID.String
	rec.TimeTaken = time.Duration(seconds) * time.Second
	if completedAt.Valid {
		t := completedAt.Time
		rec.CompletedAt = &t
	}
	return rec, nil
}

func (s *Store) GetGame(ctx context.Context, id string) (game.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+gameColumns+` FROM arena_games WHERE id = $1
	`, id)
	return scanGame(row.Scan)
}

func (s *Store) ListGames(ctx context.Context, filter storage.GameFilter) ([]game.Record, int, error) {
	where := []string{"TRUE"}
	args := []interface{}{}

	if filter.UserID != "" {
		args = append(args, filter.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Won != nil {
		args = append(args, *filter.Won)
		where = append(where, fmt.Sprintf("won = $%d", len(args)))
	}
	if filter.DateFrom != nil {
		args = append(args, filter.DateFrom.UTC())
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.DateTo != nil {
		args = append(args, filter.DateTo.UTC())
		where = append(where, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM arena_games WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count games: %w", mapError(err))
	}

	order := "created_at DESC"
	switch filter.Order {
	case storage.OrderBestScore:
		order = "score DESC"
	case storage.OrderBestTime:
		order = "time_taken_seconds ASC"
	}

	query := `SELECT ` + gameColumns + ` FROM arena_games WHERE ` + clause + ` ORDER BY ` + order
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list games: %w", mapError(err))
	}
	defer rows.Close()

	var result []game.Record
	for rows.Next() {
		rec, err := scanGame(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, rec)
	}
	return result, total, rows.Err()
}

func (s *Store) DeleteGame(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM arena_games WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete game: %w", mapError(err))
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteGames(ctx context.Context, userID string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM arena_games WHERE user_id = $1 AND id = ANY($2)
	`, userID, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("bulk delete games: %w", mapError(err))
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}

// --- StatsStore -------------------------------------------------------------

func (s *Store) GetUserStats(ctx context.Context, userID string) (stats.UserStats, error) {
	var (
		st       stats.UserStats
		bestTime sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, games_played, games_won, games_lost, total_time_seconds, best_time_seconds, updated_at
		FROM arena_user_stats WHERE user_id = $1
	`, userID).Scan(&st.UserID, &st.GamesPlayed, &st.GamesWon, &st.GamesLost, &st.TotalTimeSeconds, &bestTime, &st.UpdatedAt)
	if err != nil {
		return stats.UserStats{}, mapError(err)
	}
	if bestTime.Valid {
		st.BestTimeSeconds = &bestTime.Int64
	}
	return st, nil
}

func (s *Store) UpsertUserStats(ctx context.Context, st stats.UserStats) (stats.UserStats, error) {
	st.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO arena_user_stats (user_id, games_played, games_won, games_lost, total_time_seconds, best_time_seconds, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			games_played = EXCLUDED.games_played,
			games_won = EXCLUDED.games_won,
			games_lost = EXCLUDED.games_lost,
			total_time_seconds = EXCLUDED.total_time_seconds,
			best_time_seconds = EXCLUDED.best_time_seconds,
			updated_at = EXCLUDED.updated_at
	`, st.UserID, st.GamesPlayed, st.GamesWon, st.GamesLost, st.TotalTimeSeconds, toNullInt64(st.BestTimeSeconds), st.UpdatedAt)
	if err != nil {
		return stats.UserStats{}, fmt.Errorf("upsert user stats: %w", mapError(err))
	}
	return st, nil
}

func (s *Store) UpsertDailyStats(ctx context.Context, d stats.DailyStats) (stats.DailyStats, error) {
	d.Date = d.Date.UTC().Truncate(24 * time.Hour)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO arena_daily_stats (user_id, date, games_played, games_won, games_lost, total_time_seconds, best_time_seconds)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, date) DO UPDATE SET
			games_played = EXCLUDED.games_played,
			games_won = EXCLUDED.games_won,
			games_lost = EXCLUDED.games_lost,
			total_time_seconds = EXCLUDED.total_time_seconds,
			best_time_seconds = EXCLUDED.best_time_seconds
	`, d.UserID, d.Date, d.GamesPlayed, d.GamesWon, d.GamesLost, d.TotalTimeSeconds, toNullInt64(d.BestTimeSeconds))
	if err != nil {
		return stats.DailyStats{}, fmt.Errorf("upsert daily stats: %w", mapError(err))
	}
	return d, nil
}

func (s *Store) ListDailyStats(ctx context.Context, userID string, from, to time.Time) ([]stats.DailyStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, date, games_played, games_won, games_lost, total_time_seconds, best_time_seconds
		FROM arena_daily_stats
		WHERE user_id = $1 AND date >= $2 AND date <= $3
		ORDER BY date
	`, userID, from.UTC().Truncate(24*time.Hour), to.UTC().Truncate(24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("list daily stats: %w", mapError(err))
	}
	defer rows.Close()

	var result []stats.DailyStats
	for rows.Next() {
		var (
			d        stats.DailyStats
			bestTime sql.NullInt64
		)
		if err := rows.Scan(&d.UserID, &d.Date, &d.GamesPlayed, &d.GamesWon, &d.GamesLost, &d.TotalTimeSeconds, &bestTime); err != nil {
			return nil, mapError(err)
		}
		if bestTime.Valid {
			d.BestTimeSeconds = &bestTime.Int64
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

func (s *Store) ListStatsUserIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.db.SelectContext(ctx, &ids, `SELECT user_id FROM arena_user_stats ORDER BY user_id`); err != nil {
		return nil, fmt.Errorf("list stats user ids: %w", mapError(err))
	}
	return ids, nil
}

func (s *Store) TopPlayers(ctx context.Context, limit int) ([]stats.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT g.user_id, u.username,
			COALESCE(SUM(g.score), 0) AS total_score,
			COUNT(*) FILTER (WHERE g.won) AS games_won
		FROM arena_games g
		JOIN arena_users u ON u.id = g.user_id
		WHERE g.status = 'completed'
		GROUP BY g.user_id, u.username
		ORDER BY total_score DESC, games_won DESC, g.user_id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("top players: %w", mapError(err))
	}
	defer rows.Close()

	var result []stats.LeaderboardEntry
	rank := 0
	for rows.Next() {
		var entry stats.LeaderboardEntry
		if err := rows.Scan(&entry.UserID, &entry.Username, &entry.TotalScore, &entry.GamesWon); err != nil {
			return nil, mapError(err)
		}
		rank++
		entry.Rank = rank
		result = append(result, entry)
	}
	return result, rows.Err()
}
