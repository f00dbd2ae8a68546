package stats

import "time"

// UserStats is the running aggregate for a player.
type UserStats struct {
	UserID           string    `json:"user_id" db:"user_id"`
	GamesPlayed      int       `json:"games_played" db:"games_played"`
	GamesWon         int       `json:"games_won" db:"games_won"`
	GamesLost        int       `json:"games_lost" db:"games_lost"`
	TotalTimeSeconds int64     `json:"total_time_seconds" db:"total_time_seconds"`
	BestTimeSeconds  *int64    `json:"best_time_seconds,omitempty" db:"best_time_seconds"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// WinRate returns wins as a percentage of games played.
func (s UserStats) WinRate() float64 {
	if s.GamesPlayed == 0 {
		return 0
	}
	return float64(s.GamesWon) / float64(s.GamesPlayed) * 100
}

// AverageTimeSeconds returns mean game duration in seconds.
func (s UserStats) AverageTimeSeconds() float64 {
	if s.GamesPlayed == 0 {
		return 0
	}
	return float64(s.TotalTimeSeconds) / float64(s.GamesPlayed)
}

// DailyStats is the per-day aggregate for a player. Date is truncated to
// midnight UTC.
type DailyStats struct {
	UserID           string    `json:"user_id" db:"user_id"`
	Date             time.Time `json:"date" db:"date"`
	GamesPlayed      int       `json:"games_played" db:"games_played"`
	GamesWon         int       `json:"games_won" db:"games_won"`
	GamesLost        int       `json:"games_lost" db:"games_lost"`
	TotalTimeSeconds int64     `json:"total_time_seconds" db:"total_time_seconds"`
	BestTimeSeconds  *int64    `json:"best_time_seconds,omitempty" db:"best_time_seconds"`
}

// PeriodStats is a weekly or monthly rollup of daily aggregates.
type PeriodStats struct {
	PeriodStart      time.Time `json:"period_start"`
	PeriodEnd        time.Time `json:"period_end"`
	GamesPlayed      int       `json:"games_played"`
	GamesWon         int       `json:"games_won"`
	GamesLost        int       `json:"games_lost"`
	TotalTimeSeconds int64     `json:"total_time_seconds"`
	BestTimeSeconds  *int64    `json:"best_time_seconds,omitempty"`
}

// LeaderboardEntry is one ranked row of the global leaderboard.
type LeaderboardEntry struct {
	Rank       int    `json:"rank"`
	UserID     string `json:"user_id"`
	Username   string `json:"username,omitempty"`
	TotalScore int64  `json:"total_score"`
	GamesWon   int    `json:"games_won"`
}
