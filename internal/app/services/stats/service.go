package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sudoku-arena/arena-api/internal/app/cache"
	"github.com/sudoku-arena/arena-api/internal/app/domain/game"
	"github.com/sudoku-arena/arena-api/internal/app/domain/stats"
	"github.com/sudoku-arena/arena-api/internal/app/storage"
	"github.com/sudoku-arena/arena-api/pkg/logger"
)

// Defaults and caps for period queries.
const (
	DefaultDailyDays   = 30
	DefaultWeeks       = 12
	DefaultMonths      = 12
	DefaultLeaderboard = 10
	MaxLeaderboard     = 100
)

// Service aggregates player statistics and serves the leaderboard.
type Service struct {
	store storage.StatsStore
	games storage.GameStore
	cache cache.Cache
	log   *logger.Logger
}

// New creates a configured stats service.
func New(store storage.StatsStore, games storage.GameStore, c cache.Cache, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("stats")
	}
	if c == nil {
		c = cache.NewMemory()
	}
	return &Service{store: store, games: games, cache: c, log: log}
}

// Get returns the aggregate for a player, a zero aggregate when none exists
// yet. Results are cached briefly.
func (s *Service) Get(ctx context.Context, userID string) (stats.UserStats, error) {
	key := cache.UserStatsKey(userID)
	if raw, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		var st stats.UserStats
		if err := json.Unmarshal([]byte(raw), &st); err == nil {
			return st, nil
		}
	}

	st, err := s.store.GetUserStats(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		st = stats.UserStats{UserID: userID}
		err = nil
	}
	if err != nil {
		return stats.UserStats{}, err
	}

	if raw, err := json.Marshal(st); err == nil {
		if err := s.cache.Set(ctx, key, string(raw), cache.DefaultTTL); err != nil {
			s.log.WithError(err).Warn("cache user stats")
		}
	}
	return st, nil
}

// RecordGame folds one finished game into the daily and aggregate stats.
func (s *Service) RecordGame(ctx context.Context, userID string, won bool, duration time.Duration) error {
	if userID == "" {
		return fmt.Errorf("user_id is required")
	}
	if duration < 0 {
		return fmt.Errorf("duration cannot be negative")
	}
	seconds := int64(duration.Seconds())

	st, err := s.store.GetUserStats(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		st = stats.UserStats{UserID: userID}
		err = nil
	}
	if err != nil {
		return err
	}

	st.GamesPlayed++
	if won {
		st.GamesWon++
		if st.BestTimeSeconds == nil || seconds < *st.BestTimeSeconds {
			best := seconds
			st.BestTimeSeconds = &best
		}
	} else {
		st.GamesLost++
	}
	st.TotalTimeSeconds += seconds
	if _, err := s.store.UpsertUserStats(ctx, st); err != nil {
		return err
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	daily, err := s.dailyFor(ctx, userID, today)
	if err != nil {
		return err
	}
	daily.GamesPlayed++
	if won {
		daily.GamesWon++
		if daily.BestTimeSeconds == nil || seconds < *daily.BestTimeSeconds {
			best := seconds
			daily.BestTimeSeconds = &best
		}
	} else {
		daily.GamesLost++
	}
	daily.TotalTimeSeconds += seconds
	if _, err := s.store.UpsertDailyStats(ctx, daily); err != nil {
		return err
	}

	s.Invalidate(ctx, userID)
	return nil
}

func (s *Service) dailyFor(ctx context.Context, userID string, date time.Time) (stats.DailyStats, error) {
	existing, err := s.store.ListDailyStats(ctx, userID, date, date)
	if err != nil {
		return stats.DailyStats{}, err
	}
	if len(existing) > 0 {
		return existing[0], nil
	}
	return stats.DailyStats{UserID: userID, Date: date}, nil
}

// Daily returns per-day stats for the range, defaulting to the last 30 days.
func (s *Service) Daily(ctx context.Context, userID string, from, to time.Time) ([]stats.DailyStats, error) {
	now := time.Now().UTC()
	if to.IsZero() {
		to = now
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -DefaultDailyDays)
	}
	if from.After(to) {
		return nil, fmt.Errorf("start_date must not be after end_date")
	}
	return s.store.ListDailyStats(ctx, userID, from, to)
}

// Today returns the current day's stats, zero-valued when nothing was played.
func (s *Service) Today(ctx context.Context, userID string) (stats.DailyStats, error) {
	return s.dailyFor(ctx, userID, time.Now().UTC().Truncate(24*time.Hour))
}

// Weekly rolls daily stats into Monday-start weeks, newest last.
func (s *Service) Weekly(ctx context.Context, userID string, weeks int) ([]stats.PeriodStats, error) {
	if weeks <= 0 {
		weeks = DefaultWeeks
	}
	end := time.Now().UTC().Truncate(24 * time.Hour)
	start := startOfWeek(end).AddDate(0, 0, -7*(weeks-1))

	daily, err := s.store.ListDailyStats(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}
	return rollup(daily, func(d time.Time) (time.Time, time.Time) {
		from := startOfWeek(d)
		return from, from.AddDate(0, 0, 6)
	}), nil
}

// Monthly rolls daily stats into calendar months, newest last.
func (s *Service) Monthly(ctx context.Context, userID string, months int) ([]stats.PeriodStats, error) {
	if months <= 0 {
		months = DefaultMonths
	}
	end := time.Now().UTC().Truncate(24 * time.Hour)
	start := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(months - 1), 0)

	daily, err := s.store.ListDailyStats(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}
	return rollup(daily, func(d time.Time) (time.Time, time.Time) {
		from := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
		return from, from.AddDate(0, 1, -1)
	}), nil
}

// Leaderboard returns the top players by total completed-game score. The
// result is cached for a minute and invalidated on game writes.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]stats.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = DefaultLeaderboard
	}
	if limit > MaxLeaderboard {
		limit = MaxLeaderboard
	}

	if raw, ok, err := s.cache.Get(ctx, cache.KeyLeaderboard); err == nil && ok {
		var entries []stats.LeaderboardEntry
		if err := json.Unmarshal([]byte(raw), &entries); err == nil {
			if len(entries) > limit {
				entries = entries[:limit]
			}
			return entries, nil
		}
	}

	entries, err := s.store.TopPlayers(ctx, MaxLeaderboard)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(entries); err == nil {
		if err := s.cache.Set(ctx, cache.KeyLeaderboard, string(raw), cache.LeaderboardMaxTTL); err != nil {
			s.log.WithError(err).Warn("cache leaderboard")
		}
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Invalidate drops cached snapshots for the player and the leaderboard.
func (s *Service) Invalidate(ctx context.Context, userID string) {
	if err := s.cache.Delete(ctx, cache.UserStatsKey(userID), cache.KeyLeaderboard); err != nil {
		s.log.WithError(err).Warn("invalidate stats cache")
	}
}

// Refresh recomputes the aggregate and daily rows from game records. Used by
// the periodic reconciliation task.
func (s *Service) Refresh(ctx context.Context, userID string) error {
	records, _, err := s.games.ListGames(ctx, storage.GameFilter{UserID: userID, Status: game.StatusCompleted})
	if err != nil {
		return err
	}

	agg := stats.UserStats{UserID: userID}
	byDay := make(map[time.Time]*stats.DailyStats)
	for _, rec := range records {
		seconds := int64(rec.TimeTaken.Seconds())

		agg.GamesPlayed++
		if rec.Won {
			agg.GamesWon++
			if agg.BestTimeSeconds == nil || seconds < *agg.BestTimeSeconds {
				best := seconds
				agg.BestTimeSeconds = &best
			}
		} else {
			agg.GamesLost++
		}
		agg.TotalTimeSeconds += seconds

		when := rec.CreatedAt
		if rec.CompletedAt != nil {
			when = *rec.CompletedAt
		}
		day := when.UTC().Truncate(24 * time.Hour)
		d, ok := byDay[day]
		if !ok {
			d = &stats.DailyStats{UserID: userID, Date: day}
			byDay[day] = d
		}
		d.GamesPlayed++
		if rec.Won {
			d.GamesWon++
			if d.BestTimeSeconds == nil || seconds < *d.BestTimeSeconds {
				best := seconds
				d.BestTimeSeconds = &best
			}
		} else {
			d.GamesLost++
		}
		d.TotalTimeSeconds += seconds
	}

	if _, err := s.store.UpsertUserStats(ctx, agg); err != nil {
		return err
	}
	for _, d := range byDay {
		if _, err := s.store.UpsertDailyStats(ctx, *d); err != nil {
			return err
		}
	}

	s.Invalidate(ctx, userID)
	s.log.WithField("user_id", userID).
		WithField("games", agg.GamesPlayed).
		Info("user stats refreshed")
	return nil
}

// RefreshAll recomputes stats for every tracked player.
func (s *Service) RefreshAll(ctx context.Context) (int, error) {
	ids, err := s.store.ListStatsUserIDs(ctx)
	if err != nil {
		return 0, err
	}
	refreshed := 0
	for _, id := range ids {
		if err := s.Refresh(ctx, id); err != nil {
			s.log.WithError(err).WithField("user_id", id).Warn("refresh user stats failed")
			continue
		}
		refreshed++
	}
	return refreshed, nil
}

func startOfWeek(d time.Time) time.Time {
	d = d.UTC().Truncate(24 * time.Hour)
	weekday := int(d.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday belongs to the preceding Monday-start week
	}
	return d.AddDate(0, 0, -(weekday - 1))
}

// rollup folds date-ordered daily rows into period buckets, preserving
// chronological order.
func rollup(daily []stats.DailyStats, bounds func(time.Time) (time.Time, time.Time)) []stats.PeriodStats {
	order := make([]time.Time, 0)
	buckets := make(map[time.Time]*stats.PeriodStats)
	for _, d := range daily {
		from, to := bounds(d.Date)
		p, ok := buckets[from]
		if !ok {
			p = &stats.PeriodStats{PeriodStart: from, PeriodEnd: to}
			buckets[from] = p
			order = append(order, from)
		}
		p.GamesPlayed += d.GamesPlayed
		p.GamesWon += d.GamesWon
		p.GamesLost += d.GamesLost
		p.TotalTimeSeconds += d.TotalTimeSeconds
		if d.BestTimeSeconds != nil && (p.BestTimeSeconds == nil || *d.BestTimeSeconds < *p.BestTimeSeconds) {
			best := *d.BestTimeSeconds
			p.BestTimeSeconds = &best
		}
	}

	result := make([]stats.PeriodStats, 0, len(order))
	for _, from := range order {
		result = append(result, *buckets[from])
	}
	return result
}
