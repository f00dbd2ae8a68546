package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sudoku-arena/arena-api/internal/app/domain/game"
	"github.com/sudoku-arena/arena-api/internal/app/domain/stats"
	"github.com/sudoku-arena/arena-api/internal/app/domain/sudoku"
	"github.com/sudoku-arena/arena-api/internal/app/domain/user"
	"github.com/sudoku-arena/arena-api/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local development.
type Store struct {
	mu           sync.RWMutex
	nextID       int64
	users        map[string]user.User
	usersByEmail map[string]string
	sudokus      map[string]sudoku.Sudoku
	solutions    map[string]sudoku.Solution
	games        map[string]game.Record
	userStats    map[string]stats.UserStats
	dailyStats   map[string]stats.DailyStats
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.SudokuStore = (*Store)(nil)
var _ storage.GameStore = (*Store)(nil)
var _ storage.StatsStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:       1,
		users:        make(map[string]user.User),
		usersByEmail: make(map[string]string),
		sudokus:      make(map[string]sudoku.Sudoku),
		solutions:    make(map[string]sudoku.Solution),
		games:        make(map[string]game.Record),
		userStats:    make(map[string]stats.UserStats),
		dailyStats:   make(map[string]stats.DailyStats),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

// UserStore implementation ----------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID == "" {
		u.ID = s.nextIDLocked()
	} else if _, exists := s.users[u.ID]; exists {
		return user.User{}, fmt.Errorf("user %s: %w", u.ID, storage.ErrDuplicate)
	}

	emailKey := strings.ToLower(strings.TrimSpace(u.Email))
	if emailKey == "" {
		return user.User{}, fmt.Errorf("email is required")
	}
	if _, exists := s.usersByEmail[emailKey]; exists {
		return user.User{}, fmt.Errorf("email %s: %w", u.Email, storage.ErrDuplicate)
	}

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	s.users[u.ID] = u
	s.usersByEmail[emailKey] = u.ID
	return u, nil
}

func (s *Store) UpdateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.users[u.ID]
	if !ok {
		return user.User{}, fmt.Errorf("user %s: %w", u.ID, storage.ErrNotFound)
	}

	newKey := strings.ToLower(strings.TrimSpace(u.Email))
	oldKey := strings.ToLower(strings.TrimSpace(original.Email))
	if newKey != oldKey {
		if _, exists := s.usersByEmail[newKey]; exists {
			return user.User{}, fmt.Errorf("email %s: %w", u.Email, storage.ErrDuplicate)
		}
		delete(s.usersByEmail, oldKey)
		s.usersByEmail[newKey] = u.ID
	}

	u.CreatedAt = original.CreatedAt
	u.UpdatedAt = time.Now().UTC()

	s.users[u.ID] = u
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
	}
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return user.User{}, fmt.Errorf("user %s: %w", email, storage.ErrNotFound)
	}
	return s.users[id], nil
}

func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
	}
	delete(s.users, id)
	delete(s.usersByEmail, strings.ToLower(strings.TrimSpace(u.Email)))
	return nil
}

// SudokuStore implementation --------------------------------------------------

func (s *Store) CreateSudoku(_ context.Context, sd sudoku.Sudoku) (sudoku.Sudoku, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sd.ID == "" {
		sd.ID = s.nextIDLocked()
	} else if _, exists := s.sudokus[sd.ID]; exists {
		return sudoku.Sudoku{}, fmt.Errorf("sudoku %s: %w", sd.ID, storage.ErrDuplicate)
	}

	now := time.Now().UTC()
	sd.CreatedAt = now
	sd.UpdatedAt = now

	s.sudokus[sd.ID] = sd
	return sd, nil
}

func (s *Store) UpdateSudoku(_ context.Context, sd sudoku.Sudoku) (sudoku.Sudoku, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.sudokus[sd.ID]
	if !ok {
		return sudoku.Sudoku{}, fmt.Errorf("sudoku %s: %w", sd.ID, storage.ErrNotFound)
	}

	sd.CreatedAt = original.CreatedAt
	sd.UpdatedAt = time.Now().UTC()

	s.sudokus[sd.ID] = sd
	return sd, nil
}

func (s *Store) GetSudoku(_ context.Context, id string) (sudoku.Sudoku, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sd, ok := s.sudokus[id]
	if !ok {
		return sudoku.Sudoku{}, fmt.Errorf("sudoku %s: %w", id, storage.ErrNotFound)
	}
	return sd, nil
}

func (s *Store) ListSudokus(_ context.Context, filter storage.SudokuFilter) ([]sudoku.Sudoku, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]sudoku.Sudoku, 0)
	for _, sd := range s.sudokus {
		if filter.Anonymous {
			if sd.UserID != "" {
				continue
			}
		} else if filter.UserID != "" && sd.UserID != filter.UserID {
			continue
		}
		if len(filter.Difficulties) > 0 && !containsDifficulty(filter.Difficulties, sd.Difficulty) {
			continue
		}
		matched = append(matched, sd)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	matched = paginate(matched, filter.Offset, filter.Limit)
	return matched, total, nil
}

func (s *Store) DeleteSudoku(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sudokus[id]; !ok {
		return fmt.Errorf("sudoku %s: %w", id, storage.ErrNotFound)
	}
	delete(s.sudokus, id)
	delete(s.solutions, id)
	return nil
}

func (s *Store) DeleteAnonymousSudokusBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sd := range s.sudokus {
		if sd.UserID == "" && sd.CreatedAt.Before(cutoff) {
			delete(s.sudokus, id)
			delete(s.solutions, id)
			removed++
		}
	}
	return removed, nil
}

func (s *Store) CreateSolution(_ context.Context, sol sudoku.Solution) (sudoku.Solution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sudokus[sol.SudokuID]; !ok {
		return sudoku.Solution{}, fmt.Errorf("sudoku %s: %w", sol.SudokuID, storage.ErrNotFound)
	}
	if _, exists := s.solutions[sol.SudokuID]; exists {
		return sudoku.Solution{}, fmt.Errorf("solution for sudoku %s: %w", sol.SudokuID, storage.ErrDuplicate)
	}

	if sol.ID == "" {
		sol.ID = s.nextIDLocked()
	}
	sol.CreatedAt = time.Now().UTC()

	s.solutions[sol.SudokuID] = sol
	return sol, nil
}

func (s *Store) GetSolution(_ context.Context, sudokuID string) (sudoku.Solution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sol, ok := s.solutions[sudokuID]
	if !ok {
		return sudoku.Solution{}, fmt.Errorf("solution for sudoku %s: %w", sudokuID, storage.ErrNotFound)
	}
	return sol, nil
}

func (s *Store) DeleteSolution(_ context.Context, sudokuID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.solutions[sudokuID]; !ok {
		return fmt.Errorf("solution for sudoku %s: %w", sudokuID, storage.ErrNotFound)
	}
	delete(s.solutions, sudokuID)
	return nil
}

// GameStore implementation ----------------------------------------------------

func (s *Store) CreateGame(_ context.Context, rec game.Record) (game.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = s.nextIDLocked()
	} else if _, exists := s.games[rec.ID]; exists {
		return game.Record{}, fmt.Errorf("game %s: %w", rec.ID, storage.ErrDuplicate)
	}

	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	if rec.StartedAt.IsZero() {
		rec.StartedAt = now
	}
	rec.CompletedAt = cloneTime(rec.CompletedAt)

	s.games[rec.ID] = rec
	return cloneGame(rec), nil
}

func (s *Store) UpdateGame(_ context.Context, rec game.Record) (game.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.games[rec.ID]
	if !ok {
		return game.Record{}, fmt.Errorf("game %s: %w", rec.ID, storage.ErrNotFound)
	}

	rec.CreatedAt = original.CreatedAt
	rec.UpdatedAt = time.Now().UTC()
	rec.CompletedAt = cloneTime(rec.CompletedAt)

	s.games[rec.ID] = rec
	return cloneGame(rec), nil
}

func (s *Store) GetGame(_ context.Context, id string) (game.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.games[id]
	if !ok {
		return game.Record{}, fmt.Errorf("game %s: %w", id, storage.ErrNotFound)
	}
	return cloneGame(rec), nil
}

func (s *Store) ListGames(_ context.Context, filter storage.GameFilter) ([]game.Record, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]game.Record, 0)
	for _, rec := range s.games {
		if filter.UserID != "" && rec.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		if filter.Won != nil && rec.Won != *filter.Won {
			continue
		}
		if filter.DateFrom != nil && rec.CreatedAt.Before(*filter.DateFrom) {
			continue
		}
		if filter.DateTo != nil && rec.CreatedAt.After(*filter.DateTo) {
			continue
		}
		matched = append(matched, cloneGame(rec))
	}

	switch filter.Order {
	case storage.OrderBestScore:
		sort.Slice(matched, func(i, j int) bool { return matched[i].Score > matched[j].Score })
	case storage.OrderBestTime:
		sort.Slice(matched, func(i, j int) bool { return matched[i].TimeTaken < matched[j].TimeTaken })
	default:
		sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	}

	total := len(matched)
	matched = paginate(matched, filter.Offset, filter.Limit)
	return matched, total, nil
}

func (s *Store) DeleteGame(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.games[id]; !ok {
		return fmt.Errorf("game %s: %w", id, storage.ErrNotFound)
	}
	delete(s.games, id)
	return nil
}

func (s *Store) DeleteGames(_ context.Context, userID string, ids []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, id := range ids {
		rec, ok := s.games[id]
		if !ok || rec.UserID != userID {
			continue
		}
		delete(s.games, id)
		removed++
	}
	return removed, nil
}

// StatsStore implementation ---------------------------------------------------

func (s *Store) GetUserStats(_ context.Context, userID string) (stats.UserStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.userStats[userID]
	if !ok {
		return stats.UserStats{}, fmt.Errorf("stats for user %s: %w", userID, storage.ErrNotFound)
	}
	return cloneUserStats(st), nil
}

func (s *Store) UpsertUserStats(_ context.Context, st stats.UserStats) (stats.UserStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st.UserID == "" {
		return stats.UserStats{}, fmt.Errorf("user_id is required")
	}
	st.UpdatedAt = time.Now().UTC()
	st.BestTimeSeconds = cloneInt64(st.BestTimeSeconds)
	s.userStats[st.UserID] = st
	return cloneUserStats(st), nil
}

func dailyKey(userID string, date time.Time) string {
	return userID + "|" + date.UTC().Format("2006-01-02")
}

func (s *Store) UpsertDailyStats(_ context.Context, d stats.DailyStats) (stats.DailyStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d.UserID == "" {
		return stats.DailyStats{}, fmt.Errorf("user_id is required")
	}
	d.Date = d.Date.UTC().Truncate(24 * time.Hour)
	d.BestTimeSeconds = cloneInt64(d.BestTimeSeconds)
	s.dailyStats[dailyKey(d.UserID, d.Date)] = d
	return cloneDailyStats(d), nil
}

func (s *Store) ListDailyStats(_ context.Context, userID string, from, to time.Time) ([]stats.DailyStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	from = from.UTC().Truncate(24 * time.Hour)
	to = to.UTC().Truncate(24 * time.Hour)

	result := make([]stats.DailyStats, 0)
	for _, d := range s.dailyStats {
		if d.UserID != userID {
			continue
		}
		if d.Date.Before(from) || d.Date.After(to) {
			continue
		}
		result = append(result, cloneDailyStats(d))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date.Before(result[j].Date) })
	return result, nil
}

func (s *Store) ListStatsUserIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.userStats))
	for id := range s.userStats {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) TopPlayers(_ context.Context, limit int) ([]stats.LeaderboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type aggregate struct {
		score int64
		wins  int
	}
	totals := make(map[string]*aggregate)
	for _, rec := range s.games {
		if rec.UserID == "" || rec.Status != game.StatusCompleted {
			continue
		}
		agg, ok := totals[rec.UserID]
		if !ok {
			agg = &aggregate{}
			totals[rec.UserID] = agg
		}
		agg.score += int64(rec.Score)
		if rec.Won {
			agg.wins++
		}
	}

	entries := make([]stats.LeaderboardEntry, 0, len(totals))
	for userID, agg := range totals {
		entry := stats.LeaderboardEntry{
			UserID:     userID,
			TotalScore: agg.score,
			GamesWon:   agg.wins,
		}
		if u, ok := s.users[userID]; ok {
			entry.Username = u.Username
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].TotalScore != entries[j].TotalScore {
			return entries[i].TotalScore > entries[j].TotalScore
		}
		if entries[i].GamesWon != entries[j].GamesWon {
			return entries[i].GamesWon > entries[j].GamesWon
		}
		return entries[i].UserID < entries[j].UserID
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

// Helpers --------------------------------------------------------------------

func containsDifficulty(set []sudoku.Difficulty, d sudoku.Difficulty) bool {
	for _, item := range set {
		if item == d {
			return true
		}
	}
	return false
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return []T{}
		}
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneGame(rec game.Record) game.Record {
	rec.CompletedAt = cloneTime(rec.CompletedAt)
	return rec
}

func cloneUserStats(st stats.UserStats) stats.UserStats {
	st.BestTimeSeconds = cloneInt64(st.BestTimeSeconds)
	return st
}

func cloneDailyStats(d stats.DailyStats) stats.DailyStats {
	d.BestTimeSeconds = cloneInt64(d.BestTimeSeconds)
	return d
}
