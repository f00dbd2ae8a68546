package games

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sudoku-arena/arena-api/internal/app/domain/game"
	statssvc "github.com/sudoku-arena/arena-api/internal/app/services/stats"
	"github.com/sudoku-arena/arena-api/internal/app/storage"
	"github.com/sudoku-arena/arena-api/pkg/logger"
)

// Sentinel errors surfaced to the transport layer.
var (
	// ErrForbidden means the record exists but belongs to another player.
	ErrForbidden = errors.New("game record belongs to another user")
	// ErrInvalidTransition means the record is not in a state that allows
	// the requested lifecycle change.
	ErrInvalidTransition = errors.New("game is not in progress")
)

// Listing and bulk operation caps.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	DefaultTopLimit = 10
	MaxTopLimit     = 50
	MaxBulkDelete   = 100
)

// Service manages per-player game records.
type Service struct {
	store storage.GameStore
	stats *statssvc.Service
	log   *logger.Logger
}

// New creates a configured games service. The stats service is optional;
// when present, completed games are folded into player statistics.
func New(store storage.GameStore, stats *statssvc.Service, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("games")
	}
	return &Service{store: store, stats: stats, log: log}
}

// CreateInput carries the fields a player may set when starting a game.
type CreateInput struct {
	SudokuID       string
	OriginalPuzzle string
	Solution       string
	FinalState     string
	HintsUsed      int
	ChecksUsed     int
	Deletions      int
	TimeTaken      time.Duration
	Won            bool
	Status         game.Status
	StartedAt      time.Time
}

// Create starts a new game record for the player. The score is always
// recomputed server-side; client-provided scores are ignored.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (game.Record, error) {
	if userID == "" {
		return game.Record{}, fmt.Errorf("user_id is required")
	}
	status := in.Status
	if status == "" {
		status = game.StatusInProgress
	}
	startedAt := in.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}

	rec := game.Record{
		UserID:         userID,
		SudokuID:       in.SudokuID,
		HintsUsed:      in.HintsUsed,
		ChecksUsed:     in.ChecksUsed,
		Deletions:      in.Deletions,
		TimeTaken:      in.TimeTaken,
		Won:            in.Won,
		Status:         status,
		OriginalPuzzle: in.OriginalPuzzle,
		Solution:       in.Solution,
		FinalState:     in.FinalState,
		StartedAt:      startedAt,
	}
	if err := rec.Validate(); err != nil {
		return game.Record{}, err
	}
	rec.Score = rec.ComputeScore()
	if rec.Status == game.StatusCompleted {
		now := time.Now().UTC()
		rec.CompletedAt = &now
	}

	created, err := s.store.CreateGame(ctx, rec)
	if err != nil {
		return game.Record{}, err
	}
	if created.Status == game.StatusCompleted {
		s.recordStats(ctx, created)
	}
	s.log.WithField("game_id", created.ID).WithField("user_id", userID).Info("game created")
	return created, nil
}

// Get fetches one record, enforcing ownership.
func (s *Service) Get(ctx context.Context, userID, id string) (game.Record, error) {
	rec, err := s.store.GetGame(ctx, id)
	if err != nil {
		return game.Record{}, err
	}
	if rec.UserID != userID {
		return game.Record{}, ErrForbidden
	}
	return rec, nil
}

// UpdateInput carries partial changes to a game record. Nil fields are left
// untouched.
type UpdateInput struct {
	HintsUsed  *int
	ChecksUsed *int
	Deletions  *int
	TimeTaken  *time.Duration
	Won        *bool
	Status     *game.Status
	FinalState *string
	Solution   *string
}

func applyUpdate(rec game.Record, in UpdateInput) game.Record {
	if in.HintsUsed != nil {
		rec.HintsUsed = *in.HintsUsed
	}
	if in.ChecksUsed != nil {
		rec.ChecksUsed = *in.ChecksUsed
	}
	if in.Deletions != nil {
		rec.Deletions = *in.Deletions
	}
	if in.TimeTaken != nil {
		rec.TimeTaken = *in.TimeTaken
	}
	if in.Won != nil {
		rec.Won = *in.Won
	}
	if in.Status != nil {
		rec.Status = *in.Status
	}
	if in.FinalState != nil {
		rec.FinalState = *in.FinalState
	}
	if in.Solution != nil {
		rec.Solution = *in.Solution
	}
	return rec
}

// Update applies partial changes to an owned record and recomputes the score.
func (s *Service) Update(ctx context.Context, userID, id string, in UpdateInput) (game.Record, error) {
	rec, err := s.Get(ctx, userID, id)
	if err != nil {
		return game.Record{}, err
	}

	wasCompleted := rec.Status == game.StatusCompleted
	rec = applyUpdate(rec, in)
	if err := rec.Validate(); err != nil {
		return game.Record{}, err
	}
	rec.Score = rec.ComputeScore()
	if rec.Status == game.StatusCompleted && rec.CompletedAt == nil {
		now := time.Now().UTC()
		rec.CompletedAt = &now
	}

	updated, err := s.store.UpdateGame(ctx, rec)
	if err != nil {
		return game.Record{}, err
	}
	if !wasCompleted && updated.Status == game.StatusCompleted {
		s.recordStats(ctx, updated)
	} else if s.stats != nil {
		s.stats.Invalidate(ctx, userID)
	}
	return updated, nil
}

// Complete merges the final payload, forces the completed status, recomputes
// the score, stamps completed_at and folds the result into player stats.
func (s *Service) Complete(ctx context.Context, userID, id string, in UpdateInput) (game.Record, error) {
	rec, err := s.Get(ctx, userID, id)
	if err != nil {
		return game.Record{}, err
	}
	if rec.Status == game.StatusCompleted {
		return game.Record{}, fmt.Errorf("%w: already completed", ErrInvalidTransition)
	}

	rec = applyUpdate(rec, in)
	rec.Status = game.StatusCompleted
	if err := rec.Validate(); err != nil {
		return game.Record{}, err
	}
	rec.Score = rec.ComputeScore()
	now := time.Now().UTC()
	rec.CompletedAt = &now

	updated, err := s.store.UpdateGame(ctx, rec)
	if err != nil {
		return game.Record{}, err
	}
	s.recordStats(ctx, updated)
	s.log.WithField("game_id", id).
		WithField("score", updated.Score).
		WithField("won", updated.Won).
		Info("game completed")
	return updated, nil
}

// Abandon marks an in-progress game as abandoned.
func (s *Service) Abandon(ctx context.Context, userID, id string) (game.Record, error) {
	return s.transition(ctx, userID, id, game.StatusAbandoned)
}

// Stop marks an in-progress game as stopped so it can be resumed later.
func (s *Service) Stop(ctx context.Context, userID, id string) (game.Record, error) {
	return s.transition(ctx, userID, id, game.StatusStopped)
}

func (s *Service) transition(ctx context.Context, userID, id string, to game.Status) (game.Record, error) {
	rec, err := s.Get(ctx, userID, id)
	if err != nil {
		return game.Record{}, err
	}
	if rec.Status != game.StatusInProgress {
		return game.Record{}, fmt.Errorf("%w: status is %s", ErrInvalidTransition, rec.Status)
	}

	rec.Status = to
	rec.Score = rec.ComputeScore()
	updated, err := s.store.UpdateGame(ctx, rec)
	if err != nil {
		return game.Record{}, err
	}
	if s.stats != nil {
		s.stats.Invalidate(ctx, userID)
	}
	s.log.WithField("game_id", id).WithField("status", to).Info("game transition")
	return updated, nil
}

// ListInput narrows and paginates a player's game listing.
type ListInput struct {
	Status   game.Status
	Won      *bool
	DateFrom *time.Time
	DateTo   *time.Time
	Page     int
	PageSize int
}

// List returns one page of the player's records, newest first, with the
// total match count for pagination.
func (s *Service) List(ctx context.Context, userID string, in ListInput) ([]game.Record, int, error) {
	page := in.Page
	if page <= 0 {
		page = 1
	}
	size := in.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}

	return s.store.ListGames(ctx, storage.GameFilter{
		UserID:   userID,
		Status:   in.Status,
		Won:      in.Won,
		DateFrom: in.DateFrom,
		DateTo:   in.DateTo,
		Order:    storage.OrderRecent,
		Limit:    size,
		Offset:   (page - 1) * size,
	})
}

// Recent returns the player's latest records.
func (s *Service) Recent(ctx context.Context, userID string, limit int) ([]game.Record, error) {
	return s.top(ctx, userID, storage.OrderRecent, "", limit)
}

// BestScores returns the player's highest-scoring completed games.
func (s *Service) BestScores(ctx context.Context, userID string, limit int) ([]game.Record, error) {
	return s.top(ctx, userID, storage.OrderBestScore, game.StatusCompleted, limit)
}

// BestTimes returns the player's fastest completed wins.
func (s *Service) BestTimes(ctx context.Context, userID string, limit int) ([]game.Record, error) {
	return s.top(ctx, userID, storage.OrderBestTime, game.StatusCompleted, limit)
}

func (s *Service) top(ctx context.Context, userID string, order storage.GameOrder, status game.Status, limit int) ([]game.Record, error) {
	if limit <= 0 {
		limit = DefaultTopLimit
	}
	if limit > MaxTopLimit {
		limit = MaxTopLimit
	}
	filter := storage.GameFilter{UserID: userID, Status: status, Order: order, Limit: limit}
	if order == storage.OrderBestTime {
		won := true
		filter.Won = &won
	}
	records, _, err := s.store.ListGames(ctx, filter)
	return records, err
}

// Delete removes one owned record.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	if err := s.store.DeleteGame(ctx, id); err != nil {
		return err
	}
	if s.stats != nil {
		s.stats.Invalidate(ctx, userID)
	}
	return nil
}

// BulkDelete removes up to MaxBulkDelete owned records and reports how many
// were deleted. IDs belonging to other players are silently skipped.
func (s *Service) BulkDelete(ctx context.Context, userID string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, fmt.Errorf("ids is required")
	}
	if len(ids) > MaxBulkDelete {
		return 0, fmt.Errorf("at most %d ids per request", MaxBulkDelete)
	}

	deleted, err := s.store.DeleteGames(ctx, userID, ids)
	if err != nil {
		return 0, err
	}
	if deleted > 0 && s.stats != nil {
		s.stats.Invalidate(ctx, userID)
	}
	s.log.WithField("user_id", userID).WithField("deleted", deleted).Info("bulk delete games")
	return deleted, nil
}

func (s *Service) recordStats(ctx context.Context, rec game.Record) {
	if s.stats == nil {
		return
	}
	if err := s.stats.RecordGame(ctx, rec.UserID, rec.Won, rec.TimeTaken); err != nil {
		s.log.WithError(err).WithField("game_id", rec.ID).Warn("record game stats")
	}
}
