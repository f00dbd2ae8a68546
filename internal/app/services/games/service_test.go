package games

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sudoku-arena/arena-api/internal/app/cache"
	"github.com/sudoku-arena/arena-api/internal/app/domain/game"
	"github.com/sudoku-arena/arena-api/internal/app/domain/user"
	statssvc "github.com/sudoku-arena/arena-api/internal/app/services/stats"
	"github.com/sudoku-arena/arena-api/internal/app/storage"
	"github.com/sudoku-arena/arena-api/internal/app/storage/memory"
	"github.com/sudoku-arena/arena-api/pkg/logger"
)

func newTestService() (*Service, *statssvc.Service, *memory.Store) {
	store := memory.New()
	log := logger.NewDefault("games-test")
	log.SetOutput(io.Discard)
	st := statssvc.New(store, store, cache.NewMemory(), log)
	return New(store, st, log), st, store
}

func newTestUser(t *testing.T, store *memory.Store, email string) user.User {
	t.Helper()
	u, err := store.CreateUser(context.Background(), user.User{Email: email, Username: email})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func TestCreate_RecomputesScore(t *testing.T) {
	svc, _, store := newTestService()
	ctx := context.Background()
	u := newTestUser(t, store, "p@example.com")

	rec, err := svc.Create(ctx, u.ID, CreateInput{
		HintsUsed: 1,
		TimeTaken: 10 * time.Minute,
		Won:       true,
		Status:    game.StatusCompleted,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	// 1000 - 100*1 - 15*10 = 750
	if rec.Score != 750 {
		t.Fatalf("expected score 750, got %d", rec.Score)
	}
	if rec.CompletedAt == nil {
		t.Fatal("completed_at not stamped")
	}

	inProgress, err := svc.Create(ctx, u.ID, CreateInput{})
	if err != nil {
		t.Fatalf("create default: %v", err)
	}
	if inProgress.Status != game.StatusInProgress || inProgress.Score != 0 {
		t.Fatalf("unexpected defaults: %#v", inProgress)
	}
}

func TestCreate_RejectsExcessiveAssists(t *testing.T) {
	svc, _, store := newTestService()
	u := newTestUser(t, store, "p@example.com")

	if _, err := svc.Create(context.Background(), u.ID, CreateInput{HintsUsed: game.MaxHints + 1}); err == nil {
		t.Fatal("expected hints validation error")
	}
}

func TestGet_EnforcesOwnership(t *testing.T) {
	svc, _, store := newTestService()
	ctx := context.Background()
	owner := newTestUser(t, store, "owner@example.com")
	other := newTestUser(t, store, "other@example.com")

	rec, err := svc.Create(ctx, owner.ID, CreateInput{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.Get(ctx, other.ID, rec.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := svc.Get(ctx, owner.ID, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestComplete_MergesAndRecordsStats(t *testing.T) {
	svc, st, store := newTestService()
	ctx := context.Background()
	u := newTestUser(t, store, "p@example.com")

	rec, err := svc.Create(ctx, u.ID, CreateInput{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	won := true
	taken := 5 * time.Minute
	hints := 2
	done, err := svc.Complete(ctx, u.ID, rec.ID, UpdateInput{Won: &won, TimeTaken: &taken, HintsUsed: &hints})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != game.StatusCompleted || done.CompletedAt == nil {
		t.Fatalf("not completed: %#v", done)
	}
	// 1000 - 100*2 - 15*5 = 725
	if done.Score != 725 {
		t.Fatalf("expected score 725, got %d", done.Score)
	}

	agg, err := st.Get(ctx, u.ID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if agg.GamesPlayed != 1 || agg.GamesWon != 1 {
		t.Fatalf("stats not recorded: %#v", agg)
	}

	// completing twice is rejected
	if _, err := svc.Complete(ctx, u.ID, rec.ID, UpdateInput{}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestAbandonAndStop_RequireInProgress(t *testing.T) {
	svc, _, store := newTestService()
	ctx := context.Background()
	u := newTestUser(t, store, "p@example.com")

	rec, _ := svc.Create(ctx, u.ID, CreateInput{})
	abandoned, err := svc.Abandon(ctx, u.ID, rec.ID)
	if err != nil {
		t.Fatalf("abandon: %v", err)
	}
	if abandoned.Status != game.StatusAbandoned {
		t.Fatalf("expected abandoned, got %s", abandoned.Status)
	}
	if _, err := svc.Stop(ctx, u.ID, rec.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	rec2, _ := svc.Create(ctx, u.ID, CreateInput{})
	stopped, err := svc.Stop(ctx, u.ID, rec2.ID)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if stopped.Status != game.StatusStopped {
		t.Fatalf("expected stopped, got %s", stopped.Status)
	}
}

func TestListAndTopQueries(t *testing.T) {
	svc, _, store := newTestService()
	ctx := context.Background()
	u := newTestUser(t, store, "p@example.com")

	won := true
	times := []time.Duration{9 * time.Minute, 4 * time.Minute, 6 * time.Minute}
	for _, d := range times {
		rec, err := svc.Create(ctx, u.ID, CreateInput{})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		taken := d
		if _, err := svc.Complete(ctx, u.ID, rec.ID, UpdateInput{Won: &won, TimeTaken: &taken}); err != nil {
			t.Fatalf("complete: %v", err)
		}
	}
	if _, err := svc.Create(ctx, u.ID, CreateInput{}); err != nil {
		t.Fatalf("create in-progress: %v", err)
	}

	all, total, err := svc.List(ctx, u.ID, ListInput{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 4 || len(all) != 4 {
		t.Fatalf("expected 4 records, got %d/%d", len(all), total)
	}

	completed, total, err := svc.List(ctx, u.ID, ListInput{Status: game.StatusCompleted, PageSize: 2})
	if err != nil {
		t.Fatalf("list completed: %v", err)
	}
	if total != 3 || len(completed) != 2 {
		t.Fatalf("pagination wrong: %d/%d", len(completed), total)
	}

	best, err := svc.BestTimes(ctx, u.ID, 2)
	if err != nil {
		t.Fatalf("best times: %v", err)
	}
	if len(best) != 2 || best[0].TimeTaken != 4*time.Minute || best[1].TimeTaken != 6*time.Minute {
		t.Fatalf("best times not ascending: %#v", best)
	}

	scores, err := svc.BestScores(ctx, u.ID, 10)
	if err != nil {
		t.Fatalf("best scores: %v", err)
	}
	if len(scores) != 3 || scores[0].Score < scores[1].Score {
		t.Fatalf("best scores not descending: %#v", scores)
	}
}

func TestBulkDelete_SkipsForeignRecords(t *testing.T) {
	svc, _, store := newTestService()
	ctx := context.Background()
	owner := newTestUser(t, store, "owner@example.com")
	other := newTestUser(t, store, "other@example.com")

	mine, _ := svc.Create(ctx, owner.ID, CreateInput{})
	theirs, _ := svc.Create(ctx, other.ID, CreateInput{})

	deleted, err := svc.BulkDelete(ctx, owner.ID, []string{mine.ID, theirs.ID, "missing"})
	if err != nil {
		t.Fatalf("bulk delete: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted, got %d", deleted)
	}
	if _, err := svc.Get(ctx, other.ID, theirs.ID); err != nil {
		t.Fatalf("foreign record should survive: %v", err)
	}

	if _, err := svc.BulkDelete(ctx, owner.ID, nil); err == nil {
		t.Fatal("expected empty ids rejection")
	}
}
