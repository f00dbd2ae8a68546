// Package scheduler enqueues recurring maintenance tasks on a cron
// schedule, taking the place of a dedicated beat process.
package scheduler

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/sudoku-arena/arena-api/internal/app/queue"
	"github.com/sudoku-arena/arena-api/internal/app/system"
	"github.com/sudoku-arena/arena-api/pkg/logger"
)

var _ system.Service = (*Scheduler)(nil)

// Default schedules.
const (
	CleanupSchedule    = "0 */4 * * *" // every four hours
	RefreshAllSchedule = "30 3 * * *"  // daily, off-peak
)

// Entry pairs a cron expression with the task it enqueues.
type Entry struct {
	Schedule string
	TaskName string
	Payload  interface{}
}

// DefaultEntries returns the standing maintenance schedule.
func DefaultEntries() []Entry {
	return []Entry{
		{Schedule: CleanupSchedule, TaskName: queue.TaskCleanupAnonymous},
		{Schedule: RefreshAllSchedule, TaskName: queue.TaskRefreshAllStats},
	}
}

// Scheduler is the lifecycle-managed cron runner.
type Scheduler struct {
	broker  queue.Broker
	entries []Entry
	log     *logger.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// New constructs a scheduler for the given entries. Nil entries install the
// defaults.
func New(broker queue.Broker, entries []Entry, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.NewDefault("scheduler")
	}
	if entries == nil {
		entries = DefaultEntries()
	}
	return &Scheduler{broker: broker, entries: entries, log: log}
}

func (s *Scheduler) Name() string { return "scheduler" }

// Start validates every schedule and begins firing entries.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	c := cron.New()
	for _, entry := range s.entries {
		entry := entry
		if _, err := c.AddFunc(entry.Schedule, func() {
			s.fire(ctx, entry)
		}); err != nil {
			return err
		}
	}

	c.Start()
	s.cron = c
	s.running = true
	s.log.WithField("entries", len(s.entries)).Info("scheduler started")
	return nil
}

// Stop halts the cron runner and waits for in-flight jobs.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.cron
	s.running = false
	s.cron = nil
	s.mu.Unlock()

	if c == nil {
		return nil
	}

	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	s.log.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) fire(ctx context.Context, entry Entry) {
	task, err := s.broker.Enqueue(ctx, entry.TaskName, entry.Payload)
	if err != nil {
		s.log.WithError(err).WithField("task", entry.TaskName).Warn("enqueue scheduled task failed")
		return
	}
	s.log.WithField("task", entry.TaskName).
		WithField("task_id", task.ID).
		Info("scheduled task enqueued")
}
