// Package scheduler re-runs the import on a cron schedule, keeping the
// target topped up while the old forum is still live. Idempotent mappings
// make the repeat runs cheap: only rows staged since the last run create
// anything.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// SyncFunc performs one full stage-and-import cycle.
type SyncFunc func(ctx context.Context) error

// SyncScheduler manages periodic import runs.
type SyncScheduler struct {
	schedule string
	sync     SyncFunc

	cron       *cron.Cron
	entryID    cron.EntryID
	mu         sync.RWMutex
	isRunning  bool
	syncActive bool
	cancelFunc context.CancelFunc
}

// NewSyncScheduler creates a new scheduler instance.
func NewSyncScheduler(schedule string, syncFn SyncFunc) *SyncScheduler {
	return &SyncScheduler{
		schedule: schedule,
		sync:     syncFn,
		cron:     cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow))),
	}
}

// Start begins the scheduler.
func (s *SyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	if s.schedule == "" {
		log.Printf("Sync scheduler: no schedule configured, disabled")
		return nil
	}

	entryID, err := s.cron.AddFunc(s.schedule, func() {
		s.runSync(ctx)
	})
	if err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", s.schedule, err)
	}
	s.entryID = entryID

	var cancelCtx context.Context
	cancelCtx, s.cancelFunc = context.WithCancel(ctx)

	s.cron.Start()
	s.isRunning = true

	log.Printf("Sync scheduler: started with schedule '%s'", s.schedule)

	// Monitor for context cancellation
	go func() {
		<-cancelCtx.Done()
		s.Stop()
	}()

	return nil
}

// Stop gracefully stops the scheduler, waiting for a running sync to finish.
func (s *SyncScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()

	s.isRunning = false
	s.cancelFunc = nil

	log.Printf("Sync scheduler: stopped")
}

// RunNow triggers an immediate sync.
func (s *SyncScheduler) RunNow(ctx context.Context) {
	go s.runSync(ctx)
}

// IsRunning returns whether the scheduler is active.
func (s *SyncScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetNextRunTime returns when the next sync will occur.
func (s *SyncScheduler) GetNextRunTime() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}

	entries := s.cron.Entries()
	for _, entry := range entries {
		if entry.ID == s.entryID {
			t := entry.Next
			return &t
		}
	}
	return nil
}

// runSync performs one import cycle. Overlapping runs are refused: two
// imports writing the same mapping table would fight over post ordering.
func (s *SyncScheduler) runSync(ctx context.Context) {
	s.mu.Lock()
	if s.syncActive {
		s.mu.Unlock()
		log.Printf("Sync: previous run still active, skipping")
		return
	}
	s.syncActive = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.syncActive = false
		s.mu.Unlock()
	}()

	log.Printf("Sync: starting import run")
	startTime := time.Now()

	if err := s.sync(ctx); err != nil {
		log.Printf("Sync: run failed after %s: %v", time.Since(startTime).Round(time.Second), err)
		return
	}

	log.Printf("Sync: run completed in %s", time.Since(startTime).Round(time.Second))
}
