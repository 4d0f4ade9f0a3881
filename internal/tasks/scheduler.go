package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofrs/flock"
	"github.com/robfig/cron/v3"

	"github.com/desertthunder/upcoming/internal/metrics"
	"github.com/desertthunder/upcoming/internal/models"
	"github.com/desertthunder/upcoming/internal/shared"
)

// RunStore keeps run history. [repositories.RunRepository] implements it.
type RunStore interface {
	Save(ctx context.Context, run *models.RunSummary) error
	List(ctx context.Context, limit int) ([]*models.RunSummary, error)
}

// SchedulerStatus describes the scheduler for status endpoints and the CLI.
type SchedulerStatus struct {
	Running  bool               `json:"running"`
	Schedule string             `json:"schedule"`
	NextRun  time.Time          `json:"next_run"`
	LastRun  *models.RunSummary `json:"last_run,omitempty"`
}

// Scheduler fires the weekly run and serializes it with manual triggers.
//
// At most one run is in flight per process. When a lock path is set, a file lock also excludes runs started by
// other processes sharing the database.
type Scheduler struct {
	engine   *SyncEngine
	runs     RunStore
	spec     string
	schedule cron.Schedule
	cron     *cron.Cron
	lock     *flock.Flock
	logger   *log.Logger

	running atomic.Bool
	wg      sync.WaitGroup

	mu   sync.Mutex
	base context.Context
	last *models.RunSummary
}

// NewScheduler parses spec, a standard five-field cron expression, and creates a stopped scheduler.
// runs and lockPath are optional.
func NewScheduler(engine *SyncEngine, runs RunStore, spec, lockPath string, logger *log.Logger) (*Scheduler, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("%w: schedule %q: %v", shared.ErrInvalidConfig, spec, err)
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	logger = shared.WithLogger(logger, "component", "scheduler")

	s := &Scheduler{
		engine:   engine,
		runs:     runs,
		spec:     spec,
		schedule: schedule,
		cron:     cron.New(cron.WithLogger(cron.PrintfLogger(logger.StandardLog()))),
		logger:   logger,
		base:     context.Background(),
	}
	if lockPath != "" {
		s.lock = flock.New(lockPath)
	}

	s.cron.Schedule(schedule, cron.FuncJob(s.scheduled))
	return s, nil
}

// Start begins firing scheduled runs. Runs started by the scheduler use ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.base = ctx
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("scheduler started", "schedule", s.spec, "next_run", s.schedule.Next(time.Now()))
}

// Stop halts the schedule and waits for any run in flight to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// IsRunning reports whether a run is in flight in this process.
func (s *Scheduler) IsRunning() bool {
	return s.running.Load()
}

// RunNow syncs every venue and blocks until done. It fails with [shared.ErrAlreadyRunning] when a run is in flight.
func (s *Scheduler) RunNow(ctx context.Context, progress chan<- ProgressUpdate) (*models.RunSummary, error) {
	if err := s.acquire(); err != nil {
		return nil, err
	}
	defer s.release()

	summary := s.engine.SyncAll(ctx, models.TriggerManual, progress)
	s.record(ctx, summary)
	return summary, nil
}

// RunVenue syncs one venue and blocks until done.
func (s *Scheduler) RunVenue(ctx context.Context, venueID string, progress chan<- ProgressUpdate) (*models.RunSummary, error) {
	if _, err := s.engine.Venue(venueID); err != nil {
		return nil, err
	}
	if err := s.acquire(); err != nil {
		return nil, err
	}
	defer s.release()

	summary, err := s.engine.SyncOne(ctx, venueID, progress)
	if err != nil {
		return nil, err
	}
	s.record(ctx, summary)
	return summary, nil
}

// RunAsync starts a manual run in the background and returns once it holds the run lock.
// An empty venueID syncs every venue.
func (s *Scheduler) RunAsync(venueID string) error {
	if venueID != "" {
		if _, err := s.engine.Venue(venueID); err != nil {
			return err
		}
	}
	if err := s.acquire(); err != nil {
		return err
	}

	s.mu.Lock()
	ctx := s.base
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.release()

		var summary *models.RunSummary
		if venueID == "" {
			summary = s.engine.SyncAll(ctx, models.TriggerManual, nil)
		} else {
			var err error
			if summary, err = s.engine.SyncOne(ctx, venueID, nil); err != nil {
				s.logger.Error("venue run failed", "venue", venueID, "err", err)
				return
			}
		}
		s.record(ctx, summary)
	}()
	return nil
}

// Status reports whether a run is in flight, when the next one fires and how the last one went.
func (s *Scheduler) Status(ctx context.Context) SchedulerStatus {
	status := SchedulerStatus{
		Running:  s.IsRunning(),
		Schedule: s.spec,
		NextRun:  s.schedule.Next(time.Now()),
	}

	s.mu.Lock()
	status.LastRun = s.last
	s.mu.Unlock()

	if status.LastRun == nil && s.runs != nil {
		if runs, err := s.runs.List(ctx, 1); err == nil && len(runs) > 0 {
			status.LastRun = runs[0]
		}
	}
	return status
}

func (s *Scheduler) scheduled() {
	if err := s.acquire(); err != nil {
		if errors.Is(err, shared.ErrAlreadyRunning) {
			s.logger.Warn("skipping scheduled run, sync already running")
			metrics.RecordSkippedRun(string(models.TriggerSchedule))
			return
		}
		s.logger.Error("scheduled run could not start", "err", err)
		return
	}
	defer s.release()

	s.mu.Lock()
	ctx := s.base
	s.mu.Unlock()

	summary := s.engine.SyncAll(ctx, models.TriggerSchedule, nil)
	s.record(ctx, summary)
}

func (s *Scheduler) acquire() error {
	if !s.running.CompareAndSwap(false, true) {
		return shared.ErrAlreadyRunning
	}

	if s.lock != nil {
		ok, err := s.lock.TryLock()
		if err != nil {
			s.running.Store(false)
			return fmt.Errorf("failed to acquire run lock: %w", err)
		}
		if !ok {
			s.running.Store(false)
			return fmt.Errorf("%w: held by another process", shared.ErrAlreadyRunning)
		}
	}

	metrics.SetRunInProgress(true)
	return nil
}

func (s *Scheduler) release() {
	if s.lock != nil {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Warn("failed to release run lock", "err", err)
		}
	}
	s.running.Store(false)
	metrics.SetRunInProgress(false)
}

// record keeps the summary as the last run and appends it to the history.
func (s *Scheduler) record(ctx context.Context, summary *models.RunSummary) {
	s.mu.Lock()
	s.last = summary
	s.mu.Unlock()

	if s.runs == nil {
		return
	}
	if err := s.runs.Save(context.WithoutCancel(ctx), summary); err != nil {
		s.logger.Warn("failed to save run history", "run", summary.ID, "err", err)
	}
}
