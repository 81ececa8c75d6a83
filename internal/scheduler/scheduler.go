package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/maitre-io/maitre/pkg/protocol"
)

// Controller is the part of the restaurant the scheduler drives.
type Controller interface {
	StartShift(s protocol.Shift) error
	EndShift(ctx context.Context)
}

// Job describes one registered cron entry.
type Job struct {
	ID    cron.EntryID   `json:"id"`
	Spec  string         `json:"spec"`
	Shift protocol.Shift `json:"shift,omitempty"` // ShiftNone closes the current shift
	Next  time.Time      `json:"next,omitzero"`  // zero until the scheduler starts
}

// Scheduler opens and closes shifts on cron schedules.
type Scheduler struct {
	mu     sync.Mutex
	cron   *cron.Cron
	jobs   []Job
	ctrl   Controller
	ctx    context.Context
	logger *slog.Logger
}

// New creates a scheduler driving ctrl. Options are passed to cron, e.g.
// cron.WithLocation for the restaurant's timezone.
func New(ctrl Controller, logger *slog.Logger, opts ...cron.Option) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:   cron.New(opts...),
		ctrl:   ctrl,
		ctx:    context.Background(),
		logger: logger,
	}
}

// Start begins the cron scheduler. Blocks until context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", s.JobCount())

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
	return ctx.Err()
}

// Schedule opens shift every time spec fires. The spec is a standard
// 5-field cron expression or a descriptor such as @daily.
func (s *Scheduler) Schedule(shift protocol.Shift, spec string) error {
	if !shift.Valid() {
		return fmt.Errorf("scheduler: shift %q: %w", shift, protocol.ErrInvalidArgument)
	}
	return s.add(shift, spec, func() {
		if err := s.ctrl.StartShift(shift); err != nil {
			s.logger.Error("scheduled shift start", "shift", shift.String(), "error", err)
		}
	})
}

// ScheduleClose ends the current shift every time spec fires.
func (s *Scheduler) ScheduleClose(spec string) error {
	return s.add(protocol.ShiftNone, spec, func() {
		s.mu.Lock()
		ctx := s.ctx
		s.mu.Unlock()
		s.ctrl.EndShift(ctx)
	})
}

func (s *Scheduler) add(shift protocol.Shift, spec string, fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.cron.AddFunc(spec, func() {
		s.logger.Info("cron fired", "shift", shift.String(), "spec", spec)
		fn()
	})
	if err != nil {
		return fmt.Errorf("scheduler: invalid schedule %q: %w", spec, err)
	}
	s.jobs = append(s.jobs, Job{ID: id, Spec: spec, Shift: shift})
	s.logger.Info("job registered", "shift", shift.String(), "spec", spec)
	return nil
}

// Remove drops every job for shift. ShiftNone removes the close jobs.
func (s *Scheduler) Remove(shift protocol.Shift) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.jobs[:0]
	removed := 0
	for _, j := range s.jobs {
		if j.Shift != shift {
			kept = append(kept, j)
			continue
		}
		s.cron.Remove(j.ID)
		removed++
	}
	s.jobs = kept
	return removed
}

// Jobs returns the registered jobs in registration order with their next
// activation.
func (s *Scheduler) Jobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Job, len(s.jobs))
	for i, j := range s.jobs {
		j.Next = s.cron.Entry(j.ID).Next
		out[i] = j
	}
	return out
}

// JobCount returns the total number of scheduled jobs.
func (s *Scheduler) JobCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}
