// Package cron runs periodic jobs and submitted tasks on a single goroutine.
//
// Jobs never overlap with each other or with submitted tasks: the scheduler
// runs one callback at a time, in the order it becomes due. A job whose
// firing was missed while another callback ran fires once and is then
// rescheduled from the current time.
package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	robfig "github.com/robfig/cron/v3"
)

var (
	ErrStopped = errors.New("scheduler is not running")
	ErrRunning = errors.New("scheduler already running")
)

var parser = robfig.NewParser(robfig.SecondOptional | robfig.Minute | robfig.Hour | robfig.Dom | robfig.Month | robfig.Dow | robfig.Descriptor)

// Parse accepts a cron expression with optional seconds, a descriptor such as
// "@every 30s", or a bare Go duration which is treated as "@every <duration>".
func Parse(expr string) (robfig.Schedule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, errors.New("empty schedule")
	}
	if d, err := time.ParseDuration(expr); err == nil {
		if d <= 0 {
			return nil, fmt.Errorf("schedule %q: duration must be > 0", expr)
		}
		return robfig.Every(d), nil
	}
	s, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("schedule %q: %w", expr, err)
	}
	return s, nil
}

// Job is a named periodic callback.
type Job struct {
	Name     string
	Schedule string
	Run      func(ctx context.Context)
}

type entry struct {
	job   Job
	sched robfig.Schedule
	next  time.Time
}

type task struct {
	fn   func(ctx context.Context)
	done chan struct{}
}

type Scheduler struct {
	clock  clockwork.Clock
	logger *slog.Logger

	mu      sync.Mutex
	entries []*entry
	running bool

	tasks chan task
	done  chan struct{}
}

func NewScheduler(clock clockwork.Clock, logger *slog.Logger) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		clock:  clock,
		logger: logger,
		tasks:  make(chan task),
		done:   make(chan struct{}),
	}
}

// Add registers a job. Jobs must be added before Run.
func (s *Scheduler) Add(job Job) error {
	if job.Name == "" {
		return errors.New("job requires a name")
	}
	if job.Run == nil {
		return fmt.Errorf("job %s: nil run func", job.Name)
	}
	sched, err := Parse(job.Schedule)
	if err != nil {
		return fmt.Errorf("job %s: %w", job.Name, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrRunning
	}
	for _, e := range s.entries {
		if e.job.Name == job.Name {
			return fmt.Errorf("job %s already exists", job.Name)
		}
	}
	s.entries = append(s.entries, &entry{job: job, sched: sched})
	return nil
}

// Do runs fn on the scheduler goroutine and waits for it to finish.
func (s *Scheduler) Do(ctx context.Context, fn func(ctx context.Context)) error {
	t := task{fn: fn, done: make(chan struct{})}
	select {
	case s.tasks <- t:
	case <-s.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-t.done:
		return nil
	case <-s.done:
		// Run closes done only after the in-flight task returns.
		<-t.done
		return nil
	}
}

// Run executes jobs and tasks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrRunning
	}
	s.running = true
	entries := s.entries
	s.mu.Unlock()
	defer close(s.done)

	now := s.clock.Now()
	for _, e := range entries {
		e.next = e.sched.Next(now)
		s.logger.Debug("Job scheduled", "job", e.job.Name, "next", e.next)
	}

	for {
		var timerC <-chan time.Time
		var timer clockwork.Timer
		if next, ok := earliest(entries); ok {
			timer = s.clock.NewTimer(next.Sub(s.clock.Now()))
			timerC = timer.Chan()
		}

		select {
		case <-ctx.Done():
			stopTimer(timer)
			return ctx.Err()
		case t := <-s.tasks:
			stopTimer(timer)
			s.runTask(ctx, t)
		case <-timerC:
			s.runDue(ctx, entries)
		}
	}
}

func (s *Scheduler) runTask(ctx context.Context, t task) {
	defer close(t.done)
	defer s.recoverPanic("task")
	t.fn(ctx)
}

func (s *Scheduler) runDue(ctx context.Context, entries []*entry) {
	for _, e := range entries {
		if e.next.After(s.clock.Now()) {
			continue
		}
		s.runJob(ctx, e)
		e.next = e.sched.Next(s.clock.Now())
	}
}

func (s *Scheduler) runJob(ctx context.Context, e *entry) {
	defer s.recoverPanic(e.job.Name)
	e.job.Run(ctx)
}

func (s *Scheduler) recoverPanic(name string) {
	if r := recover(); r != nil {
		s.logger.Error("Scheduled callback panicked", "name", name, "panic", r)
	}
}

func earliest(entries []*entry) (time.Time, bool) {
	var min time.Time
	for i, e := range entries {
		if i == 0 || e.next.Before(min) {
			min = e.next
		}
	}
	return min, len(entries) > 0
}

func stopTimer(t clockwork.Timer) {
	if t == nil {
		return
	}
	if !t.Stop() {
		select {
		case <-t.Chan():
		default:
		}
	}
}
