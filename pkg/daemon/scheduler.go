package daemon

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

type NotifyFunc func(data any)

// TaskFunc represents a runnable task.
type TaskFunc func(ctx context.Context) error

// Scheduler runs a task on a cron schedule. It drives history retention.
type Scheduler struct {
	OnDone  NotifyFunc // called with the task duration after a successful run
	OnError NotifyFunc // called on task error
	Task    TaskFunc

	parser cron.Parser

	mu       sync.Mutex
	schedule cron.Schedule
	spec     string
	nextRun  time.Time
	running  bool
	started  bool

	controlCh chan controlMsg
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// internal control kinds (not user visible events)
type controlKind int

const (
	ctrlRecalculate controlKind = iota // schedule changed, reread it
	ctrlSkip                           // next run skipped
	ctrlRunNow                         // run once immediately, keep schedule
)

type controlMsg struct {
	kind controlKind
	data any
}

func NewScheduler(task TaskFunc, onDone, onError NotifyFunc) *Scheduler {
	if task == nil {
		panic("task function cannot be nil")
	}

	return &Scheduler{
		OnDone:    onDone,
		OnError:   onError,
		Task:      task,
		parser:    cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		controlCh: make(chan controlMsg, 4),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start runs the scheduling loop until ctx is done or Stop is called. A
// scheduler can be started once.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.running = true
	go s.run(ctx)
}

// Stop ends the loop and waits for it, including a task in progress.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()

	select {
	case <-s.stopCh: // already closed
	default:
		close(s.stopCh)
	}
	if started {
		<-s.doneCh
	}
}

// Schedule sets the cron expression. An empty expression disables the task.
func (s *Scheduler) Schedule(cronExpr string) error {
	var sh cron.Schedule
	if cronExpr != "" {
		var err error
		sh, err = s.parser.Parse(cronExpr)
		if err != nil {
			return fmt.Errorf("invalid schedule %q: %w", cronExpr, err)
		}
	}

	s.mu.Lock()
	s.spec = cronExpr
	s.setScheduleLocked(sh)
	running := s.running
	s.mu.Unlock()

	// The loop rereads the schedule on any wake-up. A full channel already
	// holds one.
	if running {
		s.trySendControl(ctrlRecalculate, nil)
	}
	return nil
}

// ErrNothingScheduled is returned by Skip when the task is disabled.
var ErrNothingScheduled = errors.New("no active schedule to skip")

// Skip skips the next scheduled run.
func (s *Scheduler) Skip() error {
	s.mu.Lock()
	if s.schedule == nil || s.nextRun.IsZero() {
		s.mu.Unlock()
		return ErrNothingScheduled
	}
	s.nextRun = s.schedule.Next(s.nextRun)
	running := s.running
	s.mu.Unlock()

	if running {
		s.trySendControl(ctrlSkip, nil)
	}
	return nil
}

// RunNow asks the loop to run the task once without changing the schedule.
func (s *Scheduler) RunNow() {
	s.trySendControl(ctrlRunNow, nil)
}

func (s *Scheduler) Status() (spec string, nextRun time.Time, running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spec, s.nextRun, s.running
}

func (s *Scheduler) run(ctx context.Context) {
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		close(s.doneCh)
		logrus.Debug("scheduler stopped")
	}()

	logrus.Debug("scheduler started")

	for {
		_, nextRun := s.snapshot()
		var timerC <-chan time.Time
		var timer *time.Timer
		if !nextRun.IsZero() {
			wait := time.Until(nextRun)
			if wait < 0 {
				wait = 0
			}
			timer = time.NewTimer(wait)
			timerC = timer.C
		}

		select {
		case <-timerC:
			logrus.Debugf("running scheduled task at %s", nextRun.Format(time.DateTime))
			s.execute(ctx)
			s.advanceNextRun()
		case <-ctx.Done():
			stopTimer(timer)
			return
		case <-s.stopCh:
			stopTimer(timer)
			return
		case msg := <-s.controlCh: // internal control messages
			stopTimer(timer)
			logrus.WithField("kind", msg.kind).Debug("received control msg")

			switch msg.kind {
			case ctrlRecalculate:
				// schedule already set by Schedule
			case ctrlRunNow:
				s.execute(ctx)
			case ctrlSkip:
				// nextRun already advanced by Skip
			}
		}
	}
}

func (s *Scheduler) execute(ctx context.Context) {
	start := time.Now()
	if err := s.Task(ctx); err != nil {
		s.sendError(fmt.Errorf("task failed: %w", err))
		return
	}
	if s.OnDone != nil {
		s.OnDone(time.Since(start))
	}
}

func (s *Scheduler) setScheduleLocked(sh cron.Schedule) {
	s.schedule = sh
	if sh == nil {
		s.nextRun = time.Time{}
		return
	}
	s.nextRun = sh.Next(time.Now())
}

func (s *Scheduler) snapshot() (cron.Schedule, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schedule, s.nextRun
}

func (s *Scheduler) advanceNextRun() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.schedule == nil {
		return
	}
	s.nextRun = s.schedule.Next(time.Now())
}

func (s *Scheduler) sendError(err error) {
	logrus.WithError(err).Error("scheduled task failed")
	if s.OnError == nil {
		return
	}
	s.OnError(err)
}

func (s *Scheduler) trySendControl(kind controlKind, data any) {
	select {
	case s.controlCh <- controlMsg{kind: kind, data: data}:
	default:
	}
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}
