// Package scheduler runs the background calendar refresh on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appLog "jarviscal/internal/log"
)

// Job is one refresh pass. Errors are logged; the schedule keeps running.
type Job func(ctx context.Context) error

// Scheduler triggers a Job on a cron spec such as "@every 30s" or
// "*/15 * * * *". Runs never overlap.
type Scheduler struct {
	name string
	spec string
	job  Job

	cron   *cron.Cron
	entry  cron.EntryID
	ctx    context.Context
	cancel context.CancelFunc

	runMu sync.Mutex
}

// New validates spec and prepares a scheduler. loc sets the zone for
// wall-clock specs; nil means time.Local.
func New(name, spec string, loc *time.Location, job Job) (*Scheduler, error) {
	if job == nil {
		return nil, fmt.Errorf("scheduler %s: job is nil", name)
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("scheduler %s: invalid schedule %q: %w", name, spec, err)
	}
	if loc == nil {
		loc = time.Local
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		name:   name,
		spec:   spec,
		job:    job,
		ctx:    ctx,
		cancel: cancel,
	}

	logger := cronLogger{name: name}
	s.cron = cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	id, err := s.cron.AddFunc(spec, func() { _ = s.run(s.ctx) })
	if err != nil {
		cancel()
		return nil, err
	}
	s.entry = id
	return s, nil
}

// Start begins the schedule in the background.
func (s *Scheduler) Start() {
	appLog.Info("scheduler started", "name", s.name, "spec", s.spec)
	s.cron.Start()
}

// Stop halts the schedule, cancels a running job and waits for it to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	appLog.Info("scheduler stopped", "name", s.name)
}

// RunNow runs the job immediately, waiting for any scheduled run first.
func (s *Scheduler) RunNow(ctx context.Context) error {
	return s.run(ctx)
}

// Next reports the next scheduled run; zero before Start.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}

func (s *Scheduler) run(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	started := time.Now()
	err := s.job(ctx)
	if err != nil {
		appLog.Error("scheduled job failed", err, "name", s.name, "elapsed", time.Since(started).String())
		return err
	}
	appLog.Debug("scheduled job done", "name", s.name, "elapsed", time.Since(started).String())
	return nil
}

// cronLogger routes cron's own messages to the application log.
type cronLogger struct {
	name string
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	appLog.Debug("cron: "+msg, append([]interface{}{"scheduler", l.name}, keysAndValues...)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	appLog.Error("cron: "+msg, err, append([]interface{}{"scheduler", l.name}, keysAndValues...)...)
}
