// Package scheduler triggers periodic inbox polls with robfig/cron. A poll that is still
// running when the next tick fires causes that tick to be skipped.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fjacquet/notif-ledger/internal/logging"
	"fjacquet/notif-ledger/internal/models"
	"fjacquet/notif-ledger/internal/pipeline"

	"github.com/robfig/cron/v3"
)

// DefaultSpec polls every minute.
const DefaultSpec = "@every 1m"

// Job is one scheduled run.
type Job func(ctx context.Context) error

// Scheduler runs a Job on a cron schedule, one run at a time.
type Scheduler struct {
	spec   string
	cron   *cron.Cron
	job    cron.Job
	logger logging.Logger

	mu  sync.Mutex
	ctx context.Context
}

// New validates spec (standard 5-field cron or a descriptor such as "@every 30s") and
// prepares a Scheduler for job.
func New(spec string, job Job, logger logging.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	if spec == "" {
		spec = DefaultSpec
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	s := &Scheduler{spec: spec, logger: logger, ctx: context.Background()}
	cl := cronLogger{logger}
	s.cron = cron.New(cron.WithLogger(cl))
	s.job = cron.NewChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)).Then(cron.FuncJob(func() {
		s.run(job)
	}))
	return s, nil
}

func (s *Scheduler) run(job Job) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx.Err() != nil {
		return
	}

	start := time.Now()
	if err := job(ctx); err != nil {
		s.logger.WithError(err).Error("Scheduled run failed",
			logging.F(logging.FieldDuration, time.Since(start).Milliseconds()))
		return
	}
	s.logger.Debug("Scheduled run finished",
		logging.F(logging.FieldDuration, time.Since(start).Milliseconds()))
}

// Trigger runs the job now on the calling goroutine, unless a run is in progress.
func (s *Scheduler) Trigger() {
	s.job.Run()
}

// Run starts the schedule and blocks until ctx is done, then waits for the current run.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	if _, err := s.cron.AddJob(s.spec, s.job); err != nil {
		return fmt.Errorf("unable to schedule poll: %w", err)
	}
	s.cron.Start()
	s.logger.Info("Scheduler started", logging.F("schedule", s.spec))

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
	return nil
}

// MessageSource yields the messages currently waiting.
type MessageSource interface {
	Read() ([]models.Message, error)
}

// BatchProcessor is the part of the engine a poll needs.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, msgs []models.Message) ([]pipeline.Outcome, error)
}

// PollInbox returns a Job that reads source and feeds it to processor. Messages seen by
// earlier polls come back as already_processed and cost only a ledger lookup.
func PollInbox(source MessageSource, processor BatchProcessor, logger logging.Logger) Job {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	return func(ctx context.Context) error {
		msgs, err := source.Read()
		if err != nil {
			return fmt.Errorf("failed to read inbox: %w", err)
		}
		if len(msgs) == 0 {
			return nil
		}
		outcomes, err := processor.ProcessBatch(ctx, msgs)
		summary := pipeline.Summarize(outcomes)
		logger.Info("Inbox poll completed",
			logging.F(logging.FieldCount, len(msgs)),
			logging.F("created", summary[pipeline.StatusCreated]),
			logging.F("failed", summary[pipeline.StatusFailed]))
		return err
	}
}

// cronLogger adapts logging.Logger to cron.Logger.
type cronLogger struct {
	logger logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, pairs(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.WithError(err).Error("cron: "+msg, pairs(keysAndValues)...)
}

func pairs(kv []interface{}) []logging.Field {
	fields := make([]logging.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields = append(fields, logging.F(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return fields
}
