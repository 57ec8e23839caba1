// Package schedule drives the periodic monitor and agent ticks and the
// housekeeping jobs from cron expressions.
package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var jobRuns = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "beacon",
		Subsystem: "schedule",
		Name:      "job_runs_total",
		Help:      "Scheduled job runs by job and result.",
	},
	[]string{"job", "result"},
)

func init() {
	prometheus.MustRegister(jobRuns)
}

// Job is one named periodic task.
type Job struct {
	Name string
	Spec string
	// Timeout bounds one run. Zero means the run has no deadline.
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// Scheduler runs jobs on their cron specs. Runs of the same job may overlap
// when one outlasts its interval.
type Scheduler struct {
	cfg    Config
	logger *zap.Logger
	loc    *time.Location
	c      *cron.Cron

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	jobs   []Job
}

// New creates a Scheduler. An unknown timezone falls back to UTC.
func New(cfg Config, logger *zap.Logger) *Scheduler {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil || cfg.Timezone == "" {
		if cfg.Timezone != "" {
			logger.Warn("unknown schedule timezone, using UTC", zap.String("timezone", cfg.Timezone), zap.Error(err))
		}
		loc = time.UTC
	}
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cfg:    cfg,
		logger: logger,
		loc:    loc,
		c: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl)),
		),
	}
}

// Add registers a job. Jobs with an empty spec are skipped.
func (s *Scheduler) Add(job Job) error {
	if job.Spec == "" {
		s.logger.Info("scheduled job disabled", zap.String("job", job.Name))
		return nil
	}
	if _, err := s.c.AddFunc(job.Spec, func() { s.run(job) }); err != nil {
		return fmt.Errorf("schedule %s %q: %w", job.Name, job.Spec, err)
	}
	s.mu.Lock()
	s.jobs = append(s.jobs, job)
	s.mu.Unlock()
	return nil
}

// Start begins firing jobs. Job contexts derive from ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	n := len(s.jobs)
	s.mu.Unlock()

	s.c.Start()
	s.logger.Info("scheduler started", zap.Int("jobs", n), zap.String("timezone", s.loc.String()))
}

// Stop prevents new runs and waits for running ones, or until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.c.Stop().Done()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out waiting for running jobs")
	}
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	s.logger.Info("scheduler stopped")
}

// Location is the timezone cron specs are evaluated in.
func (s *Scheduler) Location() *time.Location { return s.loc }

func (s *Scheduler) run(job Job) {
	s.mu.Lock()
	base := s.ctx
	s.mu.Unlock()
	if base == nil {
		base = context.Background()
	}
	ctx := base
	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(base, job.Timeout)
		defer cancel()
	}

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		jobRuns.WithLabelValues(job.Name, "error").Inc()
		s.logger.Warn("scheduled job failed",
			zap.String("job", job.Name),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return
	}
	jobRuns.WithLabelValues(job.Name, "ok").Inc()
	s.logger.Debug("scheduled job finished",
		zap.String("job", job.Name),
		zap.Duration("elapsed", time.Since(start)),
	)
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
