// Package audit periodically checks the format index against the stored tool records.
// It only reports inconsistencies and never repairs them.
package audit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/toolmeta/toolregistry/internal/registry"
	"github.com/toolmeta/toolregistry/internal/telemetry"
	"go.uber.org/zap"
)

// parser accepts standard 5-field expressions and descriptors like "@hourly" or "@every 30m".
var parser = cron.NewParser(
	cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow |
		cron.Descriptor,
)

// IndexVerifier compares the format index against the tool records.
type IndexVerifier interface {
	VerifyIndex(ctx context.Context) ([]registry.IndexInconsistency, error)
}

type Config struct {
	// Schedule is a cron expression. Empty disables scheduled runs, RunOnce still works.
	Schedule string

	Verifier IndexVerifier
	Metrics  telemetry.CustomMetrics
	Logger   *zap.Logger

	// Timeout bounds a single run. Defaults to one minute.
	Timeout time.Duration
}

// Report is the outcome of a single audit run.
type Report struct {
	StartedAt       time.Time
	Duration        time.Duration
	Inconsistencies []registry.IndexInconsistency
}

// Auditor runs the index audit on a cron schedule.
type Auditor struct {
	cron     *cron.Cron
	verifier IndexVerifier
	metrics  telemetry.CustomMetrics
	logger   *zap.Logger
	timeout  time.Duration

	mu   sync.Mutex
	last *Report
}

// ValidateSchedule reports whether expr is a schedule the Auditor accepts.
func ValidateSchedule(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return nil
	}
	if _, err := parser.Parse(strings.TrimSpace(expr)); err != nil {
		return fmt.Errorf("invalid audit schedule %q: %w", expr, err)
	}
	return nil
}

func New(c *Config) (*Auditor, error) {
	if c.Verifier == nil {
		return nil, fmt.Errorf("auditor requires an index verifier")
	}
	a := &Auditor{
		verifier: c.Verifier,
		metrics:  c.Metrics,
		logger:   c.Logger,
		timeout:  c.Timeout,
	}
	if a.metrics == nil {
		a.metrics = telemetry.NewNoopCustomMetrics()
	}
	if a.logger == nil {
		a.logger = zap.NewNop()
	}
	if a.timeout <= 0 {
		a.timeout = time.Minute
	}

	schedule := strings.TrimSpace(c.Schedule)
	if schedule == "" {
		return a, nil
	}
	if err := ValidateSchedule(schedule); err != nil {
		return nil, err
	}

	logger := cronLogger{a.logger.Sugar()}
	a.cron = cron.New(
		cron.WithParser(parser),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := a.cron.AddFunc(schedule, a.run); err != nil {
		return nil, fmt.Errorf("failed to schedule index audit: %w", err)
	}
	return a, nil
}

// Enabled reports whether the auditor runs on a schedule.
func (a *Auditor) Enabled() bool {
	return a.cron != nil
}

// Start begins scheduled runs in the background. It is a no-op when no schedule is configured.
func (a *Auditor) Start() {
	if a.cron == nil {
		return
	}
	a.cron.Start()
}

// Stop halts the scheduler and waits for a running audit to finish, or for ctx to expire.
func (a *Auditor) Stop(ctx context.Context) error {
	if a.cron == nil {
		return nil
	}
	done := a.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce performs a single audit, records its findings and returns the report.
func (a *Auditor) RunOnce(ctx context.Context) (*Report, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	started := time.Now()
	problems, err := a.verifier.VerifyIndex(ctx)
	if err != nil {
		a.logger.Error("index audit failed", zap.Error(err))
		return nil, fmt.Errorf("index audit failed: %w", err)
	}
	report := &Report{
		StartedAt:       started,
		Duration:        time.Since(started),
		Inconsistencies: problems,
	}

	a.metrics.RecordIndexInconsistencies(ctx, len(problems))
	if len(problems) == 0 {
		a.logger.Debug("index audit found no inconsistencies", zap.Duration("elapsed", report.Duration))
	} else {
		for _, p := range problems {
			a.logger.Warn("format index inconsistency",
				zap.String("tool_id", p.ToolID),
				zap.String("format", p.Format),
				zap.String("problem", p.Problem),
			)
		}
		a.logger.Warn("index audit found inconsistencies", zap.Int("count", len(problems)))
	}

	a.mu.Lock()
	a.last = report
	a.mu.Unlock()
	return report, nil
}

// LastReport returns the report of the most recent successful run, or nil.
func (a *Auditor) LastReport() *Report {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last
}

func (a *Auditor) run() {
	// errors are logged by RunOnce
	_, _ = a.RunOnce(context.Background())
}

// cronLogger adapts zap to the logger interface of the cron scheduler.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
