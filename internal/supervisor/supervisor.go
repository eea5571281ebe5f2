// Package supervisor keeps system services running by restarting the ones
// systemd reports as inactive.
package supervisor

import (
	"context"
	"runtime"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Manager queries and controls system services
type Manager interface {
	IsActive(ctx context.Context, name string) (bool, error)
	Restart(ctx context.Context, name string) error
}

// Outcome is the result of supervising a single service
type Outcome string

const (
	OutcomeActive        Outcome = "active"
	OutcomeRestarted     Outcome = "restarted"
	OutcomeRestartFailed Outcome = "restart_failed"
)

// Result records what happened to one service during a pass
type Result struct {
	Service string
	Outcome Outcome
	Err     error
}

// Report lists the per-service results of a pass, in input order
type Report []Result

// Count returns how many services ended with the given outcome
func (r Report) Count(o Outcome) int {
	n := 0
	for _, res := range r {
		if res.Outcome == o {
			n++
		}
	}
	return n
}

// Supervisor checks services concurrently on a bounded pool
type Supervisor struct {
	manager Manager
	logger  *zap.Logger
	workers int
	timeout time.Duration
}

// DefaultWorkers mirrors a typical thread pool default: min(32, NumCPU+4)
func DefaultWorkers() int {
	return min(32, runtime.NumCPU()+4)
}

// New creates a supervisor. workers <= 0 selects DefaultWorkers; a zero
// timeout leaves each check and restart unbounded.
func New(manager Manager, logger *zap.Logger, workers int, timeout time.Duration) *Supervisor {
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	return &Supervisor{
		manager: manager,
		logger:  logger,
		workers: workers,
		timeout: timeout,
	}
}

// Run checks every service and restarts the inactive ones. Individual
// failures are logged and recorded in the report, never returned.
func (s *Supervisor) Run(ctx context.Context, services []string) Report {
	report := make(Report, len(services))

	var g errgroup.Group
	g.SetLimit(s.workers)

	for i, name := range services {
		i, name := i, name
		g.Go(func() error {
			report[i] = s.supervise(ctx, name)
			return nil
		})
	}
	_ = g.Wait()

	debug.FreeOSMemory()

	s.logger.Info("supervision pass complete",
		zap.Int("services", len(report)),
		zap.Int("active", report.Count(OutcomeActive)),
		zap.Int("restarted", report.Count(OutcomeRestarted)),
		zap.Int("restart_failed", report.Count(OutcomeRestartFailed)),
	)
	return report
}

func (s *Supervisor) supervise(ctx context.Context, name string) Result {
	logger := s.logger.With(zap.String("unit", name))

	active, err := s.isActive(ctx, name)
	if err != nil {
		logger.Error("failed to check service status", zap.Error(err))
	}
	if active {
		logger.Debug("service is active")
		return Result{Service: name, Outcome: OutcomeActive}
	}
	logger.Info("service is not active")

	if err := s.restart(ctx, name); err != nil {
		logger.Error("failed to restart service", zap.Error(err))
		return Result{Service: name, Outcome: OutcomeRestartFailed, Err: err}
	}
	logger.Info("service has been restarted")
	return Result{Service: name, Outcome: OutcomeRestarted}
}

func (s *Supervisor) isActive(ctx context.Context, name string) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.manager.IsActive(ctx, name)
}

func (s *Supervisor) restart(ctx context.Context, name string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.manager.Restart(ctx, name)
}

func (s *Supervisor) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}
