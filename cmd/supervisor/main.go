package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/czentrix/screenrecording-report/internal/config"
	"github.com/czentrix/screenrecording-report/internal/logging"
	"github.com/czentrix/screenrecording-report/internal/supervisor"
)

// closer is implemented by managers holding a connection
type closer interface {
	Close()
}

func main() {
	if path := config.LoadDotEnv(config.DotEnvPaths()); path != "" {
		fmt.Printf("Loaded environment from: %s\n", path)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load configuration:", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(logging.Options{
		ServiceName: "service-supervisor",
		Dir:         cfg.Logging.Dir,
		Filename:    cfg.Logging.Filename,
		Level:       cfg.Logging.Level,
		Backups:     cfg.Logging.Backups,
		Console:     cfg.Logging.Console,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to create logger:", err)
		os.Exit(1)
	}
	defer logger.Close() //nolint:errcheck

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Names given on the command line replace the configured list
	services := cfg.SupervisedServices()
	if len(os.Args) > 1 {
		services = os.Args[1:]
	}
	if len(services) == 0 {
		logger.Warn("no services configured, nothing to supervise")
		return
	}

	manager := newManager(ctx, cfg.Supervisor.Backend, logger.Logger)
	if c, ok := manager.(closer); ok {
		defer c.Close()
	}

	supervisor.New(manager, logger.Logger, cfg.Supervisor.Workers, cfg.Supervisor.Timeout).Run(ctx, services)
}

// newManager returns the configured backend. When the system bus cannot be
// reached the systemctl backend is used instead.
func newManager(ctx context.Context, backend string, logger *zap.Logger) supervisor.Manager {
	systemctl := supervisor.NewSystemctlManager(supervisor.ExecRunner)
	if backend == config.BackendSystemctl {
		return systemctl
	}

	manager, err := supervisor.NewDBusManager(ctx, supervisor.NewSystemBus)
	if err != nil {
		logger.Warn("dbus unavailable, falling back to systemctl", zap.Error(err))
		return systemctl
	}
	return manager
}
