package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the logger sinks
type Options struct {
	ServiceName string
	Dir         string
	Filename    string
	Level       string
	Backups     int
	Console     bool
}

// Logger is a zap logger writing to a daily rotated file and optionally the console
type Logger struct {
	*zap.Logger
	file    *lumberjack.Logger
	rotator *rotator
}

// NewLogger creates a new structured logger
func NewLogger(opts Options) (*Logger, error) {
	level, err := zapcore.ParseLevel(opts.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to parse log level %q: %w", opts.Level, err)
	}

	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", opts.Dir, err)
	}

	file := &lumberjack.Logger{
		Filename:   filepath.Join(opts.Dir, opts.Filename),
		MaxBackups: opts.Backups,
		LocalTime:  true,
	}

	encoder := zapcore.NewConsoleEncoder(encoderConfig())
	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.AddSync(file), level),
	}
	if opts.Console {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller()).
		Named(opts.ServiceName).
		With(zap.String("service", opts.ServiceName))

	return &Logger{
		Logger:  logger,
		file:    file,
		rotator: startRotator(file, logger),
	}, nil
}

// NewNop returns a logger that discards everything, for tests and startup fallbacks
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// Close stops the rotator, flushes buffered entries and closes the log file
func (l *Logger) Close() error {
	if l.rotator != nil {
		l.rotator.stop()
	}
	_ = l.Logger.Sync()
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// WithRequestID returns a logger with request_id field
func WithRequestID(logger *zap.Logger, requestID string) *zap.Logger {
	return logger.With(zap.String("request_id", requestID))
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.EncodeCaller = zapcore.ShortCallerEncoder
	cfg.ConsoleSeparator = " - "
	return cfg
}

// rotator rolls the log file over at every local midnight.
type rotator struct {
	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

func startRotator(file *lumberjack.Logger, logger *zap.Logger) *rotator {
	r := &rotator{done: make(chan struct{})}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			timer := time.NewTimer(time.Until(NextMidnight(time.Now())))
			select {
			case <-r.done:
				timer.Stop()
				return
			case <-timer.C:
				if err := file.Rotate(); err != nil {
					logger.Error("failed to rotate log file", zap.Error(err))
				}
			}
		}
	}()
	return r
}

func (r *rotator) stop() {
	r.once.Do(func() { close(r.done) })
	r.wg.Wait()
}

// NextMidnight returns the start of the day following now, in now's location
func NextMidnight(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, now.Location())
}
