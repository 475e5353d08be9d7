package logging

import (
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// CONSOLE logs to stderr in a human-readable form.
	CONSOLE = "console"
	// JOURNAL logs to systemd-journald.
	JOURNAL = "systemd-journald"
)

// Logger wraps a *zap.SugaredLogger with the periodic-logging interval
// configured for it, so that callers driving com.Counter-backed periodic
// debug logs don't need to thread the interval through separately.
type Logger struct {
	*zap.SugaredLogger

	interval time.Duration
}

// NewLogger wraps an existing *zap.SugaredLogger, tagging it with interval.
func NewLogger(sugared *zap.SugaredLogger, interval time.Duration) *Logger {
	return &Logger{SugaredLogger: sugared, interval: interval}
}

// Interval returns the configured periodic-logging interval.
func (l *Logger) Interval() time.Duration {
	return l.interval
}

// Logging creates named child [Logger]s sharing one underlying zap core,
// configured from a [Config].
type Logging struct {
	logger *zap.SugaredLogger
	config Config
}

// NewLogging builds the root zap core described by config and returns a
// Logging factory for per-component child loggers.
func NewLogging(name string, config Config) (*Logging, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	core, err := newCore(name, config)
	if err != nil {
		return nil, err
	}

	root := zap.New(core).Named(name).Sugar()

	return &Logging{logger: root, config: config}, nil
}

// GetLogger returns a named child logger, applying a per-name level
// configured in Config.Options. The override can only raise the level above
// Config.Level; a lower level has no effect.
func (l *Logging) GetLogger(name string) *Logger {
	logger := l.logger.Named(name)
	if level, ok := l.config.Options[name]; ok {
		logger = logger.WithOptions(zap.IncreaseLevel(level))
	}

	return NewLogger(logger, l.config.Interval)
}

// GetChildLogger derives a logger scoped to a component instance, e.g. one
// worker keyed by its database address, adding structured fields that are
// attached to every subsequent log line.
func (l *Logger) GetChildLogger(name string, fields ...zap.Field) *Logger {
	return NewLogger(l.Named(name).With(fields...), l.interval)
}

func newCore(name string, config Config) (zapcore.Core, error) {
	enabler := zapcore.LevelEnabler(config.Level)

	switch config.Output {
	case JOURNAL:
		return NewJournaldCore(name, enabler), nil
	case CONSOLE, "":
		return newConsoleCore(enabler), nil
	default:
		return nil, AssertOutput(config.Output)
	}
}

func newConsoleCore(enabler zapcore.LevelEnabler) zapcore.Core {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	return zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.Lock(os.Stderr), enabler)
}
