// Package logging builds the process logger: a zap core tee of a console sink
// and, unless disabled, daily-rotating JSON file sinks split by severity.
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const timeLayout = "2006-01-02 15:04:05"

type Options struct {
	Service     string
	Environment string
	Level       string
	Production  bool

	Dir         string
	DisableFile bool
	MaxSizeMB   int
	MaxAgeDays  int

	// Console overrides stdout; used by tests.
	Console zapcore.WriteSyncer
}

// Logger is the application logger plus the dedicated sinks for recovered
// panics and failed background goroutines.
type Logger struct {
	*zap.Logger

	exceptions *zap.Logger
	rejections *zap.Logger
	files      []io.Closer
}

func New(opts Options) (*Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	enabled := zap.NewAtomicLevelAt(level)

	console := opts.Console
	if console == nil {
		console = zapcore.Lock(os.Stdout)
	}
	cores := []zapcore.Core{zapcore.NewCore(consoleEncoder(opts.Production), console, enabled)}

	l := &Logger{}
	var exceptionCores, rejectionCores []zapcore.Core
	if !opts.DisableFile {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		enc := jsonEncoder()
		errorFile := l.open(opts, "error")
		combinedFile := l.open(opts, "combined")
		appFile := l.open(opts, "app")
		cores = append(cores,
			zapcore.NewCore(enc, errorFile, zapcore.ErrorLevel),
			zapcore.NewCore(enc, combinedFile, enabled),
			zapcore.NewCore(enc, appFile, atLeast(enabled, zapcore.InfoLevel)),
		)
		exceptionCores = append(exceptionCores, zapcore.NewCore(enc, l.open(opts, "exceptions"), zapcore.DebugLevel))
		rejectionCores = append(rejectionCores, zapcore.NewCore(enc, l.open(opts, "rejections"), zapcore.DebugLevel))
	}

	fields := zap.Fields(
		zap.String("service", opts.Service),
		zap.String("environment", opts.Environment),
	)
	root := zapcore.NewTee(cores...)
	l.Logger = zap.New(root, fields, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	l.exceptions = zap.New(zapcore.NewTee(append([]zapcore.Core{root}, exceptionCores...)...), fields)
	l.rejections = zap.New(zapcore.NewTee(append([]zapcore.Core{root}, rejectionCores...)...), fields)
	return l, nil
}

// NewNop returns a Logger that discards everything.
func NewNop() *Logger {
	nop := zap.NewNop()
	return &Logger{Logger: nop, exceptions: nop, rejections: nop}
}

// Exception records a recovered panic with its stack.
func (l *Logger) Exception(recovered any, stack []byte) {
	l.exceptions.Error("Uncaught Exception:",
		zap.Any("error", recovered),
		zap.ByteString("stack", stack),
	)
}

// Rejection records a fatal error surfaced by a background goroutine.
func (l *Logger) Rejection(err error) {
	l.rejections.Error("Unhandled Rejection:",
		zap.Error(err),
		zap.Stack("stack"),
	)
}

// Close flushes and closes the file sinks.
func (l *Logger) Close() error {
	_ = l.Logger.Sync()
	var errs []error
	for _, c := range l.files {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

func (l *Logger) open(opts Options, name string) zapcore.WriteSyncer {
	f := newDailyFile(opts.Dir, name, opts.MaxSizeMB, opts.MaxAgeDays)
	l.files = append(l.files, f)
	return f
}

// ParseLevel accepts zap level names plus the npm-style http, verbose and
// silly, which all map to debug.
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return zapcore.InfoLevel, nil
	case "http", "verbose", "silly":
		return zapcore.DebugLevel, nil
	}
	lvl, err := zapcore.ParseLevel(s)
	if err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return lvl, nil
}

func consoleEncoder(production bool) zapcore.Encoder {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout(timeLayout)
	if production {
		cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
		cfg.CallerKey = zapcore.OmitKey
		cfg.StacktraceKey = zapcore.OmitKey
	} else {
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return zapcore.NewConsoleEncoder(cfg)
}

func jsonEncoder() zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "timestamp"
	cfg.MessageKey = "message"
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout(timeLayout)
	return zapcore.NewJSONEncoder(cfg)
}

func atLeast(enabled zapcore.LevelEnabler, floor zapcore.Level) zapcore.LevelEnabler {
	return zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return l >= floor && enabled.Enabled(l)
	})
}
