package logger

import (
	"context"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// loggerName is the name every logger instance reports itself under.
const loggerName = "streamgrab"

//nolint:gochecknoglobals // Package-level logger shared across the whole process.
var (
	current  atomic.Pointer[zap.SugaredLogger]
	level    = zap.NewAtomicLevel()
	initOnce sync.Once

	parseable = map[string]zapcore.Level{
		"debug":  zapcore.DebugLevel,
		"info":   zapcore.InfoLevel,
		"warn":   zapcore.WarnLevel,
		"error":  zapcore.ErrorLevel,
		"dpanic": zapcore.DPanicLevel,
		"panic":  zapcore.PanicLevel,
		"fatal":  zapcore.FatalLevel,
	}
)

//nolint:gochecknoinits // Guarantees Logger() is always usable, even before explicit initialization.
func init() {
	initOnce.Do(func() {
		current.Store(New(zapcore.InfoLevel))
	})
}

// New builds a zap-backed sugared logger at the given level.
// A nil enabler falls back to info level.
func New(enabler zapcore.LevelEnabler) *zap.SugaredLogger {
	lvl := zapcore.InfoLevel
	if concrete, ok := enabler.(zapcore.Level); ok {
		lvl = concrete
	}

	level.SetLevel(lvl)

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderCfg),
		zapcore.Lock(zapcore.AddSync(os.Stderr)),
		level,
	)

	return zap.New(core, zap.AddCallerSkip(1)).Named(loggerName).Sugar()
}

// ParseLogLevel parses a case-insensitive, whitespace-tolerant log level name.
func ParseLogLevel(raw string) (zapcore.Level, bool) {
	lvl, ok := parseable[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return zapcore.InfoLevel, false
	}

	return lvl, true
}

// Logger returns the process-wide sugared logger.
func Logger() *zap.SugaredLogger {
	return current.Load()
}

// SetLogger replaces the process-wide logger wholesale (used by tests).
func SetLogger(l *zap.SugaredLogger) {
	current.Store(l)
}

// Level returns the current minimum enabled level.
func Level() zapcore.Level {
	return level.Level()
}

// SetLevel adjusts the minimum enabled level of the process-wide logger.
func SetLevel(l zapcore.Level) {
	level.SetLevel(l)
}

func Debug(ctx context.Context, args ...any) { Logger().Debug(args...) }
func Info(ctx context.Context, args ...any)  { Logger().Info(args...) }
func Warn(ctx context.Context, args ...any)  { Logger().Warn(args...) }
func Error(ctx context.Context, args ...any) { Logger().Error(args...) }
func Fatal(ctx context.Context, args ...any) { Logger().Fatal(args...) }

func Debugf(ctx context.Context, template string, args ...any) { Logger().Debugf(template, args...) }
func Infof(ctx context.Context, template string, args ...any)  { Logger().Infof(template, args...) }
func Warnf(ctx context.Context, template string, args ...any) { Logger().Warnf(template, args...) }
func Errorf(ctx context.Context, template string, args ...any) { Logger().Errorf(template, args...) }
func Fatalf(ctx context.Context, template string, args ...any) { Logger().Fatalf(template, args...) }

func DebugKV(ctx context.Context, msg string, kv ...any) { Logger().Debugw(msg, kv...) }
func InfoKV(ctx context.Context, msg string, kv ...any)  { Logger().Infow(msg, kv...) }
func WarnKV(ctx context.Context, msg string, kv ...any)  { Logger().Warnw(msg, kv...) }
func ErrorKV(ctx context.Context, msg string, kv ...any) { Logger().Errorw(msg, kv...) }
