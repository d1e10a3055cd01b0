package logging

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is a log severity, ordered so that comparisons (`logLevel >= imp.level.Get()`) work the
// way the teacher's `rdk/logging` package expects.
type Level int32

const (
	// DEBUG is the most verbose level.
	DEBUG Level = iota
	// INFO is the default level.
	INFO
	// WARN indicates a recoverable but noteworthy condition.
	WARN
	// ERROR indicates an operation failed.
	ERROR
)

func (level Level) String() string {
	switch level {
	case DEBUG:
		return "Debug"
	case INFO:
		return "Info"
	case WARN:
		return "Warn"
	case ERROR:
		return "Error"
	default:
		return "Unknown"
	}
}

// AsZap converts to the equivalent zapcore level.
func (level Level) AsZap() zapcore.Level {
	switch level {
	case DEBUG:
		return zapcore.DebugLevel
	case INFO:
		return zapcore.InfoLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// LevelFromString parses a level name case-insensitively.
func LevelFromString(levelStr string) (Level, error) {
	switch strings.ToLower(levelStr) {
	case "debug":
		return DEBUG, nil
	case "info", "":
		return INFO, nil
	case "warn":
		return WARN, nil
	case "error":
		return ERROR, nil
	default:
		return INFO, errors.Errorf("unknown log level: %q", levelStr)
	}
}

// AtomicLevel is an atomically-updatable Level, mirroring zap's AtomicLevel but over our own
// Level type so `impl.shouldLog` can compare without a zapcore round-trip.
type AtomicLevel struct {
	level *atomic.Int32
}

// NewAtomicLevelAt constructs an AtomicLevel initialized to the given level.
func NewAtomicLevelAt(level Level) AtomicLevel {
	val := &atomic.Int32{}
	val.Store(int32(level))
	return AtomicLevel{level: val}
}

// Get returns the current level.
func (al AtomicLevel) Get() Level {
	return Level(al.level.Load())
}

// Set updates the current level.
func (al AtomicLevel) Set(level Level) {
	al.level.Store(int32(level))
}

// GlobalLogLevel backs the "debug mode" escape hatch: an AsZap logger built via AsZap observes
// changes to this without needing to be reconstructed.
var GlobalLogLevel = zap.NewAtomicLevelAt(zap.InfoLevel)

// NewZapLoggerConfig mirrors NewLoggerConfig; it's the config used when downconverting to a zap
// SugaredLogger inside impl.AsZap.
func NewZapLoggerConfig() zap.Config {
	return NewLoggerConfig()
}

// Appender receives every log entry an impl produces.
type Appender interface {
	Write(entry zapcore.Entry, fields []zapcore.Field) error
	Sync() error
}

type stdoutAppender struct {
	inLocalTime bool
}

// NewStdoutAppender returns an Appender that writes to stdout in UTC, one tab-separated line per
// entry: time, caller, logger name and message (no level field), then any fields as JSON.
func NewStdoutAppender() Appender {
	return &stdoutAppender{}
}

// NewStdoutTestAppender is like NewStdoutAppender but timestamps in local time, matching what a
// developer watching `go test -v` output expects.
func NewStdoutTestAppender() Appender {
	return &stdoutAppender{inLocalTime: true}
}

func (sa *stdoutAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	ts := entry.Time
	if !sa.inLocalTime {
		ts = ts.UTC()
	}

	line := fmt.Sprintf("%s\t%s\t%s\t%s", ts.Format(DefaultTimeFormatStr),
		callerToString(&entry.Caller), entry.LoggerName, entry.Message)
	if len(fields) > 0 {
		enc := zapcore.NewJSONEncoder(zapcore.EncoderConfig{SkipLineEnding: true})
		buf, err := enc.EncodeEntry(zapcore.Entry{}, fields)
		if err == nil {
			line += "\t" + buf.String()
		}
	}

	_, err := fmt.Fprintln(os.Stdout, line)
	return err
}

func (sa *stdoutAppender) Sync() error {
	return nil
}

// DefaultTimeFormatStr matches zap's ISO8601 console encoding.
const DefaultTimeFormatStr = "2006-01-02T15:04:05.000Z0700"

func callerToString(caller *zapcore.EntryCaller) string {
	if caller == nil || !caller.Defined {
		return ""
	}
	return caller.TrimmedPath()
}

// Logger is the interface every phase in this module accepts explicitly (never a package
// global): octree.NewTree and volumap.NewMap both take one and pass it down to the operations
// that log at phase boundaries and allocation failures.
type Logger interface {
	Debug(args ...interface{})
	CDebug(ctx context.Context, args ...interface{})
	Debugf(template string, args ...interface{})
	CDebugf(ctx context.Context, template string, args ...interface{})
	Debugw(msg string, keysAndValues ...interface{})
	CDebugw(ctx context.Context, msg string, keysAndValues ...interface{})

	Info(args ...interface{})
	Infof(template string, args ...interface{})
	Infow(msg string, keysAndValues ...interface{})

	Warn(args ...interface{})
	Warnf(template string, args ...interface{})
	Warnw(msg string, keysAndValues ...interface{})

	Error(args ...interface{})
	Errorf(template string, args ...interface{})
	Errorw(msg string, keysAndValues ...interface{})

	Fatal(args ...interface{})
	Fatalf(template string, args ...interface{})
	Fatalw(msg string, keysAndValues ...interface{})

	Sublogger(subname string) Logger
	Named(name string) *zap.SugaredLogger
	Sync() error
	With(args ...interface{}) *zap.SugaredLogger
	WithOptions(opts ...zap.Option) *zap.SugaredLogger
	AsZap() *zap.SugaredLogger
	Desugar() *zap.Logger
	SetLevel(level Level)
	GetLevel() Level
	Level() zapcore.Level
	AddAppender(appender Appender)
	NewLogEntry() *LogEntry
}
