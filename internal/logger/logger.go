package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects level and destinations.
type Config struct {
	Level    string // debug|info|warn|error
	FilePath string // optional; no colour in the file
	Console  io.Writer
	NoColor  bool
}

// Logger wraps a zap sugared logger with the Printf-style helpers the
// command uses for its banner lines.
type Logger struct {
	*zap.SugaredLogger
	base *zap.Logger
	file *os.File
}

// NewWriter creates a logger that writes to the provided writer
func NewWriter(w io.Writer) *Logger {
	l, _ := NewWithConfig(Config{Level: "info", Console: w, NoColor: true})
	return l
}

// FromZap wraps an existing zap logger, e.g. an observer in tests.
func FromZap(z *zap.Logger) *Logger {
	return &Logger{SugaredLogger: z.Sugar(), base: z}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return FromZap(zap.NewNop())
}

// NewWithConfig builds a console core and, when FilePath is set, a file core.
func NewWithConfig(cfg Config) (*Logger, error) {
	level := parseLevel(cfg.Level)

	encCfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "lvl",
		NameKey:        "logger",
		MessageKey:     "msg",
		StacktraceKey:  "stack",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeTime:     zapcore.TimeEncoderOfLayout(time.DateTime),
		EncodeDuration: zapcore.StringDurationEncoder,
	}

	consoleEncCfg := encCfg
	consoleEncCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if cfg.NoColor {
		consoleEncCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	console := cfg.Console
	if console == nil {
		console = os.Stdout
	}
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleEncCfg), zapcore.Lock(zapcore.AddSync(console)), level),
	}

	l := &Logger{}
	if cfg.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		l.file = f
		fileEncCfg := encCfg
		fileEncCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		fileEncCfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(fileEncCfg), zapcore.AddSync(f), level))
	}

	l.base = zap.New(zapcore.NewTee(cores...))
	l.SugaredLogger = l.base.Sugar()
	return l, nil
}

// Printf logs a formatted message at info level.
func (l *Logger) Printf(format string, args ...any) {
	l.Infof(format, args...)
}

// Println logs its arguments at info level.
func (l *Logger) Println(args ...any) {
	l.Info(strings.TrimSpace(fmt.Sprintln(args...)))
}

// Named returns a child logger for a component.
func (l *Logger) Named(name string) *Logger {
	z := l.base.Named(name)
	return &Logger{SugaredLogger: z.Sugar(), base: z, file: l.file}
}

// Close flushes buffered entries and closes the log file, if any.
func (l *Logger) Close() error {
	_ = l.base.Sync()
	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

func parseLevel(lvl string) zapcore.LevelEnabler {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		return zapcore.DebugLevel
	case "info", "":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error", "err":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
