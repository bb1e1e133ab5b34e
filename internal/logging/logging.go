// Package logging builds the application logger.
package logging

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// TraceLevel is more verbose than debug. It only changes how chatty the
// backend is; the application logs trace messages at debug level.
const TraceLevel = zapcore.DebugLevel - 1

// EnvVar carries the chosen level to the backend driver.
const EnvVar = "MULTIGRAM_LOG"

// Config controls where logs go and how much is written.
type Config struct {
	Path       string
	Level      zapcore.Level
	MaxSizeMB  int
	MaxBackups int
}

// ParseLevel parses one of error, warn, info, debug or trace.
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(s) {
	case "trace":
		return TraceLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	}
	return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", s)
}

// LevelName is the inverse of ParseLevel.
func LevelName(l zapcore.Level) string {
	if l <= TraceLevel {
		return "trace"
	}
	return l.String()
}

// LevelFromEnv returns the level named by EnvVar, or warn if it is unset or
// invalid.
func LevelFromEnv() zapcore.Level {
	l, err := ParseLevel(os.Getenv(EnvVar))
	if err != nil {
		return zapcore.WarnLevel
	}
	return l
}

// BackendVerbosity maps a log level to the backend's verbosity scale.
func BackendVerbosity(l zapcore.Level) int32 {
	switch {
	case l <= TraceLevel:
		return 5
	case l <= zapcore.DebugLevel:
		return 4
	case l <= zapcore.InfoLevel:
		return 3
	case l <= zapcore.WarnLevel:
		return 2
	}
	return 0
}

// New returns a development logger writing to a rotated file.
func New(cfg Config) *zap.Logger {

	encoderCfg := zap.NewDevelopmentEncoderConfig()
	encoderCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
	encoderCfg.EncodeLevel = encodeLevel

	w := zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    orDefault(cfg.MaxSizeMB, 10),
		MaxBackups: orDefault(cfg.MaxBackups, 3),
	})
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), w, cfg.Level)
	return zap.New(core, zap.AddCaller(), zap.Development(), zap.ErrorOutput(w))
}

func encodeLevel(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	if l <= TraceLevel {
		enc.AppendString("TRACE")
		return
	}
	zapcore.CapitalLevelEncoder(l, enc)
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
