package internal

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel represents the logging level
type LogLevel int

const (
	LogLevelError LogLevel = iota
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
)

var (
	logLevel = LogLevelInfo
	atomLvl  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	logger   atomic.Pointer[zap.Logger]
)

func init() {
	SetLogOutput(os.Stderr)
}

func newZapLogger(w io.Writer) *zap.Logger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(w), atomLvl)
	return zap.New(core)
}

// SetLogOutput redirects all log output to w
func SetLogOutput(w io.Writer) {
	logger.Store(newZapLogger(w))
}

// Log returns the structured logger used by the engine
func Log() *zap.Logger {
	return logger.Load()
}

// SetLogLevel sets the global log level
func SetLogLevel(level LogLevel) {
	logLevel = level
	switch level {
	case LogLevelError:
		atomLvl.SetLevel(zapcore.ErrorLevel)
	case LogLevelWarn:
		atomLvl.SetLevel(zapcore.WarnLevel)
	case LogLevelDebug:
		atomLvl.SetLevel(zapcore.DebugLevel)
	default:
		atomLvl.SetLevel(zapcore.InfoLevel)
	}
}

// SetVerbose enables verbose (debug) logging
func SetVerbose(verbose bool) {
	if verbose {
		SetLogLevel(LogLevelDebug)
	} else {
		SetLogLevel(LogLevelInfo)
	}
}

// ParseLogLevel maps a config string to a LogLevel. An empty string is info.
func ParseLogLevel(s string) (LogLevel, error) {
	switch strings.ToLower(s) {
	case "error":
		return LogLevelError, nil
	case "warn", "warning":
		return LogLevelWarn, nil
	case "", "info":
		return LogLevelInfo, nil
	case "debug":
		return LogLevelDebug, nil
	default:
		return LogLevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// LogError logs an error message
func LogError(format string, args ...interface{}) {
	Log().Sugar().Errorf(format, args...)
}

// LogWarn logs a warning message
func LogWarn(format string, args ...interface{}) {
	Log().Sugar().Warnf(format, args...)
}

// LogInfo logs an info message
func LogInfo(format string, args ...interface{}) {
	Log().Sugar().Infof(format, args...)
}

// LogDebug logs a debug message
func LogDebug(format string, args ...interface{}) {
	Log().Sugar().Debugf(format, args...)
}
