package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newLogger writes JSON lines to a timestamped .log file in dir. When
// console is set, warnings and above are also echoed to stderr. The returned
// cleanup flushes the logger and closes the file.
func newLogger(dir string, console, debug bool) (*zap.Logger, string, func(), error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, "", nil, fmt.Errorf("creating log dir: %w", err)
	}
	logPath := filepath.Join(dir, fmt.Sprintf("leadtap_%s.log", time.Now().Format("20060102_150405")))
	sink, closeSink, err := zap.Open(logPath)
	if err != nil {
		return nil, "", nil, fmt.Errorf("opening log: %w", err)
	}

	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), sink, level),
	}
	if console {
		conCfg := zap.NewDevelopmentEncoderConfig()
		conCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		conCfg.EncodeCaller = nil
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(conCfg), zapcore.Lock(os.Stderr), zapcore.WarnLevel))
	}

	log := zap.New(zapcore.NewTee(cores...))
	cleanup := func() {
		_ = log.Sync()
		closeSink()
	}
	return log, logPath, cleanup, nil
}
