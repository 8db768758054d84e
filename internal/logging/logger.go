// Package logging builds the process-wide zap logger.
package logging

import (
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"peerdrop/internal/config"
)

// Setup builds a zap.Logger from the provided configuration, sets it as the
// global logger and redirects the stdlib log package. The caller should
// defer logger.Sync().
func Setup(c config.LogConfig) (*zap.Logger, error) {
	level := zap.NewAtomicLevelAt(parseLevel(c.Level))

	encCfg := zap.NewProductionEncoderConfig()
	if c.Development {
		encCfg = zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	var encoder zapcore.Encoder
	if strings.ToLower(c.Format) == "json" {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	outputs := c.Outputs
	if len(outputs) == 0 {
		outputs = []string{"stderr"}
	}

	var cores []zapcore.Core
	for _, out := range outputs {
		ws, err := writerFor(out, c.Rotation)
		if err != nil {
			return nil, err
		}
		cores = append(cores, zapcore.NewCore(encoder, ws, level))
	}

	opts := []zap.Option{zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel)}
	if c.Development {
		opts = append(opts, zap.Development())
	}

	logger := zap.New(zapcore.NewTee(cores...), opts...)
	zap.ReplaceGlobals(logger)
	_, _ = zap.RedirectStdLogAt(logger, zap.InfoLevel)
	return logger, nil
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zap.DebugLevel
	case "warn", "warning":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

func writerFor(out string, rot config.RotationConfig) (zapcore.WriteSyncer, error) {
	switch strings.ToLower(out) {
	case "stdout":
		return zapcore.Lock(os.Stdout), nil
	case "stderr":
		return zapcore.Lock(os.Stderr), nil
	}

	if dir := filepath.Dir(out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	if rot.Enable {
		return zapcore.AddSync(&lumberjack.Logger{
			Filename:   out,
			MaxSize:    max(rot.MaxSizeMB, 10),
			MaxBackups: max(rot.MaxBackups, 1),
			MaxAge:     max(rot.MaxAgeDays, 7),
			Compress:   rot.Compress,
		}), nil
	}
	f, err := os.OpenFile(out, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return zapcore.AddSync(f), nil
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
