// Package logging builds the zap logger and the kratos adapter over it.
package logging

import (
	"fmt"

	"go-shortlink/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a zap logger from the log section of the config.
func New(c conf.Log) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", c.Level, err)
	}

	var cfg zap.Config
	switch c.Format {
	case "console":
		cfg = zap.NewDevelopmentConfig()
	case "json", "":
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	default:
		return nil, fmt.Errorf("unknown log format %q", c.Format)
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	return cfg.Build()
}

// KratosAdapter lets the kratos app lifecycle log through zap.
type KratosAdapter struct {
	logger *zap.Logger
}

var _ log.Logger = (*KratosAdapter)(nil)

func NewKratosAdapter(logger *zap.Logger) log.Logger {
	return &KratosAdapter{logger: logger.WithOptions(zap.AddCallerSkip(2))}
}

func (a *KratosAdapter) Log(level log.Level, keyvals ...any) error {
	if len(keyvals)%2 != 0 {
		keyvals = append(keyvals, "")
	}
	msg := ""
	fields := make([]zap.Field, 0, len(keyvals)/2)
	for i := 0; i < len(keyvals); i += 2 {
		key := fmt.Sprint(keyvals[i])
		if key == log.DefaultMessageKey {
			msg = fmt.Sprint(keyvals[i+1])
			continue
		}
		fields = append(fields, zap.Any(key, keyvals[i+1]))
	}

	switch level {
	case log.LevelDebug:
		a.logger.Debug(msg, fields...)
	case log.LevelWarn:
		a.logger.Warn(msg, fields...)
	case log.LevelError, log.LevelFatal:
		a.logger.Error(msg, fields...)
	default:
		a.logger.Info(msg, fields...)
	}
	return nil
}
