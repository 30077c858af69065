// Package logging builds the process-wide zap logger.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a console logger with colored levels in development and a
// JSON logger otherwise. Both write to stderr; stdout belongs to the shell
// and the CLI tables. level, when set, overrides the mode's default level.
func New(development bool, level string) (*zap.Logger, error) {
	cfg, err := zapConfig(development, level)
	if err != nil {
		return nil, err
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger.With(zap.String("service", "judge-sync")), nil
}

func zapConfig(development bool, level string) (zap.Config, error) {
	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = cfg.OutputPaths

	if level == "" {
		return cfg, nil
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return zap.Config{}, fmt.Errorf("parse log level %q: %w", level, err)
	}
	cfg.Level.SetLevel(lvl)
	return cfg, nil
}
