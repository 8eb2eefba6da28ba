// Package logging initializes the structured logger shared by the control
// plane and the CLI entry point.
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

// Config is the configuration for the logging subsystem.
type Config struct {
	// Level is the minimum level emitted by the logger.
	Level zapcore.Level `yaml:"level"`
	// Module, when non-empty, is attached to every log line as a
	// "module" field.
	Module string `yaml:"module"`
}

// DefaultConfig returns the default logging configuration.
func DefaultConfig() *Config {
	return &Config{
		Level: zapcore.InfoLevel,
	}
}

// Init builds a *zap.SugaredLogger and its atomic level handle, so the
// level can be changed at runtime without rebuilding the logger.
func Init(cfg *Config) (*zap.SugaredLogger, zap.AtomicLevel, error) {
	encoderConfig := zap.NewDevelopmentEncoderConfig()

	if term.IsTerminal(int(os.Stderr.Fd())) {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	level := zap.NewAtomicLevelAt(cfg.Level)
	zapCfg := zap.Config{
		Level:            level,
		Development:      false,
		Encoding:         "console",
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, zap.AtomicLevel{}, fmt.Errorf("failed to initialize logger: %w", err)
	}

	sugar := logger.Sugar()
	if cfg.Module != "" {
		sugar = sugar.With(zap.String("module", cfg.Module))
	}

	return sugar, level, nil
}
