// Package logging builds the server's zap logger. Protocol traffic owns
// stdout, so logs always go to a separate sink.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options selects the level and sink of the logger.
type Options struct {
	// Level is a zap level name (debug, info, warn, error).
	Level string
	// File is a path, or "stderr".
	File string
}

// New creates a logger writing to opts.File. Debug level uses zap's
// development encoder, everything else the production JSON encoder.
func New(opts Options) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(opts.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
	}
	if opts.File == "" || opts.File == "stdout" {
		return nil, fmt.Errorf("invalid log file %q: logs must not share the protocol stream", opts.File)
	}

	var cfg zap.Config
	if level == zapcore.DebugLevel {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{opts.File}
	cfg.ErrorOutputPaths = []string{opts.File}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}
