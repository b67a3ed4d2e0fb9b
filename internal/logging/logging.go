// Package logging wraps zerolog configuration shared by the CLI and the
// HTTP service.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/rohmanhakim/datacache/internal/config"
)

// Setup builds the root logger and installs its level globally. A configured
// log file gets rotated JSON lines; otherwise output is a console writer on
// stderr. An unusable log file degrades to stderr rather than failing the
// program over its own diagnostics.
func Setup(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel())
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output, outErr := buildOutput(cfg)
	logger := zerolog.New(output).With().Timestamp().Logger()

	if outErr != nil {
		logger.Warn().
			Str("path", cfg.LogFile()).
			Msg("log file unusable, falling back to stderr: " + outErr.Error())
	}

	return logger
}

func buildOutput(cfg config.Config) (io.Writer, error) {
	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: zerolog.TimeFieldFormat}

	if cfg.LogFile() == "" {
		return console, nil
	}

	dir := filepath.Dir(cfg.LogFile())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return console, fmt.Errorf("create log directory: %w", err)
	}

	return &lumberjack.Logger{
		Filename:   cfg.LogFile(),
		MaxSize:    cfg.LogMaxSizeMB(),
		MaxBackups: cfg.LogMaxBackups(),
		LocalTime:  true,
	}, nil
}
