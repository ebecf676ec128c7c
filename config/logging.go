package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Log is the process logger. It discards everything until InitLog runs so that
// library code and tests stay quiet.
var Log = zerolog.Nop()

// LogConfig selects where the process logger writes.
type LogConfig struct {
	Level   string // debug, info, warn, error
	File    string // optional log file path
	Console bool   // write to stderr
	Pretty  bool   // human readable console output
}

// DebugLogConfig builds the usual configuration: with debug on, everything is
// written to <dataDir>/debug.log; console output is for headless commands only,
// since the TUI owns the terminal.
func DebugLogConfig(dataDir string, debug, console bool) LogConfig {
	cfg := LogConfig{Level: "warn", Console: console, Pretty: true}
	if debug {
		cfg.Level = "debug"
		cfg.File = filepath.Join(dataDir, "debug.log")
	}
	return cfg
}

// InitLog configures Log and returns a function that releases the log file.
func InitLog(cfg LogConfig) (func() error, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.WarnLevel
	}

	var writers []io.Writer

	if cfg.Console {
		var console io.Writer = os.Stderr
		if cfg.Pretty {
			console = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
		}
		writers = append(writers, console)
	}

	var file *os.File
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0700); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		// 0600: debug output may contain conversation content
		file, err = os.OpenFile(cfg.File, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		writers = append(writers, file)
	}

	switch len(writers) {
	case 0:
		Log = zerolog.Nop()
	case 1:
		Log = zerolog.New(writers[0]).Level(level).With().Timestamp().Logger()
	default:
		Log = zerolog.New(zerolog.MultiLevelWriter(writers...)).Level(level).With().Timestamp().Logger()
	}

	if file != nil {
		Log.Debug().Str("path", cfg.File).Msg("=== Debug logging started ===")
	}

	return func() error {
		if file != nil {
			return file.Close()
		}
		return nil
	}, nil
}

// Component returns Log tagged with a component name.
func Component(name string) zerolog.Logger {
	return Log.With().Str("component", name).Logger()
}
