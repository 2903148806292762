// Package log wraps zerolog behind process-wide loggers shared by the
// peering daemon's components.
package log

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger is the process-wide root logger.
var Logger zerolog.Logger

// Evict tags eviction decisions so an operator can trace who was dropped
// and why without sifting through the rest of the log.
var Evict zerolog.Logger

func init() {
	reset(newLogger(os.Stdout, "info", false))
}

// Init configures the root logger. With a file set, entries go both to
// the console (colored, or raw JSON when jsonOutput is true) and to the
// file, which always receives JSON for machine parsing.
func Init(level string, jsonOutput bool, file string) error {
	if file == "" {
		reset(newLogger(os.Stdout, level, jsonOutput))
		return nil
	}

	f, err := os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	multi := zerolog.MultiLevelWriter(consoleWriter(os.Stdout, jsonOutput), f)
	reset(zerolog.New(multi).Level(parseLevel(level)).With().Timestamp().Logger())
	return nil
}

func reset(l zerolog.Logger) {
	Logger = l
	Evict = WithComponent("evict")
}

func newLogger(w io.Writer, level string, json bool) zerolog.Logger {
	return zerolog.New(consoleWriter(w, json)).Level(parseLevel(level)).With().Timestamp().Logger()
}

// consoleWriter returns w itself for JSON output, or a colored console
// writer around it.
func consoleWriter(w io.Writer, json bool) io.Writer {
	if json {
		return w
	}
	return zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
}

// parseLevel maps a level name to zerolog's level, defaulting to info.
func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// WithComponent returns a child logger tagged with a component field.
func WithComponent(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}
