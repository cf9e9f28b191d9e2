// Package logging provides structured logging using zerolog.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the global logger instance.
var Logger zerolog.Logger

var mu sync.Mutex

// Level aliases zerolog's level type.
type Level = zerolog.Level

const (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
	FatalLevel = zerolog.FatalLevel
)

// Config holds logger configuration.
type Config struct {
	Level  Level
	Output io.Writer // defaults to os.Stderr
	Pretty bool      // human-readable console output
}

// Init initializes the global logger.
func Init(cfg Config) {
	mu.Lock()
	defer mu.Unlock()

	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	zerolog.TimeFieldFormat = time.RFC3339

	var output io.Writer = cfg.Output
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: time.RFC3339}
	}

	Logger = zerolog.New(output).Level(cfg.Level).With().Timestamp().Logger()
}

// SetLevel changes the global log level in place. Used by the config watcher.
func SetLevel(level Level) {
	mu.Lock()
	defer mu.Unlock()
	Logger = Logger.Level(level)
}

// ParseLevel parses a log level string (case-insensitive).
// Returns InfoLevel for unrecognized values.
func ParseLevel(level string) Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return DebugLevel
	case "INFO":
		return InfoLevel
	case "WARN", "WARNING":
		return WarnLevel
	case "ERROR":
		return ErrorLevel
	case "FATAL":
		return FatalLevel
	default:
		return InfoLevel
	}
}

// Debug starts a new debug level log message.
func Debug() *zerolog.Event { return Logger.Debug() }

// Info starts a new info level log message.
func Info() *zerolog.Event { return Logger.Info() }

// Warn starts a new warn level log message.
func Warn() *zerolog.Event { return Logger.Warn() }

// Error starts a new error level log message.
func Error() *zerolog.Event { return Logger.Error() }

// Fatal starts a new fatal level log message; Msg/Send exits the process.
func Fatal() *zerolog.Event { return Logger.Fatal() }

func init() {
	Init(Config{Level: InfoLevel})
}
