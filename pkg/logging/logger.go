// Package logging configures structured logging with zerolog.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty switches from JSON lines to human-readable console output.
	Pretty bool

	// Output is the writer logs go to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a JSON logger at info level on stderr.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger and returns it.
// Unknown levels fall back to info.
func Setup(cfg Config) zerolog.Logger {
	level, err := ParseLevel(string(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: "15:04:05"}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// ParseLevel converts a level name to a zerolog level.
func ParseLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel, nil
	case "", "info":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

// NewLogger returns a child of the global logger tagged with component.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: cache traffic
//   - Hits and misses (key, remaining TTL, miss reason)
//   - Entries written (key, size)
//   - Shared in-flight fetches
//
// Info: normal operation
//   - Successful API requests
//   - Quota state updates while healthy
//   - Cache warm-up start and completion
//   - Server startup/shutdown
//
// Warn: degraded but still serving
//   - Store read/write/remove failures (the fetched value is still returned)
//   - Corrupt entries removed
//   - Quota throttling
//   - Retry attempts, breaker state changes
//
// Error: a caller gets no data
//   - Requests failing after retries
//   - Requests blocked by an exhausted quota
//   - Configuration errors
//
// Context Fields:
//   - component: cache, recipes, client, ratelimit, server
//   - key: cache key
//   - ttl: remaining entry TTL
//   - reason: miss reason (absent, expired, corrupt, unavailable)
//   - endpoint: recipe API endpoint name
//   - status_code: HTTP status code
//   - error_class: client, quota, rate_limit, server, network
//   - points_left: remaining daily API quota points
//   - recipe_id: recipe ID
