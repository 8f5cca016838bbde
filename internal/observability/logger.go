package observability

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	globalLogger zerolog.Logger
	initOnce     sync.Once
)

// InitLogger initializes the global structured logger
func InitLogger(level string, pretty bool) {
	initOnce.Do(func() {
		globalLogger = newLogger(os.Stdout, level, pretty)
		// Set as global logger
		log.Logger = globalLogger
	})
}

func newLogger(out io.Writer, level string, pretty bool) zerolog.Logger {
	zerolog.SetGlobalLevel(ParseLevel(level))

	if pretty {
		// Pretty console output for development
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	}
	return zerolog.New(out).With().Timestamp().Logger()
}

// ParseLevel maps a configured level name onto a zerolog level, defaulting to info
func ParseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	default:
		return zerolog.InfoLevel
	}
}

// GetLogger returns the global logger
func GetLogger() zerolog.Logger {
	// Initialize with defaults if not already initialized
	InitLogger("info", false)
	return globalLogger
}

// Component returns a logger tagged with the component name
func Component(name string) zerolog.Logger {
	return GetLogger().With().Str("component", name).Logger()
}

// WithJobID creates a logger scoped to one conversion job
func WithJobID(jobID string) zerolog.Logger {
	return GetLogger().With().Str("job_id", jobID).Logger()
}

// WithCorrelationID creates a logger with a correlation ID
func WithCorrelationID(correlationID string) zerolog.Logger {
	if correlationID == "" {
		correlationID = uuid.New().String()
	}
	return GetLogger().With().Str("correlation_id", correlationID).Logger()
}

// NewCorrelationID generates a new correlation ID
func NewCorrelationID() string {
	return uuid.New().String()
}
