package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds logger configuration.
type Config struct {
	Level     string // debug, info, warn, error
	File      string // log file path, empty for console only
	Console   bool   // enable console output
	Pretty    bool   // human-readable console format
	Redaction bool   // scrub credentials from output
	MaxSizeMB int    // rotate the file above this size, 0 disables rotation
	MaxAge    int    // days to keep rotated files
	Compress  bool   // gzip rotated files
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return Config{
		Level:     "info",
		Console:   true,
		Pretty:    true,
		Redaction: true,
		MaxSizeMB: 100,
		MaxAge:    7,
		Compress:  true,
	}
}

// Logger wraps a zerolog.Logger together with the resources it owns.
type Logger struct {
	logger zerolog.Logger
	closer io.Closer
}

// New creates a logger and installs it as the zerolog global. The level is
// applied globally so SetLevel affects child loggers already handed out.
func New(cfg Config) (*Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var writers []io.Writer
	if cfg.Console {
		var console io.Writer = os.Stdout
		if cfg.Pretty {
			console = zerolog.ConsoleWriter{
				Out:        os.Stdout,
				TimeFormat: time.RFC3339,
			}
		}
		writers = append(writers, console)
	}

	var closer io.Closer
	if cfg.File != "" {
		fileWriter, err := newFileWriter(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		writers = append(writers, fileWriter)
		closer = fileWriter
	}

	var writer io.Writer
	switch len(writers) {
	case 0:
		writer = os.Stdout
	case 1:
		writer = writers[0]
	default:
		writer = io.MultiWriter(writers...)
	}

	if cfg.Redaction {
		writer = NewRedactor().Wrap(writer)
	}

	logger := zerolog.New(writer).With().Timestamp().Logger()
	log.Logger = logger

	return &Logger{logger: logger, closer: closer}, nil
}

// SetLevel changes the global log level at runtime. Unknown levels are
// ignored.
func (l *Logger) SetLevel(level string) {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		l.logger.Warn().Str("level", level).Msg("Ignoring unknown log level")
		return
	}
	zerolog.SetGlobalLevel(parsed)
	l.logger.Info().Str("level", parsed.String()).Msg("Log level changed")
}

// Zerolog returns the underlying zerolog.Logger for injection.
func (l *Logger) Zerolog() zerolog.Logger {
	return l.logger
}

// Debug logs a debug message.
func (l *Logger) Debug() *zerolog.Event { return l.logger.Debug() }

// Info logs an info message.
func (l *Logger) Info() *zerolog.Event { return l.logger.Info() }

// Warn logs a warning message.
func (l *Logger) Warn() *zerolog.Event { return l.logger.Warn() }

// Error logs an error message.
func (l *Logger) Error() *zerolog.Event { return l.logger.Error() }

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

func newFileWriter(cfg Config) (io.WriteCloser, error) {
	if cfg.MaxSizeMB > 0 {
		return NewRotatingWriter(cfg.File, cfg.MaxSizeMB, cfg.MaxAge, cfg.Compress)
	}
	return openLogFile(cfg.File)
}
