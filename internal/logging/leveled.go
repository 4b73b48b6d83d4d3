package logging

import (
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
)

var _ retryablehttp.LeveledLogger = LeveledLogger{}

// LeveledLogger adapts a zerolog.Logger to the key/value logger used by retryablehttp.
type LeveledLogger struct {
	logger zerolog.Logger
}

func NewLeveledLogger(logger zerolog.Logger) LeveledLogger {
	return LeveledLogger{logger: logger}
}

func (l LeveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error().Fields(keysAndValues).Msg(msg)
}

func (l LeveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info().Fields(keysAndValues).Msg(msg)
}

// Debug messages from the HTTP client are per request, so they are logged at trace level.
func (l LeveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Trace().Fields(keysAndValues).Msg(msg)
}

func (l LeveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg(msg)
}
