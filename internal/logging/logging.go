package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	envDev = "DEV"

	maxLogFileSizeMB  = 10
	maxLogFileBackups = 3
	maxLogFileAgeDays = 28
)

type Config interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetLogFile() string
}

// Setup configures the global zerolog logger: a human readable console writer in DEV,
// JSON on stderr otherwise, plus a rotating log file when one is configured. It
// returns a closer for the log file, which is a no-op when there is none.
func Setup(cfg Config) (io.Closer, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.GetLogLevel()))
	if err != nil {
		return nil, err
	}
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var console io.Writer = os.Stderr
	if strings.EqualFold(cfg.GetEnv(), envDev) {
		console = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}

	writers := []io.Writer{console}
	var closer io.Closer = nopCloser{}
	if path := cfg.GetLogFile(); path != "" {
		file := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    maxLogFileSizeMB,
			MaxBackups: maxLogFileBackups,
			MaxAge:     maxLogFileAgeDays,
		}
		writers = append(writers, file)
		closer = file
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp()
	if app := cfg.GetAppName(); app != "" {
		logger = logger.Str("app", app)
	}
	log.Logger = logger.Logger()
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
