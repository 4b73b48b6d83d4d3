package logging_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-oauth-login/internal/logging"
)

type testConfig struct {
	level string
	file  string
}

func (testConfig) GetAppName() string { return "login-test" }
func (testConfig) GetEnv() string { return "TEST" }
func (c testConfig) GetLogLevel() string { return c.level }
func (c testConfig) GetLogFile() string { return c.file }

func TestSetup_WritesToLogFile(t *testing.T) {
	defer func(l zerolog.Logger, lvl zerolog.Level) {
		log.Logger = l
		zerolog.SetGlobalLevel(lvl)
	}(log.Logger, zerolog.GlobalLevel())

	path := filepath.Join(t.TempDir(), "login.log")
	closer, err := logging.Setup(testConfig{level: "WARN", file: path})
	require.NoError(t, err)

	log.Info().Msg("filtered")
	log.Warn().Str("request_id", "r1").Msg("kept")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(data), "filtered")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &entry))
	require.Equal(t, "kept", entry["message"])
	require.Equal(t, "r1", entry["request_id"])
	require.Equal(t, "login-test", entry["app"])
}

func TestSetup_InvalidLevel(t *testing.T) {
	_, err := logging.Setup(testConfig{level: "loud"})
	require.Error(t, err)
}

func TestLeveledLogger(t *testing.T) {
	var buf bytes.Buffer
	l := logging.NewLeveledLogger(zerolog.New(&buf))

	l.Warn("retrying request", "url", "http://issuer/.well-known/openid-configuration", "remaining", 2)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "warn", entry["level"])
	require.Equal(t, "retrying request", entry["message"])
	require.EqualValues(t, 2, entry["remaining"])
}
