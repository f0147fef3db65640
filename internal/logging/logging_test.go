package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restoreLogger(t *testing.T) {
	logger, level := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = logger
		zerolog.SetGlobalLevel(level)
	})
}

func TestSetup_JSON(t *testing.T) {
	restoreLogger(t)
	var buf bytes.Buffer

	require.NoError(t, Setup("info", "json", &buf))
	log.Debug().Msg("hidden")
	log.Info().Str("presentation_id", "p1").Msg("visible")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "exactly one JSON line expected: %s", buf.String())
	assert.Equal(t, "visible", entry["message"])
	assert.Equal(t, "p1", entry["presentation_id"])
	assert.Equal(t, "info", entry["level"])
}

func TestSetup_Console(t *testing.T) {
	restoreLogger(t)
	var buf bytes.Buffer

	require.NoError(t, Setup("debug", "console", &buf))
	log.Debug().Str("phase", "voting").Msg("session transition")

	assert.Contains(t, buf.String(), "session transition")
	assert.Contains(t, buf.String(), "phase=")
}

func TestSetup_Invalid(t *testing.T) {
	restoreLogger(t)
	assert.Error(t, Setup("chatty", "json", nil))
	assert.Error(t, Setup("info", "xml", nil))
}

func TestQuiet(t *testing.T) {
	restoreLogger(t)
	var buf bytes.Buffer

	require.NoError(t, Setup("info", "json", &buf))
	Quiet()
	log.Warn().Msg("suppressed")
	assert.Empty(t, buf.String())
}
