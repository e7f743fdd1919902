package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warn"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("loud"))
}

func TestNewJSONWithComponent(t *testing.T) {
	var buf bytes.Buffer
	l := Simulation(Component(New("info", "json", &buf), "worker"), "sim-1")

	l.Debug().Msg("hidden")
	l.Info().Msg("cycle done")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "worker", rec["component"])
	assert.Equal(t, "sim-1", rec["simulation_id"])
	assert.Equal(t, "cycle done", rec["message"])
}

func TestNewConsole(t *testing.T) {
	var buf bytes.Buffer
	l := New("info", "console", &buf)
	l.Info().Msg("hello")
	assert.Contains(t, buf.String(), "hello")
}
