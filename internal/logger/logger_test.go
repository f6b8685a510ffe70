package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Setenv(EnvLevel, "")

	tests := map[string]zerolog.Level{
		"":        zerolog.InfoLevel,
		"debug":   zerolog.DebugLevel,
		"WARN":    zerolog.WarnLevel,
		" error ": zerolog.ErrorLevel,
		"trace":   zerolog.TraceLevel,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestParseLevelFromEnv(t *testing.T) {
	t.Setenv(EnvLevel, "debug")
	lvl, err := ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, zerolog.DebugLevel, lvl)

	lvl, err = ParseLevel("error")
	require.NoError(t, err)
	assert.Equal(t, zerolog.ErrorLevel, lvl)
}

func TestNewFiltersByLevel(t *testing.T) {
	var out bytes.Buffer
	log := New(&out, zerolog.InfoLevel)
	log.Debug().Msg("hidden")
	log.Info().Str("file", "a.jpg").Msg("processed")

	var ev map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &ev))
	assert.Equal(t, "processed", ev["message"])
	assert.Equal(t, "a.jpg", ev["file"])
	assert.Contains(t, ev, "time")
}

func TestNewConsole(t *testing.T) {
	var out bytes.Buffer
	log := NewConsole(&out, zerolog.DebugLevel)
	log.Debug().Str("stage", "gamma").Msg("stage done")
	assert.Contains(t, out.String(), "stage done")
	assert.Contains(t, out.String(), "gamma")
}
