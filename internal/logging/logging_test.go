package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: DebugLevel, Output: &buf})
	defer Init(Config{Level: InfoLevel})

	Info().Str("session", "s1").Msg("turn completed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "turn completed", entry["message"])
	assert.Equal(t, "s1", entry["session"])
	assert.Equal(t, "info", entry["level"])
}

func TestInit_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: WarnLevel, Output: &buf})
	defer Init(Config{Level: InfoLevel})

	Debug().Msg("dropped")
	Info().Msg("dropped too")
	assert.Zero(t, buf.Len())

	Warn().Msg("kept")
	assert.NotZero(t, buf.Len())
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: InfoLevel, Output: &buf})
	defer Init(Config{Level: InfoLevel})

	Debug().Msg("dropped")
	assert.Zero(t, buf.Len())

	SetLevel(DebugLevel)
	Debug().Msg("kept")
	assert.NotZero(t, buf.Len())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLevel("debug"))
	assert.Equal(t, WarnLevel, ParseLevel(" WARNING "))
	assert.Equal(t, ErrorLevel, ParseLevel("ERROR"))
	assert.Equal(t, InfoLevel, ParseLevel("verbose"))
	assert.Equal(t, InfoLevel, ParseLevel(""))
}
