package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleLogger("render", &buf)

	l.Debug("скрыто %d", 1)
	l.Info("кадр %d", 42)
	l.SetLevel(ERROR)
	l.Warn("тоже скрыто")

	out := buf.String()
	assert.Contains(t, out, "[INFO] [render] кадр 42")
	assert.NotContains(t, out, "скрыто")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel(" warning "))
	assert.Equal(t, INFO, ParseLevel("???"))
}

func TestComponentLoggers(t *testing.T) {
	old := LogDir
	LogDir = t.TempDir()
	defer func() { LogDir = old }()
	defer CloseAll()

	a := GetComponentLogger("world")
	assert.Same(t, a, GetComponentLogger("world"))
	require.NotNil(t, a.file)

	SetLevel(WARN)
	defer SetLevel(INFO)
	assert.Equal(t, WARN, a.minConsoleLevel)
	assert.Equal(t, WARN, GetStorageLogger().minConsoleLevel)
	assert.Equal(t, []string{"storage", "world"}, Components())

	require.NoError(t, CloseAll())
	assert.Empty(t, Components())
	assert.Nil(t, a.file)
}
