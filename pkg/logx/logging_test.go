package logx

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()
	tests := map[string]Level{
		"trace":   LevelTrace,
		" DEBUG ": LevelDebug,
		"warning": LevelWarn,
		"error":   LevelError,
		"off":     zerolog.Disabled,
		"bogus":   LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in, LevelInfo), in)
	}
}

func TestWriterLoggerFields(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := NewWriter(&buf, "debug").With(String("comp", "dispatch"))
	log.Trace("hidden")
	log.Debug("shown", Int("n", 2), Err(nil))

	out := strings.TrimSpace(buf.String())
	require.NotEmpty(t, out)
	require.NotContains(t, out, "hidden")

	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &m))
	assert.Equal(t, "shown", m["message"])
	assert.Equal(t, "dispatch", m["comp"])
	assert.Equal(t, float64(2), m["n"])
	assert.NotContains(t, m, "err")
	assert.Contains(t, m["caller"], "logging_test.go")
}

func TestZeroLoggerIsNoop(t *testing.T) {
	t.Parallel()
	var l Logger
	assert.Equal(t, zerolog.Disabled, l.root().GetLevel())
	l.Info("nothing happens")
	l.With(String("a", "b")).Error("still nothing")
	assert.Equal(t, zerolog.Disabled, Nop().root().GetLevel())
}

func TestServiceApplyFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "autosend.log")
	svc, log := New(Config{Level: "info", Console: false, File: FileConfig{Enabled: true, Path: path}})
	defer svc.Close()

	log.Debug("dropped")
	log.Info("kept")
	svc.Apply(Config{Level: "debug", File: FileConfig{Enabled: true, Path: path}})
	log.Debug("now kept")
	assert.Equal(t, LevelDebug, svc.current().GetLevel())
	require.NoError(t, svc.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	s := string(b)
	assert.NotContains(t, s, "dropped")
	assert.Contains(t, s, "kept")
	assert.Contains(t, s, "now kept")
}

func TestStackTrace(t *testing.T) {
	t.Parallel()
	tr := StackTrace(1, 4)
	assert.Contains(t, tr, "logx.StackTrace")
	assert.Contains(t, tr, "TestStackTrace")
	assert.LessOrEqual(t, strings.Count(tr, "\n  "), 4)
}
