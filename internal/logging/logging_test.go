package logging

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

func TestNew_JSONLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log, closer := New(Options{Level: "warn", Format: "json", Out: &buf})
	defer closer.Close()

	log.Info().Msg("hidden")
	log.Warn().Str("network", "mopub").Msg("shown")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "shown", rec["message"])
	assert.Equal(t, "mopub", rec["network"])
	assert.Contains(t, rec, "time")
}

func TestNew_UnknownLevelMeansInfo(t *testing.T) {
	log, closer := New(Options{Level: "loud", Out: &bytes.Buffer{}})
	defer closer.Close()
	assert.Equal(t, zerolog.InfoLevel, log.GetLevel())
}

func TestNew_ConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	log, _ := New(Options{Out: &buf})
	log.Info().Msg("hello")
	assert.Contains(t, buf.String(), "hello")
	assert.False(t, json.Valid(bytes.TrimSpace(buf.Bytes())))
}

func TestNew_RotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mediationd.log")
	log, closer := New(Options{Format: "json", Out: &bytes.Buffer{}, File: path, MaxSizeMB: 1})
	log.Info().Msg("to file")
	require.NoError(t, closer.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "to file")
}
