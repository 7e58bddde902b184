package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{" warn ", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew_TextOnly(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Options{Level: "warn", Stderr: &buf})
	require.NoError(t, err)
	defer l.Close()

	l.Info("hidden")
	l.Warn("missing rule", "bundle", "robots", "rule", "ghost")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "rule=ghost")
}

func TestNew_LevelIsAdjustable(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Options{Stderr: &buf})
	require.NoError(t, err)

	l.Debug("before")
	l.Level.Set(slog.LevelDebug)
	l.Debug("after")

	assert.NotContains(t, buf.String(), "before")
	assert.Contains(t, buf.String(), "after")
}

func TestNew_FansOutToJSONFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "pf.log")

	l, err := New(Options{Level: "info", File: path, Stderr: &buf})
	require.NoError(t, err)
	l.Info("bundle loaded", "bundle", "robots")
	require.NoError(t, l.Close())

	assert.Contains(t, buf.String(), "bundle loaded")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "bundle loaded", rec["msg"])
	assert.Equal(t, "robots", rec["bundle"])
}

func TestNew_Errors(t *testing.T) {
	_, err := New(Options{Level: "chatty"})
	assert.Error(t, err)

	_, err = New(Options{File: filepath.Join(t.TempDir(), "missing", "pf.log")})
	assert.ErrorContains(t, err, "open log file")
}
