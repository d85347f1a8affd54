package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"success", LevelSuccess, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"loud", LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLevelOrdering(t *testing.T) {
	assert.Less(t, LevelInfo.Slog(), LevelSuccess.Slog())
	assert.Less(t, LevelSuccess.Slog(), LevelWarn.Slog())
	assert.Equal(t, "SUCCESS", LevelSuccess.String())
}

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, Options{Resource: "gaia", Level: LevelInfo})
	require.NoError(t, err)

	logger.Debug("hidden")
	Success(context.Background(), logger, "Migration to version 0.0.1 complete")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "level=SUCCESS")
	assert.Contains(t, out, `tag="[gaia] Migration"`)
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, Options{Resource: "gaia", Level: LevelWarn, Format: "json"})
	require.NoError(t, err)

	Success(context.Background(), logger, "filtered")
	logger.Warn("Repair disabled", "database", "gaia")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "WARN", line["level"])
	assert.Equal(t, "Repair disabled", line["msg"])
	assert.Equal(t, "[gaia] Migration", line["tag"])
}

func TestNewUnknownFormat(t *testing.T) {
	_, err := New(&bytes.Buffer{}, Options{Format: "xml"})
	assert.Error(t, err)
}

func TestDiscard(t *testing.T) {
	assert.False(t, Discard().Enabled(context.Background(), slog.LevelError))
}
