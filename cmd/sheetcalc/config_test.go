package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vogtb/go-spreadsheet/packages/formula"
)

func writeConfig(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sheetcalc.yaml")
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, formula.DefaultMaxNesting, cfg.MaxNesting)

	cfg, err = LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
log_level: debug
log_format: json
cache_size: 0
max_nesting: 16
parallelism: 3
history_file: /tmp/history
`))
	require.NoError(t, err)
	assert.Equal(t, Config{
		LogLevel:    "debug",
		LogFormat:   "json",
		CacheSize:   0,
		MaxNesting:  16,
		Parallelism: 3,
		HistoryFile: "/tmp/history",
	}, cfg)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"unknown field", "colour: red\n", "colour"},
		{"bad type", "parallelism: many\n", "parsing config"},
		{"negative cache", "cache_size: -1\n", "cache_size"},
		{"zero nesting", "max_nesting: 0\n", "max_nesting"},
		{"zero parallelism", "parallelism: 0\n", "parallelism"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.text))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestConfigLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.LogLevel = "info"
	cfg.LogFormat = "json"

	log, err := cfg.Logger(&buf)
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
	log.WithField("sheets", 2).Info("workbook loaded")
	assert.Contains(t, buf.String(), `"msg":"workbook loaded"`)
	assert.Contains(t, buf.String(), `"sheets":2`)

	cfg.LogLevel = "chatty"
	_, err = cfg.Logger(&buf)
	assert.Error(t, err)

	cfg.LogLevel = "info"
	cfg.LogFormat = "xml"
	_, err = cfg.Logger(&buf)
	assert.Error(t, err)
}

func TestHistoryPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	cfg := DefaultConfig()
	assert.Equal(t, filepath.Join(home, ".sheetcalc_history"), cfg.historyPath())

	cfg.HistoryFile = "/var/tmp/h"
	assert.Equal(t, "/var/tmp/h", cfg.historyPath())
}
