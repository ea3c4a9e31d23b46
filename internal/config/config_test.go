package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "codebridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":7071", cfg.Listen)
	assert.Equal(t, 60*time.Second, cfg.ReapInterval.Std())
	assert.Equal(t, 5*time.Minute, cfg.StaleTimeout.Std())
	assert.Equal(t, 30*time.Second, cfg.ForwardTimeout.Std())
	assert.Equal(t, []string{".sln"}, cfg.MarkerExtensions)
	assert.Equal(t, "/query", cfg.QueryPath)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, `
listen: ":9090"
reapInterval: 90s
staleTimeout: 10m
markerExtensions: [".sln", ".slnx"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Listen)
	assert.Equal(t, 90*time.Second, cfg.ReapInterval.Std())
	assert.Equal(t, 10*time.Minute, cfg.StaleTimeout.Std())
	assert.Equal(t, []string{".sln", ".slnx"}, cfg.MarkerExtensions)
	// Untouched keys keep their defaults.
	assert.Equal(t, 30*time.Second, cfg.ForwardTimeout.Std())
	assert.Equal(t, "/query", cfg.QueryPath)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	t.Run("syntax error", func(t *testing.T) {
		_, err := Load(writeConfig(t, "listen: [unclosed"))
		assert.Error(t, err)
	})

	t.Run("unparseable duration", func(t *testing.T) {
		_, err := Load(writeConfig(t, "reapInterval: soon"))
		assert.Error(t, err)
	})
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, `listen: ":9090"`)

	t.Setenv("CODEBRIDGE_LISTEN", ":8080")
	t.Setenv("CODEBRIDGE_STALE_TIMEOUT", "2m")
	t.Setenv("CODEBRIDGE_MARKER_EXTENSIONS", ".sln,.slnf")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Listen, "env beats file")
	assert.Equal(t, 2*time.Minute, cfg.StaleTimeout.Std())
	assert.Equal(t, []string{".sln", ".slnf"}, cfg.MarkerExtensions)
}

func TestEnvRejectsBadDuration(t *testing.T) {
	t.Setenv("CODEBRIDGE_REAP_INTERVAL", "whenever")

	_, err := Load("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		valid  bool
	}{
		{name: "defaults are valid", mutate: func(*Config) {}, valid: true},
		{name: "empty listen", mutate: func(c *Config) { c.Listen = "" }},
		{name: "zero reap interval", mutate: func(c *Config) { c.ReapInterval = 0 }},
		{name: "negative stale timeout", mutate: func(c *Config) { c.StaleTimeout = Duration(-time.Second) }},
		{name: "no marker extensions", mutate: func(c *Config) { c.MarkerExtensions = nil }},
		{name: "extension without dot", mutate: func(c *Config) { c.MarkerExtensions = []string{"sln"} }},
		{name: "query path without slash", mutate: func(c *Config) { c.QueryPath = "query" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
