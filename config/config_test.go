// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := Default()
	assert.Equal(t, ":8080", cfg.Server.ListenAddress)
	assert.Equal(t, 30*time.Second, cfg.Server.HeartbeatInterval)
	assert.Equal(t, 1000, cfg.Bus.MaxSize)
	assert.Equal(t, time.Hour, cfg.Bus.EventTTL)
	assert.Equal(t, 0.8, cfg.Classifier.ConfidenceCap)
	assert.Equal(t, 0.2, cfg.Classifier.ConfidenceIncrement)
	assert.Equal(t, "orchestrator", cfg.Classifier.FallbackDomain)
	assert.Equal(t, 0.3, cfg.Classifier.FallbackConfidence)
	assert.Equal(t, 24*time.Hour, cfg.Store.CleanupMaxAge)
	assert.Equal(t, 30*time.Second, cfg.Stream.WaitBudget)
	assert.Equal(t, "info", cfg.LogLevel)

	require.NoError(t, cfg.Validate())
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  listenAddress: ":9090"
  heartbeatInterval: 10s
bus:
  maxSize: 50
classifier:
  fallbackDomain: custom_agent
logLevel: debug
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.ListenAddress)
	assert.Equal(t, 10*time.Second, cfg.Server.HeartbeatInterval)
	assert.Equal(t, 50, cfg.Bus.MaxSize)
	assert.Equal(t, "custom_agent", cfg.Classifier.FallbackDomain)
	assert.Equal(t, "debug", cfg.LogLevel)

	// Untouched sections keep their defaults.
	assert.Equal(t, 0.8, cfg.Classifier.ConfidenceCap)
	assert.Equal(t, 5*time.Minute, cfg.Push.TokenTTL)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("ORCHESTRA_SERVER_LISTEN_ADDRESS", ":7070")
	t.Setenv("ORCHESTRA_BUS_MAX_SIZE", "25")
	t.Setenv("ORCHESTRA_CLASSIFIER_CONFIDENCE_CAP", "0.9")
	t.Setenv("ORCHESTRA_STREAM_WAIT_BUDGET", "15s")
	t.Setenv("ORCHESTRA_LOG_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.ListenAddress)
	assert.Equal(t, 25, cfg.Bus.MaxSize)
	assert.Equal(t, 0.9, cfg.Classifier.ConfidenceCap)
	assert.Equal(t, 15*time.Second, cfg.Stream.WaitBudget)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadEnvironmentBeatsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  listenAddress: \":9090\"\n"), 0o600))

	t.Setenv("ORCHESTRA_SERVER_LISTEN_ADDRESS", ":6060")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":6060", cfg.Server.ListenAddress)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a mapping"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := map[string]func(*Config){
		"empty listen address": func(c *Config) { c.Server.ListenAddress = "" },
		"negative bus size":    func(c *Config) { c.Bus.MaxSize = -1 },
		"zero confidence cap":  func(c *Config) { c.Classifier.ConfidenceCap = 0 },
		"cap above one":        func(c *Config) { c.Classifier.ConfidenceCap = 1.5 },
		"zero increment":       func(c *Config) { c.Classifier.ConfidenceIncrement = 0 },
		"fallback above one":   func(c *Config) { c.Classifier.FallbackConfidence = 2 },
	}

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
