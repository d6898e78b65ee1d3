// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the orchestration service configuration from an
// optional YAML file with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration of the orchestration service.
type Config struct {
	Server     ServerConfig     `yaml:"server" envPrefix:"SERVER_"`
	Bus        BusConfig        `yaml:"bus" envPrefix:"BUS_"`
	Classifier ClassifierConfig `yaml:"classifier" envPrefix:"CLASSIFIER_"`
	Store      StoreConfig      `yaml:"store" envPrefix:"STORE_"`
	Push       PushConfig       `yaml:"push" envPrefix:"PUSH_"`
	Stream     StreamConfig     `yaml:"stream" envPrefix:"STREAM_"`
	LogLevel   string           `yaml:"logLevel" env:"LOG_LEVEL"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	ListenAddress     string        `yaml:"listenAddress" env:"LISTEN_ADDRESS"`
	HeartbeatInterval time.Duration `yaml:"heartbeatInterval" env:"HEARTBEAT_INTERVAL"`
}

// BusConfig configures the event bus.
type BusConfig struct {
	MaxSize       int           `yaml:"maxSize" env:"MAX_SIZE"`
	EventTTL      time.Duration `yaml:"eventTTL" env:"EVENT_TTL"`
	SweepInterval time.Duration `yaml:"sweepInterval" env:"SWEEP_INTERVAL"`
}

// ClassifierConfig configures the keyword intent classifier.
type ClassifierConfig struct {
	ConfidenceCap       float64 `yaml:"confidenceCap" env:"CONFIDENCE_CAP"`
	ConfidenceIncrement float64 `yaml:"confidenceIncrement" env:"CONFIDENCE_INCREMENT"`
	FallbackDomain      string  `yaml:"fallbackDomain" env:"FALLBACK_DOMAIN"`
	FallbackConfidence  float64 `yaml:"fallbackConfidence" env:"FALLBACK_CONFIDENCE"`
}

// StoreConfig configures the task and context stores.
type StoreConfig struct {
	// DatabaseDSN, when set, switches from in-memory to database-backed
	// stores.
	DatabaseDSN string `yaml:"databaseDSN" env:"DATABASE_DSN"`

	// CleanupMaxAge is the retention period enforced by the periodic
	// cleanup; zero disables cleanup.
	CleanupMaxAge time.Duration `yaml:"cleanupMaxAge" env:"CLEANUP_MAX_AGE"`

	// CleanupInterval is how often the cleanup runs.
	CleanupInterval time.Duration `yaml:"cleanupInterval" env:"CLEANUP_INTERVAL"`
}

// PushConfig configures push notification delivery.
type PushConfig struct {
	Timeout  time.Duration `yaml:"timeout" env:"TIMEOUT"`
	TokenTTL time.Duration `yaml:"tokenTTL" env:"TOKEN_TTL"`
}

// StreamConfig configures event streaming to clients.
type StreamConfig struct {
	WaitBudget   time.Duration `yaml:"waitBudget" env:"WAIT_BUDGET"`
	PollInterval time.Duration `yaml:"pollInterval" env:"POLL_INTERVAL"`
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddress:     ":8080",
			HeartbeatInterval: 30 * time.Second,
		},
		Bus: BusConfig{
			MaxSize:       1000,
			EventTTL:      time.Hour,
			SweepInterval: 5 * time.Minute,
		},
		Classifier: ClassifierConfig{
			ConfidenceCap:       0.8,
			ConfidenceIncrement: 0.2,
			FallbackDomain:      "orchestrator",
			FallbackConfidence:  0.3,
		},
		Store: StoreConfig{
			CleanupMaxAge:   24 * time.Hour,
			CleanupInterval: time.Hour,
		},
		Push: PushConfig{
			Timeout:  10 * time.Second,
			TokenTTL: 5 * time.Minute,
		},
		Stream: StreamConfig{
			WaitBudget:   30 * time.Second,
			PollInterval: 100 * time.Millisecond,
		},
		LogLevel: "info",
	}
}

// Load builds the configuration: defaults, then the YAML file at path if
// path is non-empty, then ORCHESTRA_*-prefixed environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: "ORCHESTRA_"}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	if c.Server.ListenAddress == "" {
		return fmt.Errorf("server.listenAddress is required")
	}
	if c.Bus.MaxSize < 0 {
		return fmt.Errorf("bus.maxSize must not be negative")
	}
	if c.Classifier.ConfidenceCap <= 0 || c.Classifier.ConfidenceCap > 1 {
		return fmt.Errorf("classifier.confidenceCap must be in (0, 1]")
	}
	if c.Classifier.ConfidenceIncrement <= 0 {
		return fmt.Errorf("classifier.confidenceIncrement must be positive")
	}
	if c.Classifier.FallbackConfidence < 0 || c.Classifier.FallbackConfidence > 1 {
		return fmt.Errorf("classifier.fallbackConfidence must be in [0, 1]")
	}
	return nil
}
