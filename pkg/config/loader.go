package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// ConfigFileName is the user configuration file read from the config directory.
const ConfigFileName = "waqedi.yaml"

// Initialize loads, merges, and validates configuration. This is the primary
// entry point for configuration loading.
//
// Steps performed:
//  1. Read waqedi.yaml from configDir
//  2. Expand {{.VAR}} environment variables
//  3. Parse YAML
//  4. Merge user values over built-in defaults
//  5. Validate
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	log.Info("Configuration initialized",
		"stages", cfg.Pipeline.Stages,
		"chunking_strategy", cfg.Chunking.Strategy,
		"embedding_model", cfg.Inference.EmbeddingModel,
		"embedding_version", cfg.Inference.EmbeddingVersion)

	return cfg, nil
}

func load(_ context.Context, configDir string) (*Config, error) {
	user, err := loadYAML(filepath.Join(configDir, ConfigFileName))
	if err != nil {
		return nil, NewLoadError(ConfigFileName, err)
	}

	cfg := Defaults()
	if err := mergo.Merge(cfg, user, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("failed to merge configuration: %w", err)
	}

	return cfg, nil
}

// loadYAML reads and parses a single config file. A missing file is fine:
// everything has a default and secrets can arrive via {{.VAR}}-free env
// overrides in a mounted file, so an empty Config is returned.
func loadYAML(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("Configuration file not found, using defaults", "path", path)
			return &Config{}, nil
		}
		return nil, err
	}

	// ExpandEnv passes the original content through on template errors so
	// the YAML parser produces the clearer message.
	data = ExpandEnv(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return &cfg, nil
}
