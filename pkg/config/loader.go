package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// ConfigFileName is the expected file name inside the config directory.
const ConfigFileName = "inquest.yaml"

// Initialize loads, merges and validates configuration from configDir.
//
// Steps performed:
//  1. Read inquest.yaml (missing file means defaults only)
//  2. Expand environment variable references
//  3. Parse YAML
//  4. Merge user values over built-in defaults
//  5. Resolve the ceiling policy from test_mode
//  6. Validate
func Initialize(configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)

	cfg := defaults()

	path := filepath.Join(configDir, ConfigFileName)
	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Info("No config file found, using defaults", "path", path)
	case err != nil:
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	default:
		expanded, err := expandEnv(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to expand environment in %s: %w", path, err)
		}
		var user Config
		if err := yaml.Unmarshal(expanded, &user); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		if err := mergo.Merge(cfg, &user, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge configuration: %w", err)
		}
		log.Info("Loaded configuration", "path", path)
	}

	cfg.Limits = ResolveLimits(cfg.Engine.TestMode)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log.Info("Configuration ready",
		"test_mode", cfg.Engine.TestMode,
		"llm_provider", cfg.Engine.LLM.Provider,
		"journal_enabled", cfg.Engine.Journal.Enabled,
		"deploy_services", len(cfg.Deploy.Services))
	return cfg, nil
}
