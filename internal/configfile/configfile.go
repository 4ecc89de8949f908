// Package configfile reads and writes the per-project metadata file
// stored alongside a project's thoughtdb directory.
package configfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const ConfigFileName = "metadata.json"

type Config struct {
	ProjectID string `json:"project_id"`
	RootPath  string `json:"root_path"`
	CreatedTS string `json:"created_ts,omitempty"`
}

func ConfigPath(projectDir string) string {
	return filepath.Join(projectDir, ConfigFileName)
}

// Load reads the project metadata. Returns (nil, nil) when no metadata
// file exists yet.
func Load(projectDir string) (*Config, error) {
	configPath := ConfigPath(projectDir)

	data, err := os.ReadFile(configPath) // #nosec G304 - controlled path from config
	if os.IsNotExist(err) {
		// Try legacy project.json location (migration path)
		legacyPath := filepath.Join(projectDir, "project.json")
		data, err = os.ReadFile(legacyPath) // #nosec G304 - controlled path from config
		if os.IsNotExist(err) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading legacy metadata: %w", err)
		}

		var cfg Config
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing legacy metadata: %w", err)
		}

		if err := cfg.Save(projectDir); err != nil {
			return nil, fmt.Errorf("migrating metadata to metadata.json: %w", err)
		}

		// Remove legacy file (best effort)
		_ = os.Remove(legacyPath)

		return &cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading metadata: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing metadata: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Save(projectDir string) error {
	if err := os.MkdirAll(projectDir, 0o755); err != nil {
		return fmt.Errorf("creating project dir: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}

	if err := os.WriteFile(ConfigPath(projectDir), data, 0600); err != nil {
		return fmt.Errorf("writing metadata: %w", err)
	}

	return nil
}
