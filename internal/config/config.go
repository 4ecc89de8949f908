// Package config loads mi's configuration with viper.
//
// Priority: command flags (handled by callers) > MI_* environment
// variables > ~/.mi/config.yaml > defaults.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Defaults for mining and retrieval knobs.
const (
	DefaultMinConfidence = 0.9
	DefaultMaxClaims     = 8
	DefaultCandidateK    = 50
	DefaultMaxNewClaims  = 8
	DefaultMaxNewNodes   = 4
)

// Initialize sets defaults, binds the MI_* environment, and reads the
// config file if one exists. A missing file is not an error.
func Initialize(homeDir string) error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(homeDir)

	viper.SetEnvPrefix("MI")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("home_dir", homeDir)
	viper.SetDefault("project_dir", "")
	viper.SetDefault("json", false)
	viper.SetDefault("mining.min_confidence", DefaultMinConfidence)
	viper.SetDefault("mining.max_claims", DefaultMaxClaims)
	viper.SetDefault("retrieval.candidate_k", DefaultCandidateK)
	viper.SetDefault("retrieval.max_new_claims", DefaultMaxNewClaims)
	viper.SetDefault("retrieval.max_new_nodes", DefaultMaxNewNodes)
	viper.SetDefault("log.file", filepath.Join(homeDir, "mi.log"))
	viper.SetDefault("log.max_size_mb", 10)
	viper.SetDefault("log.max_backups", 3)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}
	return nil
}

func GetString(key string) string   { return viper.GetString(key) }
func GetBool(key string) bool       { return viper.GetBool(key) }
func GetInt(key string) int         { return viper.GetInt(key) }
func GetFloat64(key string) float64 { return viper.GetFloat64(key) }

// Set overrides a key for the current process. Used by tests and by
// flag handling in the CLI.
func Set(key string, value any) { viper.Set(key, value) }
