package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader handles configuration loading from file and environment.
type Loader struct {
	configPath string
	envPrefix  string
}

// NewLoader creates a config loader. An empty configPath falls back to
// the default search locations.
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
		envPrefix:  "NOTESAFE",
	}
}

// Load reads configuration from file and environment. Environment
// variables (NOTESAFE_ prefix, dots and hyphens mapped to underscores)
// take precedence over the file; the file takes precedence over the
// built-in defaults.
func (l *Loader) Load() (*Config, error) {
	v := viper.New()

	l.setDefaults(v)

	if l.configPath != "" {
		v.SetConfigFile(l.configPath)
	} else {
		v.SetConfigName("notesafe")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if configDir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(configDir, "notesafe"))
		}
	}

	v.SetEnvPrefix(l.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// An explicit path must exist; a missing default file is fine.
		if l.configPath != "" {
			return nil, fmt.Errorf("read config: %w", err)
		}
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv picks them up even
// when no config file exists.
func (l *Loader) setDefaults(v *viper.Viper) {
	def := DefaultConfig()

	v.SetDefault("storage.mode", def.Storage.Mode)
	v.SetDefault("storage.custom_path", def.Storage.CustomPath)
	v.SetDefault("storage.data_dir", def.Storage.DataDir)
	v.SetDefault("storage.document_file", def.Storage.DocumentFile)
	v.SetDefault("storage.backup_dir", def.Storage.BackupDir)
	v.SetDefault("storage.state_file", def.Storage.StateFile)
	v.SetDefault("autosave.enabled", def.Autosave.Enabled)
	v.SetDefault("autosave.interval", def.Autosave.Interval.String())
	v.SetDefault("backup.enabled", def.Backup.Enabled)
	v.SetDefault("backup.max_count", def.Backup.MaxCount)
	v.SetDefault("conflict.policy", def.Conflict.Policy)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.format", def.Log.Format)
	v.SetDefault("log.file", def.Log.File)
}
