package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Storage location modes.
const (
	StorageModeWorkspace = "workspace"
	StorageModeCustom    = "custom"
)

// Conflict resolution policies.
const (
	PolicyManual    = "manual"
	PolicyTimestamp = "timestamp"
)

// Config holds all application configuration.
type Config struct {
	Storage  StorageConfig  `mapstructure:"storage" json:"storage"`
	Autosave AutosaveConfig `mapstructure:"autosave" json:"autosave"`
	Backup   BackupConfig   `mapstructure:"backup" json:"backup"`
	Conflict ConflictConfig `mapstructure:"conflict" json:"conflict"`
	Log      LogConfig      `mapstructure:"log" json:"log"`
}

// StorageConfig locates the document file on disk.
type StorageConfig struct {
	// Mode selects between a workspace-relative data directory and a
	// custom absolute path.
	Mode string `mapstructure:"mode" json:"mode"`

	// CustomPath is the storage directory when Mode is "custom".
	CustomPath string `mapstructure:"custom_path" json:"custom_path,omitempty"`

	// DataDir is the workspace-relative storage directory.
	DataDir string `mapstructure:"data_dir" json:"data_dir"`

	// DocumentFile is the document filename inside the storage directory.
	DocumentFile string `mapstructure:"document_file" json:"document_file"`

	// BackupDir is the backup directory name inside the storage directory.
	BackupDir string `mapstructure:"backup_dir" json:"backup_dir"`

	// StateFile holds process-scoped identity state (device id,
	// migration flag).
	StateFile string `mapstructure:"state_file" json:"state_file"`
}

// AutosaveConfig is consumed by editing callers; the engine itself never
// schedules saves.
type AutosaveConfig struct {
	Enabled  bool          `mapstructure:"enabled" json:"enabled"`
	Interval time.Duration `mapstructure:"interval" json:"interval"`
}

// BackupConfig controls backup rotation.
type BackupConfig struct {
	Enabled  bool `mapstructure:"enabled" json:"enabled"`
	MaxCount int  `mapstructure:"max_count" json:"max_count"`
}

// ConflictConfig selects the save-time conflict policy.
type ConflictConfig struct {
	Policy string `mapstructure:"policy" json:"policy"`
}

// LogConfig for logging behavior.
type LogConfig struct {
	Level  string `mapstructure:"level" json:"level"`   // debug, info, warn, error
	Format string `mapstructure:"format" json:"format"` // text, json
	File   string `mapstructure:"file" json:"file"`     // empty = stderr
}

// DefaultConfig returns config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Mode:         StorageModeWorkspace,
			DataDir:      ".notesafe",
			DocumentFile: "document.json",
			BackupDir:    "backups",
			StateFile:    "state.json",
		},
		Autosave: AutosaveConfig{
			Enabled:  true,
			Interval: 2 * time.Second,
		},
		Backup: BackupConfig{
			Enabled:  true,
			MaxCount: 10,
		},
		Conflict: ConflictConfig{
			Policy: PolicyManual,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// StorageRoot returns the directory holding the document file.
func (c *Config) StorageRoot() string {
	if c.Storage.Mode == StorageModeCustom && c.Storage.CustomPath != "" {
		return c.Storage.CustomPath
	}
	return c.Storage.DataDir
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	switch c.Storage.Mode {
	case StorageModeWorkspace, StorageModeCustom:
	default:
		return fmt.Errorf("invalid storage mode: %s", c.Storage.Mode)
	}

	if c.Storage.Mode == StorageModeCustom && c.Storage.CustomPath == "" {
		return errors.New("storage.custom_path is required in custom mode")
	}

	if c.Storage.DocumentFile == "" {
		return errors.New("storage.document_file is required")
	}

	if c.Backup.MaxCount <= 0 {
		return errors.New("backup.max_count must be positive")
	}

	if c.Autosave.Enabled && c.Autosave.Interval <= 0 {
		return errors.New("autosave.interval must be positive")
	}

	switch c.Conflict.Policy {
	case PolicyManual, PolicyTimestamp:
	default:
		return fmt.Errorf("invalid conflict policy: %s", c.Conflict.Policy)
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		return fmt.Errorf("invalid log format: %s", c.Log.Format)
	}

	return nil
}

// EnsureDirectories creates required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.StorageRoot(),
		filepath.Join(c.StorageRoot(), c.Storage.BackupDir),
	}

	if c.Log.File != "" {
		dirs = append(dirs, filepath.Dir(c.Log.File))
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return nil
}
