// Package client wires the persistence engine together and exposes the
// operation surface consumed by editing callers.
package client

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/notesafe/notesafe/internal/config"
	"github.com/notesafe/notesafe/internal/events"
	"github.com/notesafe/notesafe/internal/models"
	"github.com/notesafe/notesafe/internal/persist"
	"github.com/notesafe/notesafe/internal/state"
	"github.com/notesafe/notesafe/internal/storage"
)

// Client provides the high-level API over the persistence engine.
type Client struct {
	Store     *persist.Store
	Backups   *persist.BackupManager
	Merger    *persist.MergeEngine
	Conflicts *persist.SyncFileHandler
	Watcher   *persist.Watcher

	config *config.Config
	logger *events.Logger
	kv     state.Store
	blob   storage.BlobStore
}

// New creates a client from config. The change handler may be nil when
// the caller never starts the watcher.
func New(cfg *config.Config, logger *events.Logger, onChange persist.ChangeHandler) (*Client, error) {
	blob, err := storage.NewLocalStore(cfg.StorageRoot(), logger)
	if err != nil {
		return nil, err
	}

	statePath, err := blob.AbsPath(cfg.Storage.StateFile)
	if err != nil {
		return nil, err
	}
	kv, err := state.NewJSONStore(statePath, logger)
	if err != nil {
		return nil, err
	}

	return build(cfg, logger, blob, kv, onChange), nil
}

// NewWithStores creates a client with injected state and blob stores,
// for tests.
func NewWithStores(cfg *config.Config, logger *events.Logger, blob storage.BlobStore, kv state.Store, onChange persist.ChangeHandler) *Client {
	return build(cfg, logger, blob, kv, onChange)
}

func build(cfg *config.Config, logger *events.Logger, blob storage.BlobStore, kv state.Store, onChange persist.ChangeHandler) *Client {
	docFile := cfg.Storage.DocumentFile

	backups := persist.NewBackupManager(blob, docFile, cfg.Storage.BackupDir, cfg.Backup, logger)
	detector := persist.NewConflictDetector(blob, docFile, persist.Policy(cfg.Conflict.Policy), logger)
	migrator := persist.NewMigrator(backups, kv, docFile, logger)
	store := persist.NewStore(blob, kv, backups, detector, migrator, docFile, logger)
	merger := persist.NewMergeEngine(store.DeviceID(), logger)
	conflicts := persist.NewSyncFileHandler(blob, store, backups, merger, docFile, logger)
	watcher := persist.NewWatcher(blob, detector, docFile, onChange, logger)

	return &Client{
		Store:     store,
		Backups:   backups,
		Merger:    merger,
		Conflicts: conflicts,
		Watcher:   watcher,
		config:    cfg,
		logger:    logger,
		kv:        kv,
		blob:      blob,
	}
}

// Load reads the current document; nil when none exists.
func (c *Client) Load() (*models.NotesDocument, error) {
	return c.Store.Load()
}

// Save writes the document with conflict checking.
func (c *Client) Save(doc *models.NotesDocument) error {
	return c.Store.Save(doc, persist.SaveOptions{})
}

// CreateBackup snapshots the current document file.
func (c *Client) CreateBackup() (string, error) {
	return c.Backups.CreateBackup()
}

// ListBackups returns rotation backups, newest first.
func (c *Client) ListBackups() ([]persist.BackupRecord, error) {
	return c.Backups.ListBackups()
}

// RestoreFromBackup replaces the current document with a backup's
// contents.
func (c *Client) RestoreFromBackup(path string) (*models.NotesDocument, error) {
	return c.Store.RestoreFromBackup(path)
}

// ToggleBookmark flips or sets a single bookmark.
func (c *Client) ToggleBookmark(index int, explicit *bool) (*models.NotesDocument, error) {
	return c.Store.ToggleBookmark(index, explicit)
}

// SetBookmarks applies a value to multiple bookmarks in one save.
func (c *Client) SetBookmarks(indices []int, value bool) (*models.NotesDocument, error) {
	return c.Store.SetBookmarks(indices, value)
}

// DetectSyncConflicts lists sync-tool conflict files.
func (c *Client) DetectSyncConflicts() ([]string, error) {
	return c.Conflicts.Detect()
}

// ResolveSyncConflict resolves one conflict file and returns the
// resulting document.
func (c *Client) ResolveSyncConflict(path string, strategy persist.ResolveStrategy) (*models.NotesDocument, error) {
	return c.Conflicts.Resolve(path, strategy)
}

// MergeDocuments combines two documents without touching disk.
func (c *Client) MergeDocuments(local, remote *models.NotesDocument) *models.NotesDocument {
	return c.Merger.Merge(local, remote)
}

// MergeFromFile merges the document stored at path, in any known shape,
// into the current document and saves the result. When no current
// document exists the file's content is adopted as-is.
func (c *Client) MergeFromFile(path string) (*models.NotesDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read merge source: %w", err)
	}

	doc, legacy, err := persist.DecodeDocument(data)
	if err != nil {
		return nil, fmt.Errorf("parse merge source: %w", err)
	}
	if legacy != nil {
		doc = persist.MigrateLegacy(legacy, c.DeviceID(), time.Now().UTC())
	}

	current, err := c.Store.Load()
	if err != nil {
		return nil, err
	}

	merged := doc
	if current != nil {
		merged = c.Merger.Merge(current, doc)
	}

	if err := c.Store.Save(merged, persist.SaveOptions{}); err != nil {
		return nil, err
	}

	return merged, nil
}

// CheckAndMigrate migrates a legacy on-disk document if present.
func (c *Client) CheckAndMigrate() (bool, error) {
	return c.Store.CheckAndMigrate()
}

// ForceMigration clears the migration flag and re-runs the check.
func (c *Client) ForceMigration() (bool, error) {
	return c.Store.ForceMigration()
}

// ResetMigrationState clears the migration flag.
func (c *Client) ResetMigrationState() error {
	return c.Store.ResetMigrationState()
}

// DeviceID returns the stable per-installation writer identity.
func (c *Client) DeviceID() string {
	return c.Store.DeviceID()
}

// SetWatcherSuppressed mutes or unmutes change notifications.
func (c *Client) SetWatcherSuppressed(suppressed bool) {
	c.Watcher.SetSuppressed(suppressed)
}

// Watch runs the change watcher until ctx is cancelled. The context
// carries the document path for log correlation.
func (c *Client) Watch(ctx context.Context) error {
	docPath := filepath.Join(c.config.StorageRoot(), c.config.Storage.DocumentFile)
	ctx = events.WithDocumentPath(ctx, docPath)
	return c.Watcher.Watch(ctx)
}

// Close releases resources.
func (c *Client) Close() error {
	return c.kv.Close()
}
