// Package persist implements the document persistence-and-reconciliation
// engine: load/save with schema validation and legacy migration,
// mtime-watermark conflict detection, rotating backups, page-union merge,
// and sync-tool conflict file resolution.
package persist

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/notesafe/notesafe/internal/events"
	"github.com/notesafe/notesafe/internal/models"
	"github.com/notesafe/notesafe/internal/state"
	"github.com/notesafe/notesafe/internal/storage"
)

// SaveOptions controls a single save call.
type SaveOptions struct {
	// SkipConflictCheck bypasses the external-change check. Used when the
	// save itself is a conflict resolution.
	SkipConflictCheck bool
}

// Store orchestrates document load and save. It owns the modification
// time watermark (via its detector) and the device identity. Callers are
// expected to serialize their own writes; Store performs no internal
// locking across saves.
type Store struct {
	blob     storage.BlobStore
	kv       state.Store
	backups  *BackupManager
	detector *ConflictDetector
	migrator *Migrator
	docFile  string
	logger   *events.Logger

	deviceID string
}

// NewStore creates a persistence store.
func NewStore(blob storage.BlobStore, kv state.Store, backups *BackupManager, detector *ConflictDetector, migrator *Migrator, docFile string, logger *events.Logger) *Store {
	return &Store{
		blob:     blob,
		kv:       kv,
		backups:  backups,
		detector: detector,
		migrator: migrator,
		docFile:  docFile,
		logger:   logger.WithField("component", "store"),
	}
}

// Detector exposes the conflict detector so the change watcher can share
// the watermark.
func (s *Store) Detector() *ConflictDetector {
	return s.detector
}

// Backups exposes the backup manager.
func (s *Store) Backups() *BackupManager {
	return s.backups
}

// Load reads the document from disk. Returns (nil, nil) when no document
// file exists. Legacy shapes are migrated and the migrated result is
// persisted immediately; a bookmark length mismatch is rebuilt all-false
// and re-saved. A failed migration surfaces as a MigrationError and the
// on-disk file is left untouched. Updates the watermark to the file's
// modification time.
func (s *Store) Load() (*models.NotesDocument, error) {
	exists, err := s.blob.Exists(s.docFile)
	if err != nil {
		return nil, fmt.Errorf("check document file: %w", err)
	}
	if !exists {
		s.logger.Debug("No document file")
		return nil, nil
	}

	data, err := s.blob.Read(s.docFile)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}

	doc, legacy, err := DecodeDocument(data)
	if err != nil {
		return nil, err
	}

	if legacy != nil {
		doc, err = s.migrator.Migrate(legacy, s.DeviceID())
		if err != nil {
			// The legacy file stays untouched; until a pre-migration
			// snapshot exists it is the only copy of the user's pages.
			s.logger.WithError(err).Error("Migration failed")
			return nil, err
		}
		if err := s.Save(doc, SaveOptions{SkipConflictCheck: true}); err != nil {
			return nil, fmt.Errorf("persist migrated document: %w", err)
		}
	} else if doc.RebuildBookmarks() {
		// Self-heal a missing or length-mismatched bookmark list.
		s.logger.Warn("Rebuilt bookmark list as all-false to match pages")
		if err := s.Save(doc, SaveOptions{SkipConflictCheck: true}); err != nil {
			return nil, fmt.Errorf("persist healed document: %w", err)
		}
	}

	info, err := s.blob.Stat(s.docFile)
	if err != nil {
		return nil, fmt.Errorf("stat document: %w", err)
	}
	s.detector.SetWatermark(info.ModTime)

	modMs := info.ModTime.UnixMilli()
	doc.Metadata.FileModTime = &modMs

	s.logger.WithFields(map[string]interface{}{
		"pages":          len(doc.Pages),
		"schema_version": doc.SchemaVersion,
	}).Debug("Loaded document")

	return doc, nil
}

// Save writes the document to disk. Unless skipped, an external-change
// check runs first; on conflict nothing is written. The existing file is
// backed up best-effort before the write, and the watermark advances to
// the new file's modification time afterwards.
func (s *Store) Save(doc *models.NotesDocument, opts SaveOptions) error {
	if doc == nil {
		return fmt.Errorf("nil document")
	}

	if !opts.SkipConflictCheck {
		if err := s.detector.Check(doc); err != nil {
			return err
		}
	}

	if _, err := s.backups.CreateBackup(); err != nil {
		// Best-effort: a failed backup must not block the save.
		s.logger.WithError(err).Warn("Pre-save backup failed")
	}

	doc.LastModified = time.Now().UTC()
	doc.DeviceID = s.DeviceID()
	doc.Metadata.TotalPages = len(doc.Pages)
	doc.EnsureBookmarks()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	if err := s.blob.Write(s.docFile, data, 0644); err != nil {
		return fmt.Errorf("write document: %w", err)
	}

	info, err := s.blob.Stat(s.docFile)
	if err != nil {
		return fmt.Errorf("stat written document: %w", err)
	}
	s.detector.SetWatermark(info.ModTime)

	s.logger.WithField("pages", len(doc.Pages)).Debug("Saved document")
	return nil
}

// ToggleBookmark flips (or explicitly sets) the bookmark at index and
// saves. Returns (nil, nil) when no document exists. An out-of-range
// index leaves the document unchanged and is logged, not an error.
func (s *Store) ToggleBookmark(index int, explicit *bool) (*models.NotesDocument, error) {
	doc, err := s.Load()
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}

	doc.EnsureBookmarks()

	if index < 0 || index >= len(doc.Pages) {
		s.logger.WithFields(map[string]interface{}{
			"index": index,
			"pages": len(doc.Pages),
		}).Warn("Bookmark index out of range, ignoring")
		return doc, nil
	}

	if explicit != nil {
		doc.Bookmarks[index] = *explicit
	} else {
		doc.Bookmarks[index] = !doc.Bookmarks[index]
	}

	if err := s.Save(doc, SaveOptions{}); err != nil {
		return nil, err
	}

	return doc, nil
}

// SetBookmarks applies value to every in-range index and saves once.
// Out-of-range indices are silently ignored.
func (s *Store) SetBookmarks(indices []int, value bool) (*models.NotesDocument, error) {
	doc, err := s.Load()
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}

	doc.EnsureBookmarks()

	for _, idx := range indices {
		if idx < 0 || idx >= len(doc.Pages) {
			continue
		}
		doc.Bookmarks[idx] = value
	}

	if err := s.Save(doc, SaveOptions{}); err != nil {
		return nil, err
	}

	return doc, nil
}

// RestoreFromBackup validates a backup file and saves its contents as the
// current document. The save itself snapshots whatever was current
// beforehand, so the pre-restore state survives as a fresh backup.
func (s *Store) RestoreFromBackup(backupPath string) (*models.NotesDocument, error) {
	data, err := s.blob.Read(backupPath)
	if err != nil {
		return nil, fmt.Errorf("read backup: %w", err)
	}

	doc, legacy, err := DecodeDocument(data)
	if err != nil {
		return nil, fmt.Errorf("validate backup: %w", err)
	}
	if legacy != nil {
		doc = MigrateLegacy(legacy, s.DeviceID(), time.Now().UTC())
	}

	s.logger.WithField("backup", backupPath).Info("Restoring from backup")

	if err := s.Save(doc, SaveOptions{SkipConflictCheck: true}); err != nil {
		return nil, err
	}

	return doc, nil
}

// DeviceID returns the stable per-installation writer identity,
// generating and persisting it on first use.
func (s *Store) DeviceID() string {
	if s.deviceID != "" {
		return s.deviceID
	}

	if v, ok := s.kv.Get(state.DeviceIDKey); ok && v != "" {
		s.deviceID = v
		return v
	}

	id := fmt.Sprintf("device-%d-%s", time.Now().UnixMilli(), uuid.NewString()[:8])
	if err := s.kv.Set(state.DeviceIDKey, id); err != nil {
		s.logger.WithError(err).Warn("Failed to persist device id")
	}
	s.deviceID = id

	s.logger.WithField("device_id", id).Info("Generated device id")
	return id
}

// CheckAndMigrate inspects the on-disk document and migrates it if it has
// a legacy shape. Returns whether a migration ran.
func (s *Store) CheckAndMigrate() (bool, error) {
	exists, err := s.blob.Exists(s.docFile)
	if err != nil {
		return false, fmt.Errorf("check document file: %w", err)
	}
	if !exists {
		return false, nil
	}

	data, err := s.blob.Read(s.docFile)
	if err != nil {
		return false, fmt.Errorf("read document: %w", err)
	}

	_, legacy, err := DecodeDocument(data)
	if err != nil {
		return false, err
	}
	if legacy == nil {
		return false, nil
	}

	// Load performs the migration and persists the result.
	if _, err := s.Load(); err != nil {
		return false, err
	}
	return true, nil
}

// ForceMigration clears the migration-completed flag and re-runs the
// migration check.
func (s *Store) ForceMigration() (bool, error) {
	if err := s.migrator.Reset(); err != nil {
		return false, fmt.Errorf("reset migration state: %w", err)
	}
	return s.CheckAndMigrate()
}

// ResetMigrationState clears the migration-completed flag without
// touching the document.
func (s *Store) ResetMigrationState() error {
	return s.migrator.Reset()
}
