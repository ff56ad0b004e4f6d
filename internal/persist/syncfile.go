package persist

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/notesafe/notesafe/internal/events"
	"github.com/notesafe/notesafe/internal/models"
	"github.com/notesafe/notesafe/internal/storage"
)

// ResolveStrategy selects how a sync-tool conflict file is resolved.
type ResolveStrategy string

const (
	// StrategyKeepCurrent discards the conflict copy (after backing it up).
	StrategyKeepCurrent ResolveStrategy = "keepCurrent"

	// StrategyUseConflict replaces the current document with the conflict
	// copy.
	StrategyUseConflict ResolveStrategy = "useConflict"

	// StrategyMerge combines both copies via the merge engine.
	StrategyMerge ResolveStrategy = "merge"
)

// conflictMarkers are the filename substrings folder-sync tools put in
// the side-by-side copies they create on divergent edits.
var conflictMarkers = []string{
	"conflicted copy", // Dropbox
	"sync-conflict",   // Syncthing
	"conflict-",
}

// SyncFileHandler finds and resolves conflict-marker files left by an
// external folder-sync tool next to the document.
type SyncFileHandler struct {
	store    storage.BlobStore
	docStore *Store
	backups  *BackupManager
	merger   *MergeEngine
	docFile  string
	logger   *events.Logger
}

// NewSyncFileHandler creates a handler for the given document file.
func NewSyncFileHandler(store storage.BlobStore, docStore *Store, backups *BackupManager, merger *MergeEngine, docFile string, logger *events.Logger) *SyncFileHandler {
	return &SyncFileHandler{
		store:    store,
		docStore: docStore,
		backups:  backups,
		merger:   merger,
		docFile:  docFile,
		logger:   logger.WithField("component", "sync_conflicts"),
	}
}

// Detect lists conflict files in the storage directory: entries whose
// name contains both a known sync-tool marker and the document's base
// name. Returns store-relative paths, sorted.
func (h *SyncFileHandler) Detect() ([]string, error) {
	entries, err := h.store.ListDir(".")
	if err != nil {
		return nil, fmt.Errorf("list storage directory: %w", err)
	}

	stem := strings.TrimSuffix(path.Base(h.docFile), path.Ext(h.docFile))

	var conflicts []string
	for _, e := range entries {
		name := path.Base(e.Path)
		if e.IsDir || name == path.Base(h.docFile) {
			continue
		}
		if !strings.Contains(name, stem) || !hasConflictMarker(name) {
			continue
		}
		conflicts = append(conflicts, e.Path)
	}

	sort.Strings(conflicts)

	if len(conflicts) > 0 {
		h.logger.WithField("count", len(conflicts)).Warn("Sync conflict files detected")
	}

	return conflicts, nil
}

// Resolve applies a strategy to a conflict file and reloads the canonical
// document so the caller observes the resolved state. The conflict file
// is deleted in every case, after being backed up where the strategy
// discards its content.
func (h *SyncFileHandler) Resolve(conflictPath string, strategy ResolveStrategy) (*models.NotesDocument, error) {
	h.logger.WithFields(map[string]interface{}{
		"conflict": conflictPath,
		"strategy": string(strategy),
	}).Info("Resolving sync conflict file")

	switch strategy {
	case StrategyKeepCurrent:
		if err := h.discardConflict(conflictPath); err != nil {
			return nil, err
		}

	case StrategyUseConflict:
		if err := h.adoptConflict(conflictPath); err != nil {
			return nil, err
		}

	case StrategyMerge:
		if err := h.mergeConflict(conflictPath); err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("unknown resolve strategy: %s", strategy)
	}

	return h.docStore.Load()
}

// discardConflict backs up and deletes the conflict file, leaving the
// current document untouched.
func (h *SyncFileHandler) discardConflict(conflictPath string) error {
	name := conflictBackupPrefix + path.Base(conflictPath)
	if _, err := h.backups.BackupFileAs(conflictPath, name); err != nil {
		return fmt.Errorf("back up conflict file: %w", err)
	}

	if err := h.store.Delete(conflictPath); err != nil {
		return fmt.Errorf("delete conflict file: %w", err)
	}

	return nil
}

// adoptConflict replaces the current document with the conflict file's
// bytes, after backing up the current document.
func (h *SyncFileHandler) adoptConflict(conflictPath string) error {
	if _, err := h.backups.CreateBackup(); err != nil {
		return fmt.Errorf("back up current document: %w", err)
	}

	data, err := h.store.Read(conflictPath)
	if err != nil {
		return fmt.Errorf("read conflict file: %w", err)
	}

	if err := h.store.Write(h.docFile, data, 0644); err != nil {
		return fmt.Errorf("overwrite document: %w", err)
	}

	if err := h.store.Delete(conflictPath); err != nil {
		return fmt.Errorf("delete conflict file: %w", err)
	}

	return nil
}

// mergeConflict merges the current document with the conflict copy and
// saves the result, bypassing conflict detection since this save is the
// resolution.
func (h *SyncFileHandler) mergeConflict(conflictPath string) error {
	current, err := h.docStore.Load()
	if err != nil {
		return fmt.Errorf("load current document: %w", err)
	}
	if current == nil {
		// No current document; adopting the conflict copy is the only
		// meaningful merge.
		return h.adoptConflict(conflictPath)
	}

	data, err := h.store.Read(conflictPath)
	if err != nil {
		return fmt.Errorf("read conflict file: %w", err)
	}

	conflictDoc, legacy, err := DecodeDocument(data)
	if err != nil {
		return fmt.Errorf("parse conflict file: %w", err)
	}
	if legacy != nil {
		conflictDoc = MigrateLegacy(legacy, h.docStore.DeviceID(), time.Now().UTC())
	}

	merged := h.merger.Merge(current, conflictDoc)

	if err := h.docStore.Save(merged, SaveOptions{SkipConflictCheck: true}); err != nil {
		return fmt.Errorf("save merged document: %w", err)
	}

	return h.discardConflict(conflictPath)
}

func hasConflictMarker(name string) bool {
	lower := strings.ToLower(name)
	for _, marker := range conflictMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
