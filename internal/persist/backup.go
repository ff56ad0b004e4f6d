package persist

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/notesafe/notesafe/internal/config"
	"github.com/notesafe/notesafe/internal/events"
	"github.com/notesafe/notesafe/internal/storage"
)

// Backup filename prefixes. Rotation only applies to regular backups;
// pre-migration and conflict snapshots are excluded by prefix.
const (
	backupPrefix         = "backup-"
	preMigrationPrefix   = "pre-migration-"
	conflictBackupPrefix = "conflict-backup-"
)

// BackupRecord describes a single backup snapshot.
type BackupRecord struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
}

// BackupManager snapshots and prunes copies of the document file.
type BackupManager struct {
	store     storage.BlobStore
	docFile   string
	backupDir string
	enabled   bool
	maxCount  int
	logger    *events.Logger
}

// NewBackupManager creates a backup manager for the given document file.
func NewBackupManager(store storage.BlobStore, docFile, backupDir string, cfg config.BackupConfig, logger *events.Logger) *BackupManager {
	maxCount := cfg.MaxCount
	if maxCount <= 0 {
		maxCount = 10
	}

	return &BackupManager{
		store:     store,
		docFile:   docFile,
		backupDir: backupDir,
		enabled:   cfg.Enabled,
		maxCount:  maxCount,
		logger:    logger.WithField("component", "backup"),
	}
}

// CreateBackup copies the current document file into the backup directory
// and prunes old backups. Returns "" without error when backups are
// disabled or no document file exists yet.
func (m *BackupManager) CreateBackup() (string, error) {
	if !m.enabled {
		return "", nil
	}

	exists, err := m.store.Exists(m.docFile)
	if err != nil {
		return "", fmt.Errorf("check document file: %w", err)
	}
	if !exists {
		return "", nil
	}

	name := backupPrefix + backupTimestamp(time.Now()) + ".json"
	dst := path.Join(m.backupDir, name)

	if err := m.store.Copy(m.docFile, dst); err != nil {
		return "", fmt.Errorf("copy backup: %w", err)
	}

	m.logger.WithField("backup", name).Debug("Created backup")

	if err := m.prune(); err != nil {
		m.logger.WithError(err).Warn("Backup pruning failed")
	}

	return dst, nil
}

// BackupFileAs copies an arbitrary store file into the backup directory
// under an explicit name. Used for pre-migration and conflict-file
// snapshots, which do not participate in rotation.
func (m *BackupManager) BackupFileAs(srcPath, name string) (string, error) {
	dst := path.Join(m.backupDir, name)

	if err := m.store.Copy(srcPath, dst); err != nil {
		return "", fmt.Errorf("copy backup: %w", err)
	}

	m.logger.WithFields(map[string]interface{}{
		"src":    srcPath,
		"backup": name,
	}).Debug("Created named backup")

	return dst, nil
}

// ListBackups returns rotation backups, newest first.
func (m *BackupManager) ListBackups() ([]BackupRecord, error) {
	files, err := m.listRotationBackups()
	if err != nil {
		return nil, err
	}

	records := make([]BackupRecord, 0, len(files))
	for _, f := range files {
		records = append(records, BackupRecord{
			Name:      path.Base(f.Path),
			Path:      f.Path,
			CreatedAt: f.ModTime,
		})
	}

	return records, nil
}

// prune deletes rotation backups beyond the configured maximum, oldest
// first.
func (m *BackupManager) prune() error {
	files, err := m.listRotationBackups()
	if err != nil {
		return err
	}

	for _, f := range files[min(m.maxCount, len(files)):] {
		if err := m.store.Delete(f.Path); err != nil {
			m.logger.WithError(err).WithField("backup", f.Path).Warn("Failed to delete old backup")
			continue
		}
		m.logger.WithField("backup", path.Base(f.Path)).Debug("Pruned old backup")
	}

	return nil
}

// listRotationBackups returns backup-* files sorted newest first.
func (m *BackupManager) listRotationBackups() ([]storage.FileInfo, error) {
	if err := m.store.EnsureDir(m.backupDir); err != nil {
		return nil, fmt.Errorf("ensure backup directory: %w", err)
	}

	entries, err := m.store.ListDir(m.backupDir)
	if err != nil {
		return nil, fmt.Errorf("list backup directory: %w", err)
	}

	var files []storage.FileInfo
	for _, e := range entries {
		name := path.Base(e.Path)
		if e.IsDir || !strings.HasPrefix(name, backupPrefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		files = append(files, e)
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].ModTime.After(files[j].ModTime)
	})

	return files, nil
}

// backupTimestamp renders t the way the document's other writers name
// backups: an ISO-8601 UTC stamp with colons and dots replaced by dashes.
func backupTimestamp(t time.Time) string {
	iso := t.UTC().Format("2006-01-02T15:04:05.000Z")
	return strings.NewReplacer(":", "-", ".", "-").Replace(iso)
}
