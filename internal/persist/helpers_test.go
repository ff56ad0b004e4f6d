package persist_test

import (
	"bytes"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/notesafe/notesafe/internal/config"
	"github.com/notesafe/notesafe/internal/events"
	"github.com/notesafe/notesafe/internal/models"
	"github.com/notesafe/notesafe/internal/persist"
	"github.com/notesafe/notesafe/internal/state"
	"github.com/notesafe/notesafe/internal/storage"
)

const (
	testDocFile   = "document.json"
	testBackupDir = "backups"
)

// testEnv wires the engine components the way the client does, on a
// temp directory with an in-memory state store.
type testEnv struct {
	store     *persist.Store
	blob      *storage.LocalStore
	kv        *state.MemoryStore
	backups   *persist.BackupManager
	detector  *persist.ConflictDetector
	merger    *persist.MergeEngine
	conflicts *persist.SyncFileHandler
	logger    *events.Logger
}

func newTestEnv(t *testing.T, policy persist.Policy, backupCfg config.BackupConfig) *testEnv {
	t.Helper()

	var buf bytes.Buffer
	logger := events.NewTestLogger(events.DebugLevel, "json", &buf)

	blob, err := storage.NewLocalStore(t.TempDir(), logger)
	require.NoError(t, err)

	kv := state.NewMemoryStore()
	backups := persist.NewBackupManager(blob, testDocFile, testBackupDir, backupCfg, logger)
	detector := persist.NewConflictDetector(blob, testDocFile, policy, logger)
	migrator := persist.NewMigrator(backups, kv, testDocFile, logger)
	store := persist.NewStore(blob, kv, backups, detector, migrator, testDocFile, logger)
	merger := persist.NewMergeEngine(store.DeviceID(), logger)
	conflicts := persist.NewSyncFileHandler(blob, store, backups, merger, testDocFile, logger)

	return &testEnv{
		store:     store,
		blob:      blob,
		kv:        kv,
		backups:   backups,
		detector:  detector,
		merger:    merger,
		conflicts: conflicts,
		logger:    logger,
	}
}

func defaultBackupCfg() config.BackupConfig {
	return config.BackupConfig{Enabled: true, MaxCount: 10}
}

// writeRaw writes bytes directly at a store path, bypassing the engine.
func (e *testEnv) writeRaw(t *testing.T, rel string, data []byte) {
	t.Helper()
	require.NoError(t, e.blob.Write(rel, data, 0644))
}

// touchFuture bumps a file's mtime past the current watermark to
// simulate an external writer.
func (e *testEnv) touchFuture(t *testing.T, rel string, ahead time.Duration) {
	t.Helper()

	abs, err := e.blob.AbsPath(rel)
	require.NoError(t, err)

	future := time.Now().Add(ahead)
	require.NoError(t, os.Chtimes(abs, future, future))
}

// sampleDoc builds a canonical document with the given pages.
func sampleDoc(pages ...string) *models.NotesDocument {
	doc := models.NewDocument("device-test")
	if len(pages) > 0 {
		doc.Pages = pages
		doc.Bookmarks = make([]bool, len(pages))
		doc.Metadata.TotalPages = len(pages)
	}
	return doc
}
