package client_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notesafe/notesafe/internal/client"
	"github.com/notesafe/notesafe/internal/config"
	"github.com/notesafe/notesafe/internal/events"
	"github.com/notesafe/notesafe/internal/models"
	"github.com/notesafe/notesafe/internal/persist"
	"github.com/notesafe/notesafe/internal/state"
	"github.com/notesafe/notesafe/internal/storage"
)

func newTestClient(t *testing.T) (*client.Client, *storage.LocalStore) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Storage.Mode = config.StorageModeCustom
	cfg.Storage.CustomPath = t.TempDir()

	var buf bytes.Buffer
	logger := events.NewTestLogger(events.DebugLevel, "json", &buf)

	blob, err := storage.NewLocalStore(cfg.StorageRoot(), logger)
	require.NoError(t, err)

	c := client.NewWithStores(cfg, logger, blob, state.NewMemoryStore(), nil)
	t.Cleanup(func() { assert.NoError(t, c.Close()) })
	return c, blob
}

func TestClientSaveLoad(t *testing.T) {
	c, _ := newTestClient(t)

	doc, err := c.Load()
	require.NoError(t, err)
	assert.Nil(t, doc)

	fresh := models.NewDocument(c.DeviceID())
	fresh.Pages = []string{"# First note"}
	fresh.Bookmarks = []bool{false}

	require.NoError(t, c.Save(fresh))

	loaded, err := c.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, []string{"# First note"}, loaded.Pages)
	assert.Equal(t, c.DeviceID(), loaded.DeviceID)
}

func TestClientDeviceIDStable(t *testing.T) {
	c, _ := newTestClient(t)

	id := c.DeviceID()
	assert.NotEmpty(t, id)
	assert.Equal(t, id, c.DeviceID())
}

func TestClientBookmarks(t *testing.T) {
	c, _ := newTestClient(t)

	doc := models.NewDocument(c.DeviceID())
	doc.Pages = []string{"a", "b", "c"}
	require.NoError(t, c.Save(doc))

	toggled, err := c.ToggleBookmark(1, nil)
	require.NoError(t, err)
	assert.Equal(t, []bool{false, true, false}, toggled.Bookmarks)

	set, err := c.SetBookmarks([]int{0, 2}, true)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, true, true}, set.Bookmarks)
}

func TestClientBackupRoundTrip(t *testing.T) {
	c, _ := newTestClient(t)

	doc := models.NewDocument(c.DeviceID())
	doc.Pages = []string{"keep me"}
	require.NoError(t, c.Save(doc))

	path, err := c.CreateBackup()
	require.NoError(t, err)
	require.NotEmpty(t, path)

	time.Sleep(10 * time.Millisecond)
	doc.Pages = []string{"replaced"}
	require.NoError(t, c.Save(doc))

	restored, err := c.RestoreFromBackup(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"keep me"}, restored.Pages)

	records, err := c.ListBackups()
	require.NoError(t, err)
	assert.NotEmpty(t, records)
}

func TestClientSyncConflictResolution(t *testing.T) {
	c, blob := newTestClient(t)

	doc := models.NewDocument(c.DeviceID())
	doc.Pages = []string{"mine"}
	require.NoError(t, c.Save(doc))

	conflict := models.NewDocument("device-other")
	conflict.Pages = []string{"theirs"}
	conflict.LastModified = time.Now().Add(-time.Minute)
	data, err := json.Marshal(conflict)
	require.NoError(t, err)

	require.NoError(t, blob.Write("document (conflicted copy).json", data, 0644))

	found, err := c.DetectSyncConflicts()
	require.NoError(t, err)
	require.Equal(t, []string{"document (conflicted copy).json"}, found)

	merged, err := c.ResolveSyncConflict(found[0], persist.StrategyMerge)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"mine", "theirs"}, merged.Pages)

	found, err = c.DetectSyncConflicts()
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestClientMergeDocuments(t *testing.T) {
	c, _ := newTestClient(t)

	local := models.NewDocument("a")
	local.Pages = []string{"A", "B"}
	local.Bookmarks = []bool{true, false}

	remote := models.NewDocument("b")
	remote.Pages = []string{"B", "C"}
	remote.Bookmarks = []bool{false, false}
	remote.LastModified = local.LastModified.Add(time.Minute)

	merged := c.MergeDocuments(local, remote)
	assert.Equal(t, []string{"A", "B", "C"}, merged.Pages)
	assert.Equal(t, []bool{true, false, false}, merged.Bookmarks)
}

func TestClientMergeFromFile(t *testing.T) {
	t.Run("merges into current document", func(t *testing.T) {
		c, _ := newTestClient(t)

		doc := models.NewDocument(c.DeviceID())
		doc.Pages = []string{"A", "B"}
		doc.Bookmarks = []bool{true, false}
		require.NoError(t, c.Save(doc))

		other := models.NewDocument("device-other")
		other.Pages = []string{"B", "C"}
		other.LastModified = time.Now().Add(-time.Minute)
		data, err := json.Marshal(other)
		require.NoError(t, err)

		src := filepath.Join(t.TempDir(), "other.json")
		require.NoError(t, os.WriteFile(src, data, 0644))

		merged, err := c.MergeFromFile(src)
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "B", "C"}, merged.Pages)
		assert.Equal(t, []bool{true, false, false}, merged.Bookmarks)

		// The merge was persisted.
		loaded, err := c.Load()
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "B", "C"}, loaded.Pages)
	})

	t.Run("adopts file when no current document", func(t *testing.T) {
		c, _ := newTestClient(t)

		src := filepath.Join(t.TempDir(), "legacy.json")
		require.NoError(t, os.WriteFile(src, []byte(`{"pages":["only copy"]}`), 0644))

		merged, err := c.MergeFromFile(src)
		require.NoError(t, err)
		assert.Equal(t, []string{"only copy"}, merged.Pages)
		assert.Equal(t, models.CurrentSchemaVersion, merged.SchemaVersion)
	})

	t.Run("missing file", func(t *testing.T) {
		c, _ := newTestClient(t)

		_, err := c.MergeFromFile(filepath.Join(t.TempDir(), "nope.json"))
		assert.Error(t, err)
	})
}

func TestClientMigration(t *testing.T) {
	c, blob := newTestClient(t)

	migrated, err := c.CheckAndMigrate()
	require.NoError(t, err)
	assert.False(t, migrated)

	require.NoError(t, blob.Write("document.json", []byte(`{"pages":["legacy"]}`), 0644))

	migrated, err = c.CheckAndMigrate()
	require.NoError(t, err)
	assert.True(t, migrated)

	doc, err := c.Load()
	require.NoError(t, err)
	assert.Equal(t, models.CurrentSchemaVersion, doc.SchemaVersion)

	// Force re-runs the check even though the flag is set; a canonical
	// document needs no migration.
	migrated, err = c.ForceMigration()
	require.NoError(t, err)
	assert.False(t, migrated)

	require.NoError(t, c.ResetMigrationState())
}

func TestClientWatcherSuppression(t *testing.T) {
	c, _ := newTestClient(t)

	c.SetWatcherSuppressed(true)
	assert.True(t, c.Watcher.Suppressed())
	c.SetWatcherSuppressed(false)
	assert.False(t, c.Watcher.Suppressed())
}
