package persist_test

import (
	"encoding/json"
	"path"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notesafe/notesafe/internal/models"
	"github.com/notesafe/notesafe/internal/persist"
)

func TestDecodeDocument(t *testing.T) {
	t.Run("canonical", func(t *testing.T) {
		data, err := json.Marshal(sampleDoc("a", "b"))
		require.NoError(t, err)

		doc, legacy, err := persist.DecodeDocument(data)
		require.NoError(t, err)
		require.NotNil(t, doc)
		assert.Nil(t, legacy)
		assert.Equal(t, []string{"a", "b"}, doc.Pages)
	})

	t.Run("legacy without version", func(t *testing.T) {
		doc, legacy, err := persist.DecodeDocument([]byte(`{"pages":["old"],"currentPageIndex":0,"uiState":"editing"}`))
		require.NoError(t, err)
		assert.Nil(t, doc)
		require.NotNil(t, legacy)
		assert.Equal(t, []string{"old"}, legacy.Pages)
	})

	t.Run("legacy version one", func(t *testing.T) {
		_, legacy, err := persist.DecodeDocument([]byte(`{"schemaVersion":1,"pages":["old"]}`))
		require.NoError(t, err)
		require.NotNil(t, legacy)
	})

	t.Run("unknown version", func(t *testing.T) {
		_, _, err := persist.DecodeDocument([]byte(`{"schemaVersion":99,"pages":["x"]}`))
		var verr *models.ValidationError
		assert.ErrorAs(t, err, &verr)
	})

	t.Run("not json", func(t *testing.T) {
		_, _, err := persist.DecodeDocument([]byte(`not json at all`))
		var verr *models.ValidationError
		assert.ErrorAs(t, err, &verr)
	})

	t.Run("missing pages", func(t *testing.T) {
		_, _, err := persist.DecodeDocument([]byte(`{"uiState":"editing"}`))
		var verr *models.ValidationError
		assert.ErrorAs(t, err, &verr)
	})

	t.Run("canonical with invalid field", func(t *testing.T) {
		doc := sampleDoc("a")
		doc.UIState = "weird"
		data, err := json.Marshal(doc)
		require.NoError(t, err)

		_, _, err = persist.DecodeDocument(data)
		var verr *models.ValidationError
		assert.ErrorAs(t, err, &verr)
	})
}

func TestMigrateLegacy(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("fields", func(t *testing.T) {
		legacy := &models.LegacyDocument{
			Pages:            []string{"one", "two"},
			CurrentPageIndex: 1,
			UIState:          models.UIStateRendering,
		}

		doc := persist.MigrateLegacy(legacy, "device-test", now)

		assert.Equal(t, models.CurrentSchemaVersion, doc.SchemaVersion)
		assert.Equal(t, []string{"one", "two"}, doc.Pages)
		assert.Equal(t, []bool{false, false}, doc.Bookmarks)
		assert.Equal(t, 1, doc.CurrentPageIndex)
		assert.Equal(t, models.UIStateRendering, doc.UIState)
		assert.Equal(t, "device-test", doc.DeviceID)
		assert.Equal(t, now, doc.LastModified)
		assert.Equal(t, 2, doc.Metadata.TotalPages)
		assert.Equal(t, now, doc.Metadata.CreatedAt)
		assert.Equal(t, models.SyncStatusPending, doc.Metadata.SyncStatus)
	})

	t.Run("clamps bad values", func(t *testing.T) {
		legacy := &models.LegacyDocument{
			Pages:            []string{"only"},
			CurrentPageIndex: 5,
			UIState:          "bogus",
		}

		doc := persist.MigrateLegacy(legacy, "d", now)

		assert.Equal(t, 0, doc.CurrentPageIndex)
		assert.Equal(t, models.UIStateEditing, doc.UIState)
	})

	t.Run("does not alias input pages", func(t *testing.T) {
		legacy := &models.LegacyDocument{Pages: []string{"p"}}

		doc := persist.MigrateLegacy(legacy, "d", now)
		doc.Pages[0] = "changed"

		assert.Equal(t, "p", legacy.Pages[0])
	})
}

func TestMigratorSnapshotsOnce(t *testing.T) {
	env := newTestEnv(t, persist.PolicyManual, defaultBackupCfg())

	original := []byte(`{"pages":["legacy page"],"currentPageIndex":0}`)
	env.writeRaw(t, testDocFile, original)

	legacy := &models.LegacyDocument{Pages: []string{"legacy page"}}

	migrator := persist.NewMigrator(env.backups, env.kv, testDocFile, env.logger)
	assert.False(t, migrator.Completed())

	doc, err := migrator.Migrate(legacy, "device-x")
	require.NoError(t, err)
	assert.Equal(t, models.CurrentSchemaVersion, doc.SchemaVersion)
	assert.True(t, migrator.Completed())

	// Exactly one pre-migration snapshot with the original bytes.
	snapshots := listPreMigrationBackups(t, env)
	require.Len(t, snapshots, 1)

	data, err := env.blob.Read(snapshots[0])
	require.NoError(t, err)
	assert.Equal(t, original, data)

	// A second migration does not snapshot again.
	time.Sleep(10 * time.Millisecond)
	_, err = migrator.Migrate(legacy, "device-x")
	require.NoError(t, err)
	assert.Len(t, listPreMigrationBackups(t, env), 1)

	// Reset re-arms the snapshot.
	require.NoError(t, migrator.Reset())
	assert.False(t, migrator.Completed())

	time.Sleep(10 * time.Millisecond)
	_, err = migrator.Migrate(legacy, "device-x")
	require.NoError(t, err)
	assert.Len(t, listPreMigrationBackups(t, env), 2)
}

func TestLoadMigratesLegacyDocument(t *testing.T) {
	env := newTestEnv(t, persist.PolicyManual, defaultBackupCfg())

	original := []byte(`{"pages":["# Old note"],"currentPageIndex":0,"uiState":"editing"}`)
	env.writeRaw(t, testDocFile, original)

	doc, err := env.store.Load()
	require.NoError(t, err)
	require.NotNil(t, doc)

	assert.Equal(t, models.CurrentSchemaVersion, doc.SchemaVersion)
	assert.Equal(t, []string{"# Old note"}, doc.Pages)
	assert.Equal(t, []bool{false}, doc.Bookmarks)
	assert.NotEmpty(t, doc.DeviceID)

	// The migrated form was persisted: a reload decodes as canonical.
	data, err := env.blob.Read(testDocFile)
	require.NoError(t, err)
	reloaded, legacy, err := persist.DecodeDocument(data)
	require.NoError(t, err)
	assert.Nil(t, legacy)
	assert.Equal(t, doc.Pages, reloaded.Pages)

	// Original bytes survived as a pre-migration snapshot.
	snapshots := listPreMigrationBackups(t, env)
	require.Len(t, snapshots, 1)
	snap, err := env.blob.Read(snapshots[0])
	require.NoError(t, err)
	assert.Equal(t, original, snap)
}

func TestLoadMigrationBackupFailureKeepsLegacyFile(t *testing.T) {
	env := newTestEnv(t, persist.PolicyManual, defaultBackupCfg())

	original := []byte(`{"pages":["precious legacy page"],"currentPageIndex":0}`)
	env.writeRaw(t, testDocFile, original)

	// Occupy the backup directory path with a regular file so every
	// snapshot copy fails.
	env.writeRaw(t, testBackupDir, []byte("not a directory"))

	_, err := env.store.Load()
	var merr *models.MigrationError
	require.ErrorAs(t, err, &merr)

	// The legacy file is the only copy of the user's pages; it must
	// survive the failed migration byte for byte.
	data, readErr := env.blob.Read(testDocFile)
	require.NoError(t, readErr)
	assert.Equal(t, original, data)
}

func TestCheckAndMigrate(t *testing.T) {
	t.Run("legacy file", func(t *testing.T) {
		env := newTestEnv(t, persist.PolicyManual, defaultBackupCfg())
		env.writeRaw(t, testDocFile, []byte(`{"pages":["a"]}`))

		migrated, err := env.store.CheckAndMigrate()
		require.NoError(t, err)
		assert.True(t, migrated)
	})

	t.Run("canonical file", func(t *testing.T) {
		env := newTestEnv(t, persist.PolicyManual, defaultBackupCfg())
		require.NoError(t, env.store.Save(sampleDoc("a"), persist.SaveOptions{}))

		migrated, err := env.store.CheckAndMigrate()
		require.NoError(t, err)
		assert.False(t, migrated)
	})

	t.Run("no file", func(t *testing.T) {
		env := newTestEnv(t, persist.PolicyManual, defaultBackupCfg())

		migrated, err := env.store.CheckAndMigrate()
		require.NoError(t, err)
		assert.False(t, migrated)
	})
}

func listPreMigrationBackups(t *testing.T, env *testEnv) []string {
	t.Helper()

	entries, err := env.blob.ListDir(testBackupDir)
	require.NoError(t, err)

	var out []string
	for _, e := range entries {
		if strings.HasPrefix(path.Base(e.Path), "pre-migration-") {
			out = append(out, e.Path)
		}
	}
	return out
}
