package persist_test

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notesafe/notesafe/internal/events"
	"github.com/notesafe/notesafe/internal/models"
	"github.com/notesafe/notesafe/internal/persist"
)

func newMergeEngine() *persist.MergeEngine {
	return persist.NewMergeEngine("device-merge-test", events.NewTestLogger(events.ErrorLevel, "text", io.Discard))
}

func TestMergePageUnion(t *testing.T) {
	engine := newMergeEngine()

	local := sampleDoc("A", "B")
	local.LastModified = time.Now().Add(-time.Hour)

	remote := sampleDoc("B", "C")
	remote.LastModified = time.Now()
	remote.CurrentPageIndex = 1

	merged := engine.Merge(local, remote)

	assert.Equal(t, []string{"A", "B", "C"}, merged.Pages)
	assert.Len(t, merged.Bookmarks, 3)
	assert.Equal(t, 3, merged.Metadata.TotalPages)

	// Remote is newer, so its cursor and UI state carry over.
	assert.Equal(t, 1, merged.CurrentPageIndex)
	assert.Equal(t, remote.UIState, merged.UIState)

	assert.Equal(t, "device-merge-test", merged.DeviceID)
	assert.Equal(t, models.SyncStatusSynced, merged.Metadata.SyncStatus)
}

func TestMergeBookmarkUnion(t *testing.T) {
	engine := newMergeEngine()

	local := sampleDoc("A", "B")
	local.Bookmarks = []bool{true, false}

	remote := sampleDoc("B", "C")
	remote.Bookmarks = []bool{true, false}

	merged := engine.Merge(local, remote)

	// "A" marked locally, "B" marked remotely, "C" marked nowhere.
	require.Equal(t, []string{"A", "B", "C"}, merged.Pages)
	assert.Equal(t, []bool{true, true, false}, merged.Bookmarks)
}

func TestMergeNewerSideWins(t *testing.T) {
	engine := newMergeEngine()

	local := sampleDoc("A", "B", "C")
	local.LastModified = time.Now()
	local.CurrentPageIndex = 2
	local.UIState = models.UIStateRendering

	remote := sampleDoc("A")
	remote.LastModified = time.Now().Add(-time.Hour)
	remote.UIState = models.UIStateEditing

	merged := engine.Merge(local, remote)

	assert.Equal(t, 2, merged.CurrentPageIndex)
	assert.Equal(t, models.UIStateRendering, merged.UIState)
}

func TestMergeClampsCursor(t *testing.T) {
	engine := newMergeEngine()

	local := sampleDoc("A")
	local.LastModified = time.Now()
	local.CurrentPageIndex = 9 // stale cursor

	remote := sampleDoc("A")
	remote.LastModified = time.Now().Add(-time.Hour)

	merged := engine.Merge(local, remote)
	assert.Equal(t, 0, merged.CurrentPageIndex)
}

func TestMergeIdempotent(t *testing.T) {
	engine := newMergeEngine()

	doc := sampleDoc("A", "B")
	doc.Bookmarks = []bool{false, true}

	merged := engine.Merge(doc, doc)

	assert.Equal(t, doc.Pages, merged.Pages)
	assert.Equal(t, doc.Bookmarks, merged.Bookmarks)
	assert.Equal(t, doc.CurrentPageIndex, merged.CurrentPageIndex)
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	engine := newMergeEngine()

	local := sampleDoc("A")
	local.Bookmarks = []bool{true}
	remote := sampleDoc("B")

	merged := engine.Merge(local, remote)
	merged.Pages[0] = "mutated"
	merged.Bookmarks[0] = false

	assert.Equal(t, []string{"A"}, local.Pages)
	assert.Equal(t, []bool{true}, local.Bookmarks)
	assert.Equal(t, []string{"B"}, remote.Pages)
}

func TestMergeSchemaVersionMax(t *testing.T) {
	engine := newMergeEngine()

	local := sampleDoc("A")
	local.SchemaVersion = 2
	remote := sampleDoc("B")
	remote.SchemaVersion = 3

	merged := engine.Merge(local, remote)
	assert.Equal(t, 3, merged.SchemaVersion)
}

func TestMergeDuplicatePagesWithinOneSide(t *testing.T) {
	engine := newMergeEngine()

	local := sampleDoc("A", "A", "B")
	remote := sampleDoc("B")

	merged := engine.Merge(local, remote)
	assert.Equal(t, []string{"A", "B"}, merged.Pages)
}

func TestMergeCreatedAtFallsBackToRemote(t *testing.T) {
	engine := newMergeEngine()

	local := sampleDoc("A")
	local.Metadata.CreatedAt = time.Time{}

	remote := sampleDoc("B")
	created := time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC)
	remote.Metadata.CreatedAt = created

	merged := engine.Merge(local, remote)
	assert.Equal(t, created, merged.Metadata.CreatedAt)
}
