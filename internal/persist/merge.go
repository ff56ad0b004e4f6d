package persist

import (
	"time"

	"github.com/notesafe/notesafe/internal/events"
	"github.com/notesafe/notesafe/internal/models"
)

// MergeEngine combines two divergent documents into one: pages are
// unioned by exact content, bookmarks are OR'd across sources, and
// cursor/UI state follows the newer side.
type MergeEngine struct {
	deviceID string
	logger   *events.Logger
}

// NewMergeEngine creates a merge engine stamping merged documents with
// the local device id.
func NewMergeEngine(deviceID string, logger *events.Logger) *MergeEngine {
	return &MergeEngine{
		deviceID: deviceID,
		logger:   logger.WithField("component", "merge"),
	}
}

// Merge produces a new document from local and remote without mutating
// either input. Deterministic for a given pair of inputs apart from the
// lastModified stamp.
func (e *MergeEngine) Merge(local, remote *models.NotesDocument) *models.NotesDocument {
	// Page union: first occurrence of each exact page string wins,
	// local pages before remote pages.
	mergedPages := make([]string, 0, len(local.Pages)+len(remote.Pages))
	pageIndex := make(map[string]int, len(local.Pages)+len(remote.Pages))

	for _, page := range local.Pages {
		if _, seen := pageIndex[page]; seen {
			continue
		}
		pageIndex[page] = len(mergedPages)
		mergedPages = append(mergedPages, page)
	}
	for _, page := range remote.Pages {
		if _, seen := pageIndex[page]; seen {
			continue
		}
		pageIndex[page] = len(mergedPages)
		mergedPages = append(mergedPages, page)
	}

	// UI state and cursor follow the newer side.
	newer := local
	if remote.LastModified.After(local.LastModified) {
		newer = remote
	}

	currentPage := newer.CurrentPageIndex
	if len(mergedPages) == 0 {
		currentPage = 0
	} else if currentPage < 0 {
		currentPage = 0
	} else if currentPage >= len(mergedPages) {
		currentPage = len(mergedPages) - 1
	}

	// A page bookmarked in either input stays bookmarked.
	bookmarks := make([]bool, len(mergedPages))
	for _, src := range []*models.NotesDocument{local, remote} {
		for i, marked := range src.Bookmarks {
			if !marked || i >= len(src.Pages) {
				continue
			}
			if idx, ok := pageIndex[src.Pages[i]]; ok {
				bookmarks[idx] = true
			}
		}
	}

	schemaVersion := local.SchemaVersion
	if remote.SchemaVersion > schemaVersion {
		schemaVersion = remote.SchemaVersion
	}

	createdAt := local.Metadata.CreatedAt
	if createdAt.IsZero() {
		createdAt = remote.Metadata.CreatedAt
	}

	merged := &models.NotesDocument{
		SchemaVersion:    schemaVersion,
		LastModified:     time.Now().UTC(),
		DeviceID:         e.deviceID,
		UIState:          newer.UIState,
		CurrentPageIndex: currentPage,
		Pages:            mergedPages,
		Bookmarks:        bookmarks,
		Metadata: models.Metadata{
			TotalPages: len(mergedPages),
			CreatedAt:  createdAt,
			SyncStatus: models.SyncStatusSynced,
		},
	}

	e.logger.WithFields(map[string]interface{}{
		"local_pages":  len(local.Pages),
		"remote_pages": len(remote.Pages),
		"merged_pages": len(mergedPages),
	}).Info("Merged documents")

	return merged
}
