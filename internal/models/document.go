package models

import (
	"time"
)

// CurrentSchemaVersion is the canonical document schema version.
const CurrentSchemaVersion = 2

// UIState describes the editor mode the document was last left in. The
// persistence engine passes it through unchanged.
type UIState string

const (
	UIStateEditing   UIState = "editing"
	UIStateRendering UIState = "rendering"
)

// SyncStatus describes how the document relates to its synced copies.
type SyncStatus string

const (
	SyncStatusSynced   SyncStatus = "synced"
	SyncStatusPending  SyncStatus = "pending"
	SyncStatusConflict SyncStatus = "conflict"
)

// Metadata carries bookkeeping fields persisted alongside the pages.
type Metadata struct {
	TotalPages int        `json:"totalPages"`
	CreatedAt  time.Time  `json:"createdAt"`
	SyncStatus SyncStatus `json:"syncStatus"`

	// FileModTime is the on-disk modification time in epoch milliseconds,
	// populated in memory after a load. Optional on disk.
	FileModTime *int64 `json:"fileModTime,omitempty"`
}

// NotesDocument is the persisted unit: an ordered set of markdown pages
// with per-page bookmarks. JSON tags are camelCase to match the on-disk
// format shared with other writers of the document file.
type NotesDocument struct {
	SchemaVersion    int       `json:"schemaVersion"`
	LastModified     time.Time `json:"lastModified"`
	DeviceID         string    `json:"deviceId"`
	UIState          UIState   `json:"uiState"`
	CurrentPageIndex int       `json:"currentPageIndex"`
	Pages            []string  `json:"pages"`
	Bookmarks        []bool    `json:"bookmarks"`
	Metadata         Metadata  `json:"metadata"`
}

// LegacyDocument is the pre-versioning document shape: no bookmarks,
// no metadata, no device identity. Read-only input to migration.
type LegacyDocument struct {
	SchemaVersion    *int     `json:"schemaVersion,omitempty"`
	UIState          UIState  `json:"uiState"`
	CurrentPageIndex int      `json:"currentPageIndex"`
	Pages            []string `json:"pages"`
}

// NewDocument creates a canonical empty document with one blank page.
func NewDocument(deviceID string) *NotesDocument {
	now := time.Now().UTC()

	return &NotesDocument{
		SchemaVersion:    CurrentSchemaVersion,
		LastModified:     now,
		DeviceID:         deviceID,
		UIState:          UIStateEditing,
		CurrentPageIndex: 0,
		Pages:            []string{""},
		Bookmarks:        []bool{false},
		Metadata: Metadata{
			TotalPages: 1,
			CreatedAt:  now,
			SyncStatus: SyncStatusPending,
		},
	}
}

// Validate checks the canonical schema. Bookmark length is deliberately
// not validated here; the store self-heals a mismatch on load.
func (d *NotesDocument) Validate() error {
	if d.SchemaVersion != CurrentSchemaVersion {
		return &ValidationError{
			Field:  "schemaVersion",
			Reason: "unsupported schema version",
		}
	}

	switch d.UIState {
	case UIStateEditing, UIStateRendering:
	default:
		return &ValidationError{Field: "uiState", Reason: "unknown value"}
	}

	if d.Pages == nil {
		return &ValidationError{Field: "pages", Reason: "missing"}
	}

	if len(d.Pages) > 0 {
		if d.CurrentPageIndex < 0 || d.CurrentPageIndex >= len(d.Pages) {
			return &ValidationError{
				Field:  "currentPageIndex",
				Reason: "out of range",
			}
		}
	}

	switch d.Metadata.SyncStatus {
	case SyncStatusSynced, SyncStatusPending, SyncStatusConflict, "":
	default:
		return &ValidationError{Field: "metadata.syncStatus", Reason: "unknown value"}
	}

	return nil
}

// EnsureBookmarks resizes Bookmarks to match Pages, padding with false.
// Existing marks within range are kept. Returns true if the slice was
// rebuilt or resized.
func (d *NotesDocument) EnsureBookmarks() bool {
	if d.Bookmarks != nil && len(d.Bookmarks) == len(d.Pages) {
		return false
	}

	resized := make([]bool, len(d.Pages))
	copy(resized, d.Bookmarks)
	d.Bookmarks = resized
	return true
}

// RebuildBookmarks replaces a missing or length-mismatched bookmark list
// with an all-false list matching Pages. A mismatched list is stale, so
// no marks carry over. Returns true if the slice was replaced.
func (d *NotesDocument) RebuildBookmarks() bool {
	if d.Bookmarks != nil && len(d.Bookmarks) == len(d.Pages) {
		return false
	}

	d.Bookmarks = make([]bool, len(d.Pages))
	return true
}

// PageCount returns the number of pages.
func (d *NotesDocument) PageCount() int {
	return len(d.Pages)
}

// Clone creates a deep copy of the document.
func (d *NotesDocument) Clone() *NotesDocument {
	clone := *d

	clone.Pages = make([]string, len(d.Pages))
	copy(clone.Pages, d.Pages)

	clone.Bookmarks = make([]bool, len(d.Bookmarks))
	copy(clone.Bookmarks, d.Bookmarks)

	if d.Metadata.FileModTime != nil {
		mt := *d.Metadata.FileModTime
		clone.Metadata.FileModTime = &mt
	}

	return &clone
}
