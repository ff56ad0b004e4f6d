package persist

import (
	"encoding/json"
	"time"

	"github.com/notesafe/notesafe/internal/events"
	"github.com/notesafe/notesafe/internal/models"
	"github.com/notesafe/notesafe/internal/state"
)

// DecodeDocument parses a persisted payload as one of the known document
// shapes, tried in order: canonical (schemaVersion 2), then legacy
// (pages present, schemaVersion absent or 1). Exactly one of doc, legacy
// is non-nil on success.
func DecodeDocument(data []byte) (doc *models.NotesDocument, legacy *models.LegacyDocument, err error) {
	var probe struct {
		SchemaVersion *int            `json:"schemaVersion"`
		Pages         json.RawMessage `json:"pages"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, nil, &models.ValidationError{Field: "document", Reason: "not a JSON object"}
	}

	if probe.SchemaVersion != nil && *probe.SchemaVersion == models.CurrentSchemaVersion {
		var d models.NotesDocument
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, nil, &models.ValidationError{Field: "document", Reason: "malformed canonical document"}
		}
		if err := d.Validate(); err != nil {
			return nil, nil, err
		}
		return &d, nil, nil
	}

	if probe.Pages != nil && (probe.SchemaVersion == nil || *probe.SchemaVersion == 1) {
		var l models.LegacyDocument
		if err := json.Unmarshal(data, &l); err != nil {
			return nil, nil, &models.ValidationError{Field: "document", Reason: "malformed legacy document"}
		}
		if l.Pages == nil {
			return nil, nil, &models.ValidationError{Field: "pages", Reason: "missing"}
		}
		return nil, &l, nil
	}

	return nil, nil, &models.ValidationError{Field: "schemaVersion", Reason: "unrecognized document shape"}
}

// MigrateLegacy transforms a legacy document into the canonical schema.
// Pure: the legacy input is not modified.
func MigrateLegacy(legacy *models.LegacyDocument, deviceID string, now time.Time) *models.NotesDocument {
	pages := make([]string, len(legacy.Pages))
	copy(pages, legacy.Pages)

	uiState := legacy.UIState
	switch uiState {
	case models.UIStateEditing, models.UIStateRendering:
	default:
		uiState = models.UIStateEditing
	}

	currentPage := legacy.CurrentPageIndex
	if currentPage < 0 || currentPage >= len(pages) {
		currentPage = 0
	}

	return &models.NotesDocument{
		SchemaVersion:    models.CurrentSchemaVersion,
		LastModified:     now,
		DeviceID:         deviceID,
		UIState:          uiState,
		CurrentPageIndex: currentPage,
		Pages:            pages,
		Bookmarks:        make([]bool, len(pages)),
		Metadata: models.Metadata{
			TotalPages: len(pages),
			CreatedAt:  now,
			SyncStatus: models.SyncStatusPending,
		},
	}
}

// Migrator upgrades legacy on-disk documents to the canonical schema. A
// process-wide flag in the state store records that the on-disk file has
// already been snapshotted and migrated once.
type Migrator struct {
	backups *BackupManager
	kv      state.Store
	docFile string
	logger  *events.Logger
}

// NewMigrator creates a migrator.
func NewMigrator(backups *BackupManager, kv state.Store, docFile string, logger *events.Logger) *Migrator {
	return &Migrator{
		backups: backups,
		kv:      kv,
		docFile: docFile,
		logger:  logger.WithField("component", "migrator"),
	}
}

// Completed reports whether migration has already run for this
// installation.
func (m *Migrator) Completed() bool {
	v, ok := m.kv.Get(state.MigrationCompletedKey)
	return ok && v == "true"
}

// Reset clears the migration-completed flag, for troubleshooting.
func (m *Migrator) Reset() error {
	return m.kv.Delete(state.MigrationCompletedKey)
}

// Migrate transforms a legacy document to canonical form. Before the
// first transformation it snapshots the original file bytes under a
// pre-migration name so the legacy content stays recoverable.
func (m *Migrator) Migrate(legacy *models.LegacyDocument, deviceID string) (*models.NotesDocument, error) {
	m.logger.WithField("pages", len(legacy.Pages)).Info("Migrating legacy document")

	if !m.Completed() {
		name := preMigrationPrefix + backupTimestamp(time.Now()) + ".json"
		if _, err := m.backups.BackupFileAs(m.docFile, name); err != nil {
			return nil, &models.MigrationError{Step: "backup", Err: err}
		}
	}

	doc := MigrateLegacy(legacy, deviceID, time.Now().UTC())

	if err := m.kv.Set(state.MigrationCompletedKey, "true"); err != nil {
		return nil, &models.MigrationError{Step: "record completion", Err: err}
	}

	m.logger.Info("Migration complete")
	return doc, nil
}
