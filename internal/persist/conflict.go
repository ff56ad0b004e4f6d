package persist

import (
	"fmt"
	"sync"
	"time"

	"github.com/notesafe/notesafe/internal/events"
	"github.com/notesafe/notesafe/internal/models"
	"github.com/notesafe/notesafe/internal/storage"
)

// Policy selects how save-time conflicts are handled.
type Policy string

const (
	// PolicyManual fails the save and leaves resolution to the caller.
	PolicyManual Policy = "manual"

	// PolicyTimestamp compares lastModified stamps and lets the newer
	// document win.
	PolicyTimestamp Policy = "timestamp"
)

// ConflictDetector compares the document file's modification time against
// the watermark this process last observed, to decide whether a write
// would clobber an external change. Optimistic and best-effort; it is not
// a lock.
type ConflictDetector struct {
	store   storage.BlobStore
	docFile string
	policy  Policy
	logger  *events.Logger

	mu               sync.Mutex
	lastKnownModTime time.Time
}

// NewConflictDetector creates a detector for the given document file.
func NewConflictDetector(store storage.BlobStore, docFile string, policy Policy, logger *events.Logger) *ConflictDetector {
	return &ConflictDetector{
		store:   store,
		docFile: docFile,
		policy:  policy,
		logger:  logger.WithField("component", "conflict_detector"),
	}
}

// Watermark returns the last observed modification time. Zero when the
// file has never been observed by this process.
func (d *ConflictDetector) Watermark() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastKnownModTime
}

// SetWatermark records a newly observed modification time.
func (d *ConflictDetector) SetWatermark(t time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastKnownModTime = t
}

// Check decides whether writing doc would clobber an external change.
// Returns nil when the save may proceed.
func (d *ConflictDetector) Check(doc *models.NotesDocument) error {
	watermark := d.Watermark()
	if watermark.IsZero() {
		// Never observed the file; nothing to compare against.
		return nil
	}

	exists, err := d.store.Exists(d.docFile)
	if err != nil {
		return fmt.Errorf("check document file: %w", err)
	}
	if !exists {
		// A missing file is not a conflict.
		return nil
	}

	info, err := d.store.Stat(d.docFile)
	if err != nil {
		return fmt.Errorf("stat document file: %w", err)
	}

	if !info.ModTime.After(watermark) {
		return nil
	}

	d.logger.WithFields(map[string]interface{}{
		"file_mod_time": info.ModTime.UnixMilli(),
		"last_known":    watermark.UnixMilli(),
		"policy":        string(d.policy),
	}).Warn("External modification detected")

	if d.policy == PolicyTimestamp {
		return d.resolveByTimestamp(doc, info, watermark)
	}

	return &models.ConflictError{
		FileModTime:   info.ModTime.UnixMilli(),
		LastKnownTime: watermark.UnixMilli(),
		Err:           models.ErrConflictDetected,
	}
}

// resolveByTimestamp loads the external document and compares stamps. The
// caller's version is authoritative unless the external one is strictly
// newer.
func (d *ConflictDetector) resolveByTimestamp(doc *models.NotesDocument, info storage.FileInfo, watermark time.Time) error {
	data, err := d.store.Read(d.docFile)
	if err != nil {
		return fmt.Errorf("read external document: %w", err)
	}

	external, legacy, err := DecodeDocument(data)
	if err != nil {
		// Unparseable external content; surface as a plain conflict.
		return &models.ConflictError{
			FileModTime:   info.ModTime.UnixMilli(),
			LastKnownTime: watermark.UnixMilli(),
			Err:           models.ErrConflictDetected,
		}
	}

	var externalModified time.Time
	if external != nil {
		externalModified = external.LastModified
	} else if legacy != nil {
		// Legacy documents carry no lastModified; the local version wins.
		externalModified = time.Time{}
	}

	if externalModified.After(doc.LastModified) {
		return &models.ConflictError{
			FileModTime:   info.ModTime.UnixMilli(),
			LastKnownTime: watermark.UnixMilli(),
			Err:           models.ErrConflictExternalNewer,
		}
	}

	d.logger.Info("Local document is authoritative, proceeding with save")
	return nil
}
