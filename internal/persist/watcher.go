package persist

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/notesafe/notesafe/internal/events"
	"github.com/notesafe/notesafe/internal/storage"
)

// WatchEventType classifies watcher notifications.
type WatchEventType string

const (
	WatchEventChanged WatchEventType = "changed"
	WatchEventDeleted WatchEventType = "deleted"
)

// WatchEvent describes an external change to the document file.
type WatchEvent struct {
	Type    WatchEventType
	Path    string
	ModTime time.Time
}

// ChangeHandler receives external-change notifications.
type ChangeHandler func(event WatchEvent)

// Watcher observes the document path for external filesystem events. It
// shares the conflict detector's watermark: a write event only notifies
// when the file's modification time exceeds the watermark, so the
// store's own saves (which advance the watermark) stay silent. A
// suppression flag mutes events during internal operations.
type Watcher struct {
	store    storage.BlobStore
	detector *ConflictDetector
	docFile  string
	handler  ChangeHandler
	logger   *events.Logger

	suppressed atomic.Bool
}

// NewWatcher creates a watcher for the document file.
func NewWatcher(store storage.BlobStore, detector *ConflictDetector, docFile string, handler ChangeHandler, logger *events.Logger) *Watcher {
	return &Watcher{
		store:    store,
		detector: detector,
		docFile:  docFile,
		handler:  handler,
		logger:   logger.WithField("component", "watcher"),
	}
}

// SetSuppressed toggles event suppression. Callers set it around
// internal writes such as migration.
func (w *Watcher) SetSuppressed(suppressed bool) {
	w.suppressed.Store(suppressed)
	w.logger.WithField("suppressed", suppressed).Debug("Watcher suppression changed")
}

// Suppressed reports the current suppression flag.
func (w *Watcher) Suppressed() bool {
	return w.suppressed.Load()
}

// Watch runs the fsnotify loop until ctx is cancelled. The storage
// directory is watched rather than the file itself so the watch survives
// sync tools that replace the file via rename.
func (w *Watcher) Watch(ctx context.Context) error {
	absDoc, err := w.store.AbsPath(w.docFile)
	if err != nil {
		return fmt.Errorf("resolve document path: %w", err)
	}
	watchDir := filepath.Dir(absDoc)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(watchDir); err != nil {
		return fmt.Errorf("watch %s: %w", watchDir, err)
	}

	logger := w.logger
	if p := events.GetDocumentPath(ctx); p != "" {
		logger = logger.WithField("document", p)
	}
	logger.WithField("dir", watchDir).Info("Watching document directory")

	for {
		select {
		case <-ctx.Done():
			logger.Info("Watcher stopped")
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != filepath.Base(absDoc) {
				continue
			}
			w.handleEvent(ev, logger)

		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.WithError(watchErr).Error("Watcher error")
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event, logger *events.Logger) {
	if w.suppressed.Load() {
		logger.WithField("op", ev.Op.String()).Debug("Event suppressed")
		return
	}

	switch {
	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		// Deletions always notify; there is no mtime left to compare.
		logger.Warn("Document file removed externally")
		w.notify(WatchEvent{Type: WatchEventDeleted, Path: w.docFile})

	case ev.Op&(fsnotify.Write|fsnotify.Create) != 0:
		info, err := w.store.Stat(w.docFile)
		if err != nil {
			logger.WithError(err).Debug("Stat after change event failed")
			return
		}

		if !info.ModTime.After(w.detector.Watermark()) {
			return
		}

		w.detector.SetWatermark(info.ModTime)
		logger.WithField("mod_time", info.ModTime.UnixMilli()).Info("External document change")
		w.notify(WatchEvent{
			Type:    WatchEventChanged,
			Path:    w.docFile,
			ModTime: info.ModTime,
		})
	}
}

func (w *Watcher) notify(event WatchEvent) {
	if w.handler != nil {
		w.handler(event)
	}
}
