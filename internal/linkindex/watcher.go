package linkindex

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/oodleworks/oodles/internal/checksum"
	"github.com/oodleworks/oodles/internal/storage"
)

// Reloader receives watcher-driven changes so the in-memory collection can
// follow edits made outside the process. Implemented by the collection.
type Reloader interface {
	ReplaceFromDisk(file string) error
	Remove(file string)
}

// EventCallback is called after a watcher-driven change.
// kind is one of "created", "updated", "deleted".
type EventCallback func(kind string, file string)

// Watch starts an fsnotify watcher on the oodle directory and processes
// file change events until ctx is cancelled: hand edits are reparsed into
// the collection and the index, deletions are removed from both. Saves made
// through the collection land on disk with the checksum the index already
// holds, so the watcher ignores them. Rename events trigger a debounced
// reconciliation pass against the index checksums.
func Watch(ctx context.Context, db *DB, store storage.Provider, rel Reloader, root string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(200 * time.Millisecond)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			reconcile(db, store, rel, logger, cb)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			if !strings.HasSuffix(ev.Name, storage.Ext) {
				continue
			}
			file, relErr := filepath.Rel(root, ev.Name)
			if relErr != nil {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				data, readErr := store.Read(file)
				if readErr != nil {
					logger.Warn("watcher: read failed", slog.String("file", file), slog.String("error", readErr.Error()))
					continue
				}
				cs := checksum.Sum(data)
				if stored, _ := db.GetChecksum(file); stored == cs {
					// Our own save, already indexed.
					continue
				}
				if idxErr := indexFile(db, file, data, cs); idxErr != nil {
					logger.Warn("watcher: index failed", slog.String("file", file), slog.String("error", idxErr.Error()))
					continue
				}
				if rel != nil {
					if loadErr := rel.ReplaceFromDisk(file); loadErr != nil {
						logger.Warn("watcher: reload failed", slog.String("file", file), slog.String("error", loadErr.Error()))
						continue
					}
				}
				kind := "updated"
				if ev.Op&fsnotify.Create != 0 {
					kind = "created"
				}
				logger.Debug("watcher: reloaded", slog.String("file", file), slog.String("op", kind))
				if cb != nil {
					cb(kind, file)
				}

			case ev.Op&fsnotify.Remove != 0:
				if delErr := db.DeleteDocument(file); delErr != nil {
					logger.Warn("watcher: delete failed", slog.String("file", file), slog.String("error", delErr.Error()))
					continue
				}
				if rel != nil {
					rel.Remove(file)
				}
				logger.Debug("watcher: deleted", slog.String("file", file))
				if cb != nil {
					cb("deleted", file)
				}

			case ev.Op&fsnotify.Rename != 0:
				// fsnotify fires Rename on the OLD path only; the new path
				// arrives as a separate Create event. Drop the old entry now
				// and schedule a reconciliation pass for stragglers.
				if delErr := db.DeleteDocument(file); delErr == nil {
					if rel != nil {
						rel.Remove(file)
					}
					logger.Debug("watcher: rename old deleted", slog.String("file", file))
					if cb != nil {
						cb("deleted", file)
					}
				}
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reconcile compares index checksums against disk: index entries without a
// backing file are dropped, files missing or changed in the index are
// reparsed and reloaded.
func reconcile(db *DB, store storage.Provider, rel Reloader, logger *slog.Logger, cb EventCallback) {
	checksums, err := db.AllChecksums()
	if err != nil {
		logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}

	metas, err := store.List()
	if err != nil {
		logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]string, len(metas))
	for _, m := range metas {
		disk[m.Path] = m.Checksum
	}

	for f := range checksums {
		if _, ok := disk[f]; !ok {
			if delErr := db.DeleteDocument(f); delErr == nil {
				if rel != nil {
					rel.Remove(f)
				}
				logger.Debug("reconcile: removed stale", slog.String("file", f))
				if cb != nil {
					cb("deleted", f)
				}
			}
		}
	}

	for f, cs := range disk {
		if checksums[f] == cs {
			continue
		}
		data, readErr := store.Read(f)
		if readErr != nil {
			continue
		}
		if idxErr := indexFile(db, f, data, cs); idxErr != nil {
			continue
		}
		if rel != nil {
			_ = rel.ReplaceFromDisk(f)
		}
		logger.Debug("reconcile: reloaded", slog.String("file", f))
		if cb != nil {
			cb("created", f)
		}
	}
}
