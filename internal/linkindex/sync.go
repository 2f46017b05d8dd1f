package linkindex

import (
	"log/slog"
	"time"

	"github.com/oodleworks/oodles/internal/oodle"
	"github.com/oodleworks/oodles/internal/storage"
)

// Sync walks the oodle directory and brings the index up to date:
//   - new/changed files are parsed and upserted
//   - files removed from disk are deleted from the index
//
// Malformed files are logged and left out of the index; they must not stop
// the rest of the collection from being indexed.
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	metas, err := store.List()
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("file", m.Path), slog.String("error", err.Error()))
			continue
		}
		if err := indexFile(db, m.Path, data, m.Checksum); err != nil {
			logger.Warn("sync: index failed", slog.String("file", m.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("file", m.Path))
		}
	}

	// Remove stale entries.
	for f := range checksums {
		if _, ok := disk[f]; !ok {
			if err := db.DeleteDocument(f); err != nil {
				logger.Warn("sync: delete failed", slog.String("file", f), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("file", f))
			}
		}
	}

	return nil
}

// indexFile parses data as an oodle document and upserts it.
func indexFile(db *DB, file string, data []byte, cs string) error {
	doc, err := oodle.ParseOodle(string(data))
	if err != nil {
		return err
	}
	doc.File = file
	return db.upsert(OodleRow{
		File:      file,
		OodleID:   doc.ID,
		Title:     doc.Name,
		Checksum:  cs,
		UpdatedAt: time.Now(),
	}, LinksOf(doc))
}
