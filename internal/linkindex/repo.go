package linkindex

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/oodleworks/oodles/internal/oodle"
)

// OodleRow represents one document's row in the oodles table.
type OodleRow struct {
	File      string
	OodleID   string
	Title     string
	Checksum  string
	UpdatedAt time.Time
}

// LinkRow is one directed citation edge. TargetMessage is nil when the
// source cites the target document as a whole.
type LinkRow struct {
	SourceID      string
	SourceMessage int
	TargetID      string
	TargetMessage *int
}

// LinksOf flattens a parsed document into its outbound link rows. Self
// references resolve to the document's own identifier.
func LinksOf(doc *oodle.Oodle) []LinkRow {
	var out []LinkRow
	for _, msg := range doc.Messages {
		for _, ref := range msg.References {
			row := LinkRow{SourceID: doc.ID, SourceMessage: msg.ID}
			switch ref.Kind {
			case oodle.RefDocument:
				row.TargetID = ref.OodleID
			case oodle.RefMessage:
				row.TargetID = ref.OodleID
				mid := ref.MessageID
				row.TargetMessage = &mid
			case oodle.RefSelf:
				row.TargetID = doc.ID
				mid := ref.MessageID
				row.TargetMessage = &mid
			}
			out = append(out, row)
		}
	}
	return out
}

// UpsertDocument inserts or replaces a document row together with its
// outbound links, in one transaction.
func (db *DB) UpsertDocument(doc *oodle.Oodle, cs string) error {
	return db.upsert(OodleRow{
		File:      doc.File,
		OodleID:   doc.ID,
		Title:     doc.Name,
		Checksum:  cs,
		UpdatedAt: time.Now(),
	}, LinksOf(doc))
}

func (db *DB) upsert(row OodleRow, links []LinkRow) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("linkindex: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	// A hand edit can change a file's identifier line; links keyed by the
	// old identifier would otherwise linger.
	var prevID string
	if err := tx.QueryRow(`SELECT oodle_id FROM oodles WHERE file = ?`, row.File).Scan(&prevID); err == nil && prevID != row.OodleID {
		_, _ = tx.Exec(`DELETE FROM links WHERE source_id = ?`, prevID)
	}

	_, err = tx.Exec(`
		INSERT INTO oodles (file, oodle_id, title, checksum, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(file) DO UPDATE SET
			oodle_id   = excluded.oodle_id,
			title      = excluded.title,
			checksum   = excluded.checksum,
			updated_at = excluded.updated_at
	`, row.File, row.OodleID, row.Title, row.Checksum, row.UpdatedAt)
	if err != nil {
		return fmt.Errorf("linkindex: upsert oodle: %w", err)
	}

	// Replace outbound links: delete old then bulk insert.
	_, _ = tx.Exec(`DELETE FROM links WHERE source_id = ?`, row.OodleID)
	if len(links) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO links (source_id, source_message, target_id, target_message) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("linkindex: prepare link insert: %w", err)
		}
		defer stmt.Close()
		for _, l := range links {
			var tm any
			if l.TargetMessage != nil {
				tm = *l.TargetMessage
			}
			if _, err := stmt.Exec(l.SourceID, l.SourceMessage, l.TargetID, tm); err != nil {
				return fmt.Errorf("linkindex: insert link: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeleteDocument removes a document row and its outbound links.
func (db *DB) DeleteDocument(file string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("linkindex: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var oodleID string
	if err := tx.QueryRow(`SELECT oodle_id FROM oodles WHERE file = ?`, file).Scan(&oodleID); err == nil {
		_, _ = tx.Exec(`DELETE FROM links WHERE source_id = ?`, oodleID)
	}
	_, _ = tx.Exec(`DELETE FROM oodles WHERE file = ?`, file)

	return tx.Commit()
}

// GetChecksum returns the stored checksum for a file, or empty string if
// the file is not indexed.
func (db *DB) GetChecksum(file string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM oodles WHERE file = ?`, file).Scan(&cs)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("linkindex: get checksum: %w", err)
	}
	return cs, nil
}

// AllChecksums returns file checksums for every indexed document.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT file, checksum FROM oodles`)
	if err != nil {
		return nil, fmt.Errorf("linkindex: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var f, cs string
		if err := rows.Scan(&f, &cs); err != nil {
			return nil, err
		}
		out[f] = cs
	}
	return out, rows.Err()
}

// DocumentBacklinks returns the locations of every message that cites the
// document targetID as a whole.
func (db *DB) DocumentBacklinks(targetID string) ([]oodle.Backlink, error) {
	return db.backlinksWhere(
		`SELECT source_id, source_message FROM links WHERE target_id = ? AND target_message IS NULL`,
		targetID)
}

// MessageBacklinks returns the locations of every message that cites the
// specific message messageID in document targetID.
func (db *DB) MessageBacklinks(targetID string, messageID int) ([]oodle.Backlink, error) {
	return db.backlinksWhere(
		`SELECT source_id, source_message FROM links WHERE target_id = ? AND target_message = ?`,
		targetID, messageID)
}

func (db *DB) backlinksWhere(query string, args ...any) ([]oodle.Backlink, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("linkindex: backlinks: %w", err)
	}
	defer rows.Close()

	var out []oodle.Backlink
	for rows.Next() {
		var bl oodle.Backlink
		if err := rows.Scan(&bl.OodleID, &bl.MessageID); err != nil {
			return nil, err
		}
		out = append(out, bl)
	}
	return out, rows.Err()
}
