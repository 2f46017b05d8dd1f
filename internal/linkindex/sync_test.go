package linkindex

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/oodleworks/oodles/internal/storage"
)

func testSyncLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func writeDoc(t *testing.T, store storage.Provider, file, id, body string) {
	t.Helper()
	text := "-= Doc =-\n[" + id + "]\n\n2022-06-01 13:45:00-0500\n" + body + "\n.\n"
	if err := store.Write(file, []byte(text)); err != nil {
		t.Fatalf("Write: %v", err)
	}
}

func TestSyncIndexesNewFiles(t *testing.T) {
	db := testDB(t)
	store, _ := storage.NewFS(t.TempDir())
	writeDoc(t, store, "a.oodle", "aaaaaa", "cites {bbbbbb}")
	writeDoc(t, store, "b.oodle", "bbbbbb", "cited")

	if err := Sync(db, store, testSyncLogger()); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	all, _ := db.AllChecksums()
	if len(all) != 2 {
		t.Fatalf("indexed = %+v, want 2", all)
	}
	bl, _ := db.DocumentBacklinks("bbbbbb")
	if len(bl) != 1 || bl[0].OodleID != "aaaaaa" {
		t.Errorf("backlinks = %+v", bl)
	}
}

func TestSyncSkipsUnchangedAndRemovesStale(t *testing.T) {
	db := testDB(t)
	store, _ := storage.NewFS(t.TempDir())
	writeDoc(t, store, "a.oodle", "aaaaaa", "hello")
	writeDoc(t, store, "b.oodle", "bbbbbb", "world")

	if err := Sync(db, store, testSyncLogger()); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	// Change one file on disk, remove the other.
	writeDoc(t, store, "a.oodle", "aaaaaa", "hello again {bbbbbb}")
	if err := os.Remove(filepath.Join(store.Root(), "b.oodle")); err != nil {
		t.Fatalf("remove: %v", err)
	}

	if err := Sync(db, store, testSyncLogger()); err != nil {
		t.Fatalf("second Sync: %v", err)
	}

	all, _ := db.AllChecksums()
	if len(all) != 1 {
		t.Fatalf("indexed = %+v, want only a.oodle", all)
	}
	bl, _ := db.DocumentBacklinks("bbbbbb")
	if len(bl) != 1 {
		t.Errorf("backlinks after resync = %+v", bl)
	}
}

func TestSyncSkipsMalformedFile(t *testing.T) {
	db := testDB(t)
	store, _ := storage.NewFS(t.TempDir())
	writeDoc(t, store, "good.oodle", "aaaaaa", "fine")
	if err := store.Write("bad.oodle", []byte("not an oodle\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if err := Sync(db, store, testSyncLogger()); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	all, _ := db.AllChecksums()
	if len(all) != 1 {
		t.Errorf("indexed = %+v, want only the good file", all)
	}
}
