// Package collection owns the in-memory set of loaded oodle documents.
//
// One process-wide RWMutex guards the whole collection: reads take the
// shared lock, and every mutation (create, append, edit, watcher reload)
// holds the exclusive lock through reference derivation, backlink
// resolution, and the on-disk save, so two writers can never interleave
// partial updates to the same document. Low write volume makes the single
// lock acceptable.
package collection

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/oodleworks/oodles/internal/apperr"
	"github.com/oodleworks/oodles/internal/checksum"
	"github.com/oodleworks/oodles/internal/linkindex"
	"github.com/oodleworks/oodles/internal/oodle"
	"github.com/oodleworks/oodles/internal/storage"
)

// Collection is the loaded document set plus its persistence plumbing.
type Collection struct {
	mu     sync.RWMutex
	store  storage.Provider
	index  *linkindex.DB // nil disables index mirroring
	logger *slog.Logger
	docs   []*oodle.Oodle
}

// New creates an empty collection over the given storage. index may be nil.
func New(store storage.Provider, index *linkindex.DB, logger *slog.Logger) *Collection {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collection{store: store, index: index, logger: logger}
}

// Load reads every stored oodle file into memory and recomputes the
// backlink graph. A file that fails to parse is logged and skipped; one
// mangled hand edit must not take the rest of the collection down.
func (c *Collection) Load() error {
	metas, err := c.store.List()
	if err != nil {
		return fmt.Errorf("collection: load: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.docs = nil
	for _, m := range metas {
		data, err := c.store.Read(m.Path)
		if err != nil {
			c.logger.Warn("load: read failed", slog.String("file", m.Path), slog.String("error", err.Error()))
			continue
		}
		doc, err := oodle.ParseOodle(string(data))
		if err != nil {
			c.logger.Warn("load: parse failed", slog.String("file", m.Path), slog.String("error", err.Error()))
			continue
		}
		doc.File = m.Path
		c.docs = append(c.docs, doc)
	}

	c.recomputeBacklinks()
	c.logger.Info("collection loaded", slog.Int("documents", len(c.docs)))
	return nil
}

// Metadata returns (title, first-message timestamp) pairs for every loaded
// document, in load/creation order.
func (c *Collection) Metadata() []Metadata {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Metadata, len(c.docs))
	for i, doc := range c.docs {
		out[i] = Metadata{Title: doc.Name, File: doc.File, Date: doc.Date()}
	}
	return out
}

// Get returns a detached snapshot of the document stored under file.
func (c *Collection) Get(file string) (*Detail, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	doc := c.byFile(file)
	if doc == nil {
		return nil, apperr.ErrNotFound
	}
	return detailOf(doc), nil
}

// ByTitle returns a snapshot of the document with the given title,
// case-insensitively.
func (c *Collection) ByTitle(name string) (*Detail, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, doc := range c.docs {
		if strings.EqualFold(doc.Name, name) {
			return detailOf(doc), nil
		}
	}
	return nil, apperr.ErrNotFound
}

// GetMessage returns one message of the document stored under file.
func (c *Collection) GetMessage(file string, id int) (*MessageView, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	doc := c.byFile(file)
	if doc == nil {
		return nil, apperr.ErrNotFound
	}
	msg := doc.Message(id)
	if msg == nil {
		return nil, apperr.ErrNotFound
	}
	v := viewOf(msg)
	return &v, nil
}

// DocumentBacklinks returns the locations citing the document stored under
// file as a whole. The link index serves the query when one is attached;
// without one the in-memory graph answers.
func (c *Collection) DocumentBacklinks(file string) ([]oodle.Backlink, error) {
	c.mu.RLock()
	doc := c.byFile(file)
	if doc == nil {
		c.mu.RUnlock()
		return nil, apperr.ErrNotFound
	}
	if c.index == nil {
		out := append([]oodle.Backlink(nil), doc.Backlinks...)
		c.mu.RUnlock()
		return out, nil
	}
	id := doc.ID
	c.mu.RUnlock()
	return c.index.DocumentBacklinks(id)
}

// MessageBacklinks returns the locations citing message id of the document
// stored under file. The lookup is keyed by the message's declared id, not
// its position, so gaps left by hand edits resolve correctly.
func (c *Collection) MessageBacklinks(file string, id int) ([]oodle.Backlink, error) {
	c.mu.RLock()
	doc := c.byFile(file)
	if doc == nil {
		c.mu.RUnlock()
		return nil, apperr.ErrNotFound
	}
	msg := doc.Message(id)
	if msg == nil {
		c.mu.RUnlock()
		return nil, apperr.ErrNotFound
	}
	if c.index == nil {
		out := append([]oodle.Backlink(nil), msg.Backlinks...)
		c.mu.RUnlock()
		return out, nil
	}
	docID := doc.ID
	c.mu.RUnlock()
	return c.index.MessageBacklinks(docID, id)
}

// Create makes a new document with its first message, resolves the
// message's references, and persists the file before returning.
func (c *Collection) Create(title, file, firstContent string) (*Detail, error) {
	file = normalizeFile(file)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.byFile(file) != nil {
		return nil, apperr.ErrAlreadyExists
	}

	doc := oodle.NewWithRandomID(title, file, oodle.NewMessageNow(firstContent))
	c.docs = append(c.docs, doc)
	c.resolveBacklinks(doc, &doc.Messages[0])

	if err := c.save(doc); err != nil {
		return nil, err
	}
	c.logger.Info("oodle created", slog.String("file", file), slog.String("id", doc.ID))
	return detailOf(doc), nil
}

// Append adds a message to an existing document and returns its assigned
// id. References are derived at construction and resolved before the save.
func (c *Collection) Append(file, content string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	doc := c.byFile(file)
	if doc == nil {
		return 0, apperr.ErrNotFound
	}

	id := doc.PushMessage(oodle.NewMessageNow(content))
	msg := doc.Message(id)
	c.resolveBacklinks(doc, msg)

	if err := c.save(doc); err != nil {
		return 0, err
	}
	c.logger.Debug("message appended", slog.String("file", file), slog.Int("id", id))
	return id, nil
}

// Edit replaces a message's content, re-derives its references, resolves
// the new ones, and persists. Backlinks resolved from the old content stay
// where they are; the link index, by contrast, carries only current links.
func (c *Collection) Edit(file string, id int, content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	doc := c.byFile(file)
	if doc == nil {
		return apperr.ErrNotFound
	}
	msg := doc.Message(id)
	if msg == nil {
		return apperr.ErrNotFound
	}

	msg.SetContent(content)
	c.resolveBacklinks(doc, msg)

	if err := c.save(doc); err != nil {
		return err
	}
	c.logger.Debug("message edited", slog.String("file", file), slog.Int("id", id))
	return nil
}

// ReplaceFromDisk reparses the stored file and swaps the in-memory document
// for it, then recomputes the whole backlink graph. Called by the watcher
// when a file changes outside the process.
func (c *Collection) ReplaceFromDisk(file string) error {
	data, err := c.store.Read(file)
	if err != nil {
		return err
	}
	doc, err := oodle.ParseOodle(string(data))
	if err != nil {
		return err
	}
	doc.File = file

	c.mu.Lock()
	defer c.mu.Unlock()

	replaced := false
	for i, existing := range c.docs {
		if existing.File == file {
			c.docs[i] = doc
			replaced = true
			break
		}
	}
	if !replaced {
		c.docs = append(c.docs, doc)
	}
	c.recomputeBacklinks()
	return nil
}

// Remove drops the in-memory document stored under file, if loaded.
func (c *Collection) Remove(file string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, doc := range c.docs {
		if doc.File == file {
			c.docs = append(c.docs[:i], c.docs[i+1:]...)
			c.recomputeBacklinks()
			return
		}
	}
}

// save encodes and writes the document, then mirrors it into the link
// index. Called with the write lock held: a failed save leaves the
// in-memory mutation in place and reports the error to the caller.
func (c *Collection) save(doc *oodle.Oodle) error {
	data := []byte(doc.Encode())
	if err := c.store.Write(doc.File, data); err != nil {
		return err
	}
	if c.index != nil {
		if err := c.index.UpsertDocument(doc, checksum.Sum(data)); err != nil {
			c.logger.Warn("index mirror failed", slog.String("file", doc.File), slog.String("error", err.Error()))
		}
	}
	return nil
}

// byFile finds a loaded document by its storage key. The extension may be
// omitted; when no exact match exists the final path component alone is
// compared, so callers may pass a bare filename.
func (c *Collection) byFile(file string) *oodle.Oodle {
	file = normalizeFile(file)
	for _, doc := range c.docs {
		if doc.File == file {
			return doc
		}
	}
	base := filepath.Base(file)
	for _, doc := range c.docs {
		if filepath.Base(doc.File) == base {
			return doc
		}
	}
	return nil
}

func (c *Collection) byID(id string) *oodle.Oodle {
	for _, doc := range c.docs {
		if doc.ID == id {
			return doc
		}
	}
	return nil
}

// resolveBacklinks records msg's citations on their targets: document
// references land on the target document, message references on the target
// message, self references on a message of msg's own document. A target
// that is not loaded, or a message id that does not exist, is a no-op
// rather than an error.
func (c *Collection) resolveBacklinks(src *oodle.Oodle, msg *oodle.Message) {
	bl := oodle.Backlink{OodleID: src.ID, MessageID: msg.ID}
	for _, ref := range msg.References {
		switch ref.Kind {
		case oodle.RefDocument:
			if target := c.byID(ref.OodleID); target != nil {
				target.Backlinks = addBacklink(target.Backlinks, bl)
			}
		case oodle.RefMessage:
			if target := c.byID(ref.OodleID); target != nil {
				if tm := target.Message(ref.MessageID); tm != nil {
					tm.Backlinks = addBacklink(tm.Backlinks, bl)
				}
			}
		case oodle.RefSelf:
			if tm := src.Message(ref.MessageID); tm != nil {
				tm.Backlinks = addBacklink(tm.Backlinks, bl)
			}
		}
	}
}

// recomputeBacklinks rebuilds the whole in-memory backlink graph from the
// current reference lists. Backlinks are never written into oodle files;
// re-scanning on load is the persistence story.
func (c *Collection) recomputeBacklinks() {
	for _, doc := range c.docs {
		doc.Backlinks = nil
		for i := range doc.Messages {
			doc.Messages[i].Backlinks = nil
		}
	}
	for _, doc := range c.docs {
		for i := range doc.Messages {
			c.resolveBacklinks(doc, &doc.Messages[i])
		}
	}
}

func addBacklink(set []oodle.Backlink, bl oodle.Backlink) []oodle.Backlink {
	for _, have := range set {
		if have == bl {
			return set
		}
	}
	return append(set, bl)
}

func normalizeFile(file string) string {
	if !strings.HasSuffix(file, storage.Ext) {
		return file + storage.Ext
	}
	return file
}

// Verify the collection satisfies the watcher's reload contract.
var _ linkindex.Reloader = (*Collection)(nil)
