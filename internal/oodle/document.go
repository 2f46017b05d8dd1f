// Package oodle implements the Oodle document format: a titled,
// append-mostly sequence of timestamped messages with inline citations,
// persisted as a human-readable and hand-editable text file.
package oodle

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"
)

// The identifier alphabet is base58: no 0/O or I/l look-alikes, since ids
// end up typed by hand inside citation tokens.
const idAlphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// IDLength is the length of generated document identifiers.
const IDLength = 6

// RandomID returns a fresh random base58 document identifier. Bytes at or
// above the largest multiple of the alphabet size are redrawn, keeping every
// character equally likely.
func RandomID() string {
	const limit = 256 - 256%len(idAlphabet)
	id := make([]byte, 0, IDLength)
	buf := make([]byte, IDLength)
	for len(id) < IDLength {
		_, _ = rand.Read(buf)
		for _, b := range buf {
			if int(b) >= limit || len(id) == IDLength {
				continue
			}
			id = append(id, idAlphabet[int(b)%len(idAlphabet)])
		}
	}
	return string(id)
}

// Backlink records that the message MessageID in document OodleID cited the
// entity holding this backlink. It is stored on the cited side.
type Backlink struct {
	OodleID   string `json:"oodle_id"`
	MessageID int    `json:"message_id"`
}

// Oodle is one persisted, titled sequence of messages.
//
// File is the storage key the document is persisted under. It is set at load
// or creation time and never encoded into the document body. Messages are
// ordered by position in the written file, which after hand edits is not
// necessarily numeric id order until PushMessage has clamped them.
type Oodle struct {
	ID        string
	Name      string
	File      string
	Messages  []Message
	Backlinks []Backlink
}

// New creates a document with an explicit identifier and its first message.
// A document never exists without at least one message.
func New(id, name, file string, first Message) *Oodle {
	o := &Oodle{ID: id, Name: name, File: file}
	o.PushMessage(first)
	return o
}

// NewWithRandomID is New with a freshly generated identifier.
func NewWithRandomID(name, file string, first Message) *Oodle {
	return New(RandomID(), name, file, first)
}

// PushMessage appends msg, fixing its id against the document's tail, and
// returns the assigned id. A declared id at or past the next expected value
// is kept as an intentional jump; an id that regresses below it, or a zero
// id on a non-empty document, is overridden to the expected value. The
// clamping tolerates hand-edited files with duplicate or out-of-order
// indices; it is not conflict resolution.
func (o *Oodle) PushMessage(msg Message) int {
	expected := 0
	if n := len(o.Messages); n > 0 {
		expected = o.Messages[n-1].ID + 1
	}
	if msg.ID == 0 || msg.ID < expected {
		msg.ID = expected
	}
	o.Messages = append(o.Messages, msg)
	return msg.ID
}

// Message returns the message with the given id, or nil if absent.
func (o *Oodle) Message(id int) *Message {
	for i := range o.Messages {
		if o.Messages[i].ID == id {
			return &o.Messages[i]
		}
	}
	return nil
}

// Date returns the first message's timestamp, or nil for a document that
// parsed empty.
func (o *Oodle) Date() *time.Time {
	if len(o.Messages) == 0 {
		return nil
	}
	return &o.Messages[0].Date
}

// Encode renders the document in its on-disk form: title line, identifier
// line, then each message preceded by a blank line and followed by the "."
// terminator line. A message's index is printed only at jump points, where
// its id is not the next sequential value; densely sequential documents stay
// free of index noise while gaps remain explicit and recoverable.
func (o *Oodle) Encode() string {
	var b strings.Builder
	fmt.Fprintf(&b, "-= %s =-\n", o.Name)
	fmt.Fprintf(&b, "[%s]\n", o.ID)

	expected := 0
	for _, msg := range o.Messages {
		b.WriteByte('\n')
		if expected == msg.ID {
			writeMessage(&b, msg, false)
		} else {
			expected = msg.ID
			writeMessage(&b, msg, true)
		}
		b.WriteString(".\n")
		expected++
	}
	return b.String()
}

// ParseOodle decodes a document from its on-disk text. The identifier line
// is optional; when absent a fresh identifier is generated. Messages are
// delimited by a lone "." line, but the final message may omit its
// terminator, which forgives hand edits that lost it. Message ids pass
// through the PushMessage clamping in parse order. The caller sets File.
func ParseOodle(text string) (*Oodle, error) {
	line, rest, found := strings.Cut(text, "\n")
	if !found {
		return nil, ErrMissingTitle
	}
	title, ok := extractTitle(line)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMalformedTitle, line)
	}
	s := rest

	id := ""
	if line, rest, _ := strings.Cut(s, "\n"); strings.HasPrefix(line, "[") {
		inner, ok := extractID(line)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrMalformedIdentifier, line)
		}
		id = inner
		s = rest
	}
	if id == "" {
		id = RandomID()
	}

	// One blank line separates the header from the first message.
	s = strings.TrimPrefix(s, "\n")

	o := &Oodle{ID: id, Name: title}
	for {
		chunk, rest, found := strings.Cut(s, "\n.\n")
		if !found {
			break
		}
		msg, err := ParseMessage(strings.TrimSpace(chunk))
		if err != nil {
			return nil, err
		}
		o.PushMessage(msg)
		s = rest
	}
	if strings.TrimSpace(s) != "" {
		msg, err := ParseMessage(strings.TrimSpace(s))
		if err != nil {
			return nil, err
		}
		o.PushMessage(msg)
	}
	return o, nil
}

func extractTitle(line string) (string, bool) {
	s, ok := strings.CutPrefix(line, "-=")
	if !ok {
		return "", false
	}
	s, ok = strings.CutSuffix(s, "=-")
	if !ok {
		return "", false
	}
	return strings.TrimSpace(s), true
}

func extractID(line string) (string, bool) {
	s, ok := strings.CutPrefix(line, "[")
	if !ok {
		return "", false
	}
	return strings.CutSuffix(s, "]")
}
