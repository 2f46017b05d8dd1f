package oodle

import (
	"fmt"
	"strconv"
	"strings"
)

// ReferenceKind discriminates the three citation shapes.
type ReferenceKind int

const (
	// RefDocument cites a document as a whole: {ID}.
	RefDocument ReferenceKind = iota
	// RefMessage cites one message in a named document: {ID/N}.
	RefMessage
	// RefSelf cites a message in the same document as the citing one: {~N}.
	RefSelf
)

// Reference is one inline citation token found in message content.
type Reference struct {
	Kind      ReferenceKind
	OodleID   string // empty for RefSelf
	MessageID int    // unused for RefDocument
}

// DocumentRef cites the document with the given identifier.
func DocumentRef(oodleID string) Reference {
	return Reference{Kind: RefDocument, OodleID: oodleID}
}

// MessageRef cites one message in a named document.
func MessageRef(oodleID string, messageID int) Reference {
	return Reference{Kind: RefMessage, OodleID: oodleID, MessageID: messageID}
}

// SelfRef cites a message within the citing document.
func SelfRef(messageID int) Reference {
	return Reference{Kind: RefSelf, MessageID: messageID}
}

// String renders the token exactly as it appears inside message content.
func (r Reference) String() string {
	switch r.Kind {
	case RefSelf:
		return fmt.Sprintf("{~%d}", r.MessageID)
	case RefMessage:
		return fmt.Sprintf("{%s/%d}", r.OodleID, r.MessageID)
	default:
		return fmt.Sprintf("{%s}", r.OodleID)
	}
}

// ParseReference interprets one brace-delimited token, braces included.
// It wants a clean token like "{abcdef/4}" or "{~3}", not surrounding text.
func ParseReference(s string) (Reference, error) {
	if len(s) < 2 || s[0] != '{' || s[len(s)-1] != '}' {
		return Reference{}, fmt.Errorf("oodle: not a reference token: %q", s)
	}
	inner := s[1 : len(s)-1]

	if num, ok := strings.CutPrefix(inner, "~"); ok {
		id, err := parseMessageID(num)
		if err != nil {
			return Reference{}, err
		}
		return SelfRef(id), nil
	}

	oodleID, num, slashed := strings.Cut(inner, "/")
	if !slashed {
		return DocumentRef(inner), nil
	}
	id, err := parseMessageID(num)
	if err != nil {
		return Reference{}, err
	}
	return MessageRef(oodleID, id), nil
}

func parseMessageID(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("oodle: bad message id %q", s)
	}
	return n, nil
}

// FindReferences scans content left to right for citation tokens. The first
// "}" after a "{" always closes the token; braces are never balanced. A
// dangling "{" with no later "}" ends the scan, leaving the rest of the text
// unscanned. Tokens that fail to parse are skipped silently so malformed
// citation syntax degrades to plain text, not an error.
func FindReferences(content string) []Reference {
	var refs []Reference
	s := content
	for {
		start := strings.IndexByte(s, '{')
		if start < 0 {
			return refs
		}
		s = s[start:]
		end := strings.IndexByte(s, '}')
		if end < 0 {
			return refs
		}
		if ref, err := ParseReference(s[:end+1]); err == nil {
			refs = append(refs, ref)
		}
		s = s[end+1:]
	}
}
