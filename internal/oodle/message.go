package oodle

import (
	"strings"
	"time"
)

// Message is one timestamped, indexed post within an Oodle.
//
// References are derived from Content at construction and again whenever the
// content is replaced through SetContent; they are never recomputed lazily.
// Date keeps the fixed UTC offset captured at creation, and the same offset
// is reproduced on output.
type Message struct {
	ID         int
	Date       time.Time
	Content    string
	References []Reference
	Backlinks  []Backlink
}

// NewMessage builds a message and derives its references from content.
func NewMessage(id int, date time.Time, content string) Message {
	return Message{
		ID:         id,
		Date:       date,
		Content:    content,
		References: FindReferences(content),
	}
}

// NewMessageNow builds an id-0 message stamped with the current time in the
// process's local zone. The real id is assigned when the message is pushed
// onto a document.
func NewMessageNow(content string) Message {
	return NewMessage(0, time.Now(), content)
}

// NewMessageAt is NewMessageNow with an explicit zone for the timestamp.
func NewMessageAt(content string, loc *time.Location) Message {
	return NewMessage(0, time.Now().In(loc), content)
}

// SetContent replaces the body and re-derives the reference list.
// Previously resolved backlinks on cited targets are left alone.
func (m *Message) SetContent(content string) {
	m.Content = content
	m.References = FindReferences(content)
}

// EncodeMessage renders the dateline (index suffix iff printIndex) followed
// by the escaped body, every line newline-terminated. A content line of
// exactly "." is written as ".." so it cannot collide with the document
// codec's message terminator; every other line is written verbatim.
func EncodeMessage(m Message, printIndex bool) string {
	var b strings.Builder
	writeMessage(&b, m, printIndex)
	return b.String()
}

func writeMessage(b *strings.Builder, m Message, printIndex bool) {
	b.WriteString(FormatDateline(m.Date, m.ID, printIndex))
	b.WriteByte('\n')
	if m.Content == "" {
		return
	}
	for _, line := range strings.Split(m.Content, "\n") {
		if line == "." {
			b.WriteString("..\n")
		} else {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
}

// ParseMessage decodes one serialized message: the first line is the
// dateline, everything after is the escaped body (".." lines unescape back
// to "."). The body keeps interior blank lines but is trimmed of surrounding
// whitespace. An absent index parses as id 0; the document codec fixes that
// up on push.
func ParseMessage(text string) (Message, error) {
	if text == "" {
		return Message{}, ErrMissingDateline
	}
	dateline, rest, _ := strings.Cut(text, "\n")
	index, _, date, err := ParseDateline(dateline)
	if err != nil {
		return Message{}, err
	}

	var content strings.Builder
	if rest != "" {
		for _, line := range strings.Split(rest, "\n") {
			if line == ".." {
				content.WriteString(".\n")
			} else {
				content.WriteString(line)
				content.WriteByte('\n')
			}
		}
	}
	return NewMessage(index, date, strings.TrimSpace(content.String())), nil
}
