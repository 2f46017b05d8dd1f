package collection

import (
	"time"

	"github.com/oodleworks/oodles/internal/oodle"
)

// Metadata is the listing entry for one loaded document. Date is the first
// message's timestamp and nil only for a document that parsed empty.
type Metadata struct {
	Title string     `json:"title"`
	File  string     `json:"file"`
	Date  *time.Time `json:"date,omitempty"`
}

// MessageView is the wire shape of a single message: the timestamp travels
// as whole seconds since the epoch.
type MessageView struct {
	ID      int    `json:"id"`
	Date    int64  `json:"date"`
	Content string `json:"content"`
}

// MessageDetail extends MessageView with the derived reference tokens and
// resolved backlinks.
type MessageDetail struct {
	MessageView
	References []string         `json:"references,omitempty"`
	Backlinks  []oodle.Backlink `json:"backlinks,omitempty"`
}

// Detail is a detached snapshot of one document. Snapshots are copies;
// holding one never pins the collection lock.
type Detail struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	File      string           `json:"file"`
	Messages  []MessageDetail  `json:"messages"`
	Backlinks []oodle.Backlink `json:"backlinks,omitempty"`
}

func viewOf(msg *oodle.Message) MessageView {
	return MessageView{
		ID:      msg.ID,
		Date:    msg.Date.Unix(),
		Content: msg.Content,
	}
}

func detailOf(doc *oodle.Oodle) *Detail {
	d := &Detail{
		ID:        doc.ID,
		Title:     doc.Name,
		File:      doc.File,
		Messages:  make([]MessageDetail, len(doc.Messages)),
		Backlinks: append([]oodle.Backlink(nil), doc.Backlinks...),
	}
	for i := range doc.Messages {
		msg := &doc.Messages[i]
		md := MessageDetail{
			MessageView: viewOf(msg),
			Backlinks:   append([]oodle.Backlink(nil), msg.Backlinks...),
		}
		for _, ref := range msg.References {
			md.References = append(md.References, ref.String())
		}
		d.Messages[i] = md
	}
	return d
}
