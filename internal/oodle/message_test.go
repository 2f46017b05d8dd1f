package oodle

import (
	"errors"
	"testing"
	"time"
)

func fixedDate(hour, min int) time.Time {
	return time.Date(2022, 6, 1, hour, min, 0, 0, time.FixedZone("", -5*3600))
}

func sameInstant(a, b time.Time) bool {
	_, ao := a.Zone()
	_, bo := b.Zone()
	return a.Equal(b) && ao == bo
}

func TestEncodeMessage(t *testing.T) {
	msg := NewMessage(0, fixedDate(13, 45), "Line one!\nLine tw- oh no is that a\n.\nIt was!")

	const want = "2022-06-01 13:45:00-0500\nLine one!\nLine tw- oh no is that a\n..\nIt was!\n"
	if got := EncodeMessage(msg, false); got != want {
		t.Errorf("EncodeMessage = %q, want %q", got, want)
	}
}

func TestEncodeMessage_WithIndex(t *testing.T) {
	msg := NewMessage(4, fixedDate(14, 15), "hello")
	const want = "2022-06-01 14:15:00-0500 (4)\nhello\n"
	if got := EncodeMessage(msg, true); got != want {
		t.Errorf("EncodeMessage = %q, want %q", got, want)
	}
}

func TestParseMessage(t *testing.T) {
	const in = "2022-06-01 13:45:00-0500\nLine one!\nLine tw- oh no is that a\n..\nIt was!"
	msg, err := ParseMessage(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.ID != 0 {
		t.Errorf("id = %d, want 0", msg.ID)
	}
	if !sameInstant(msg.Date, fixedDate(13, 45)) {
		t.Errorf("date = %v", msg.Date)
	}
	if msg.Content != "Line one!\nLine tw- oh no is that a\n.\nIt was!" {
		t.Errorf("content = %q", msg.Content)
	}
}

func TestMessageRoundTrip(t *testing.T) {
	for _, content := range []string{
		"plain",
		"Line one!\nLine tw- oh no is that a\n.\nIt was!",
		".",
		"multi\n\nblank interior",
		"with a citation {abc/2} inline",
	} {
		msg := NewMessage(0, fixedDate(13, 45), content)
		back, err := ParseMessage(EncodeMessage(msg, false))
		if err != nil {
			t.Fatalf("round trip of %q: %v", content, err)
		}
		if back.Content != content {
			t.Errorf("content = %q, want %q", back.Content, content)
		}
		if !sameInstant(back.Date, msg.Date) {
			t.Errorf("date = %v, want %v", back.Date, msg.Date)
		}
	}
}

func TestMessageRoundTrip_PrintedIndex(t *testing.T) {
	msg := NewMessage(9, fixedDate(14, 15), "jumped")
	back, err := ParseMessage(EncodeMessage(msg, true))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if back.ID != 9 {
		t.Errorf("id = %d, want 9", back.ID)
	}
}

func TestParseMessage_Empty(t *testing.T) {
	if _, err := ParseMessage(""); !errors.Is(err, ErrMissingDateline) {
		t.Errorf("err = %v, want ErrMissingDateline", err)
	}
}

func TestParseMessage_BadDateline(t *testing.T) {
	if _, err := ParseMessage("once upon a time\nbody"); !errors.Is(err, ErrMalformedDateline) {
		t.Errorf("err = %v, want ErrMalformedDateline", err)
	}
}

func TestNewMessage_DerivesReferences(t *testing.T) {
	msg := NewMessageNow("Blh blah!\n{~2}")
	if len(msg.References) != 1 || msg.References[0] != SelfRef(2) {
		t.Errorf("references = %+v, want [{~2}]", msg.References)
	}
}

func TestSetContent_RederivesReferences(t *testing.T) {
	msg := NewMessage(0, fixedDate(13, 45), "see {aaa}")
	msg.SetContent("now {bbb/1} instead")
	if len(msg.References) != 1 || msg.References[0] != MessageRef("bbb", 1) {
		t.Errorf("references = %+v", msg.References)
	}
}

func TestLonePeriodEscaping(t *testing.T) {
	// Escaping "." yields "..", unescaping returns "."; other lines pass
	// through untouched both ways.
	msg := NewMessage(0, fixedDate(13, 45), ".")
	encoded := EncodeMessage(msg, false)
	if encoded != "2022-06-01 13:45:00-0500\n..\n" {
		t.Fatalf("encoded = %q", encoded)
	}
	back, err := ParseMessage(encoded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if back.Content != "." {
		t.Errorf("content = %q, want .", back.Content)
	}
}
