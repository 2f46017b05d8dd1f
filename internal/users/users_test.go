package users

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func writeCredentials(t *testing.T, lines string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "credentials")
	if err := os.WriteFile(path, []byte(lines), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestHashAndVerify(t *testing.T) {
	hash, err := HashPassword("hunter2!")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	ok, err := VerifyPassword(hash, "hunter2!")
	if err != nil || !ok {
		t.Errorf("correct password: ok=%v err=%v", ok, err)
	}

	ok, err = VerifyPassword(hash, "wrong")
	if err != nil || ok {
		t.Errorf("wrong password: ok=%v err=%v", ok, err)
	}
}

func TestVerifyMalformedHash(t *testing.T) {
	for _, encoded := range []string{
		"",
		"plaintext",
		"$argon2i$v=19$m=65536,t=3,p=2$c2FsdHNhbHQ$aGFzaA",
		"$argon2id$v=18$m=65536,t=3,p=2$c2FsdHNhbHQ$aGFzaA",
		"$argon2id$v=19$m=0,t=3,p=2$c2FsdHNhbHQ$aGFzaA",
		"$argon2id$v=19$m=65536,t=3,p=2$!!!$aGFzaA",
	} {
		if _, err := VerifyPassword(encoded, "pw"); !errors.Is(err, ErrInvalidHash) {
			t.Errorf("VerifyPassword(%q) err = %v, want ErrInvalidHash", encoded, err)
		}
	}
}

func TestLoadAndAuthenticate(t *testing.T) {
	hash, _ := HashPassword("letmein")
	path := writeCredentials(t, "alice "+hash+"\n\n")

	store, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	ok, err := store.Authenticate("alice", "letmein")
	if err != nil || !ok {
		t.Errorf("alice/letmein: ok=%v err=%v", ok, err)
	}
	ok, _ = store.Authenticate("alice", "nope")
	if ok {
		t.Error("wrong password accepted")
	}
	ok, err = store.Authenticate("bob", "letmein")
	if err != nil || ok {
		t.Errorf("unknown user: ok=%v err=%v", ok, err)
	}
}

func TestLoadRejectsBadLine(t *testing.T) {
	path := writeCredentials(t, "no-space-here\n")
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed credentials line")
	}
}

func TestSessionLifecycle(t *testing.T) {
	path := writeCredentials(t, "")
	store, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	sess := store.NewSession("alice")
	if len(sess.SID) != 6 {
		t.Errorf("sid = %q, want 6 chars", sess.SID)
	}

	got, ok := store.GetSession(sess.SID)
	if !ok || got.Username != "alice" {
		t.Errorf("GetSession = %+v, %v", got, ok)
	}

	if !store.DeleteSession(sess.SID) {
		t.Error("DeleteSession returned false for live session")
	}
	if store.DeleteSession(sess.SID) {
		t.Error("DeleteSession returned true for dead session")
	}
	if _, ok := store.GetSession(sess.SID); ok {
		t.Error("session survived deletion")
	}
}

func TestRequestSession(t *testing.T) {
	path := writeCredentials(t, "")
	store, _ := Load(path)
	sess := store.NewSession("alice")

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: SessionCookie, Value: sess.SID})
	if got, ok := store.RequestSession(r); !ok || got.Username != "alice" {
		t.Errorf("RequestSession = %+v, %v", got, ok)
	}

	bare := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, ok := store.RequestSession(bare); ok {
		t.Error("session resolved without cookie")
	}
}

func TestSessionCookies(t *testing.T) {
	sess := Session{SID: "abc123", Username: "alice"}

	set := sess.SetCookie()
	if set.Name != SessionCookie || set.Value != "abc123" {
		t.Errorf("set cookie = %+v", set)
	}
	if !set.Secure || !set.HttpOnly || set.MaxAge <= 0 {
		t.Errorf("set cookie attributes = %+v", set)
	}

	cleared := ClearCookie()
	if cleared.MaxAge >= 0 || cleared.Value != "" {
		t.Errorf("clear cookie = %+v", cleared)
	}
}
