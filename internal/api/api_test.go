package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/oodleworks/oodles/internal/collection"
	"github.com/oodleworks/oodles/internal/storage"
	"github.com/oodleworks/oodles/internal/users"
)

// testEnv sets up a temp oodle dir, collection, and router in disabled
// auth mode.
func testEnv(t *testing.T) (*collection.Collection, http.Handler) {
	t.Helper()

	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	col := collection.New(store, nil, logger)
	router := NewRouter(col, nil, nil, nil)
	return col, router
}

func createOodle(t *testing.T, router http.Handler, title, file, content string) collection.Detail {
	t.Helper()
	body, _ := json.Marshal(CreateOodleRequest{Title: title, File: file, Content: content})
	req := httptest.NewRequest(http.MethodPost, "/oodles", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	var doc collection.Detail
	if err := json.Unmarshal(w.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	return doc
}

func TestCreateAndGetOodle(t *testing.T) {
	_, router := testEnv(t)

	created := createOodle(t, router, "Hey", "hey", "Line one!")
	if created.Title != "Hey" || created.File != "hey.oodle" {
		t.Errorf("created = %+v", created)
	}

	req := httptest.NewRequest(http.MethodGet, "/oodles/hey.oodle", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var doc collection.Detail
	_ = json.Unmarshal(w.Body.Bytes(), &doc)
	if doc.Title != "Hey" || len(doc.Messages) != 1 {
		t.Errorf("doc = %+v", doc)
	}
	if doc.Messages[0].Content != "Line one!" {
		t.Errorf("content = %q", doc.Messages[0].Content)
	}
}

func TestCreateValidation(t *testing.T) {
	_, router := testEnv(t)

	for _, body := range []string{
		`{"title":"","file":"x","content":"y"}`,
		`{"title":"x","file":"","content":"y"}`,
		`{"title":"x","file":"y","content":""}`,
		`not json`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/oodles", bytes.NewReader([]byte(body)))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, w.Code)
		}
	}
}

func TestCreateDuplicate(t *testing.T) {
	_, router := testEnv(t)
	createOodle(t, router, "One", "dup", "a")

	body, _ := json.Marshal(CreateOodleRequest{Title: "Two", File: "dup", Content: "b"})
	req := httptest.NewRequest(http.MethodPost, "/oodles", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate create = %d, want 409", w.Code)
	}
}

func TestListOodles(t *testing.T) {
	_, router := testEnv(t)
	createOodle(t, router, "Alpha", "a", "x")
	createOodle(t, router, "Beta", "b", "y")

	req := httptest.NewRequest(http.MethodGet, "/oodles", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var resp struct {
		Oodles []collection.Metadata `json:"oodles"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Oodles) != 2 {
		t.Errorf("oodles = %+v", resp.Oodles)
	}
}

func TestGetMessage(t *testing.T) {
	_, router := testEnv(t)
	createOodle(t, router, "Thread", "thread", "hello")

	req := httptest.NewRequest(http.MethodGet, "/oodles/thread.oodle/messages/0", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("get message status = %d", w.Code)
	}
	var msg collection.MessageView
	_ = json.Unmarshal(w.Body.Bytes(), &msg)
	if msg.ID != 0 || msg.Content != "hello" || msg.Date == 0 {
		t.Errorf("msg = %+v", msg)
	}

	req = httptest.NewRequest(http.MethodGet, "/oodles/thread.oodle/messages/9", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing message status = %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/oodles/thread.oodle/messages/nope", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d", w.Code)
	}
}

func TestAppendAndEditMessage(t *testing.T) {
	_, router := testEnv(t)
	createOodle(t, router, "Thread", "thread", "first")

	body, _ := json.Marshal(AppendMessageRequest{Content: "second"})
	req := httptest.NewRequest(http.MethodPost, "/oodles/thread.oodle/messages", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("append status = %d, body = %s", w.Code, w.Body.String())
	}
	var appended map[string]int
	_ = json.Unmarshal(w.Body.Bytes(), &appended)
	if appended["id"] != 1 {
		t.Errorf("appended id = %d, want 1", appended["id"])
	}

	body, _ = json.Marshal(EditMessageRequest{Content: "second, edited"})
	req = httptest.NewRequest(http.MethodPut, "/oodles/thread.oodle/messages/1", bytes.NewReader(body))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("edit status = %d, body = %s", w.Code, w.Body.String())
	}
	var msg collection.MessageView
	_ = json.Unmarshal(w.Body.Bytes(), &msg)
	if msg.Content != "second, edited" {
		t.Errorf("edited content = %q", msg.Content)
	}
}

func TestBacklinksEndpoint(t *testing.T) {
	_, router := testEnv(t)
	cited := createOodle(t, router, "Bee", "b", "the cited one")
	source := createOodle(t, router, "Ay", "a", "see {"+cited.ID+"} and {"+cited.ID+"/0}")

	req := httptest.NewRequest(http.MethodGet, "/oodles/b.oodle/backlinks", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("backlinks status = %d", w.Code)
	}
	var resp struct {
		Backlinks []struct {
			OodleID   string `json:"oodle_id"`
			MessageID int    `json:"message_id"`
		} `json:"backlinks"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Backlinks) != 1 || resp.Backlinks[0].OodleID != source.ID {
		t.Errorf("backlinks = %+v", resp.Backlinks)
	}

	req = httptest.NewRequest(http.MethodGet, "/oodles/b.oodle/backlinks?message=0", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("message backlinks status = %d", w.Code)
	}
	resp.Backlinks = nil
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Backlinks) != 1 || resp.Backlinks[0].OodleID != source.ID {
		t.Errorf("message backlinks = %+v", resp.Backlinks)
	}
}

func TestBacklinksGapMessageIDs(t *testing.T) {
	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	col := collection.New(store, nil, logger)

	// Hand-edited document whose second message jumped to id 2.
	text := "-= Bee =-\n[bbbbbb]\n\n2022-06-01 13:45:00-0500\nfirst\n.\n\n2022-06-01 13:50:00-0500 (2)\nlater\n.\n"
	if err := store.Write("b.oodle", []byte(text)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := col.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	router := NewRouter(col, nil, nil, nil)
	source := createOodle(t, router, "Ay", "a", "see {bbbbbb/2}")

	req := httptest.NewRequest(http.MethodGet, "/oodles/b.oodle/backlinks?message=2", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("message 2 backlinks status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp struct {
		Backlinks []struct {
			OodleID   string `json:"oodle_id"`
			MessageID int    `json:"message_id"`
		} `json:"backlinks"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Backlinks) != 1 || resp.Backlinks[0].OodleID != source.ID || resp.Backlinks[0].MessageID != 0 {
		t.Errorf("message 2 backlinks = %+v", resp.Backlinks)
	}

	// Id 1 does not exist; the gap must not shift the lookup onto message 2.
	req = httptest.NewRequest(http.MethodGet, "/oodles/b.oodle/backlinks?message=1", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("message 1 backlinks status = %d, want 404", w.Code)
	}
}

func TestGetOodleNotFound(t *testing.T) {
	_, router := testEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/oodles/ghost.oodle", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func sessionTestEnv(t *testing.T) (http.Handler, *users.Store) {
	t.Helper()

	hash, err := users.HashPassword("hunter2!")
	if err != nil {
		t.Fatal(err)
	}
	credPath := filepath.Join(t.TempDir(), "credentials")
	if err := os.WriteFile(credPath, []byte("alice "+hash+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	store, err := users.Load(credPath)
	if err != nil {
		t.Fatalf("users.Load: %v", err)
	}

	fsStore, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	col := collection.New(fsStore, nil, logger)
	return NewRouter(col, nil, store, nil), store
}

func TestSessionAuth(t *testing.T) {
	router, _ := sessionTestEnv(t)

	// No cookie: rejected.
	req := httptest.NewRequest(http.MethodGet, "/oodles", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d, want 401", w.Code)
	}

	// Bad password: no session.
	body, _ := json.Marshal(LoginRequest{Username: "alice", Password: "wrong"})
	req = httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader(body))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad login status = %d, want 401", w.Code)
	}

	// Good login: cookie issued.
	body, _ = json.Marshal(LoginRequest{Username: "alice", Password: "hunter2!"})
	req = httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader(body))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("login status = %d, body = %s", w.Code, w.Body.String())
	}
	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != users.SessionCookie {
		t.Fatalf("cookies = %+v", cookies)
	}
	sid := cookies[0]

	// Cookie grants access.
	req = httptest.NewRequest(http.MethodGet, "/oodles", nil)
	req.AddCookie(sid)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("authenticated status = %d, want 200", w.Code)
	}

	// Logout invalidates the session.
	req = httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(sid)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("logout status = %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/oodles", nil)
	req.AddCookie(sid)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("post-logout status = %d, want 401", w.Code)
	}
}
