package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/oodleworks/oodles/internal/apperr"
	"github.com/oodleworks/oodles/internal/collection"
	"github.com/oodleworks/oodles/internal/oodle"
	"github.com/oodleworks/oodles/internal/sse"
	"github.com/oodleworks/oodles/internal/users"
)

// Handler holds API route handlers.
type Handler struct {
	col    *collection.Collection
	broker *sse.Broker
}

// NewHandler creates a new Handler. broker may be nil when SSE is not
// wired up (tests, mcp-only runs).
func NewHandler(col *collection.Collection, broker *sse.Broker) *Handler {
	return &Handler{col: col, broker: broker}
}

// oodleFile extracts the {file} route parameter. Encoded characters from
// OpenAPI clients are unescaped.
func oodleFile(r *http.Request) string {
	raw := chi.URLParam(r, "file")
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListOodles handles GET /api/oodles.
//
//	@Summary		List documents
//	@Tags			oodles
//	@Produce		json
//	@Success		200	{object}	map[string]any
//	@Security		CookieAuth
//	@Router			/oodles [get]
func (h *Handler) ListOodles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"oodles": h.col.Metadata(),
	})
}

// GetOodle handles GET /api/oodles/{file}.
//
//	@Summary		Get a single document by file name
//	@Tags			oodles
//	@Produce		json
//	@Param			file	path		string	true	"Document file name"
//	@Success		200		{object}	collection.Detail
//	@Failure		404		{object}	errResponse
//	@Security		CookieAuth
//	@Router			/oodles/{file} [get]
func (h *Handler) GetOodle(w http.ResponseWriter, r *http.Request) {
	file := oodleFile(r)
	doc, err := h.col.Get(file)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get oodle failed", slog.String("file", file), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// CreateOodle handles POST /api/oodles.
//
//	@Summary		Create a new document with its first message
//	@Tags			oodles
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateOodleRequest	true	"Document to create"
//	@Success		201		{object}	collection.Detail
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		CookieAuth
//	@Router			/oodles [post]
func (h *Handler) CreateOodle(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req CreateOodleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Title == "" || req.File == "" || req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("title, file and content are required"))
		return
	}
	doc, err := h.col.Create(req.Title, req.File, req.Content)
	if err != nil {
		if errors.Is(err, apperr.ErrAlreadyExists) {
			writeJSON(w, http.StatusConflict, errorBody("oodle already exists"))
		} else {
			slog.Error("create oodle failed", slog.String("file", req.File), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	if h.broker != nil {
		h.broker.PublishOodleEvent("created", doc.File)
	}
	writeJSON(w, http.StatusCreated, doc)
}

// GetMessage handles GET /api/oodles/{file}/messages/{id}.
//
//	@Summary		Get one message from a document
//	@Tags			messages
//	@Produce		json
//	@Param			file	path		string	true	"Document file name"
//	@Param			id		path		int		true	"Message index"
//	@Success		200		{object}	collection.MessageView
//	@Failure		404		{object}	errResponse
//	@Security		CookieAuth
//	@Router			/oodles/{file}/messages/{id} [get]
func (h *Handler) GetMessage(w http.ResponseWriter, r *http.Request) {
	file := oodleFile(r)
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id < 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid message id"))
		return
	}
	msg, err := h.col.GetMessage(file, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get message failed", slog.String("file", file), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

// AppendMessage handles POST /api/oodles/{file}/messages.
//
//	@Summary		Append a message to a document
//	@Tags			messages
//	@Accept			json
//	@Produce		json
//	@Param			file	path		string					true	"Document file name"
//	@Param			body	body		AppendMessageRequest	true	"Message content"
//	@Success		201		{object}	map[string]int
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		CookieAuth
//	@Router			/oodles/{file}/messages [post]
func (h *Handler) AppendMessage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	file := oodleFile(r)
	var req AppendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("content is required"))
		return
	}
	id, err := h.col.Append(file, req.Content)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("append message failed", slog.String("file", file), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	if h.broker != nil {
		h.broker.PublishMessageEvent("appended", file, id)
	}
	writeJSON(w, http.StatusCreated, map[string]int{"id": id})
}

// EditMessage handles PUT /api/oodles/{file}/messages/{id}.
//
//	@Summary		Replace the content of an existing message
//	@Tags			messages
//	@Accept			json
//	@Produce		json
//	@Param			file	path		string				true	"Document file name"
//	@Param			id		path		int					true	"Message index"
//	@Param			body	body		EditMessageRequest	true	"New content"
//	@Success		200		{object}	collection.MessageView
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		CookieAuth
//	@Router			/oodles/{file}/messages/{id} [put]
func (h *Handler) EditMessage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	file := oodleFile(r)
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id < 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid message id"))
		return
	}
	var req EditMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("content is required"))
		return
	}
	if err := h.col.Edit(file, id, req.Content); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("edit message failed", slog.String("file", file), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	if h.broker != nil {
		h.broker.PublishMessageEvent("edited", file, id)
	}
	msg, err := h.col.GetMessage(file, id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

// GetBacklinks handles GET /api/oodles/{file}/backlinks. With a "message"
// query parameter it returns the backlinks of that message instead of the
// document-level ones. The message is resolved by its declared id, so a
// numbering gap left by a hand edit does not shift the lookup.
//
//	@Summary		List documents and messages citing this document
//	@Tags			oodles
//	@Produce		json
//	@Param			file	path		string	true	"Document file name"
//	@Param			message	query		int		false	"Message id"
//	@Success		200		{object}	map[string]any
//	@Failure		404		{object}	errResponse
//	@Security		CookieAuth
//	@Router			/oodles/{file}/backlinks [get]
func (h *Handler) GetBacklinks(w http.ResponseWriter, r *http.Request) {
	file := oodleFile(r)

	var backlinks []oodle.Backlink
	var err error
	if q := r.URL.Query().Get("message"); q != "" {
		id, convErr := strconv.Atoi(q)
		if convErr != nil || id < 0 {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
			return
		}
		backlinks, err = h.col.MessageBacklinks(file, id)
	} else {
		backlinks, err = h.col.DocumentBacklinks(file)
	}
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get backlinks failed", slog.String("file", file), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"backlinks": backlinks,
	})
}

// Login handles POST /api/login.
//
//	@Summary		Log in and receive a session cookie
//	@Tags			auth
//	@Accept			json
//	@Success		204	"Session established"
//	@Failure		401	{object}	errResponse
//	@Router			/login [post]
func (h *Handler) Login(store *users.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
			return
		}
		ok, err := store.Authenticate(req.Username, req.Password)
		if err != nil {
			slog.Error("authenticate failed", slog.String("user", req.Username), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
			return
		}
		if !ok {
			writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
			return
		}
		sess := store.NewSession(req.Username)
		http.SetCookie(w, sess.SetCookie())
		w.WriteHeader(http.StatusNoContent)
	}
}

// Logout handles POST /api/logout.
//
//	@Summary		Log out and clear the session cookie
//	@Tags			auth
//	@Success		204	"Session cleared"
//	@Router			/logout [post]
func (h *Handler) Logout(store *users.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie(users.SessionCookie); err == nil {
			store.DeleteSession(c.Value)
		}
		http.SetCookie(w, users.ClearCookie())
		w.WriteHeader(http.StatusNoContent)
	}
}
