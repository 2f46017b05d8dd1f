// Package users holds the credentials file and the in-memory login
// sessions behind it.
//
// The credentials file is one user per line, username and Argon2id PHC
// hash separated by a single space. Sessions live only in memory; a
// restart logs everyone out.
package users

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/oodleworks/oodles/internal/oodle"
)

const (
	// SessionCookie is the name of the session id cookie.
	SessionCookie = "sid"

	sessionTTL = 7 * 24 * time.Hour
)

// Session pairs a session id with the user that logged in.
type Session struct {
	SID      string
	Username string
}

// SetCookie returns the cookie that establishes this session.
func (s Session) SetCookie() *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookie,
		Value:    s.SID,
		Path:     "/",
		Secure:   true,
		HttpOnly: true,
		MaxAge:   int(sessionTTL.Seconds()),
	}
}

// ClearCookie returns a cookie that expires the session on the client.
func ClearCookie() *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		Secure:   true,
		HttpOnly: true,
		MaxAge:   -1,
	}
}

// Store is the user table plus live sessions. Safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	users    map[string]string // username -> PHC hash
	sessions map[string]Session
}

// Load reads the credentials file.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("users: read credentials: %w", err)
	}

	table := make(map[string]string)
	for n, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		username, hash, ok := strings.Cut(line, " ")
		if !ok || username == "" || hash == "" {
			return nil, fmt.Errorf("users: credentials line %d: expected \"username hash\"", n+1)
		}
		table[username] = hash
	}

	return &Store{
		users:    table,
		sessions: make(map[string]Session),
	}, nil
}

// Authenticate checks a username/password pair against the credentials
// table. Unknown users and bad passwords both return false.
func (s *Store) Authenticate(username, password string) (bool, error) {
	s.mu.RLock()
	hash, ok := s.users[username]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	return VerifyPassword(hash, password)
}

// NewSession creates and records a session for username.
func (s *Store) NewSession(username string) Session {
	sess := Session{SID: oodle.RandomID(), Username: username}
	s.mu.Lock()
	s.sessions[sess.SID] = sess
	s.mu.Unlock()
	return sess
}

// GetSession looks up a live session by id.
func (s *Store) GetSession(sid string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sid]
	return sess, ok
}

// DeleteSession drops a session. It reports whether the id was live.
func (s *Store) DeleteSession(sid string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sid]; !ok {
		return false
	}
	delete(s.sessions, sid)
	return true
}

// RequestSession resolves the session attached to an incoming request.
func (s *Store) RequestSession(r *http.Request) (Session, bool) {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return Session{}, false
	}
	return s.GetSession(c.Value)
}
