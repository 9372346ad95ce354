// Package session holds the portal authentication cookies (sessionid and
// csrftoken) and persists them across process restarts.
package session

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

const (
	// SessionCookie is the name of the portal session cookie.
	SessionCookie = "sessionid"
	// CSRFCookie is the name of the CSRF token cookie.
	CSRFCookie = "csrftoken"
	// CSRFHeader is the header mutating requests must carry.
	CSRFHeader = "X-CSRFToken"

	stateFile = "session.json"
)

// Store keeps the session cookies in memory and mirrors them to a state
// file so a new process can resume the authenticated session. This
// replaces the browser's cookie jar plus the localStorage shuffle the
// web client used to survive redirects.
type Store struct {
	mu     sync.RWMutex
	state  state
	path   string
	logger *zap.Logger
}

type state struct {
	SessionID string `json:"sessionid,omitempty"`
	CSRFToken string `json:"csrftoken,omitempty"`
}

// NewStore creates a session store backed by a state file under dir.
// Previously persisted cookies are restored if present.
func NewStore(dir string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Store{
		path:   filepath.Join(dir, stateFile),
		logger: logger.With(zap.String("component", "session_store")),
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read session state: %w", err)
	}
	if err := json.Unmarshal(data, &s.state); err != nil {
		// A corrupt state file means the user logs in again.
		s.logger.Warn("Discarding unreadable session state", zap.Error(err))
		s.state = state{}
	}
	return s, nil
}

// SessionID returns the stored session identifier, empty when logged out.
func (s *Store) SessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.SessionID
}

// CSRFToken returns the stored CSRF token, empty when unknown.
func (s *Store) CSRFToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.CSRFToken
}

// Authenticated reports whether a session cookie is present.
func (s *Store) Authenticated() bool {
	return s.SessionID() != ""
}

// ApplyTo attaches the stored cookies to an outgoing request.
func (s *Store) ApplyTo(req *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state.SessionID != "" {
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: s.state.SessionID})
	}
	if s.state.CSRFToken != "" {
		req.AddCookie(&http.Cookie{Name: CSRFCookie, Value: s.state.CSRFToken})
	}
}

// CookieHeader renders the stored cookies as a Cookie header value, for
// transports that do not go through http.Request (the realtime dial).
func (s *Store) CookieHeader() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	header := ""
	if s.state.SessionID != "" {
		header = SessionCookie + "=" + s.state.SessionID
	}
	if s.state.CSRFToken != "" {
		if header != "" {
			header += "; "
		}
		header += CSRFCookie + "=" + s.state.CSRFToken
	}
	return header
}

// UpdateFrom captures session cookies set by a server response.
func (s *Store) UpdateFrom(resp *http.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	for _, c := range resp.Cookies() {
		switch c.Name {
		case SessionCookie:
			if c.Value != s.state.SessionID {
				s.state.SessionID = c.Value
				changed = true
			}
		case CSRFCookie:
			if c.Value != s.state.CSRFToken {
				s.state.CSRFToken = c.Value
				changed = true
			}
		}
	}
	if !changed {
		return nil
	}
	return s.persistLocked()
}

// Set stores both cookie values directly.
func (s *Store) Set(sessionID, csrfToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.SessionID = sessionID
	s.state.CSRFToken = csrfToken
	return s.persistLocked()
}

// Clear wipes the stored session, in memory and on disk.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = state{}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove session state: %w", err)
	}
	return nil
}

func (s *Store) persistLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := json.Marshal(s.state)
	if err != nil {
		return fmt.Errorf("failed to encode session state: %w", err)
	}
	// 0600: the session cookie is a bearer credential.
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session state: %w", err)
	}
	s.logger.Debug("Session state persisted")
	return nil
}
