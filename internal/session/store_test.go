package session

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()

	s, err := NewStore(dir, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, s.Authenticated())

	require.NoError(t, s.Set("abc123", "csrf456"))
	assert.True(t, s.Authenticated())
	assert.Equal(t, "abc123", s.SessionID())
	assert.Equal(t, "csrf456", s.CSRFToken())

	// A fresh store over the same directory restores the session.
	restored, err := NewStore(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, "abc123", restored.SessionID())
	assert.Equal(t, "csrf456", restored.CSRFToken())
}

func TestStoreClear(t *testing.T) {
	dir := t.TempDir()

	s, err := NewStore(dir, nil)
	require.NoError(t, err)
	require.NoError(t, s.Set("abc", "def"))
	require.NoError(t, s.Clear())
	assert.False(t, s.Authenticated())

	restored, err := NewStore(dir, nil)
	require.NoError(t, err)
	assert.False(t, restored.Authenticated())
}

func TestApplyToAndCookieHeader(t *testing.T) {
	s, err := NewStore(t.TempDir(), nil)
	require.NoError(t, err)
	require.NoError(t, s.Set("sid", "tok"))

	req, err := http.NewRequest(http.MethodGet, "http://example.com/", nil)
	require.NoError(t, err)
	s.ApplyTo(req)

	sid, err := req.Cookie(SessionCookie)
	require.NoError(t, err)
	assert.Equal(t, "sid", sid.Value)

	csrf, err := req.Cookie(CSRFCookie)
	require.NoError(t, err)
	assert.Equal(t, "tok", csrf.Value)

	assert.Equal(t, "sessionid=sid; csrftoken=tok", s.CookieHeader())
}

func TestUpdateFromResponse(t *testing.T) {
	s, err := NewStore(t.TempDir(), nil)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	http.SetCookie(rec, &http.Cookie{Name: SessionCookie, Value: "fresh"})
	http.SetCookie(rec, &http.Cookie{Name: CSRFCookie, Value: "token"})
	http.SetCookie(rec, &http.Cookie{Name: "other", Value: "ignored"})

	require.NoError(t, s.UpdateFrom(rec.Result()))
	assert.Equal(t, "fresh", s.SessionID())
	assert.Equal(t, "token", s.CSRFToken())
}

func TestCorruptStateFileIsDiscarded(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, stateFile), []byte("{not json"), 0o600))

	s, err := NewStore(dir, nil)
	require.NoError(t, err)
	assert.False(t, s.Authenticated())
}
