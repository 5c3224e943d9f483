package denylist

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeList(t *testing.T, dir, name string, ips ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	var body string
	for _, ip := range ips {
		body += ip + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func get(h http.Handler, remote, xff string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = remote
	if xff != "" {
		r.Header.Set("X-Forwarded-For", xff)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestDeniedIPGets403(t *testing.T) {
	dir := t.TempDir()
	deny := writeList(t, dir, "deny.txt", "10.0.0.66")
	l := New(filepath.Join(dir, "allow.txt"), deny, 0)
	h := l.Protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	assert.Equal(t, http.StatusForbidden, get(h, "10.0.0.66:1234", "").Code)
	assert.Equal(t, http.StatusOK, get(h, "10.0.0.67:1234", "").Code)
}

func TestAllowlistBypassesDeny(t *testing.T) {
	dir := t.TempDir()
	allow := writeList(t, dir, "allow.txt", "10.0.0.66")
	deny := writeList(t, dir, "deny.txt", "10.0.0.66")
	l := New(allow, deny, 0)
	h := l.Protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	assert.Equal(t, http.StatusOK, get(h, "10.0.0.66:1234", "").Code)
}

func TestForwardedForWins(t *testing.T) {
	dir := t.TempDir()
	deny := writeList(t, dir, "deny.txt", "203.0.113.9")
	l := New(filepath.Join(dir, "allow.txt"), deny, 0)
	h := l.Protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// proxy address itself is clean, denied client comes via the header
	assert.Equal(t, http.StatusForbidden, get(h, "127.0.0.1:1234", "203.0.113.9").Code)
}

func TestMissingFilesAllowEveryone(t *testing.T) {
	dir := t.TempDir()
	l := New(filepath.Join(dir, "allow.txt"), filepath.Join(dir, "deny.txt"), 0)
	h := l.Protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	assert.Equal(t, http.StatusTeapot, get(h, "192.0.2.1:5000", "").Code)
}
