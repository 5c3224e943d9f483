// Package denylist implements a basic IP allow/deny http.Handler.
//
// It reads 2 files (allowlist file, denylist file), one address per
// line, and has an option to periodically refresh the lists. Denylisted
// addresses get a 403, allowlisted addresses bypass the deny check.
package denylist

import (
	"bufio"
	"log"
	"net"
	"net/http"
	"os"
	"sync"
	"time"
)

// List is a denylist instance
type List struct {
	allowFilename, denyFilename string
	underlyingHandler           http.Handler
	allow, deny                 map[string]struct{}
	tick                        <-chan time.Time
	lastTime                    time.Time
	mu                          sync.RWMutex
	refreshRate                 time.Duration
}

// New accepts allowlist filename, denylist filename, and a refreshRate duration.
// If the files don't exist or are empty, they are not used, and read errors
// will not be reported. refreshRate can be 0, in which case no automatic
// refreshing is done (see RefreshLists()).
//
// After calling New(), a program can use l.Protect() to wrap a http.Handler.
func New(allowFilename, denyFilename string, refreshRate time.Duration) *List {
	var tick <-chan time.Time
	if refreshRate > 0 {
		tick = time.Tick(refreshRate)
	}
	l := &List{
		allowFilename: allowFilename,
		denyFilename:  denyFilename,
		tick:          tick,
		allow:         make(map[string]struct{}),
		deny:          make(map[string]struct{}),
		refreshRate:   refreshRate,
	}
	l.RefreshLists()
	return l
}

// Protect a http.Handler
//
//	http.ListenAndServe(":8080", dlist.Protect(myHandler))
func (l *List) Protect(h http.Handler) http.Handler {
	l.underlyingHandler = h
	return l
}

// clientIP extracts the remote address, preferring X-Forwarded-For when a
// reverse proxy set it.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// ServeHTTP implements http.Handler interface
func (l *List) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// check refresh timer
	if l.refreshRate > 0 {
		select {
		case <-l.tick:
			go l.RefreshLists()
		default:
		}
	}

	ip := clientIP(r)

	// locked for map reads, unlock asap (before writing to conn)
	l.mu.RLock()
	_, allowed := l.allow[ip]
	_, denied := l.deny[ip]
	l.mu.RUnlock()

	if allowed {
		l.underlyingHandler.ServeHTTP(w, r)
		return
	}
	if denied {
		log.Printf("denylist: blocking ip %q", ip)
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}
	l.underlyingHandler.ServeHTTP(w, r)
}

// RefreshLists reads the allowlist and denylist files and sets new maps
// (removed ips will not be in the new map). Errors are ignored, in case a
// file doesn't exist or is not readable. A file is only re-read when its
// modification time is newer than the previous refresh.
func (l *List) RefreshLists() {
	t1 := time.Now()
	if m, ok := l.readList(l.allowFilename); ok {
		l.mu.Lock()
		l.allow = m
		l.mu.Unlock()
	}
	if m, ok := l.readList(l.denyFilename); ok {
		l.mu.Lock()
		l.deny = m
		l.mu.Unlock()
	}
	if l.refreshRate > 0 {
		log.Printf("denylist: refreshed lists from file in %s, allowed %d, denied %d. next refresh is in %s",
			time.Since(t1), len(l.allow), len(l.deny), l.refreshRate)
	}
	l.lastTime = time.Now()
}

// readList scans one address per line; ok is false when the file is missing,
// unreadable, or unchanged since the last refresh.
func (l *List) readList(filename string) (map[string]struct{}, bool) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, false
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil || !info.ModTime().After(l.lastTime) {
		return nil, false
	}
	m := make(map[string]struct{})
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if ip := scanner.Text(); ip != "" {
			m[ip] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		log.Printf("denylist: error scanning %q: %v", filename, err)
	}
	return m, true
}
