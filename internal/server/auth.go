package server

import (
	"crypto/subtle"
	"net/http"
)

// Gate is the single access policy consulted by every inbound route: a
// configured Basic credential pair plus an explicit allow-list of open
// paths. There is no session state and no fallback credential; an
// unconfigured gate in live mode is rejected at startup, not papered over
// here.
type Gate struct {
	username string
	password string
	open     map[string]bool
	disabled bool
}

// NewGate creates a gate for the given credential pair. openPaths are
// served without a credential.
func NewGate(username, password string, openPaths []string) *Gate {
	open := make(map[string]bool, len(openPaths))
	for _, p := range openPaths {
		open[p] = true
	}
	return &Gate{username: username, password: password, open: open}
}

// NewOpenGate creates a gate that admits everything. Demo mode only.
func NewOpenGate() *Gate {
	return &Gate{disabled: true}
}

// Allow reports whether the request may proceed. CORS preflights pass
// because browsers send them without credentials.
func (g *Gate) Allow(r *http.Request) bool {
	if g.disabled || g.open[r.URL.Path] || r.Method == http.MethodOptions {
		return true
	}

	user, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}

	// Compare both halves unconditionally so timing reveals nothing
	// about which one was wrong.
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(g.username))
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(g.password))
	return userOK&passOK == 1
}

// Challenge writes the unauthorized response with the Basic challenge
// header.
func (g *Gate) Challenge(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="timeline", charset="UTF-8"`)
	writeJSON(w, http.StatusUnauthorized, &response{Success: false, Error: "Authentication required"})
}
