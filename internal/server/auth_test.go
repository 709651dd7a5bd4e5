package server_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"timeline-go/internal/server"
)

func request(t *testing.T, method, path string) *http.Request {
	t.Helper()
	r, err := http.NewRequest(method, path, nil)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestGateAllow(t *testing.T) {
	gate := server.NewGate("alice", "s3cret", []string{"/healthz"})

	t.Run("no credential", func(t *testing.T) {
		if gate.Allow(request(t, http.MethodPost, "/api/submit-entry")) {
			t.Error("request without credential admitted")
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		r := request(t, http.MethodPost, "/api/submit-entry")
		r.SetBasicAuth("alice", "wrong")
		if gate.Allow(r) {
			t.Error("wrong password admitted")
		}
	})

	t.Run("wrong username", func(t *testing.T) {
		r := request(t, http.MethodPost, "/api/submit-entry")
		r.SetBasicAuth("mallory", "s3cret")
		if gate.Allow(r) {
			t.Error("wrong username admitted")
		}
	})

	t.Run("valid pair", func(t *testing.T) {
		r := request(t, http.MethodPost, "/api/submit-entry")
		r.SetBasicAuth("alice", "s3cret")
		if !gate.Allow(r) {
			t.Error("valid credential rejected")
		}
	})

	t.Run("open path", func(t *testing.T) {
		if !gate.Allow(request(t, http.MethodGet, "/healthz")) {
			t.Error("open path rejected")
		}
	})

	t.Run("preflight without credential", func(t *testing.T) {
		if !gate.Allow(request(t, http.MethodOptions, "/api/submit-entry")) {
			t.Error("preflight rejected")
		}
	})
}

func TestOpenGate(t *testing.T) {
	gate := server.NewOpenGate()
	if !gate.Allow(request(t, http.MethodPost, "/api/submit-entry")) {
		t.Error("open gate rejected a request")
	}
}

func TestChallenge(t *testing.T) {
	gate := server.NewGate("alice", "s3cret", nil)
	rec := httptest.NewRecorder()
	gate.Challenge(rec)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if got := rec.Header().Get("WWW-Authenticate"); got == "" {
		t.Error("missing WWW-Authenticate header")
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
}
