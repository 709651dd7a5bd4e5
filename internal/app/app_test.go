package app

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"timeline-go/internal/config"
)

func TestTabHandlerFormat(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(&tabHandler{w: &buf, opID: "TestOp"})

	logger.Info("row appended", "path", "timeline-data.csv", "date", "Mar 30")

	line := strings.TrimRight(buf.String(), "\n")
	fields := strings.Split(line, "\t")
	if len(fields) != 6 {
		t.Fatalf("got %d fields: %q", len(fields), line)
	}
	if _, err := time.Parse("2006-01-02T15:04:05Z", fields[0]); err != nil {
		t.Errorf("bad timestamp %q: %v", fields[0], err)
	}
	if fields[1] != "INFO" || fields[2] != "TestOp" || fields[3] != "row appended" {
		t.Errorf("unexpected prefix fields: %v", fields[:4])
	}
	if fields[4] != "path=timeline-data.csv" || fields[5] != "date=Mar 30" {
		t.Errorf("unexpected attrs: %v", fields[4:])
	}
}

func TestTabHandlerWithAttrs(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(&tabHandler{w: &buf, opID: "TestOp"}).With("mode", "demo")

	logger.Warn("something")

	if !strings.Contains(buf.String(), "\tmode=demo") {
		t.Errorf("bound attr missing: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "\tWARN\t") {
		t.Errorf("level missing: %q", buf.String())
	}
}

func TestNewDemoMode(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Mode = config.ModeDemo
	// Demo overrides whatever backend the file configured.
	cfg.Store.Type = "github"
	cfg.Images.Format = "original"

	a, err := New(context.Background(), cfg, "Test")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()

	if a.cfg.Store.Type != "memory" {
		t.Errorf("Store.Type = %q, want memory", a.cfg.Store.Type)
	}
	if a.runner == nil {
		t.Error("maintenance runner not wired")
	}

	// Without a configured credential demo serves openly.
	req := httptest.NewRequest(http.MethodPost, "/api/submit-entry",
		strings.NewReader(`{"entry":{"date":"Mar 30","description":"demo entry"}}`))
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.NewConfig() // live mode, no credentials
	if _, err := New(context.Background(), cfg, "Test"); err == nil {
		t.Error("expected error for live mode without credentials")
	}
}
