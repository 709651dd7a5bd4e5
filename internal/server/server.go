// Package server exposes the submission service over HTTP. The surface is
// three gated JSON POST endpoints plus a health check; everything else
// about the product (the form front-end, hosting) lives outside this
// process.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"timeline-go/internal/timeline"
)

const maxBodyBytes = 20 << 20 // generous for one base64 image

// Server routes inbound requests to the submission service.
type Server struct {
	svc    *timeline.Service
	gate   *Gate
	logger timeline.Logger
}

// New creates a Server.
func New(svc *timeline.Service, gate *Gate, logger timeline.Logger) *Server {
	return &Server{svc: svc, gate: gate, logger: logger}
}

// Routes builds the handler tree.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/submit-entry", s.api(s.handleSubmitEntry))
	mux.HandleFunc("/api/update-csv", s.api(s.handleUpdateCSV))
	mux.HandleFunc("/api/upload-image", s.api(s.handleUploadImage))
	mux.HandleFunc("/healthz", s.handleHealth)
	return s.logRequests(mux)
}

// response is the JSON envelope every API reply uses. Success is always
// explicit so a caller can distinguish outcomes without inspecting status
// codes.
type response struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	ImagePath string `json:"imagePath,omitempty"`
	URL       string `json:"url,omitempty"`
	Error     string `json:"error,omitempty"`
}

// api wraps one endpoint with the shared CORS, method, and gate policy.
func (s *Server) api(handle func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setCORS(w)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		if r.Method != http.MethodPost {
			writeJSON(w, http.StatusMethodNotAllowed, &response{Success: false, Error: "Method not allowed"})
			return
		}
		if !s.gate.Allow(r) {
			s.logger.Warn("request rejected", "path", r.URL.Path, "reason", "bad credential")
			s.gate.Challenge(w)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		handle(w, r)
	}
}

func (s *Server) handleSubmitEntry(w http.ResponseWriter, r *http.Request) {
	var req timeline.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, &response{Success: false, Error: "invalid request body: " + err.Error()})
		return
	}

	result, err := s.svc.Submit(r.Context(), &req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, &response{
		Success:   true,
		ImagePath: result.ImagePath,
		Message:   result.Message,
	})
}

func (s *Server) handleUpdateCSV(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Entry timeline.Entry `json:"entry"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, &response{Success: false, Error: "invalid request body: " + err.Error()})
		return
	}

	if err := s.svc.AppendEntry(r.Context(), req.Entry); err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, &response{Success: true, Message: "CSV updated successfully"})
}

func (s *Server) handleUploadImage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ImageData string `json:"imageData"`
		Filename  string `json:"filename"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, &response{Success: false, Error: "invalid request body: " + err.Error()})
		return
	}

	url, err := s.svc.UploadImage(r.Context(), req.ImageData, req.Filename)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, &response{Success: true, URL: url, Message: "Image uploaded successfully"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, &response{Success: true, Message: "ok"})
}

// writeError maps service failures onto the response taxonomy: bad input
// is 400, a write conflict that survived retries is 409, anything else is
// 500. The message always carries the underlying reason so a caller can
// decide whether resubmitting makes sense.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case timeline.IsValidation(err):
		status = http.StatusBadRequest
	case errors.Is(err, timeline.ErrConflict):
		status = http.StatusConflict
	}

	s.logger.Error("request failed", "path", r.URL.Path, "status", status, "error", err)
	writeJSON(w, status, &response{Success: false, Error: err.Error()})
}

func setCORS(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusRecorder captures the response status for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", fmt.Sprintf("%dms", time.Since(start).Milliseconds()),
		)
	})
}
