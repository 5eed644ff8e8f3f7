package http

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"expensetracker/internal/log"
)

// readSMS accepts either {"message": "..."} or the raw notification text.
// Blank or unrecognised text is left to the parser, which ignores it.
func (s *Server) readSMS(w http.ResponseWriter, r *http.Request) (string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "" || mediaType == "application/json" {
		var req smsRequest
		if err := s.decodeJSON(w, r, &req); err != nil {
			return "", err
		}
		return req.Message, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}

// handleIngestSMS parses a forwarded notification and records it inline.
func (s *Server) handleIngestSMS(w http.ResponseWriter, r *http.Request) {
	msg, err := s.readSMS(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	res, err := s.deps.Parser.Ingest(r.Context(), msg)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleQueueSMS hands the notification to the worker and returns at once.
func (s *Server) handleQueueSMS(w http.ResponseWriter, r *http.Request) {
	if s.deps.SMSQueue == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "sms queue not configured", Kind: log.ErrorTypeConfiguration})
		return
	}
	msg, err := s.readSMS(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.deps.SMSQueue.PublishSMS(r.Context(), msg); err != nil {
		s.respondError(w, r, fmt.Errorf("publish sms: %w", err))
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"queued": true})
}
