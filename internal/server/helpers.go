package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"storefront/categorizer/internal/assignment"
	"storefront/categorizer/internal/domain"
	"storefront/categorizer/internal/session"

	log "github.com/sirupsen/logrus"
)

const maxBodyBytes = 1 << 20

// readJSON decodes a JSON request body with a size limit.
func readJSON[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		} else {
			writeError(w, http.StatusBadRequest, "invalid request body")
		}
		return v, false
	}
	return v, true
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Errorf("❌ Failed to write JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeDomainError maps workflow failures onto HTTP statuses. Server messages are passed
// through as they were received.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusNotFound, "assignment session not found")
		return
	case errors.Is(err, assignment.ErrClosed):
		writeError(w, http.StatusGone, err.Error())
		return
	}

	kind := domain.KindOf(err)
	var status int
	switch kind {
	case domain.ValidationFailure:
		status = http.StatusUnprocessableEntity
	case domain.CreationConflict:
		status = http.StatusConflict
	case domain.LookupFailure, domain.AssignmentFailure:
		status = http.StatusBadGateway
	default:
		log.Errorf("❌ Request failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, status, errorResponse{Error: domain.MessageOf(err), Kind: string(kind)})
}
