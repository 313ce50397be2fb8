package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/helper-ledger/internal/storage"
	"github.com/helper-ledger/internal/types"
)

// handleGetThread handles GET /api/threads/:id - Inspect thread state
func (s *Server) handleGetThread(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	threadID := vars["id"]

	thread, err := s.threadReader.Get(r.Context(), threadID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, ErrCodeNotFound, "Thread not found", nil)
			return
		}
		statusCode, code, message := mapServiceError(err)
		respondError(w, statusCode, code, message, nil)
		return
	}

	respondJSON(w, http.StatusOK, thread)
}

// handleListThreads handles GET /api/threads?state=&limit= - List threads by state
func (s *Server) handleListThreads(w http.ResponseWriter, r *http.Request) {
	state := types.ThreadState(r.URL.Query().Get("state"))
	switch state {
	case "":
		state = types.ThreadOpen
	case types.ThreadOpen, types.ThreadPendingClose, types.ThreadClosed:
	default:
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid state (must be 'open', 'pending_close' or 'closed')", nil)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 500 {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid limit", nil)
			return
		}
		limit = parsed
	}

	threads, err := s.threadReader.ListByState(r.Context(), state, limit)
	if err != nil {
		statusCode, code, message := mapServiceError(err)
		respondError(w, statusCode, code, message, nil)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"state":   state,
		"threads": threads,
	})
}

// handleForceClose handles POST /api/threads/:id/close - Staff force-close
func (s *Server) handleForceClose(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	threadID := vars["id"]

	closed, err := s.threads.ForceClose(r.Context(), threadID)
	if err != nil {
		statusCode, code, message := mapServiceError(err)
		respondError(w, statusCode, code, message, nil)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"threadId": threadID,
		"closed":   closed,
	})
}
