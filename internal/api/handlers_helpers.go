package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/helper-ledger/internal/logging"
	"github.com/helper-ledger/internal/types"
)

// handleGetHelper handles GET /api/helpers/:id - Get helper profile
func (s *Server) handleGetHelper(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID := vars["id"]

	if userID == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Helper ID required", nil)
		return
	}

	profile, err := s.points.Profile(r.Context(), userID)
	if err != nil {
		statusCode, code, message := mapServiceError(err)
		respondError(w, statusCode, code, message, nil)
		return
	}

	respondJSON(w, http.StatusOK, profile)
}

// handleGetBalance handles GET /api/helpers/:id/balance - Get point balance
func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID := vars["id"]

	balance, err := s.points.Balance(r.Context(), userID)
	if err != nil {
		statusCode, code, message := mapServiceError(err)
		respondError(w, statusCode, code, message, nil)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"userId": userID,
		"points": balance,
	})
}

// handleGrantPoints handles POST /api/helpers/:id/points/grant - Administrative grant
func (s *Server) handleGrantPoints(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID := vars["id"]

	var req struct {
		Amount int `json:"amount"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if req.Amount <= 0 {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Amount must be positive", nil)
		return
	}

	result, err := s.points.GrantPoints(r.Context(), userID, req.Amount)
	if err != nil {
		statusCode, code, message := mapServiceError(err)
		respondError(w, statusCode, code, message, nil)
		return
	}

	// A grant can cross any number of rank thresholds.
	promotion, err := s.promotions.CheckAndApply(r.Context(), userID)
	if err != nil {
		logging.Default().WithError(err).WithField("userId", userID).Error("Rank check after grant failed")
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"result":    result,
		"promotion": promotion,
	})
}

// handleRemovePoints handles POST /api/helpers/:id/points/remove - Administrative removal
func (s *Server) handleRemovePoints(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID := vars["id"]

	var req struct {
		Amount int `json:"amount"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if req.Amount <= 0 {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Amount must be positive", nil)
		return
	}

	result, err := s.points.RemovePoints(r.Context(), userID, req.Amount)
	if err != nil {
		statusCode, code, message := mapServiceError(err)
		respondError(w, statusCode, code, message, nil)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// handleSetVerification handles PUT /api/helpers/:id/verification - Staff verification decision
func (s *Server) handleSetVerification(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID := vars["id"]

	var req struct {
		Verified bool `json:"verified"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	if err := s.verification.SetVerified(r.Context(), userID, req.Verified); err != nil {
		statusCode, code, message := mapServiceError(err)
		respondError(w, statusCode, code, message, nil)
		return
	}

	// Verification unlocks the gate rank; apply it right away.
	var promotion interface{}
	if req.Verified {
		promo, err := s.promotions.CheckAndApply(r.Context(), userID)
		if err != nil {
			logging.Default().WithError(err).WithField("userId", userID).Error("Rank check after verification failed")
		} else if promo != nil {
			promotion = promo
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"userId":    userID,
		"verified":  req.Verified,
		"promotion": promotion,
	})
}

// handleCategoryBreakdown handles POST /api/helpers/breakdown - Per-category thank counts
func (s *Server) handleCategoryBreakdown(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserIDs   []string        `json:"userIds"`
		Timeframe types.Timeframe `json:"timeframe,omitempty"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if len(req.UserIDs) == 0 {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "At least one helper ID required", nil)
		return
	}
	if req.Timeframe == "" {
		req.Timeframe = types.TimeframeAll
	}

	breakdown, err := s.points.CategoryBreakdown(r.Context(), req.UserIDs, req.Timeframe)
	if err != nil {
		statusCode, code, message := mapServiceError(err)
		respondError(w, statusCode, code, message, nil)
		return
	}

	respondJSON(w, http.StatusOK, breakdown)
}
