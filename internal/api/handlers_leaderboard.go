package api

import (
	"net/http"
	"strconv"

	"github.com/helper-ledger/internal/service"
	"github.com/helper-ledger/internal/types"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
)

// handleLeaderboard handles GET /api/leaderboard?kind=&timeframe=&limit=
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	kind := service.LeaderboardKind(r.URL.Query().Get("kind"))
	switch kind {
	case "":
		kind = service.LeaderboardBalance
	case service.LeaderboardBalance, service.LeaderboardWindowed, service.LeaderboardThanks:
	default:
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid kind (must be 'balance', 'windowed' or 'thanks')", nil)
		return
	}

	timeframe := types.Timeframe(r.URL.Query().Get("timeframe"))
	switch timeframe {
	case "":
		timeframe = types.TimeframeAll
	case types.TimeframeWeekly, types.TimeframeMonthly, types.TimeframeAll:
	default:
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid timeframe (must be 'weekly', 'monthly' or 'all')", nil)
		return
	}

	limit := defaultLeaderboardLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > maxLeaderboardLimit {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid limit", nil)
			return
		}
		limit = parsed
	}

	entries, err := s.points.Leaderboard(r.Context(), kind, timeframe, limit)
	if err != nil {
		statusCode, code, message := mapServiceError(err)
		respondError(w, statusCode, code, message, nil)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"kind":      kind,
		"timeframe": timeframe,
		"entries":   entries,
	})
}
