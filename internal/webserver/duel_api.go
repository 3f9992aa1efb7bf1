package webserver

import (
	"net/http"
	"strconv"

	"github.com/ichi0g0y/champion-bot/internal/shared/logger"
	"go.uber.org/zap"
)

const defaultLeaderboardLimit = 10

func limitParam(r *http.Request) int {
	limit := defaultLeaderboardLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}
	return limit
}

// handleDuelLeaderboard handles GET /api/duels/leaderboard
func (s *Server) handleDuelLeaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.leaderboards == nil {
		http.Error(w, "Ledger not available", http.StatusServiceUnavailable)
		return
	}

	stats, err := s.leaderboards.DuelLeaderboard(r.Context(), limitParam(r))
	if err != nil {
		logger.Error("Failed to get duel leaderboard", zap.Error(err))
		http.Error(w, "Failed to fetch duel leaderboard", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"leaderboard": stats})
}

// handleDuelStats handles GET /api/duels/stats?user_id=...
func (s *Server) handleDuelStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}
	if s.leaderboards == nil {
		http.Error(w, "Ledger not available", http.StatusServiceUnavailable)
		return
	}

	stats, err := s.leaderboards.DuelStats(r.Context(), userID)
	if err != nil {
		logger.Error("Failed to get duel stats", zap.String("user_id", userID), zap.Error(err))
		http.Error(w, "Failed to fetch duel stats", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleLiveDuels handles GET /api/duels/live and GET /api/duels/live?id=...
func (s *Server) handleLiveDuels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.duels == nil {
		http.Error(w, "Duels not running", http.StatusServiceUnavailable)
		return
	}

	if id := r.URL.Query().Get("id"); id != "" {
		summary, ok := s.duels.Session(id)
		if !ok {
			http.Error(w, "Duel not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, summary)
		return
	}

	duels := s.duels.Sessions()
	writeJSON(w, http.StatusOK, map[string]any{"duels": duels, "count": len(duels)})
}

// handleChampionLeaderboard handles GET /api/champions/leaderboard
func (s *Server) handleChampionLeaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.leaderboards == nil {
		http.Error(w, "Ledger not available", http.StatusServiceUnavailable)
		return
	}

	totals, err := s.leaderboards.Leaderboard(r.Context(), limitParam(r))
	if err != nil {
		logger.Error("Failed to get champion leaderboard", zap.Error(err))
		http.Error(w, "Failed to fetch champion leaderboard", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"leaderboard": totals})
}
