package webserver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/ichi0g0y/champion-bot/internal/localdb"
	"github.com/ichi0g0y/champion-bot/internal/quiz"
	"github.com/ichi0g0y/champion-bot/internal/shared/logger"
	"go.uber.org/zap"
)

type areaStatus struct {
	Name              string          `json:"name"`
	ChannelID         string          `json:"channel_id"`
	Active            bool            `json:"active"`
	Language          string          `json:"language"`
	WindowMinutes     int             `json:"window_minutes"`
	ActivityThreshold int             `json:"activity_threshold"`
	Remaining         *quiz.Remaining `json:"remaining,omitempty"`
}

// handleQuizStatus handles GET /api/quiz/status
func (s *Server) handleQuizStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.quiz == nil {
		http.Error(w, "Quiz not running", http.StatusServiceUnavailable)
		return
	}

	areas := s.quiz.Areas()
	result := make([]areaStatus, 0, len(areas))
	for _, area := range areas {
		status := areaStatus{
			Name:              area.Name,
			ChannelID:         area.ChannelID,
			Active:            area.Active,
			Language:          area.Language,
			WindowMinutes:     area.WindowMinutes(),
			ActivityThreshold: area.ActivityThreshold,
		}
		if rem, err := s.quiz.Remaining(area.Name); err == nil {
			status.Remaining = &rem
		}
		result = append(result, status)
	}

	writeJSON(w, http.StatusOK, map[string]any{"areas": result})
}

// handleQuizAnswers handles GET /api/quiz/answers
func handleQuizAnswers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	days := 7
	if daysStr := r.URL.Query().Get("days"); daysStr != "" {
		if parsed, err := strconv.Atoi(daysStr); err == nil && parsed > 0 {
			days = parsed
		}
	}

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	cutoff := time.Now().AddDate(0, 0, -days).Unix()
	rows, err := localdb.GetQuizAnswersSince(cutoff, limit)
	if err != nil {
		logger.Error("Failed to get quiz answers", zap.Error(err))
		http.Error(w, "Failed to fetch quiz answers", http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []localdb.QuizAnswerRow{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"answers": rows,
		"count":   len(rows),
	})
}
