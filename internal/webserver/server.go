package webserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/ichi0g0y/champion-bot/internal/duel"
	"github.com/ichi0g0y/champion-bot/internal/localdb"
	"github.com/ichi0g0y/champion-bot/internal/quiz"
	"github.com/ichi0g0y/champion-bot/internal/settings"
	"github.com/ichi0g0y/champion-bot/internal/shared/logger"
	"github.com/ichi0g0y/champion-bot/internal/types"
	"github.com/ichi0g0y/champion-bot/internal/version"
	"go.uber.org/zap"
)

// QuizStatus is the read side of the quiz manager.
type QuizStatus interface {
	Areas() []types.Area
	Remaining(name string) (quiz.Remaining, error)
}

// Leaderboards is the read side of the champion ledger.
type Leaderboards interface {
	Leaderboard(ctx context.Context, limit int) ([]localdb.ChampionTotal, error)
	DuelLeaderboard(ctx context.Context, limit int) ([]types.DuelStats, error)
	DuelStats(ctx context.Context, userID string) (types.DuelStats, error)
}

// LiveDuels is the read side of the duel engine.
type LiveDuels interface {
	Sessions() []duel.Summary
	Session(duelID string) (duel.Summary, bool)
}

type Server struct {
	hub          *Hub
	quiz         QuizStatus
	leaderboards Leaderboards
	duels        LiveDuels
	httpServer   *http.Server
	started      time.Time
}

func NewServer(hub *Hub, quizStatus QuizStatus, leaderboards Leaderboards, duels LiveDuels) *Server {
	if hub == nil {
		hub = NewHub()
	}
	return &Server{hub: hub, quiz: quizStatus, leaderboards: leaderboards, duels: duels, started: time.Now()}
}

// corsMiddleware adds CORS headers to HTTP handlers
func corsMiddleware(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		handler(w, r)
	}
}

// Handler returns the router of the status API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/ws", s.hub)

	mux.HandleFunc("/api/quiz/status", corsMiddleware(s.handleQuizStatus))
	mux.HandleFunc("/api/quiz/answers", corsMiddleware(handleQuizAnswers))
	mux.HandleFunc("/api/duels/leaderboard", corsMiddleware(s.handleDuelLeaderboard))
	mux.HandleFunc("/api/duels/stats", corsMiddleware(s.handleDuelStats))
	mux.HandleFunc("/api/duels/live", corsMiddleware(s.handleLiveDuels))
	mux.HandleFunc("/api/champions/leaderboard", corsMiddleware(s.handleChampionLeaderboard))
	mux.HandleFunc("/api/settings/status", corsMiddleware(handleSettingsStatus))

	return mux
}

// Start runs the hub and listens on port in the background.
func (s *Server) Start(ctx context.Context, port int) error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", port, err)
	}

	go s.hub.Run(ctx)

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Web server stopped", zap.Error(err))
		}
	}()

	logger.Info("Web server started", zap.Int("port", port))
	return nil
}

func (s *Server) Shutdown() {
	if s.httpServer == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown web server gracefully", zap.Error(err))
	} else {
		logger.Info("Web server shutdown complete")
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"version":   version.String(),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
		"ws_client": s.hub.ClientCount(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func handleSettingsStatus(w http.ResponseWriter, r *http.Request) {
	db := localdb.GetDB()
	if db == nil {
		http.Error(w, "Database not initialized", http.StatusServiceUnavailable)
		return
	}
	status, err := settings.NewSettingsManager(db).CheckFeatureStatus()
	if err != nil {
		logger.Error("Failed to check feature status", zap.Error(err))
		http.Error(w, "Failed to check feature status", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, status)
}
