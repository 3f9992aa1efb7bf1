package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ichi0g0y/champion-bot/internal/champion"
	"github.com/ichi0g0y/champion-bot/internal/discord"
	"github.com/ichi0g0y/champion-bot/internal/duel"
	"github.com/ichi0g0y/champion-bot/internal/env"
	"github.com/ichi0g0y/champion-bot/internal/localdb"
	"github.com/ichi0g0y/champion-bot/internal/questionpool"
	"github.com/ichi0g0y/champion-bot/internal/quiz"
	"github.com/ichi0g0y/champion-bot/internal/quizstate"
	"github.com/ichi0g0y/champion-bot/internal/settings"
	"github.com/ichi0g0y/champion-bot/internal/shared/logger"
	"github.com/ichi0g0y/champion-bot/internal/shared/paths"
	"github.com/ichi0g0y/champion-bot/internal/version"
	"github.com/ichi0g0y/champion-bot/internal/webserver"
	"go.uber.org/zap"
)

func main() {
	logger.Init(false)
	defer logger.Sync()

	logger.Info("Starting champion-bot", zap.String("version", version.String()))

	if err := paths.EnsureDataDirs(); err != nil {
		logger.Fatal("Failed to ensure data directories", zap.Error(err))
	}

	db, err := localdb.SetupDB(paths.GetDBPath())
	if err != nil {
		logger.Fatal("Failed to setup database", zap.Error(err))
	}

	// env.LoadEnv must run after DB initialization.
	env.LoadEnv()
	if env.Value.DebugMode {
		logger.Init(true)
		logger.Info("Debug mode enabled")
	}

	sm := settings.NewSettingsManager(db)
	if err := sm.InitializeDefaultSettings(); err != nil {
		logger.Warn("Failed to initialize default settings", zap.Error(err))
	}
	status, err := sm.CheckFeatureStatus()
	if err != nil {
		logger.Fatal("Failed to check settings", zap.Error(err))
	}
	for _, w := range status.Warnings {
		logger.Warn("Configuration warning", zap.String("warning", w))
	}
	if !status.DiscordConfigured || env.Value.DiscordToken == nil || env.Value.GuildID == nil {
		logger.Fatal("Discord is not configured",
			zap.String("missing", strings.Join(status.MissingSettings, ", ")))
	}

	state, err := quizstate.Open(quizstate.NewDBStore())
	if err != nil {
		logger.Fatal("Failed to load quiz state", zap.Error(err))
	}
	pool := questionpool.New(state)

	areas, err := localdb.GetQuizAreas()
	if err != nil {
		logger.Fatal("Failed to load quiz areas", zap.Error(err))
	}
	loadQuestionSources(pool, areas)

	ledger := champion.NewLedger(env.Value.ChampionRoles)
	hub := webserver.NewHub()

	platform, err := discord.New(discord.Config{
		Token:         *env.Value.DiscordToken,
		GuildID:       *env.Value.GuildID,
		InviteTimeout: env.Value.DuelInviteTimeout,
	})
	if err != nil {
		logger.Fatal("Failed to create Discord client", zap.Error(err))
	}

	manager := quiz.NewManager(quiz.Options{
		Chat:            platform,
		State:           state,
		Pool:            pool,
		Areas:           quiz.DBAreaStore{},
		Ledger:          ledger,
		Answers:         quiz.DBAnswerLog{},
		Events:          hub,
		CorrectPoints:   env.Value.QuizCorrectPoints,
		QuestionsDir:    env.Value.QuestionsDir,
		DefaultLanguage: env.Value.QuizDefaultLanguage,
		AnswerRetention: env.Value.QuizAnswerRetention,
	}, areas)

	engine := duel.NewEngine(duel.Options{
		Ledger:        ledger,
		Questions:     pool,
		Presenter:     platform,
		Events:        hub,
		InviteTimeout: env.Value.DuelInviteTimeout,
	})

	ledger.SetRoleSyncer(platform)
	platform.Attach(discord.Services{Quiz: manager, Duels: engine, Stats: ledger})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server := webserver.NewServer(hub, manager, ledger, engine)
	if err := server.Start(ctx, env.Value.ServerPort); err != nil {
		logger.Fatal("Failed to start web server", zap.Error(err))
	}

	if err := platform.Open(ctx); err != nil {
		logger.Fatal("Failed to connect to Discord", zap.Error(err))
	}

	if err := manager.Backfill(ctx); err != nil {
		logger.Warn("Activity back-fill incomplete", zap.Error(err))
	}
	manager.Start(ctx)

	logger.Info("Bot started",
		zap.Int("areas", len(areas)),
		zap.String("status", fmt.Sprintf("http://localhost:%d/api/quiz/status", env.Value.ServerPort)))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")

	// duels refund and announce through Discord, so the gateway closes after them
	manager.Shutdown()
	engine.Shutdown()
	if err := platform.Close(); err != nil {
		logger.Warn("Failed to close Discord connection", zap.Error(err))
	}
	cancel()
	server.Shutdown()

	logger.Info("Shutdown complete")
}
