// Package env resolves the bot configuration from .env, the process
// environment and the settings table. Stored settings win over the environment.
package env

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ichi0g0y/champion-bot/internal/champion"
	"github.com/ichi0g0y/champion-bot/internal/localdb"
	"github.com/ichi0g0y/champion-bot/internal/settings"
	"github.com/ichi0g0y/champion-bot/internal/shared/logger"
	"github.com/ichi0g0y/champion-bot/internal/shared/paths"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type EnvValue struct {
	DiscordToken *string
	GuildID      *string
	ServerPort   int
	DebugMode    bool

	QuestionsDir        string
	UnitsFile           string
	QuizCorrectPoints   int
	QuizDefaultLanguage string
	QuizAnswerRetention time.Duration

	DuelInviteTimeout time.Duration
	ChampionRoles     []champion.Threshold
}

var Value EnvValue

// LoadEnv fills Value. It must run after localdb.SetupDB so stored settings
// are visible; without a database only the environment is read.
func LoadEnv() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warn("Failed to load .env file", zap.Error(err))
	}

	var get func(string) string
	if db := localdb.GetDB(); db != nil {
		sm := settings.NewSettingsManager(db)
		if err := sm.MigrateFromEnv(); err != nil {
			logger.Warn("Failed to migrate settings from environment", zap.Error(err))
		}
		get = func(key string) string {
			value, err := sm.GetRealValue(key)
			if err != nil {
				return os.Getenv(key)
			}
			return value
		}
	} else {
		get = func(key string) string {
			if value := os.Getenv(key); value != "" {
				return value
			}
			return settings.DefaultSettings[key].Value
		}
	}

	Value = EnvValue{
		DiscordToken:        optional(get("DISCORD_TOKEN")),
		GuildID:             optional(get("DISCORD_GUILD_ID")),
		ServerPort:          intValue(get, "SERVER_PORT", 8080),
		DebugMode:           get("DEBUG_MODE") == "true",
		QuestionsDir:        get("QUESTIONS_DIR"),
		UnitsFile:           get("UNITS_FILE"),
		QuizCorrectPoints:   intValue(get, "QUIZ_CORRECT_POINTS", 5),
		QuizDefaultLanguage: get("QUIZ_DEFAULT_LANGUAGE"),
		QuizAnswerRetention: time.Duration(intValue(get, "QUIZ_ANSWER_RETENTION_DAYS", 7)) * 24 * time.Hour,
		DuelInviteTimeout:   time.Duration(intValue(get, "DUEL_INVITE_TIMEOUT", 60)) * time.Second,
	}
	if Value.QuestionsDir == "" {
		Value.QuestionsDir = paths.GetDefaultQuestionsDir()
	}

	roles, err := champion.ParseThresholds(get("CHAMPION_ROLES"))
	if err != nil {
		logger.Warn("Ignoring invalid CHAMPION_ROLES", zap.Error(err))
	}
	Value.ChampionRoles = roles

	logger.Debug("Environment loaded",
		zap.Bool("discord_token_set", Value.DiscordToken != nil),
		zap.Int("server_port", Value.ServerPort),
		zap.String("questions_dir", Value.QuestionsDir),
		zap.Int("champion_roles", len(Value.ChampionRoles)))
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func intValue(get func(string) string, key string, fallback int) int {
	raw := strings.TrimSpace(get(key))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		logger.Warn("Invalid integer setting, using default",
			zap.String("key", key), zap.String("value", raw), zap.Int("default", fallback))
		return fallback
	}
	return n
}
