package env

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/ichi0g0y/champion-bot/internal/localdb"
	"github.com/ichi0g0y/champion-bot/internal/settings"
)

func resetDB(t *testing.T) {
	t.Helper()
	if localdb.DBClient != nil {
		_ = localdb.DBClient.Close()
		localdb.DBClient = nil
	}
	t.Cleanup(func() {
		if localdb.DBClient != nil {
			_ = localdb.DBClient.Close()
			localdb.DBClient = nil
		}
	})
}

func TestLoadEnvWithoutDatabase(t *testing.T) {
	resetDB(t)
	t.Setenv("CHAMPION_BOT_DATA_DIR", t.TempDir())
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("CHAMPION_ROLES", "150:Silver,50:Bronze")
	t.Setenv("DUEL_INVITE_TIMEOUT", "")
	t.Setenv("QUESTIONS_DIR", "")
	t.Setenv("DISCORD_GUILD_ID", "")
	t.Setenv("QUIZ_CORRECT_POINTS", "")

	LoadEnv()

	if Value.DiscordToken == nil || *Value.DiscordToken != "token" {
		t.Fatalf("unexpected token: %v", Value.DiscordToken)
	}
	if Value.GuildID != nil {
		t.Fatalf("GuildID should be nil when unset")
	}
	if Value.ServerPort != 9000 {
		t.Fatalf("unexpected port: got=%d want=9000", Value.ServerPort)
	}
	if Value.DuelInviteTimeout != 60*time.Second {
		t.Fatalf("unexpected invite timeout: %v", Value.DuelInviteTimeout)
	}
	if Value.QuizCorrectPoints != 5 {
		t.Fatalf("unexpected quiz points: %d", Value.QuizCorrectPoints)
	}
	if Value.QuizAnswerRetention != 7*24*time.Hour {
		t.Fatalf("unexpected answer retention: %v", Value.QuizAnswerRetention)
	}
	if len(Value.ChampionRoles) != 2 || Value.ChampionRoles[0].Role != "Bronze" {
		t.Fatalf("unexpected roles: %+v", Value.ChampionRoles)
	}
	if Value.QuestionsDir == "" {
		t.Fatalf("QuestionsDir should default to the data dir")
	}
}

func TestLoadEnvStoredSettingsWin(t *testing.T) {
	resetDB(t)
	db, err := localdb.SetupDB(filepath.Join(t.TempDir(), "local.db"))
	if err != nil {
		t.Fatalf("SetupDB failed: %v", err)
	}
	sm := settings.NewSettingsManager(db)
	if err := sm.SetSetting("QUIZ_CORRECT_POINTS", "12"); err != nil {
		t.Fatalf("SetSetting failed: %v", err)
	}

	t.Setenv("QUIZ_CORRECT_POINTS", "3")
	t.Setenv("DUEL_INVITE_TIMEOUT", "120")
	t.Setenv("DEBUG_MODE", "true")

	LoadEnv()

	if Value.QuizCorrectPoints != 12 {
		t.Fatalf("stored setting should win: got=%d want=12", Value.QuizCorrectPoints)
	}
	if Value.DuelInviteTimeout != 2*time.Minute {
		t.Fatalf("env value should be migrated: got=%v", Value.DuelInviteTimeout)
	}
	if !Value.DebugMode {
		t.Fatalf("DebugMode should be enabled")
	}
}
