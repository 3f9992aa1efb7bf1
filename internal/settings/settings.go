package settings

import (
	"database/sql"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/ichi0g0y/champion-bot/internal/champion"
	"github.com/ichi0g0y/champion-bot/internal/language"
	"github.com/ichi0g0y/champion-bot/internal/shared/logger"
	"go.uber.org/zap"
)

type SettingType string

const (
	SettingTypeNormal SettingType = "normal"
	SettingTypeSecret SettingType = "secret"
)

type Setting struct {
	Key         string      `json:"key"`
	Value       string      `json:"value"`
	Type        SettingType `json:"type"`
	Required    bool        `json:"required"`
	Description string      `json:"description"`
	UpdatedAt   time.Time   `json:"updated_at"`
	HasValue    bool        `json:"has_value"`
}

type SettingsManager struct {
	db *sql.DB
}

func NewSettingsManager(db *sql.DB) *SettingsManager {
	return &SettingsManager{db: db}
}

var snowflakePattern = regexp.MustCompile(`^[0-9]{15,20}$`)

// DefaultSettings lists every known key with its default value.
var DefaultSettings = map[string]Setting{
	// Discord
	"DISCORD_TOKEN": {
		Key: "DISCORD_TOKEN", Value: "", Type: SettingTypeSecret, Required: true,
		Description: "Discord bot token",
	},
	"DISCORD_GUILD_ID": {
		Key: "DISCORD_GUILD_ID", Value: "", Type: SettingTypeNormal, Required: true,
		Description: "Guild the slash commands are registered in",
	},

	// quiz
	"QUESTIONS_DIR": {
		Key: "QUESTIONS_DIR", Value: "", Type: SettingTypeNormal, Required: false,
		Description: "Directory with <area>/<lang>.json question banks (default: data dir/questions)",
	},
	"UNITS_FILE": {
		Key: "UNITS_FILE", Value: "", Type: SettingTypeNormal, Required: false,
		Description: "Unit reference JSON for the wcr comparison questions",
	},
	"QUIZ_CORRECT_POINTS": {
		Key: "QUIZ_CORRECT_POINTS", Value: "5", Type: SettingTypeNormal, Required: false,
		Description: "Champion points for a correct quiz answer",
	},
	"QUIZ_DEFAULT_LANGUAGE": {
		Key: "QUIZ_DEFAULT_LANGUAGE", Value: language.Default, Type: SettingTypeNormal, Required: false,
		Description: "Language of newly enabled quiz areas",
	},

	// duel
	"DUEL_INVITE_TIMEOUT": {
		Key: "DUEL_INVITE_TIMEOUT", Value: "60", Type: SettingTypeNormal, Required: false,
		Description: "Seconds an unaccepted duel invite stays open",
	},
	"QUIZ_ANSWER_RETENTION_DAYS": {
		Key: "QUIZ_ANSWER_RETENTION_DAYS", Value: "7", Type: SettingTypeNormal, Required: false,
		Description: "Days submitted quiz answers are kept",
	},
	"CHAMPION_ROLES": {
		Key: "CHAMPION_ROLES", Value: "", Type: SettingTypeNormal, Required: false,
		Description: "Champion role thresholds, e.g. 50:Bronze,150:Silver,400:Gold",
	},

	// server
	"SERVER_PORT": {
		Key: "SERVER_PORT", Value: "8080", Type: SettingTypeNormal, Required: false,
		Description: "Port of the status API and live event feed",
	},
	"DEBUG_MODE": {
		Key: "DEBUG_MODE", Value: "false", Type: SettingTypeNormal, Required: false,
		Description: "Enable development logging",
	},
}

type FeatureStatus struct {
	DiscordConfigured bool     `json:"discord_configured"`
	MissingSettings   []string `json:"missing_settings"`
	Warnings          []string `json:"warnings"`
	ServiceMode       bool     `json:"service_mode"`
}

func (sm *SettingsManager) CheckFeatureStatus() (*FeatureStatus, error) {
	status := &FeatureStatus{
		MissingSettings: []string{},
		Warnings:        []string{},
		ServiceMode:     os.Getenv("RUNNING_AS_SERVICE") == "true",
	}

	discordComplete := true
	for _, key := range []string{"DISCORD_TOKEN", "DISCORD_GUILD_ID"} {
		if val, err := sm.GetSetting(key); err != nil || val == "" {
			status.MissingSettings = append(status.MissingSettings, key)
			discordComplete = false
		}
	}
	status.DiscordConfigured = discordComplete

	if roles, _ := sm.GetSetting("CHAMPION_ROLES"); roles == "" {
		status.Warnings = append(status.Warnings, "CHAMPION_ROLES is empty - no champion roles will be assigned")
	}
	if units, _ := sm.GetSetting("UNITS_FILE"); units == "" {
		status.Warnings = append(status.Warnings, "UNITS_FILE is empty - the wcr area falls back to its static bank")
	}

	return status, nil
}

func (sm *SettingsManager) GetSetting(key string) (string, error) {
	var value string
	err := sm.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		if defaultSetting, exists := DefaultSettings[key]; exists {
			return defaultSetting.Value, nil
		}
		return "", fmt.Errorf("setting not found: %s", key)
	}
	return value, err
}

func (sm *SettingsManager) SetSetting(key, value string) error {
	defaultSetting, exists := DefaultSettings[key]
	if !exists {
		return fmt.Errorf("unknown setting key: %s", key)
	}
	if err := ValidateSetting(key, value); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}

	_, err := sm.db.Exec(`
		INSERT INTO settings (key, value, setting_type, is_required, description)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP`,
		key, value,
		string(defaultSetting.Type),
		defaultSetting.Required,
		defaultSetting.Description,
	)
	return err
}

func (sm *SettingsManager) GetAllSettings() (map[string]Setting, error) {
	rows, err := sm.db.Query(`
		SELECT key, value, setting_type, is_required, description, updated_at
		FROM settings ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	settings := make(map[string]Setting)
	for rows.Next() {
		var s Setting
		var settingType string
		var description sql.NullString
		if err := rows.Scan(&s.Key, &s.Value, &settingType, &s.Required, &description, &s.UpdatedAt); err != nil {
			return nil, err
		}
		s.Type = SettingType(settingType)
		s.Description = description.String
		s.HasValue = s.Value != ""
		// secrets never leave the process
		if s.Type == SettingTypeSecret {
			s.Value = ""
		}
		settings[s.Key] = s
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for key, defaultSetting := range DefaultSettings {
		if _, exists := settings[key]; !exists {
			settings[key] = defaultSetting
		}
	}

	return settings, nil
}

// GetRealValue returns the stored value or the default, secrets included.
func (sm *SettingsManager) GetRealValue(key string) (string, error) {
	return sm.GetSetting(key)
}

// MigrateFromEnv copies environment values into the settings table for keys
// that have no stored value yet.
func (sm *SettingsManager) MigrateFromEnv() error {
	migrated := 0

	for key := range DefaultSettings {
		var existingKey string
		if err := sm.db.QueryRow("SELECT key FROM settings WHERE key = ?", key).Scan(&existingKey); err == nil {
			continue
		}

		if envValue := os.Getenv(key); envValue != "" {
			if err := sm.SetSetting(key, envValue); err != nil {
				logger.Error("Failed to migrate setting", zap.String("key", key), zap.Error(err))
				return fmt.Errorf("failed to migrate %s: %w", key, err)
			}
			logger.Info("Migrated setting from environment", zap.String("key", key))
			migrated++
		}
	}

	if migrated > 0 {
		logger.Info("Migration completed", zap.Int("migrated_count", migrated))
		if hasSecretInEnv() {
			logger.Warn("SECURITY WARNING: DISCORD_TOKEN found in environment variables.")
			logger.Warn("Please remove it from the .env file after confirming the migration is successful.")
		}
	}

	return nil
}

func hasSecretInEnv() bool {
	for key, s := range DefaultSettings {
		if s.Type == SettingTypeSecret && os.Getenv(key) != "" {
			return true
		}
	}
	return false
}

func ValidateSetting(key, value string) error {
	switch key {
	case "SERVER_PORT":
		if val, err := strconv.Atoi(value); err != nil || val < 1 || val > 65535 {
			return fmt.Errorf("must be integer between 1 and 65535")
		}
	case "QUIZ_CORRECT_POINTS":
		if val, err := strconv.Atoi(value); err != nil || val < 0 || val > 1000 {
			return fmt.Errorf("must be integer between 0 and 1000")
		}
	case "DUEL_INVITE_TIMEOUT":
		if val, err := strconv.Atoi(value); err != nil || val < 10 || val > 600 {
			return fmt.Errorf("must be integer between 10 and 600 seconds")
		}
	case "QUIZ_ANSWER_RETENTION_DAYS":
		if val, err := strconv.Atoi(value); err != nil || val < 1 || val > 365 {
			return fmt.Errorf("must be integer between 1 and 365 days")
		}
	case "DISCORD_GUILD_ID":
		if value != "" && !snowflakePattern.MatchString(value) {
			return fmt.Errorf("invalid guild ID (expected a Discord snowflake)")
		}
	case "CHAMPION_ROLES":
		if _, err := champion.ParseThresholds(value); err != nil {
			return err
		}
	case "QUIZ_DEFAULT_LANGUAGE":
		if !language.IsSupported(value) {
			return fmt.Errorf("unsupported language: %s", value)
		}
	case "DEBUG_MODE":
		if value != "true" && value != "false" {
			return fmt.Errorf("must be 'true' or 'false'")
		}
	}
	return nil
}

// InitializeDefaultSettings stores the default of every key that has no value yet.
func (sm *SettingsManager) InitializeDefaultSettings() error {
	for key, setting := range DefaultSettings {
		var existingKey string
		if err := sm.db.QueryRow("SELECT key FROM settings WHERE key = ?", key).Scan(&existingKey); err == nil {
			continue
		}
		if setting.Value == "" {
			continue
		}
		if err := sm.SetSetting(key, setting.Value); err != nil {
			return fmt.Errorf("failed to initialize setting %s: %w", key, err)
		}
	}
	return nil
}
