package localdb

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ichi0g0y/champion-bot/internal/shared/logger"
	"github.com/ichi0g0y/champion-bot/internal/types"
	"go.uber.org/zap"
)

// SetupQuizAreasTable creates the quiz_areas config table.
func SetupQuizAreasTable(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS quiz_areas (
			name TEXT PRIMARY KEY,
			channel_id TEXT NOT NULL DEFAULT '',
			window_timer INTEGER NOT NULL DEFAULT 15,
			language TEXT NOT NULL DEFAULT 'deu',
			active BOOLEAN NOT NULL DEFAULT false,
			activity_threshold INTEGER NOT NULL DEFAULT 10,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		logger.Error("Failed to create quiz_areas table", zap.Error(err))
		return fmt.Errorf("failed to create quiz_areas table: %w", err)
	}
	return nil
}

// GetQuizAreas returns every configured area ordered by name.
func GetQuizAreas() ([]types.Area, error) {
	db := GetDB()
	if db == nil {
		return nil, errNotInitialized
	}

	rows, err := db.Query(`
		SELECT name, channel_id, window_timer, language, active, activity_threshold
		FROM quiz_areas
		ORDER BY name ASC`)
	if err != nil {
		logger.Error("Failed to get quiz areas", zap.Error(err))
		return nil, fmt.Errorf("failed to get quiz areas: %w", err)
	}
	defer rows.Close()

	areas := []types.Area{}
	for rows.Next() {
		area, err := scanArea(rows)
		if err != nil {
			logger.Error("Failed to scan quiz area", zap.Error(err))
			continue
		}
		areas = append(areas, area)
	}
	return areas, rows.Err()
}

// GetQuizArea returns one area, or nil when it does not exist.
func GetQuizArea(name string) (*types.Area, error) {
	db := GetDB()
	if db == nil {
		return nil, errNotInitialized
	}

	row := db.QueryRow(`
		SELECT name, channel_id, window_timer, language, active, activity_threshold
		FROM quiz_areas
		WHERE name = ?`, name)
	area, err := scanArea(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		logger.Error("Failed to get quiz area", zap.Error(err), zap.String("area", name))
		return nil, fmt.Errorf("failed to get quiz area: %w", err)
	}
	return &area, nil
}

// SaveQuizArea upserts an area.
func SaveQuizArea(area types.Area) error {
	db := GetDB()
	if db == nil {
		return errNotInitialized
	}

	_, err := db.Exec(`
		INSERT INTO quiz_areas (name, channel_id, window_timer, language, active, activity_threshold, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(name) DO UPDATE SET
			channel_id = excluded.channel_id,
			window_timer = excluded.window_timer,
			language = excluded.language,
			active = excluded.active,
			activity_threshold = excluded.activity_threshold,
			updated_at = CURRENT_TIMESTAMP`,
		area.Name, area.ChannelID, area.WindowMinutes(), area.Language, area.Active, area.ActivityThreshold,
	)
	if err != nil {
		logger.Error("Failed to save quiz area", zap.Error(err), zap.String("area", area.Name))
		return fmt.Errorf("failed to save quiz area: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArea(row rowScanner) (types.Area, error) {
	var (
		area    types.Area
		minutes int
	)
	if err := row.Scan(&area.Name, &area.ChannelID, &minutes, &area.Language, &area.Active, &area.ActivityThreshold); err != nil {
		return types.Area{}, err
	}
	area.TimeWindow = time.Duration(minutes) * time.Minute
	return area, nil
}
