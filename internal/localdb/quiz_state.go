package localdb

import (
	"database/sql"
	"fmt"

	"github.com/ichi0g0y/champion-bot/internal/shared/logger"
	"go.uber.org/zap"
)

// SetupQuizStateTable creates the single-row quiz_state document table.
func SetupQuizStateTable(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS quiz_state (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			document TEXT NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		logger.Error("Failed to create quiz_state table", zap.Error(err))
		return fmt.Errorf("failed to create quiz_state table: %w", err)
	}
	return nil
}

// LoadQuizState returns the stored document, or nil when none was saved.
func LoadQuizState() ([]byte, error) {
	db := GetDB()
	if db == nil {
		return nil, errNotInitialized
	}

	var document string
	err := db.QueryRow(`SELECT document FROM quiz_state WHERE id = 1`).Scan(&document)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		logger.Error("Failed to load quiz state", zap.Error(err))
		return nil, fmt.Errorf("failed to load quiz state: %w", err)
	}
	return []byte(document), nil
}

// SaveQuizState replaces the stored document.
func SaveQuizState(document []byte) error {
	db := GetDB()
	if db == nil {
		return errNotInitialized
	}

	_, err := db.Exec(`
		INSERT INTO quiz_state (id, document, updated_at)
		VALUES (1, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			document = excluded.document,
			updated_at = CURRENT_TIMESTAMP`, string(document))
	if err != nil {
		logger.Error("Failed to save quiz state", zap.Error(err))
		return fmt.Errorf("failed to save quiz state: %w", err)
	}
	return nil
}
