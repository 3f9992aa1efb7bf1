package localdb

import (
	"database/sql"
	"fmt"

	"github.com/ichi0g0y/champion-bot/internal/shared/logger"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

var DBClient *sql.DB

var errNotInitialized = fmt.Errorf("database not initialized")

func SetupDB(dbPath string) (*sql.DB, error) {
	if DBClient != nil {
		return DBClient, nil
	}

	// WAL and busy timeout so concurrent readers do not fail while the ledger writes
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	// SQLite has a single writer
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		setting_type TEXT NOT NULL DEFAULT 'normal',
		is_required BOOLEAN NOT NULL DEFAULT false,
		description TEXT,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		logger.Error("Failed to create settings table", zap.Error(err))
		_ = db.Close()
		return nil, fmt.Errorf("failed to create settings table: %w", err)
	}

	setups := []func(*sql.DB) error{
		SetupChampionTables,
		SetupDuelResultsTable,
		SetupQuizStateTable,
		SetupQuizAreasTable,
		SetupQuizAnswersTable,
	}
	for _, setup := range setups {
		if err := setup(db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	DBClient = db
	return db, nil
}

// GetDB returns the current database connection.
func GetDB() *sql.DB {
	return DBClient
}
