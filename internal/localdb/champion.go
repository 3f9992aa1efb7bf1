package localdb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ichi0g0y/champion-bot/internal/shared/logger"
	"github.com/ichi0g0y/champion-bot/internal/types"
	"go.uber.org/zap"
)

// ChampionTotal is the current point total of one user.
type ChampionTotal struct {
	UserID    string    `json:"user_id"`
	Total     int       `json:"total"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SetupChampionTables creates the append-only champion_log and the derived champion_totals.
func SetupChampionTables(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS champion_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			delta INTEGER NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		logger.Error("Failed to create champion_log table", zap.Error(err))
		return fmt.Errorf("failed to create champion_log table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS champion_totals (
			user_id TEXT PRIMARY KEY,
			total INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		logger.Error("Failed to create champion_totals table", zap.Error(err))
		return fmt.Errorf("failed to create champion_totals table: %w", err)
	}

	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_champion_log_user_id ON champion_log(user_id, created_at DESC)`); err != nil {
		logger.Warn("Failed to create champion_log index", zap.Error(err))
	}

	return nil
}

// GetChampionTotal returns the point total of a user (0 when unknown).
func GetChampionTotal(ctx context.Context, userID string) (int, error) {
	db := GetDB()
	if db == nil {
		return 0, errNotInitialized
	}

	var total int
	err := db.QueryRowContext(ctx, `SELECT total FROM champion_totals WHERE user_id = ?`, userID).Scan(&total)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		logger.Error("Failed to get champion total", zap.Error(err), zap.String("user_id", userID))
		return 0, fmt.Errorf("failed to get champion total: %w", err)
	}
	return total, nil
}

// AddChampionDelta appends a log row and recomputes the total in one transaction.
// Returns the new total.
func AddChampionDelta(ctx context.Context, userID string, delta int, reason string) (int, error) {
	db := GetDB()
	if db == nil {
		return 0, errNotInitialized
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("Failed to begin champion transaction", zap.Error(err))
		return 0, fmt.Errorf("failed to begin champion transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO champion_log (user_id, delta, reason) VALUES (?, ?, ?)`,
		userID, delta, reason,
	); err != nil {
		logger.Error("Failed to insert champion log", zap.Error(err), zap.String("user_id", userID))
		return 0, fmt.Errorf("failed to insert champion log: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO champion_totals (user_id, total, updated_at)
		VALUES (?, (SELECT COALESCE(SUM(delta), 0) FROM champion_log WHERE user_id = ?), CURRENT_TIMESTAMP)
		ON CONFLICT(user_id) DO UPDATE SET
			total = excluded.total,
			updated_at = CURRENT_TIMESTAMP`,
		userID, userID,
	); err != nil {
		logger.Error("Failed to update champion total", zap.Error(err), zap.String("user_id", userID))
		return 0, fmt.Errorf("failed to update champion total: %w", err)
	}

	var total int
	if err := tx.QueryRowContext(ctx, `SELECT total FROM champion_totals WHERE user_id = ?`, userID).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to read champion total: %w", err)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("Failed to commit champion transaction", zap.Error(err))
		return 0, fmt.Errorf("failed to commit champion transaction: %w", err)
	}

	logger.Debug("Champion points changed",
		zap.String("user_id", userID), zap.Int("delta", delta), zap.String("reason", reason), zap.Int("total", total))
	return total, nil
}

// GetChampionLog returns the latest ledger rows of a user.
func GetChampionLog(ctx context.Context, userID string, limit int) ([]types.LedgerEntry, error) {
	db := GetDB()
	if db == nil {
		return nil, errNotInitialized
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, user_id, delta, reason, created_at
		FROM champion_log
		WHERE user_id = ?
		ORDER BY id DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		logger.Error("Failed to get champion log", zap.Error(err))
		return nil, fmt.Errorf("failed to get champion log: %w", err)
	}
	defer rows.Close()

	entries := []types.LedgerEntry{}
	for rows.Next() {
		var e types.LedgerEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Delta, &e.Reason, &e.CreatedAt); err != nil {
			logger.Error("Failed to scan champion log row", zap.Error(err))
			continue
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// GetChampionLeaderboard returns the users with the highest totals.
func GetChampionLeaderboard(ctx context.Context, limit int) ([]ChampionTotal, error) {
	db := GetDB()
	if db == nil {
		return nil, errNotInitialized
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := db.QueryContext(ctx, `
		SELECT user_id, total, updated_at
		FROM champion_totals
		ORDER BY total DESC, user_id ASC
		LIMIT ?`, limit)
	if err != nil {
		logger.Error("Failed to get champion leaderboard", zap.Error(err))
		return nil, fmt.Errorf("failed to get champion leaderboard: %w", err)
	}
	defer rows.Close()

	totals := []ChampionTotal{}
	for rows.Next() {
		var t ChampionTotal
		if err := rows.Scan(&t.UserID, &t.Total, &t.UpdatedAt); err != nil {
			logger.Error("Failed to scan champion total", zap.Error(err))
			continue
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}
