package localdb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ichi0g0y/champion-bot/internal/shared/logger"
	"github.com/ichi0g0y/champion-bot/internal/types"
	"go.uber.org/zap"
)

// SetupDuelResultsTable creates the duel_results table.
func SetupDuelResultsTable(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS duel_results (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			result TEXT NOT NULL CHECK (result IN ('win', 'loss', 'tie')),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		logger.Error("Failed to create duel_results table", zap.Error(err))
		return fmt.Errorf("failed to create duel_results table: %w", err)
	}

	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_duel_results_user_id ON duel_results(user_id)`); err != nil {
		logger.Warn("Failed to create duel_results index", zap.Error(err))
	}
	return nil
}

// RecordDuelResult appends one outcome for a user.
func RecordDuelResult(ctx context.Context, userID string, outcome types.DuelOutcome) error {
	db := GetDB()
	if db == nil {
		return errNotInitialized
	}

	if _, err := db.ExecContext(ctx, `INSERT INTO duel_results (user_id, result) VALUES (?, ?)`, userID, string(outcome)); err != nil {
		logger.Error("Failed to record duel result", zap.Error(err),
			zap.String("user_id", userID), zap.String("result", string(outcome)))
		return fmt.Errorf("failed to record duel result: %w", err)
	}
	return nil
}

// GetDuelStats aggregates the outcomes of one user.
func GetDuelStats(ctx context.Context, userID string) (types.DuelStats, error) {
	stats := types.DuelStats{UserID: userID}

	db := GetDB()
	if db == nil {
		return stats, errNotInitialized
	}

	err := db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN result = 'win' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN result = 'loss' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN result = 'tie' THEN 1 ELSE 0 END), 0)
		FROM duel_results
		WHERE user_id = ?`, userID).Scan(&stats.Wins, &stats.Losses, &stats.Ties)
	if err != nil {
		logger.Error("Failed to get duel stats", zap.Error(err), zap.String("user_id", userID))
		return stats, fmt.Errorf("failed to get duel stats: %w", err)
	}
	return stats, nil
}

// GetDuelLeaderboard ranks users by wins, then by fewer losses.
func GetDuelLeaderboard(ctx context.Context, limit int) ([]types.DuelStats, error) {
	db := GetDB()
	if db == nil {
		return nil, errNotInitialized
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := db.QueryContext(ctx, `
		SELECT
			user_id,
			SUM(CASE WHEN result = 'win' THEN 1 ELSE 0 END) AS wins,
			SUM(CASE WHEN result = 'loss' THEN 1 ELSE 0 END) AS losses,
			SUM(CASE WHEN result = 'tie' THEN 1 ELSE 0 END) AS ties
		FROM duel_results
		GROUP BY user_id
		ORDER BY wins DESC, losses ASC, user_id ASC
		LIMIT ?`, limit)
	if err != nil {
		logger.Error("Failed to get duel leaderboard", zap.Error(err))
		return nil, fmt.Errorf("failed to get duel leaderboard: %w", err)
	}
	defer rows.Close()

	board := []types.DuelStats{}
	for rows.Next() {
		var s types.DuelStats
		if err := rows.Scan(&s.UserID, &s.Wins, &s.Losses, &s.Ties); err != nil {
			logger.Error("Failed to scan duel leaderboard row", zap.Error(err))
			continue
		}
		board = append(board, s)
	}
	return board, rows.Err()
}
